package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/blogescolar/blog-api/internal/apperrors"
	"github.com/blogescolar/blog-api/internal/audit"
	"github.com/blogescolar/blog-api/internal/models"
	"github.com/blogescolar/blog-api/internal/post"
	"github.com/blogescolar/blog-api/internal/post/service"
	"github.com/blogescolar/blog-api/pkg/logger"
	"github.com/blogescolar/blog-api/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// shortDate is the pt-BR dd/mm/yyyy layout used by post listings.
const shortDate = "02/01/2006"

type commentView struct {
	ID       string `json:"id"`
	Author   string `json:"author"`
	AuthorID string `json:"authorId,omitempty"`
	Text     string `json:"text"`
	PostedAt string `json:"postedAt"`
}

type postView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Author      string        `json:"author"`
	Active      bool          `json:"active"`
	Comments    []commentView `json:"comments,omitempty"`
	Images      []string      `json:"images,omitempty"`
	CreatedAt   string        `json:"createdAt"`
	UpdatedAt   string        `json:"updatedAt"`
}

func toCommentView(c post.Comment) commentView {
	return commentView{
		ID:       c.ID.Hex(),
		Author:   c.Author,
		AuthorID: c.AuthorID,
		Text:     c.Text,
		PostedAt: c.PostedAt.UTC().Format(time.RFC3339),
	}
}

func toCommentViews(list []post.Comment) []commentView {
	out := make([]commentView, 0, len(list))
	for _, c := range list {
		out = append(out, toCommentView(c))
	}
	return out
}

func toPostView(p *post.Post) postView {
	v := postView{
		ID:          p.ID.Hex(),
		Title:       p.Title,
		Description: p.Description,
		Author:      p.Author,
		Active:      p.Active,
		Images:      p.Images,
		CreatedAt:   p.CreatedAt.UTC().Format(shortDate),
		UpdatedAt:   p.UpdatedAt.UTC().Format(shortDate),
	}
	if len(p.Comments) > 0 {
		v.Comments = toCommentViews(p.Comments)
	}
	return v
}

// postDetail is the single-post shape. It always carries the comment array,
// empty when nobody has commented yet.
type postDetail struct {
	postView
	Comments []commentView `json:"comments"`
}

func toPostDetail(p *post.Post) postDetail {
	return postDetail{postView: toPostView(p), Comments: toCommentViews(p.Comments)}
}

type deletionView struct {
	CommentID     string      `json:"commentId"`
	CommentAuthor string      `json:"commentAuthor"`
	Text          string      `json:"text"`
	ActorID       string      `json:"actorId"`
	ActorName     string      `json:"actorName"`
	ActorRole     models.Role `json:"actorRole"`
	Moderated     bool        `json:"moderated"`
	DeletedAt     string      `json:"deletedAt"`
}

func toDeletionViews(list []audit.CommentDeletion) []deletionView {
	out := make([]deletionView, 0, len(list))
	for _, d := range list {
		out = append(out, deletionView{
			CommentID:     d.CommentID,
			CommentAuthor: d.CommentAuthor,
			Text:          d.Text,
			ActorID:       d.ActorID,
			ActorName:     d.ActorName,
			ActorRole:     d.ActorRole,
			Moderated:     d.Moderated,
			DeletedAt:     d.DeletedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func toPostViews(list []*post.Post) []postView {
	out := make([]postView, 0, len(list))
	for _, p := range list {
		out = append(out, toPostView(p))
	}
	return out
}

// timestamps are bound raw so that their mere presence can be rejected
type timestampFields struct {
	CreatedAt       json.RawMessage `json:"createdAt"`
	UpdatedAt       json.RawMessage `json:"updatedAt"`
	DataCriacao     json.RawMessage `json:"dataCriacao"`
	DataAtualizacao json.RawMessage `json:"dataAtualizacao"`
}

func (t timestampFields) present() []string {
	var out []string
	for i, raw := range []json.RawMessage{t.CreatedAt, t.UpdatedAt, t.DataCriacao, t.DataAtualizacao} {
		if len(raw) > 0 {
			out = append(out, post.ReadOnlyKeys[i])
		}
	}
	return out
}

type createPostRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Active      *bool  `json:"active"`
	timestampFields
}

type updatePostRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
	timestampFields
}

type addCommentRequest struct {
	Text string `json:"text"`
}

type editCommentRequest struct {
	NewText string `json:"newText"`
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.RequestIDFromContext(c.Request.Context())),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperrors.PublicMessage(err)})
}

func principal(c *gin.Context) models.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}

// RegisterPostRoutes mounts the post and comment endpoints. Comment mutations,
// the professor listing and the moderation log require a bearer token checked
// by ver.
func RegisterPostRoutes(r gin.IRouter, svc service.Service, ver middleware.Verifier) {
	auth := middleware.AuthMiddleware(ver)

	posts := r.Group("/posts")

	posts.GET("", func(c *gin.Context) {
		list, err := svc.ListActivePosts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPostViews(list))
	})

	posts.GET("/professor", auth, middleware.RequireRole(models.RoleProfessor), func(c *gin.Context) {
		list, err := svc.ListAllPosts(c.Request.Context(), principal(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPostViews(list))
	})

	posts.GET("/busca", func(c *gin.Context) {
		list, err := svc.SearchPosts(c.Request.Context(), c.Query("titulo"), c.Query("descricao"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPostViews(list))
	})

	posts.GET("/:id", func(c *gin.Context) {
		p, err := svc.GetPost(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPostDetail(p))
	})

	posts.POST("", func(c *gin.Context) {
		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		p, err := svc.CreatePost(c.Request.Context(), post.CreatePostInput{
			Title:          req.Title,
			Description:    req.Description,
			Author:         req.Author,
			Active:         req.Active,
			ReadOnlyFields: req.present(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Post criado com sucesso", "post": toPostDetail(p)})
	})

	posts.PUT("/:id", func(c *gin.Context) {
		var req updatePostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		p, err := svc.UpdatePost(c.Request.Context(), c.Param("id"), post.PostUpdate{
			Title:          req.Title,
			Description:    req.Description,
			Active:         req.Active,
			ReadOnlyFields: req.present(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Post atualizado", "post": toPostDetail(p)})
	})

	posts.DELETE("/:id", func(c *gin.Context) {
		if err := svc.DeletePost(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Post excluído"})
	})

	posts.GET("/:id/comentarios", func(c *gin.Context) {
		list, err := svc.ListComments(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toCommentViews(list))
	})

	posts.POST("/:id/comentarios", auth, func(c *gin.Context) {
		var req addCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		cm, err := svc.AddComment(c.Request.Context(), c.Param("id"), principal(c), req.Text)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toCommentView(*cm))
	})

	posts.PUT("/:id/comentarios/:commentId", auth, func(c *gin.Context) {
		var req editCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		cm, err := svc.EditComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), principal(c), req.NewText)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Comentário atualizado", "comment": toCommentView(*cm)})
	})

	posts.DELETE("/:id/comentarios/:commentId", auth, func(c *gin.Context) {
		if err := svc.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), principal(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Comentário excluído com sucesso."})
	})

	posts.GET("/:id/moderacao", auth, middleware.RequireRole(models.RoleProfessor), func(c *gin.Context) {
		list, err := svc.ModerationLog(c.Request.Context(), c.Param("id"), principal(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toDeletionViews(list))
	})

	posts.POST("/:id/imagens", func(c *gin.Context) {
		fh, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"image\" is required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()

		p, err := svc.AttachImage(c.Request.Context(), c.Param("id"), post.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		}, f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toPostDetail(p))
	})

	posts.GET("/:id/imagens", func(c *gin.Context) {
		urls, err := svc.ImageURLs(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"urls": urls})
	})
}
