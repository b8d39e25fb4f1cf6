package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/blogescolar/blog-api/internal/apperrors"
	"github.com/blogescolar/blog-api/internal/audit"
	"github.com/blogescolar/blog-api/internal/events"
	"github.com/blogescolar/blog-api/internal/models"
	"github.com/blogescolar/blog-api/internal/post"
	"github.com/blogescolar/blog-api/internal/post/repository"
	"github.com/blogescolar/blog-api/internal/storage"
	"github.com/blogescolar/blog-api/pkg/logger"
	"github.com/blogescolar/blog-api/pkg/metrics"
	"github.com/blogescolar/blog-api/pkg/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	MaxImageSize    = 5 << 20
	imageURLExpires = 15 * time.Minute
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Service defines the post and comment operations used by the handler layer.
// Requesters are authenticated principals; roles arrive already normalized.
type Service interface {
	CreatePost(ctx context.Context, in post.CreatePostInput) (*post.Post, error)
	UpdatePost(ctx context.Context, id string, upd post.PostUpdate) (*post.Post, error)
	DeletePost(ctx context.Context, id string) error
	ListActivePosts(ctx context.Context) ([]*post.Post, error)
	ListAllPosts(ctx context.Context, requester models.Principal) ([]*post.Post, error)
	GetPost(ctx context.Context, id string) (*post.Post, error)
	SearchPosts(ctx context.Context, title, description string) ([]*post.Post, error)

	ListComments(ctx context.Context, postID string) ([]post.Comment, error)
	AddComment(ctx context.Context, postID string, requester models.Principal, text string) (*post.Comment, error)
	EditComment(ctx context.Context, postID, commentID string, requester models.Principal, newText string) (*post.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID string, requester models.Principal) error
	ModerationLog(ctx context.Context, postID string, requester models.Principal) ([]audit.CommentDeletion, error)

	AttachImage(ctx context.Context, postID string, img post.ImageUpload, r io.Reader) (*post.Post, error)
	ImageURLs(ctx context.Context, postID string) ([]string, error)

	Ping(ctx context.Context) error
}

// Option configures the optional collaborators of the service.
type Option func(*postService)

func WithPublisher(p events.Publisher) Option {
	return func(s *postService) { s.events = p }
}

func WithAudit(a audit.Store) Option {
	return func(s *postService) { s.audit = a }
}

func WithImageStore(st storage.ImageStore) Option {
	return func(s *postService) { s.images = st }
}

func WithClock(now func() time.Time) Option {
	return func(s *postService) { s.now = now }
}

// New returns a Service over the given repository.
func New(repo repository.Repository, opts ...Option) Service {
	s := &postService{
		repo:     repo,
		events:   events.NewNoop(),
		audit:    audit.NewMemoryStore(),
		now:      time.Now,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(opts ...Option) Service {
	return New(repository.NewMemoryRepo(), opts...)
}

// NewMongoService returns a Service backed by a MongoDB collection.
// Caller is responsible for creating the collection (and client) and passing it in.
func NewMongoService(col *mongo.Collection, opts ...Option) Service {
	return New(repository.NewMongoRepo(col), opts...)
}

type postService struct {
	repo     repository.Repository
	events   events.Publisher
	audit    audit.Store
	images   storage.ImageStore
	now      func() time.Time
	validate *validator.Validate
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// translate maps repository errors onto the service taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: post not found", apperrors.ErrNotFound)
	case errors.Is(err, repository.ErrCommentNotFound):
		return fmt.Errorf("%w: comment not found", apperrors.ErrNotFound)
	}
	return err
}

func record(op string, err error) {
	metrics.PostOperationsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()
}

func (s *postService) publish(ctx context.Context, key string, ev any) {
	if err := s.events.Publish(ctx, key, ev); err != nil {
		logger.L().Warn("publish event failed",
			zap.String("routing_key", key),
			zap.String("request_id", middleware.RequestIDFromContext(ctx)),
			zap.Error(err))
	}
}

func rejectReadOnly(fields []string) error {
	if len(fields) > 0 {
		return invalid("read-only fields cannot be set: %s", strings.Join(fields, ", "))
	}
	return nil
}

func (s *postService) CreatePost(ctx context.Context, in post.CreatePostInput) (p *post.Post, err error) {
	defer func() { record("create_post", err) }()

	if err := rejectReadOnly(in.ReadOnlyFields); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid("title and description are required")
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	p = &post.Post{
		Title:       in.Title,
		Description: in.Description,
		Author:      strings.TrimSpace(in.Author),
		Active:      active,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.publish(ctx, events.PostCreated, events.PostEvent{PostID: p.ID.Hex(), Title: p.Title, Author: p.Author, Active: p.Active})
	return p, nil
}

func (s *postService) UpdatePost(ctx context.Context, id string, upd post.PostUpdate) (p *post.Post, err error) {
	defer func() { record("update_post", err) }()

	if err := rejectReadOnly(upd.ReadOnlyFields); err != nil {
		return nil, err
	}
	for _, f := range []*string{upd.Title, upd.Description} {
		if f == nil {
			continue
		}
		*f = strings.TrimSpace(*f)
		if *f == "" {
			return nil, invalid("title and description cannot be empty")
		}
	}

	p, err = s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, translate(err)
	}
	s.publish(ctx, events.PostUpdated, events.PostEvent{PostID: p.ID.Hex(), Title: p.Title, Author: p.Author, Active: p.Active})
	return p, nil
}

func (s *postService) DeletePost(ctx context.Context, id string) (err error) {
	defer func() { record("delete_post", err) }()

	var images []string
	if s.images != nil {
		if existing, gerr := s.repo.Get(ctx, id); gerr == nil {
			images = existing.Images
		}
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	for _, key := range images {
		if rerr := s.images.RemoveFile(ctx, key); rerr != nil {
			logger.Warnf("remove image %s of deleted post %s: %v", key, id, rerr)
		}
	}
	s.publish(ctx, events.PostDeleted, events.PostEvent{PostID: id})
	return nil
}

func (s *postService) ListActivePosts(ctx context.Context) (list []*post.Post, err error) {
	defer func() { record("list_active_posts", err) }()
	return s.repo.List(ctx, post.ListFilter{ActiveOnly: true, OmitComments: true})
}

func (s *postService) ListAllPosts(ctx context.Context, requester models.Principal) (list []*post.Post, err error) {
	defer func() { record("list_all_posts", err) }()
	if !requester.IsProfessor() {
		return nil, fmt.Errorf("%w: only professors can list every post", apperrors.ErrForbidden)
	}
	return s.repo.List(ctx, post.ListFilter{})
}

func (s *postService) GetPost(ctx context.Context, id string) (p *post.Post, err error) {
	defer func() { record("get_post", err) }()
	p, err = s.repo.Get(ctx, id)
	return p, translate(err)
}

func (s *postService) SearchPosts(ctx context.Context, title, description string) (list []*post.Post, err error) {
	defer func() { record("search_posts", err) }()
	return s.repo.List(ctx, post.ListFilter{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
	})
}

func (s *postService) ListComments(ctx context.Context, postID string) (list []post.Comment, err error) {
	defer func() { record("list_comments", err) }()
	p, err := s.repo.Get(ctx, postID)
	if err != nil {
		return nil, translate(err)
	}
	if p.Comments == nil {
		return []post.Comment{}, nil
	}
	return p.Comments, nil
}

func (s *postService) AddComment(ctx context.Context, postID string, requester models.Principal, text string) (c *post.Comment, err error) {
	defer func() { record("add_comment", err) }()

	author := strings.TrimSpace(requester.Name)
	text = strings.TrimSpace(text)
	if author == "" || text == "" {
		return nil, invalid("author and text are required")
	}
	c = &post.Comment{
		ID:       primitive.NewObjectID(),
		Author:   author,
		AuthorID: requester.UserID,
		Text:     text,
		PostedAt: s.now().UTC(),
	}
	if err := s.repo.PushComment(ctx, postID, *c); err != nil {
		return nil, translate(err)
	}
	s.publish(ctx, events.CommentAdded, events.CommentEvent{
		PostID: postID, CommentID: c.ID.Hex(), Author: c.Author, AuthorID: c.AuthorID,
	})
	return c, nil
}

// EditComment lets only the author rewrite a comment; the professor role
// grants delete rights, never edit rights.
func (s *postService) EditComment(ctx context.Context, postID, commentID string, requester models.Principal, newText string) (c *post.Comment, err error) {
	defer func() { record("edit_comment", err) }()

	existing, err := s.repo.GetComment(ctx, postID, commentID)
	if err != nil {
		return nil, translate(err)
	}
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, invalid("text is required")
	}
	if !existing.OwnedBy(requester) {
		return nil, fmt.Errorf("%w: only the author can edit this comment", apperrors.ErrForbidden)
	}

	c, err = s.repo.SetCommentText(ctx, postID, commentID, newText, s.now().UTC())
	if err != nil {
		return nil, translate(err)
	}
	s.publish(ctx, events.CommentEdited, events.CommentEvent{
		PostID: postID, CommentID: commentID, Author: c.Author, AuthorID: c.AuthorID,
		ActorID: requester.UserID, ActorName: requester.Name, ActorRole: requester.Role,
	})
	return c, nil
}

// DeleteComment allows the author or any professor. Removals by someone other
// than the author are recorded as moderated in the audit trail.
func (s *postService) DeleteComment(ctx context.Context, postID, commentID string, requester models.Principal) (err error) {
	defer func() { record("delete_comment", err) }()

	existing, err := s.repo.GetComment(ctx, postID, commentID)
	if err != nil {
		return translate(err)
	}
	owner := existing.OwnedBy(requester)
	if !owner && !requester.IsProfessor() {
		return fmt.Errorf("%w: only the author or a professor can delete this comment", apperrors.ErrForbidden)
	}
	if err := s.repo.PullComment(ctx, postID, commentID); err != nil {
		return translate(err)
	}

	entry := &audit.CommentDeletion{
		CommentID:       existing.ID.Hex(),
		PostID:          canonicalID(postID),
		CommentAuthor:   existing.Author,
		CommentAuthorID: existing.AuthorID,
		Text:            existing.Text,
		ActorID:         requester.UserID,
		ActorName:       requester.Name,
		ActorRole:       requester.Role,
		Moderated:       !owner,
		RequestID:       middleware.RequestIDFromContext(ctx),
		DeletedAt:       s.now().UTC(),
	}
	if aerr := s.audit.Save(ctx, entry); aerr != nil {
		logger.L().Error("audit comment deletion failed",
			zap.String("post_id", postID), zap.String("comment_id", commentID), zap.Error(aerr))
	}
	if entry.Moderated {
		logger.L().Info("comment moderated",
			zap.String("post_id", postID), zap.String("comment_id", commentID),
			zap.String("actor_id", requester.UserID), zap.String("author", existing.Author))
	}
	s.publish(ctx, events.CommentDeleted, events.CommentEvent{
		PostID: entry.PostID, CommentID: entry.CommentID, Author: existing.Author, AuthorID: existing.AuthorID,
		ActorID: requester.UserID, ActorName: requester.Name, ActorRole: requester.Role, Moderated: entry.Moderated,
	})
	return nil
}

// ModerationLog lists the comment deletions recorded for a post. Only
// professors may read it.
func (s *postService) ModerationLog(ctx context.Context, postID string, requester models.Principal) (list []audit.CommentDeletion, err error) {
	defer func() { record("moderation_log", err) }()
	if !requester.IsProfessor() {
		return nil, fmt.Errorf("%w: only professors can read the moderation log", apperrors.ErrForbidden)
	}
	p, err := s.repo.Get(ctx, postID)
	if err != nil {
		return nil, translate(err)
	}
	list, err = s.audit.ListByPost(ctx, p.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("%w: moderation log: %v", apperrors.ErrUnavailable, err)
	}
	return list, nil
}

// canonicalID returns the lowercase hex form of a valid ObjectID string.
func canonicalID(id string) string {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid.Hex()
	}
	return id
}

func (s *postService) AttachImage(ctx context.Context, postID string, img post.ImageUpload, r io.Reader) (p *post.Post, err error) {
	defer func() { record("attach_image", err) }()

	if s.images == nil {
		return nil, fmt.Errorf("%w: image storage is not configured", apperrors.ErrUnavailable)
	}
	ext, ok := allowedImageTypes[img.ContentType]
	if !ok {
		return nil, invalid("unsupported image type %q", img.ContentType)
	}
	if img.Size <= 0 || img.Size > MaxImageSize {
		return nil, invalid("image must be between 1 byte and %d bytes", MaxImageSize)
	}
	if _, err := s.repo.Get(ctx, postID); err != nil {
		return nil, translate(err)
	}

	key := path.Join("posts", postID, uuid.NewString()+ext)
	if err := s.images.UploadFile(ctx, key, r, img.Size, img.ContentType); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	if err := s.repo.PushImage(ctx, postID, key); err != nil {
		// the post vanished between the check and the push
		_ = s.images.RemoveFile(ctx, key)
		return nil, translate(err)
	}
	p, err = s.repo.Get(ctx, postID)
	return p, translate(err)
}

func (s *postService) ImageURLs(ctx context.Context, postID string) (urls []string, err error) {
	defer func() { record("image_urls", err) }()

	if s.images == nil {
		return nil, fmt.Errorf("%w: image storage is not configured", apperrors.ErrUnavailable)
	}
	p, err := s.repo.Get(ctx, postID)
	if err != nil {
		return nil, translate(err)
	}
	urls = make([]string, 0, len(p.Images))
	for _, key := range p.Images {
		u, err := s.images.GetPresignedURL(ctx, key, imageURLExpires)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", key, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *postService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
