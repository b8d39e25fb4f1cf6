package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/blogescolar/blog-api/internal/apperrors"
	"github.com/blogescolar/blog-api/internal/sessions"
	"github.com/blogescolar/blog-api/internal/tokens"
	"github.com/blogescolar/blog-api/internal/users"
	"github.com/blogescolar/blog-api/pkg/logger"
	"github.com/blogescolar/blog-api/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRequest is the body of POST /auth/registrar.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	issuer      *tokens.Issuer
}

func NewAuthHandler(u *users.Service, s *sessions.Service, iss *tokens.Issuer) *AuthHandler {
	return &AuthHandler{usersSvc: u, sessionsSvc: s, issuer: iss}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg gin.IRouter) {
	a := rg.Group("/auth")
	a.POST("/registrar", h.SignUp)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", middleware.OptionalAuth(h.issuer), h.Logout)
}

func writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": apperrors.PublicMessage(err)})
}

// SignUp creates an account with role aluno or professor.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), users.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Usuário criado com sucesso!", "user": u})
}

// Login checks credentials and returns an access token plus a refresh token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	ctx := c.Request.Context()
	u, err := h.usersSvc.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	access, err := h.issuer.Issue(u)
	if err != nil {
		writeError(c, err)
		return
	}
	rft, err := h.sessionsSvc.CreateSession(ctx, u.ID)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Login realizado com sucesso",
		"token":        access,
		"refreshToken": rft,
		"name":         u.Name,
		"role":         u.Role,
		"expiresIn":    int(h.issuer.TTL() / time.Second),
	})
}

// Refresh consumes a refresh token and returns a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken is required"})
		return
	}
	ctx := c.Request.Context()
	next, sess, err := h.sessionsSvc.Rotate(ctx, req.RefreshToken)
	if errors.Is(err, sessions.ErrInvalidRefresh) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		logger.Errorf("refresh rotation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	u, err := h.usersSvc.GetByID(ctx, sess.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = h.sessionsSvc.DeleteRefresh(ctx, next)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	access, err := h.issuer.Issue(u)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        access,
		"refreshToken": next,
		"expiresIn":    int(h.issuer.TTL() / time.Second),
	})
}

// Logout removes the refresh session and, when the request carries a valid
// bearer token, blacklists it until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)

	at := middleware.RawToken(c)
	if req.RefreshToken == "" && at == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken or bearer token required"})
		return
	}
	ctx := c.Request.Context()
	if at != "" {
		if exp := middleware.ClaimsExpiry(c); exp > 0 {
			if err := sessions.BlacklistAccessToken(ctx, at, time.Until(time.Unix(exp, 0))); err != nil {
				logger.Errorf("failed to blacklist access token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}
	if req.RefreshToken != "" {
		if err := h.sessionsSvc.DeleteRefresh(ctx, req.RefreshToken); err != nil {
			logger.Errorf("failed to remove session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
