package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/blogescolar/blog-api/internal/sessions"
	"github.com/blogescolar/blog-api/internal/tokens"
	"github.com/blogescolar/blog-api/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	users.HashCost = bcrypt.MinCost
	gin.SetMode(gin.TestMode)
}

func newAuthEngine(t *testing.T) (*gin.Engine, *tokens.Issuer) {
	t.Helper()
	iss := tokens.NewIssuer("auth-test-secret", "blog-api", time.Hour)
	h := NewAuthHandler(
		users.NewService(users.NewMemoryUserRepository()),
		sessions.NewService(sessions.NewMemoryRepository(), time.Hour),
		iss,
	)
	g := gin.New()
	h.Register(g)
	return g, iss
}

func postJSON(g *gin.Engine, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

type loginResponse struct {
	Message      string `json:"message"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ExpiresIn    int    `json:"expiresIn"`
}

func registerAndLogin(t *testing.T, g *gin.Engine, email, role string) loginResponse {
	t.Helper()
	w := postJSON(g, "/auth/registrar", `{"name":"Ana","email":"`+email+`","password":"segredo","role":"`+role+`"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = postJSON(g, "/auth/login", `{"email":"`+email+`","password":"segredo"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	g, iss := newAuthEngine(t)

	out := registerAndLogin(t, g, "Ana@Escola.br", " PROFESSOR ")
	assert.Equal(t, "Ana", out.Name)
	assert.Equal(t, "professor", out.Role)
	assert.Equal(t, 3600, out.ExpiresIn)
	assert.NotEmpty(t, out.RefreshToken)

	claims, err := iss.Parse(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "professor", string(claims.Role))
	assert.Equal(t, "ana@escola.br", claims.Email)
	assert.NotEmpty(t, claims.Subject)
}

func TestRegister_Rejections(t *testing.T) {
	g, _ := newAuthEngine(t)

	w := postJSON(g, "/auth/registrar", `{"name":"Ana","email":"a@b.c","password":"x","role":"admin"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(g, "/auth/registrar", `{"name":"","email":"a@b.c","password":"x","role":"aluno"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(g, "/auth/registrar", `{"name":"Ana","email":"a@b.c","password":"x","role":"aluno"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = postJSON(g, "/auth/registrar", `{"name":"Bia","email":"A@B.C","password":"y","role":"aluno"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	g, _ := newAuthEngine(t)
	registerAndLogin(t, g, "x@y.z", "aluno")

	w := postJSON(g, "/auth/login", `{"email":"x@y.z","password":"errada"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(g, "/auth/login", `{"email":"ninguem@y.z","password":"segredo"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(g, "/auth/login", `{"email":"","password":""}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	g, _ := newAuthEngine(t)
	out := registerAndLogin(t, g, "r@y.z", "aluno")

	w := postJSON(g, "/auth/refresh", `{"refreshToken":"`+out.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var next loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	assert.NotEmpty(t, next.Token)
	assert.NotEqual(t, out.RefreshToken, next.RefreshToken)

	// the old refresh token was consumed
	w = postJSON(g, "/auth/refresh", `{"refreshToken":"`+out.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(g, "/auth/refresh", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogout_BlacklistsAccessAndDeletesRefresh(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sessions.SetBlacklistClient(client)
	defer sessions.SetBlacklistClient(nil)

	g, _ := newAuthEngine(t)
	out := registerAndLogin(t, g, "l@y.z", "aluno")

	w := postJSON(g, "/auth/logout", `{"refreshToken":"`+out.RefreshToken+`"}`, out.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.True(t, m.Exists("blog:blacklist:access:"+out.Token))
	ttl := m.TTL("blog:blacklist:access:" + out.Token)
	assert.True(t, ttl > 0 && ttl <= time.Hour)

	w = postJSON(g, "/auth/refresh", `{"refreshToken":"`+out.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// a revoked token no longer authenticates
	w = postJSON(g, "/auth/logout", `{}`, out.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_RequiresSomething(t *testing.T) {
	g, _ := newAuthEngine(t)
	w := postJSON(g, "/auth/logout", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
