package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/blogescolar/blog-api/internal/apperrors"
	"github.com/blogescolar/blog-api/internal/post"
	"github.com/blogescolar/blog-api/internal/post/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedService(t *testing.T) (Service, *mr.Miniredis) {
	t.Helper()
	return wrapCached(t, NewMemoryService())
}

func wrapCached(t *testing.T, inner Service) (Service, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return NewCachedService(inner, cache.NewPostCache(client, 0)), m
}

// pausingService holds the first GetPost after it has read the store until
// release is closed.
type pausingService struct {
	Service
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (s *pausingService) GetPost(ctx context.Context, id string) (*post.Post, error) {
	p, err := s.Service.GetPost(ctx, id)
	s.once.Do(func() {
		close(s.loaded)
		<-s.release
	})
	return p, err
}

func TestCachedService_ReadThrough(t *testing.T) {
	ctx := context.Background()
	svc, m := newCachedService(t)
	p := mustCreate(t, svc, "t", "d")
	pid := p.ID.Hex()

	require.False(t, m.Exists("blog:post:"+pid))
	got, err := svc.GetPost(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	require.True(t, m.Exists("blog:post:"+pid))

	again, err := svc.GetPost(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
	assert.Equal(t, got.Title, again.Title)
}

func TestCachedService_MutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	svc, m := newCachedService(t)
	pid := mustCreate(t, svc, "t", "d").ID.Hex()
	cacheKey := "blog:post:" + pid

	_, err := svc.GetPost(ctx, pid)
	require.NoError(t, err)
	require.True(t, m.Exists(cacheKey))

	c, err := svc.AddComment(ctx, pid, alunoX, "hello")
	require.NoError(t, err)
	require.False(t, m.Exists(cacheKey))

	comments, err := svc.ListComments(ctx, pid)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.True(t, m.Exists(cacheKey))

	_, err = svc.EditComment(ctx, pid, c.ID.Hex(), alunoX, "edited")
	require.NoError(t, err)
	require.False(t, m.Exists(cacheKey))

	comments, err = svc.ListComments(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, "edited", comments[0].Text)

	require.NoError(t, svc.DeleteComment(ctx, pid, c.ID.Hex(), professorZ))
	require.False(t, m.Exists(cacheKey))
	comments, err = svc.ListComments(ctx, pid)
	require.NoError(t, err)
	assert.Empty(t, comments)

	updated, err := svc.UpdatePost(ctx, pid, post.PostUpdate{Title: strPtr("new")})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	require.False(t, m.Exists(cacheKey))

	_, err = svc.GetPost(ctx, pid)
	require.NoError(t, err)
	require.NoError(t, svc.DeletePost(ctx, pid))
	require.False(t, m.Exists(cacheKey))

	_, err = svc.GetPost(ctx, pid)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCachedService_FailedMutationKeepsEntry(t *testing.T) {
	ctx := context.Background()
	svc, m := newCachedService(t)
	pid := mustCreate(t, svc, "t", "d").ID.Hex()

	_, err := svc.GetPost(ctx, pid)
	require.NoError(t, err)

	_, err = svc.AddComment(ctx, pid, alunoX, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.True(t, m.Exists("blog:post:"+pid))
}

func TestCachedService_RedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	svc, m := newCachedService(t)
	pid := mustCreate(t, svc, "t", "d").ID.Hex()

	m.Close()
	got, err := svc.GetPost(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)

	_, err = svc.AddComment(ctx, pid, alunoX, "still works")
	require.NoError(t, err)
}

func TestCachedService_MixedCaseIDsShareOneEntry(t *testing.T) {
	ctx := context.Background()
	svc, m := newCachedService(t)
	lower := mustCreate(t, svc, "t", "d").ID.Hex()
	upper := strings.ToUpper(lower)

	c, err := svc.AddComment(ctx, lower, alunoX, "oi")
	require.NoError(t, err)

	_, err = svc.GetPost(ctx, lower)
	require.NoError(t, err)
	require.True(t, m.Exists("blog:post:"+lower))
	require.False(t, m.Exists("blog:post:"+upper))

	require.NoError(t, svc.DeleteComment(ctx, upper, c.ID.Hex(), professorZ))
	comments, err := svc.ListComments(ctx, lower)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = svc.GetPost(ctx, upper)
	require.NoError(t, err)
	require.NoError(t, svc.DeletePost(ctx, upper))
	require.False(t, m.Exists("blog:post:"+lower))

	_, err = svc.GetPost(ctx, lower)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCachedService_MalformedIDSkipsCache(t *testing.T) {
	svc, m := newCachedService(t)
	_, err := svc.GetPost(context.Background(), "not-an-id")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, m.Keys())
}

func TestCachedService_LoadRacingDeleteIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryService()
	pid := mustCreate(t, inner, "t", "d").ID.Hex()
	paused := &pausingService{Service: inner, loaded: make(chan struct{}), release: make(chan struct{})}
	svc, m := wrapCached(t, paused)

	done := make(chan *post.Post, 1)
	go func() {
		p, _ := svc.GetPost(ctx, pid)
		done <- p
	}()

	<-paused.loaded
	require.NoError(t, svc.DeletePost(ctx, pid))
	close(paused.release)

	// the racing reader still gets what it read, but must not publish it
	require.NotNil(t, <-done)
	require.False(t, m.Exists("blog:post:"+pid))

	_, err := svc.GetPost(ctx, pid)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCachedService_LoadRacingModerationIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryService()
	pid := mustCreate(t, inner, "t", "d").ID.Hex()
	c, err := inner.AddComment(ctx, pid, alunoX, "spam")
	require.NoError(t, err)
	paused := &pausingService{Service: inner, loaded: make(chan struct{}), release: make(chan struct{})}
	svc, _ := wrapCached(t, paused)

	done := make(chan struct{})
	go func() {
		_, _ = svc.ListComments(ctx, pid)
		close(done)
	}()

	<-paused.loaded
	require.NoError(t, svc.DeleteComment(ctx, pid, c.ID.Hex(), professorZ))
	close(paused.release)
	<-done

	comments, err := svc.ListComments(ctx, pid)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
