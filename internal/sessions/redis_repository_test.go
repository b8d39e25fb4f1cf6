package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T, prefix string) (*RedisRepository, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), prefix), m
}

func TestRedisRepository_StoresUnderBlogPrefix(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &Session{
		RefreshToken: "r1",
		UserID:       "user-1",
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().Add(time.Minute),
	}))
	require.True(t, m.Exists("blog:session:r1"))
	ttl := m.TTL("blog:session:r1")
	require.Greater(t, ttl, 50*time.Second)
	require.LessOrEqual(t, ttl, time.Minute)

	got, err := repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)

	require.NoError(t, repo.DeleteByRefresh(ctx, "r1"))
	require.False(t, m.Exists("blog:session:r1"))
}

func TestRedisRepository_CustomPrefix(t *testing.T) {
	repo, m := newRedisRepo(t, "test:s:")
	require.NoError(t, repo.Create(context.Background(), &Session{
		RefreshToken: "r2",
		UserID:       "user-2",
		ExpiresAt:    time.Now().UTC().Add(time.Minute),
	}))
	require.True(t, m.Exists("test:s:r2"))
	require.False(t, m.Exists("blog:session:r2"))
}

func TestRedisRepository_ConsumeIsSingleUse(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{
		RefreshToken: "r3",
		UserID:       "user-3",
		ExpiresAt:    time.Now().UTC().Add(time.Minute),
	}))

	got, err := repo.Consume(ctx, "r3")
	require.NoError(t, err)
	require.Equal(t, "user-3", got.UserID)
	require.False(t, m.Exists("blog:session:r3"))

	again, err := repo.Consume(ctx, "r3")
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestRedisRepository_DuplicateTokenRejected(t *testing.T) {
	repo, _ := newRedisRepo(t, "")
	ctx := context.Background()
	s := &Session{RefreshToken: "r4", UserID: "user-4", ExpiresAt: time.Now().UTC().Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, s))

	other := &Session{RefreshToken: "r4", UserID: "intruder", ExpiresAt: time.Now().UTC().Add(time.Minute)}
	require.ErrorIs(t, repo.Create(ctx, other), ErrDuplicateRefresh)

	got, err := repo.GetByRefresh(ctx, "r4")
	require.NoError(t, err)
	require.Equal(t, "user-4", got.UserID)
}

func TestRedisRepository_ExpiredSessions(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &Session{
		RefreshToken: "gone",
		ExpiresAt:    time.Now().UTC().Add(-time.Second),
	}))
	require.False(t, m.Exists("blog:session:gone"))

	require.NoError(t, repo.Create(ctx, &Session{
		RefreshToken: "r5",
		UserID:       "user-5",
		ExpiresAt:    time.Now().UTC().Add(time.Minute),
	}))
	m.FastForward(2 * time.Minute)
	got, err := repo.Consume(ctx, "r5")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_RotateThroughService(t *testing.T) {
	repo, m := newRedisRepo(t, "")
	svc := NewService(repo, time.Hour)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, "user-6")
	require.NoError(t, err)
	second, sess, err := svc.Rotate(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "user-6", sess.UserID)
	require.False(t, m.Exists("blog:session:"+first))
	require.True(t, m.Exists("blog:session:"+second))

	_, _, err = svc.Rotate(ctx, first)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}
