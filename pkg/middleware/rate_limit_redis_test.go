package middleware

import (
	"net/http"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/blogescolar/blog-api/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func redisLimitedRouter(t *testing.T, burst int) (*gin.Engine, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})

	r := gin.New()
	// an hour-long window keeps the test away from bucket boundaries
	r.Use(Identify(&fakeVerifier{}), RedisRateLimitMiddleware(client, 0, burst, time.Hour))
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r, m
}

func TestRedisRateLimit_RejectsOverBudget(t *testing.T) {
	r, m := redisLimitedRouter(t, 2)
	rejected := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis"))
	allowed := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("redis"))

	require.Equal(t, http.StatusOK, serve(r, "").Code)
	require.Equal(t, http.StatusOK, serve(r, "").Code)
	w := serve(r, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "3600", w.Header().Get("Retry-After"))

	require.Equal(t, allowed+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("redis")))
	require.Equal(t, rejected+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis")))

	keys := m.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], "rl:ip:"), keys[0])
	require.Greater(t, m.TTL(keys[0]), time.Duration(0))
}

func TestRedisRateLimit_CallersHaveOwnCounters(t *testing.T) {
	r, m := redisLimitedRouter(t, 1)

	require.Equal(t, http.StatusOK, serve(r, "Bearer goodtoken").Code)
	require.Equal(t, http.StatusOK, serve(r, "Bearer proftoken").Code)
	require.Equal(t, http.StatusOK, serve(r, "").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, "Bearer goodtoken").Code)

	var subs int
	for _, k := range m.Keys() {
		if strings.HasPrefix(k, "rl:sub:user1:") || strings.HasPrefix(k, "rl:sub:user2:") {
			subs++
		}
	}
	require.Equal(t, 2, subs)
}

func TestRedisRateLimit_FailsOpen(t *testing.T) {
	r, m := redisLimitedRouter(t, 1)
	rejected := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis"))

	m.Close()
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(r, "").Code)
	}
	require.Equal(t, rejected, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis")))
}

func TestRedisRateLimit_NilClientUsesMemory(t *testing.T) {
	r := gin.New()
	r.Use(RedisRateLimitMiddleware(nil, 0.5, 1, time.Second))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	allowed := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))
	require.Equal(t, http.StatusOK, serve(r, "").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, "").Code)
	require.Equal(t, allowed+1, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}
