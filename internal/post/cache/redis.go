// Package cache keeps single posts in Redis as JSON.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blogescolar/blog-api/internal/post"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	postCacheKeyPrefix = "blog:post:"
	postGenKeyPrefix   = "blog:post-gen:"
	defaultPostTTL     = 30 * time.Minute
)

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStale is returned by SetPostIfGeneration when the post was
	// invalidated after the generation was read.
	ErrStale = errors.New("cache entry is stale")
	// ErrBadKey is returned for ids that are not ObjectID hex strings.
	ErrBadKey = errors.New("invalid post id for cache")
)

// PostCache stores posts under "blog:post:<hex id>" and a per-post
// generation counter under "blog:post-gen:<hex id>". Every invalidation bumps
// the counter, so a loader that read the store before a mutation cannot
// write its copy back afterwards.
type PostCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPostCache(client *redis.Client, ttl time.Duration) *PostCache {
	if ttl <= 0 {
		ttl = defaultPostTTL
	}
	return &PostCache{client: client, ttl: ttl}
}

// Canonical returns the lowercase hex form of id. ObjectIDFromHex accepts
// either case, so keys must be built from the parsed value.
func Canonical(id string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", ErrBadKey
	}
	return oid.Hex(), nil
}

func keys(id string) (string, string, error) {
	c, err := Canonical(id)
	if err != nil {
		return "", "", err
	}
	return postCacheKeyPrefix + c, postGenKeyPrefix + c, nil
}

// GetPost returns ErrCacheMiss when the post is not cached.
func (c *PostCache) GetPost(ctx context.Context, id string) (*post.Post, error) {
	k, _, err := keys(id)
	if err != nil {
		return nil, err
	}
	b, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	var p post.Post
	if err := json.Unmarshal(b, &p); err != nil {
		// drop entries we can no longer decode
		_ = c.client.Del(ctx, k).Err()
		return nil, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return &p, nil
}

// Generation returns the invalidation counter for id, zero when it was never
// bumped.
func (c *PostCache) Generation(ctx context.Context, id string) (int64, error) {
	_, g, err := keys(id)
	if err != nil {
		return 0, err
	}
	n, err := c.client.Get(ctx, g).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return n, nil
}

// SetPostIfGeneration stores p only while the generation counter still
// equals gen. The counter is watched, so an invalidation racing the write
// aborts the transaction.
func (c *PostCache) SetPostIfGeneration(ctx context.Context, p *post.Post, gen int64) error {
	if p == nil {
		return fmt.Errorf("post cannot be nil")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	k := postCacheKeyPrefix + p.ID.Hex()
	g := postGenKeyPrefix + p.ID.Hex()

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, g).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, c.ttl)
			return nil
		})
		return err
	}, g)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("failed to set cache: %w", err)
	}
}

// DeletePost drops the cached entry and bumps the generation counter. The
// counter outlives the entry so in-flight loaders still see the change.
func (c *PostCache) DeletePost(ctx context.Context, id string) error {
	k, g, err := keys(id)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.Incr(ctx, g)
		pipe.Expire(ctx, g, 2*c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}
