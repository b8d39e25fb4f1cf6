package service

import (
	"context"
	"errors"
	"io"

	"github.com/blogescolar/blog-api/internal/models"
	"github.com/blogescolar/blog-api/internal/post"
	"github.com/blogescolar/blog-api/internal/post/cache"
	"github.com/blogescolar/blog-api/pkg/logger"
	"github.com/blogescolar/blog-api/pkg/metrics"
	"go.uber.org/zap"
)

// PostCache is the read-through store for single posts.
type PostCache interface {
	GetPost(ctx context.Context, id string) (*post.Post, error)
	Generation(ctx context.Context, id string) (int64, error)
	SetPostIfGeneration(ctx context.Context, p *post.Post, gen int64) error
	DeletePost(ctx context.Context, id string) error
}

// cachedService serves GetPost and ListComments from the cache and drops the
// entry after every mutation of the post or its comments. Entries are keyed
// by the canonical hex id; ids that do not parse skip the cache. A load only
// fills the cache when no invalidation happened since it started. Cache
// failures are logged and never fail the request.
type cachedService struct {
	Service
	cache PostCache
}

// NewCachedService decorates svc with a post cache.
func NewCachedService(svc Service, c PostCache) Service {
	return &cachedService{Service: svc, cache: c}
}

func (d *cachedService) invalidate(ctx context.Context, id string) {
	id, err := cache.Canonical(id)
	if err != nil {
		return
	}
	if err = d.cache.DeletePost(ctx, id); err != nil {
		logger.L().Warn("failed to invalidate post cache", zap.String("post_id", id), zap.Error(err))
	}
}

func (d *cachedService) GetPost(ctx context.Context, id string) (*post.Post, error) {
	key, err := cache.Canonical(id)
	if err != nil {
		return d.Service.GetPost(ctx, id)
	}
	id = key
	cached, err := d.cache.GetPost(ctx, id)
	if err == nil {
		metrics.CacheHits.WithLabelValues("post").Inc()
		return cached, nil
	}
	if errors.Is(err, cache.ErrCacheMiss) {
		metrics.CacheMisses.WithLabelValues("post").Inc()
	} else {
		logger.L().Warn("failed to get post from cache", zap.String("post_id", id), zap.Error(err))
	}

	gen, genErr := d.cache.Generation(ctx, id)
	p, err := d.Service.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return p, nil
	}
	switch err := d.cache.SetPostIfGeneration(ctx, p, gen); {
	case err == nil:
	case errors.Is(err, cache.ErrStale):
		logger.L().Debug("post changed while loading, not cached", zap.String("post_id", id))
	default:
		logger.L().Warn("failed to cache post", zap.String("post_id", id), zap.Error(err))
	}
	return p, nil
}

func (d *cachedService) ListComments(ctx context.Context, postID string) ([]post.Comment, error) {
	p, err := d.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.Comments == nil {
		return []post.Comment{}, nil
	}
	return p.Comments, nil
}

func (d *cachedService) UpdatePost(ctx context.Context, id string, upd post.PostUpdate) (*post.Post, error) {
	p, err := d.Service.UpdatePost(ctx, id, upd)
	if err == nil {
		d.invalidate(ctx, id)
	}
	return p, err
}

func (d *cachedService) DeletePost(ctx context.Context, id string) error {
	err := d.Service.DeletePost(ctx, id)
	if err == nil {
		d.invalidate(ctx, id)
	}
	return err
}

func (d *cachedService) AddComment(ctx context.Context, postID string, requester models.Principal, text string) (*post.Comment, error) {
	c, err := d.Service.AddComment(ctx, postID, requester, text)
	if err == nil {
		d.invalidate(ctx, postID)
	}
	return c, err
}

func (d *cachedService) EditComment(ctx context.Context, postID, commentID string, requester models.Principal, newText string) (*post.Comment, error) {
	c, err := d.Service.EditComment(ctx, postID, commentID, requester, newText)
	if err == nil {
		d.invalidate(ctx, postID)
	}
	return c, err
}

func (d *cachedService) DeleteComment(ctx context.Context, postID, commentID string, requester models.Principal) error {
	err := d.Service.DeleteComment(ctx, postID, commentID, requester)
	if err == nil {
		d.invalidate(ctx, postID)
	}
	return err
}

func (d *cachedService) AttachImage(ctx context.Context, postID string, img post.ImageUpload, r io.Reader) (*post.Post, error) {
	p, err := d.Service.AttachImage(ctx, postID, img, r)
	if err == nil {
		d.invalidate(ctx, postID)
	}
	return p, err
}
