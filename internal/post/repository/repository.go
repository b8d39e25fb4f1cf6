package repository

import (
	"context"
	"errors"
	"time"

	"github.com/blogescolar/blog-api/internal/post"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound        = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
)

// Repository persists post aggregates. Ids are hex ObjectIDs; a malformed id
// behaves like a missing one. Comment operations are atomic per post.
type Repository interface {
	Create(ctx context.Context, p *post.Post) error
	Get(ctx context.Context, id string) (*post.Post, error)
	List(ctx context.Context, f post.ListFilter) ([]*post.Post, error)
	Update(ctx context.Context, id string, upd post.PostUpdate) (*post.Post, error)
	// Delete reports whether a post was removed.
	Delete(ctx context.Context, id string) (bool, error)

	PushComment(ctx context.Context, postID string, c post.Comment) error
	GetComment(ctx context.Context, postID, commentID string) (*post.Comment, error)
	SetCommentText(ctx context.Context, postID, commentID, text string, at time.Time) (*post.Comment, error)
	PullComment(ctx context.Context, postID, commentID string) error

	PushImage(ctx context.Context, postID, key string) error
	Ping(ctx context.Context) error
}

func parseID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}
