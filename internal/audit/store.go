// Package audit keeps the moderation trail of deleted comments.
package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blogescolar/blog-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentDeletion records who removed a comment. Moderated is true when the
// actor was not the comment's author.
type CommentDeletion struct {
	CommentID       string      `bson:"commentId" json:"commentId"`
	PostID          string      `bson:"postId" json:"postId"`
	CommentAuthor   string      `bson:"commentAuthor" json:"commentAuthor"`
	CommentAuthorID string      `bson:"commentAuthorId,omitempty" json:"commentAuthorId,omitempty"`
	Text            string      `bson:"text" json:"text"`
	ActorID         string      `bson:"actorId" json:"actorId"`
	ActorName       string      `bson:"actorName" json:"actorName"`
	ActorRole       models.Role `bson:"actorRole" json:"actorRole"`
	Moderated       bool        `bson:"moderated" json:"moderated"`
	RequestID       string      `bson:"requestId,omitempty" json:"requestId,omitempty"`
	DeletedAt       time.Time   `bson:"deletedAt" json:"deletedAt"`
}

// Store persists deletion records.
type Store interface {
	Save(ctx context.Context, d *CommentDeletion) error
	// ListByPost returns the records of a post, oldest first.
	ListByPost(ctx context.Context, postID string) ([]CommentDeletion, error)
}

// MongoStore keeps records in the "comment_deletions" collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("comment_deletions")}
}

// Save upserts by comment id, so a retried delete does not duplicate the record.
func (s *MongoStore) Save(ctx context.Context, d *CommentDeletion) error {
	if d.DeletedAt.IsZero() {
		d.DeletedAt = time.Now().UTC()
	}
	filter := bson.M{"commentId": d.CommentID}
	opts := options.Update().SetUpsert(true)
	if _, err := s.col.UpdateOne(ctx, filter, bson.M{"$set": d}, opts); err != nil {
		return fmt.Errorf("save comment deletion: %w", err)
	}
	return nil
}

func (s *MongoStore) ListByPost(ctx context.Context, postID string) ([]CommentDeletion, error) {
	cur, err := s.col.Find(ctx, bson.M{"postId": postID}, options.Find().SetSort(bson.D{{Key: "deletedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []CommentDeletion{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]CommentDeletion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]CommentDeletion{}}
}

func (s *MemoryStore) Save(ctx context.Context, d *CommentDeletion) error {
	if d.DeletedAt.IsZero() {
		d.DeletedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[d.CommentID] = *d
	return nil
}

func (s *MemoryStore) ListByPost(ctx context.Context, postID string) ([]CommentDeletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []CommentDeletion{}
	for _, d := range s.records {
		if d.PostID == postID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt.Before(out[j].DeletedAt) })
	return out, nil
}
