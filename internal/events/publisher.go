// Package events publishes post and comment domain events.
package events

import (
	"context"
	"sync"

	"github.com/blogescolar/blog-api/internal/models"
)

// Routing keys on the topic exchange.
const (
	PostCreated    = "post.created"
	PostUpdated    = "post.updated"
	PostDeleted    = "post.deleted"
	CommentAdded   = "comment.added"
	CommentEdited  = "comment.edited"
	CommentDeleted = "comment.deleted"
)

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

type PostEvent struct {
	PostID string `json:"post_id"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Active bool   `json:"active"`
}

type CommentEvent struct {
	PostID    string      `json:"post_id"`
	CommentID string      `json:"comment_id"`
	Author    string      `json:"author"`
	AuthorID  string      `json:"author_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	ActorName string      `json:"actor_name,omitempty"`
	ActorRole models.Role `json:"actor_role,omitempty"`
	Moderated bool        `json:"moderated,omitempty"`
}

type NoopPub struct{}

func NewNoop() Publisher { return NoopPub{} }

func (NoopPub) Publish(ctx context.Context, key string, event any) error { return nil }
func (NoopPub) Close() error                                           { return nil }

// Message is a published event as seen by MemoryPublisher.
type Message struct {
	Key   string
	Event any
}

// MemoryPublisher records events in process.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemory() *MemoryPublisher { return &MemoryPublisher{} }

func (m *MemoryPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Key: key, Event: event})
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Messages returns a copy of what was published so far.
func (m *MemoryPublisher) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Keys returns the routing keys in publish order.
func (m *MemoryPublisher) Keys() []string {
	msgs := m.Messages()
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Key
	}
	return out
}
