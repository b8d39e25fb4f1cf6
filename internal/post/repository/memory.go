package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/blogescolar/blog-api/internal/post"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo keeps posts in process. Used for tests and when no MongoDB is
// configured. One RWMutex serializes every mutation, which makes comment
// operations atomic.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[primitive.ObjectID]*post.Post
	order []primitive.ObjectID
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[primitive.ObjectID]*post.Post), now: time.Now}
}

func (m *MemoryRepo) Create(ctx context.Context, p *post.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := m.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Comments == nil {
		p.Comments = []post.Comment{}
	}
	m.store[p.ID] = p.Clone()
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryRepo) lookup(id string) (*post.Post, bool) {
	oid, ok := parseID(id)
	if !ok {
		return nil, false
	}
	p, ok := m.store[oid]
	return p, ok
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.lookup(id); ok {
		return p.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) List(ctx context.Context, f post.ListFilter) ([]*post.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*post.Post, 0, len(m.order))
	for _, id := range m.order {
		p := m.store[id]
		if f.ActiveOnly && !p.Active {
			continue
		}
		if !matches(p, f) {
			continue
		}
		cp := p.Clone()
		if f.OmitComments {
			cp.Comments = nil
		}
		out = append(out, cp)
	}
	return out, nil
}

func matches(p *post.Post, f post.ListFilter) bool {
	if f.Title == "" && f.Description == "" {
		return true
	}
	if f.Title != "" && containsFold(p.Title, f.Title) {
		return true
	}
	return f.Description != "" && containsFold(p.Description, f.Description)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (m *MemoryRepo) Update(ctx context.Context, id string, upd post.PostUpdate) (*post.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Active != nil {
		p.Active = *upd.Active
	}
	p.UpdatedAt = m.now().UTC()
	return p.Clone(), nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.lookup(id)
	if !ok {
		return false, nil
	}
	delete(m.store, p.ID)
	for i, oid := range m.order {
		if oid == p.ID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *MemoryRepo) PushComment(ctx context.Context, postID string, c post.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.lookup(postID)
	if !ok {
		return ErrNotFound
	}
	p.AppendComment(c)
	p.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepo) findComment(postID, commentID string) (*post.Post, *post.Comment, error) {
	p, ok := m.lookup(postID)
	if !ok {
		return nil, nil, ErrNotFound
	}
	cid, ok := parseID(commentID)
	if !ok {
		return p, nil, ErrCommentNotFound
	}
	c, _ := p.FindComment(cid)
	if c == nil {
		return p, nil, ErrCommentNotFound
	}
	return p, c, nil
}

func (m *MemoryRepo) GetComment(ctx context.Context, postID, commentID string) (*post.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, c, err := m.findComment(postID, commentID)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryRepo) SetCommentText(ctx context.Context, postID, commentID, text string, at time.Time) (*post.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, c, err := m.findComment(postID, commentID)
	if err != nil {
		return nil, err
	}
	c.Text = text
	c.PostedAt = at
	p.UpdatedAt = m.now().UTC()
	cp := *c
	return &cp, nil
}

func (m *MemoryRepo) PullComment(ctx context.Context, postID, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, c, err := m.findComment(postID, commentID)
	if err != nil {
		return err
	}
	p.RemoveComment(c.ID)
	p.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepo) PushImage(ctx context.Context, postID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.lookup(postID)
	if !ok {
		return ErrNotFound
	}
	p.Images = append(p.Images, key)
	p.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepo) Ping(ctx context.Context) error { return nil }
