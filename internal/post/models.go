// Package post holds the post aggregate: a post and the comments it owns.
package post

import (
	"time"

	"github.com/blogescolar/blog-api/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is the aggregate root. Comments have no lifecycle outside their post.
type Post struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Author      string             `json:"author" bson:"author"`
	Active      bool               `json:"active" bson:"active"`
	Comments    []Comment          `json:"comments" bson:"comments"`
	Images      []string           `json:"images,omitempty" bson:"images,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Comment is a text entry nested in a post. Its id is stable across edits.
type Comment struct {
	ID       primitive.ObjectID `json:"id" bson:"_id"`
	Author   string             `json:"author" bson:"author"`
	AuthorID string             `json:"authorId,omitempty" bson:"authorId,omitempty"`
	Text     string             `json:"text" bson:"text"`
	PostedAt time.Time          `json:"postedAt" bson:"postedAt"`
}

// OwnedBy reports whether the principal wrote the comment. The user id decides
// when both sides carry one; older comments without an id fall back to the name.
func (c *Comment) OwnedBy(p models.Principal) bool {
	if c.AuthorID != "" && p.UserID != "" {
		return c.AuthorID == p.UserID
	}
	return c.Author != "" && c.Author == p.Name
}

// FindComment returns the comment and its position, or (nil, -1).
// Linear scan: posts carry tens of comments, not thousands.
func (p *Post) FindComment(id primitive.ObjectID) (*Comment, int) {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i], i
		}
	}
	return nil, -1
}

// AppendComment adds c at the end, preserving insertion order.
func (p *Post) AppendComment(c Comment) {
	p.Comments = append(p.Comments, c)
}

// RemoveComment deletes the comment with id and reports whether it existed.
func (p *Post) RemoveComment(id primitive.ObjectID) bool {
	_, i := p.FindComment(id)
	if i < 0 {
		return false
	}
	p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
	return true
}

// Clone returns a deep copy so callers never share comment slices with a store.
func (p *Post) Clone() *Post {
	cp := *p
	if p.Comments != nil {
		cp.Comments = make([]Comment, len(p.Comments))
		copy(cp.Comments, p.Comments)
	}
	if p.Images != nil {
		cp.Images = make([]string, len(p.Images))
		copy(cp.Images, p.Images)
	}
	return &cp
}

// CreatePostInput is what a caller may supply when creating a post.
// ReadOnlyFields lists store-managed keys found in the raw payload.
type CreatePostInput struct {
	Title          string `validate:"required"`
	Description    string `validate:"required"`
	Author         string
	Active         *bool
	ReadOnlyFields []string
}

// PostUpdate carries the fields to merge; nil means unchanged.
type PostUpdate struct {
	Title          *string
	Description    *string
	Active         *bool
	ReadOnlyFields []string
}

// Empty reports whether the update changes nothing.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Active == nil
}

// ListFilter selects posts. Title and Description are literal, case-insensitive
// substrings; a post matches when any supplied one matches.
type ListFilter struct {
	ActiveOnly   bool
	OmitComments bool
	Title        string
	Description  string
}

// ImageUpload describes an image to attach to a post.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
}

// ReadOnlyKeys are the store-managed timestamp keys, in both payload dialects.
var ReadOnlyKeys = []string{"createdAt", "updatedAt", "dataCriacao", "dataAtualizacao"}
