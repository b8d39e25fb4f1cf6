package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blogescolar/blog-api/internal/post"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newPost(t *testing.T, r *MemoryRepo, title, desc string, active bool) *post.Post {
	t.Helper()
	p := &post.Post{Title: title, Description: desc, Author: "X", Active: active}
	require.NoError(t, r.Create(context.Background(), p))
	return p
}

func TestMemoryRepoCRUD(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	p := newPost(t, r, "A", "B", true)
	require.False(t, p.ID.IsZero())
	require.False(t, p.CreatedAt.IsZero())
	require.Equal(t, p.CreatedAt, p.UpdatedAt)

	got, err := r.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "A", got.Title)
	require.NotNil(t, got.Comments)

	updated, err := r.Update(ctx, p.ID.Hex(), post.PostUpdate{Title: strPtr("A2"), Active: boolPtr(false)})
	require.NoError(t, err)
	require.Equal(t, "A2", updated.Title)
	require.Equal(t, "B", updated.Description)
	require.False(t, updated.Active)

	deleted, err := r.Delete(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.True(t, deleted)
	_, err = r.Get(ctx, p.ID.Hex())
	require.ErrorIs(t, err, ErrNotFound)

	deleted, err = r.Delete(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestMemoryRepo_MalformedIDIsNotFound(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	_, err := r.Get(ctx, "not-an-object-id")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = r.Update(ctx, "zzz", post.PostUpdate{})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.PushComment(ctx, "zzz", post.Comment{}), ErrNotFound)
}

func TestMemoryRepo_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	p := newPost(t, r, "A", "B", true)
	require.NoError(t, r.PushComment(ctx, p.ID.Hex(), post.Comment{ID: primitive.NewObjectID(), Author: "X", Text: "hi"}))

	got, err := r.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	got.Comments[0].Text = "mutated"
	got.Title = "mutated"

	again, err := r.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "hi", again.Comments[0].Text)
	require.Equal(t, "A", again.Title)
}

func TestMemoryRepo_ListFilters(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	a := newPost(t, r, "Foo bar", "nothing", true)
	b := newPost(t, r, "other", "has FOO inside", false)
	c := newPost(t, r, "plain", "plain", true)
	require.NoError(t, r.PushComment(ctx, a.ID.Hex(), post.Comment{ID: primitive.NewObjectID(), Author: "X", Text: "hi"}))

	all, err := r.List(ctx, post.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []primitive.ObjectID{a.ID, b.ID, c.ID}, []primitive.ObjectID{all[0].ID, all[1].ID, all[2].ID})

	active, err := r.List(ctx, post.ListFilter{ActiveOnly: true, OmitComments: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, p := range active {
		require.True(t, p.Active)
		require.Nil(t, p.Comments)
	}

	byTitle, err := r.List(ctx, post.ListFilter{Title: "foo"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	require.Equal(t, a.ID, byTitle[0].ID)

	either, err := r.List(ctx, post.ListFilter{Title: "foo", Description: "foo"})
	require.NoError(t, err)
	require.Len(t, either, 2)

	literal, err := r.List(ctx, post.ListFilter{Title: ".*"})
	require.NoError(t, err)
	require.Empty(t, literal)
}

func TestMemoryRepo_CommentLifecycle(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	p := newPost(t, r, "A", "B", true)
	c := post.Comment{ID: primitive.NewObjectID(), Author: "X", AuthorID: "u1", Text: "hi", PostedAt: time.Now().UTC()}
	require.NoError(t, r.PushComment(ctx, p.ID.Hex(), c))

	got, err := r.GetComment(ctx, p.ID.Hex(), c.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "hi", got.Text)

	later := c.PostedAt.Add(time.Minute)
	edited, err := r.SetCommentText(ctx, p.ID.Hex(), c.ID.Hex(), "bye", later)
	require.NoError(t, err)
	require.Equal(t, c.ID, edited.ID)
	require.Equal(t, "bye", edited.Text)
	require.Equal(t, later, edited.PostedAt)
	require.Equal(t, "X", edited.Author)

	_, err = r.GetComment(ctx, p.ID.Hex(), primitive.NewObjectID().Hex())
	require.ErrorIs(t, err, ErrCommentNotFound)
	_, err = r.GetComment(ctx, p.ID.Hex(), "bad")
	require.ErrorIs(t, err, ErrCommentNotFound)
	_, err = r.GetComment(ctx, primitive.NewObjectID().Hex(), c.ID.Hex())
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.PullComment(ctx, p.ID.Hex(), c.ID.Hex()))
	require.ErrorIs(t, r.PullComment(ctx, p.ID.Hex(), c.ID.Hex()), ErrCommentNotFound)

	after, err := r.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.Empty(t, after.Comments)
}

func TestMemoryRepo_ConcurrentCommentsAreNotLost(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	p := newPost(t, r, "A", "B", true)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.PushComment(ctx, p.ID.Hex(), post.Comment{ID: primitive.NewObjectID(), Author: "X", Text: "hi"})
		}()
	}
	wg.Wait()

	got, err := r.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.Len(t, got.Comments, n)
}

func TestMemoryRepo_PushImage(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	p := newPost(t, r, "A", "B", true)
	require.NoError(t, r.PushImage(ctx, p.ID.Hex(), "posts/x/1.png"))
	require.NoError(t, r.PushImage(ctx, p.ID.Hex(), "posts/x/2.png"))
	got, err := r.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, []string{"posts/x/1.png", "posts/x/2.png"}, got.Images)
	require.ErrorIs(t, r.PushImage(ctx, primitive.NewObjectID().Hex(), "k"), ErrNotFound)
}
