package repository

import (
	"testing"

	"github.com/blogescolar/blog-api/internal/post"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildFilter(t *testing.T) {
	t.Run("no filters", func(t *testing.T) {
		require.Equal(t, bson.M{}, buildFilter(post.ListFilter{}))
	})

	t.Run("active only", func(t *testing.T) {
		require.Equal(t, bson.M{"active": true}, buildFilter(post.ListFilter{ActiveOnly: true}))
	})

	t.Run("title only", func(t *testing.T) {
		f := buildFilter(post.ListFilter{Title: "foo"})
		require.Equal(t, bson.A{bson.M{"title": primitive.Regex{Pattern: "foo", Options: "i"}}}, f["$or"])
	})

	t.Run("title or description", func(t *testing.T) {
		f := buildFilter(post.ListFilter{Title: "a", Description: "b"})
		or, ok := f["$or"].(bson.A)
		require.True(t, ok)
		require.Len(t, or, 2)
		require.Equal(t, bson.M{"description": primitive.Regex{Pattern: "b", Options: "i"}}, or[1])
	})

	t.Run("metacharacters are quoted", func(t *testing.T) {
		f := buildFilter(post.ListFilter{Title: "c++ (intro)"})
		or := f["$or"].(bson.A)
		require.Equal(t, bson.M{"title": primitive.Regex{Pattern: `c\+\+ \(intro\)`, Options: "i"}}, or[0])
	})
}

func TestParseID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, ok := parseID(oid.Hex())
	require.True(t, ok)
	require.Equal(t, oid, got)

	_, ok = parseID("123")
	require.False(t, ok)
}
