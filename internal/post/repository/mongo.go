package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/blogescolar/blog-api/internal/post"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores each post as one document with its comments embedded.
// Comment mutations use $push, positional $set and $pull so concurrent
// writers never overwrite each other's comments.
type MongoRepo struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col, now: time.Now}
}

// EnsureIndexes creates the listing and comment lookup indexes.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "comments._id", Value: 1}}},
	})
	return err
}

func (m *MongoRepo) Create(ctx context.Context, p *post.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := m.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Comments == nil {
		p.Comments = []post.Comment{}
	}
	_, err := m.col.InsertOne(ctx, p)
	return err
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*post.Post, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var p post.Post
	if err := m.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// buildFilter translates a ListFilter into a Mongo query. Search text is
// quoted so it matches literally.
func buildFilter(f post.ListFilter) bson.M {
	filter := bson.M{}
	if f.ActiveOnly {
		filter["active"] = true
	}
	var or bson.A
	if f.Title != "" {
		or = append(or, bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(f.Title), Options: "i"}})
	}
	if f.Description != "" {
		or = append(or, bson.M{"description": primitive.Regex{Pattern: regexp.QuoteMeta(f.Description), Options: "i"}})
	}
	if len(or) > 0 {
		filter["$or"] = or
	}
	return filter
}

func (m *MongoRepo) List(ctx context.Context, f post.ListFilter) ([]*post.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if f.OmitComments {
		opts.SetProjection(bson.M{"comments": 0})
	}
	cur, err := m.col.Find(ctx, buildFilter(f), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*post.Post{}
	for cur.Next(ctx) {
		var p post.Post
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Update(ctx context.Context, id string, upd post.PostUpdate) (*post.Post, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	set := bson.M{"updatedAt": m.now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Active != nil {
		set["active"] = *upd.Active
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p post.Post
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := parseID(id)
	if !ok {
		return false, nil
	}
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (m *MongoRepo) PushComment(ctx context.Context, postID string, c post.Comment) error {
	oid, ok := parseID(postID)
	if !ok {
		return ErrNotFound
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"comments": c},
		"$set":  bson.M{"updatedAt": m.now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// commentIDs parses both ids; a malformed comment id on an existing post is
// reported as a missing comment.
func (m *MongoRepo) commentIDs(ctx context.Context, postID, commentID string) (primitive.ObjectID, primitive.ObjectID, error) {
	pid, ok := parseID(postID)
	if !ok {
		return pid, primitive.NilObjectID, ErrNotFound
	}
	cid, ok := parseID(commentID)
	if !ok {
		return pid, cid, m.missing(ctx, pid)
	}
	return pid, cid, nil
}

// missing tells a missing post apart from a missing comment after a miss.
func (m *MongoRepo) missing(ctx context.Context, pid primitive.ObjectID) error {
	n, err := m.col.CountDocuments(ctx, bson.M{"_id": pid}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrCommentNotFound
}

func commentProjection(cid primitive.ObjectID) bson.M {
	return bson.M{"comments": bson.M{"$elemMatch": bson.M{"_id": cid}}}
}

func (m *MongoRepo) GetComment(ctx context.Context, postID, commentID string) (*post.Comment, error) {
	pid, cid, err := m.commentIDs(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}
	var p post.Post
	err = m.col.FindOne(ctx, bson.M{"_id": pid}, options.FindOne().SetProjection(commentProjection(cid))).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(p.Comments) == 0 {
		return nil, ErrCommentNotFound
	}
	return &p.Comments[0], nil
}

func (m *MongoRepo) SetCommentText(ctx context.Context, postID, commentID, text string, at time.Time) (*post.Comment, error) {
	pid, cid, err := m.commentIDs(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"_id": pid, "comments._id": cid}
	update := bson.M{"$set": bson.M{
		"comments.$.text":     text,
		"comments.$.postedAt": at,
		"updatedAt":           m.now().UTC(),
	}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(commentProjection(cid))
	var p post.Post
	err = m.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, m.missing(ctx, pid)
	}
	if err != nil {
		return nil, err
	}
	if len(p.Comments) == 0 {
		return nil, ErrCommentNotFound
	}
	return &p.Comments[0], nil
}

func (m *MongoRepo) PullComment(ctx context.Context, postID, commentID string) error {
	pid, cid, err := m.commentIDs(ctx, postID, commentID)
	if err != nil {
		return err
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": pid, "comments._id": cid}, bson.M{
		"$pull": bson.M{"comments": bson.M{"_id": cid}},
		"$set":  bson.M{"updatedAt": m.now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return m.missing(ctx, pid)
	}
	return nil
}

func (m *MongoRepo) PushImage(ctx context.Context, postID, key string) error {
	oid, ok := parseID(postID)
	if !ok {
		return ErrNotFound
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"images": key},
		"$set":  bson.M{"updatedAt": m.now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Ping(ctx context.Context) error {
	return m.col.Database().Client().Ping(ctx, nil)
}
