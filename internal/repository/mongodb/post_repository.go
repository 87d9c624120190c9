package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

// Posts embed their comments, so every like or comment touches one document
// and is atomic without a transaction.
type postDocument struct {
	ID             string            `bson:"_id"`
	Seq            int64             `bson:"seq"`
	UserID         string            `bson:"userId"`
	Username       string            `bson:"username"`
	UserProfilePic string            `bson:"userProfilePic"`
	ImageURL       string            `bson:"imageUrl"`
	Caption        string            `bson:"caption"`
	Likes          int               `bson:"likes"`
	Timestamp      time.Time         `bson:"timestamp"`
	Comments       []commentDocument `bson:"comments"`
}

type commentDocument struct {
	ID        string    `bson:"id"`
	PostID    string    `bson:"postId"`
	UserID    string    `bson:"userId"`
	Username  string    `bson:"username"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}

type PostRepository struct {
	posts    *mongo.Collection
	counters *mongo.Collection
}

func NewPostRepository(db *mongo.Database) repository.PostRepository {
	return &PostRepository{
		posts:    db.Collection("posts"),
		counters: db.Collection("counters"),
	}
}

func (r *PostRepository) Init(ctx context.Context) error {
	_, err := r.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "username", Value: 1}, {Key: "seq", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	seq, err := r.nextSeq(ctx)
	if err != nil {
		return err
	}

	doc := postDocument{
		ID:             post.ID,
		Seq:            seq,
		UserID:         post.UserID,
		Username:       post.Username,
		UserProfilePic: post.UserProfilePic,
		ImageURL:       post.ImageURL,
		Caption:        post.Caption,
		Likes:          post.Likes,
		Timestamp:      post.Timestamp.UTC(),
		Comments:       make([]commentDocument, len(post.Comments)),
	}
	for i := range post.Comments {
		doc.Comments[i] = toCommentDocument(&post.Comments[i])
	}

	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return translateErr(err, "insert post")
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (*domain.Post, error) {
	var doc postDocument
	if err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translateErr(err, fmt.Sprintf("post %s", id))
	}
	post := doc.toDomain()
	return &post, nil
}

func (r *PostRepository) List(ctx context.Context) ([]domain.Post, error) {
	return r.find(ctx, bson.M{})
}

func (r *PostRepository) ListByUsername(ctx context.Context, username string) ([]domain.Post, error) {
	return r.find(ctx, bson.M{"username": username})
}

func (r *PostRepository) Search(ctx context.Context, query string) ([]domain.Post, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return r.find(ctx, bson.M{"caption": pattern})
}

func (r *PostRepository) IncrementLikes(ctx context.Context, id string) (int, error) {
	var out struct {
		Likes int `bson:"likes"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likes": 1})
	err := r.posts.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"likes": 1}},
		opts,
	).Decode(&out)
	if err != nil {
		return 0, translateErr(err, fmt.Sprintf("increment likes for post %s", id))
	}
	return out.Likes, nil
}

func (r *PostRepository) AppendComment(ctx context.Context, comment *domain.Comment) error {
	res, err := r.posts.UpdateOne(ctx,
		bson.M{"_id": comment.PostID},
		bson.M{"$push": bson.M{"comments": toCommentDocument(comment)}},
	)
	if err != nil {
		return translateErr(err, "append comment")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("post %s: %w", comment.PostID, repository.ErrNotFound)
	}
	return nil
}

func (r *PostRepository) find(ctx context.Context, filter bson.M) ([]domain.Post, error) {
	cursor, err := r.posts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]domain.Post, len(docs))
	for i := range docs {
		posts[i] = docs[i].toDomain()
	}
	return posts, nil
}

func (r *PostRepository) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "posts"},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next post sequence: %w", err)
	}
	return counter.Value, nil
}

func (d postDocument) toDomain() domain.Post {
	post := domain.Post{
		ID:             d.ID,
		UserID:         d.UserID,
		Username:       d.Username,
		UserProfilePic: d.UserProfilePic,
		ImageURL:       d.ImageURL,
		Caption:        d.Caption,
		Likes:          d.Likes,
		Timestamp:      d.Timestamp.UTC(),
		Comments:       make([]domain.Comment, len(d.Comments)),
	}
	for i, c := range d.Comments {
		post.Comments[i] = domain.Comment{
			ID:        c.ID,
			PostID:    c.PostID,
			UserID:    c.UserID,
			Username:  c.Username,
			Text:      c.Text,
			Timestamp: c.Timestamp.UTC(),
		}
	}
	return post
}

func toCommentDocument(c *domain.Comment) commentDocument {
	return commentDocument{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Username:  c.Username,
		Text:      c.Text,
		Timestamp: c.Timestamp.UTC(),
	}
}
