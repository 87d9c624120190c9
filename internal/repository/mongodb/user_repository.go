package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

type userDocument struct {
	ID             string `bson:"_id"`
	Username       string `bson:"username"`
	DisplayName    string `bson:"displayName"`
	ProfilePicture string `bson:"profilePicture"`
	Bio            string `bson:"bio"`
}

type UserRepository struct {
	users *mongo.Collection
}

func NewUserRepository(db *mongo.Database) repository.UserRepository {
	return &UserRepository{users: db.Collection("users")}
}

func (r *UserRepository) Init(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create username index: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	doc := userDocument{
		ID:             user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName,
		ProfilePicture: user.ProfilePicture,
		Bio:            user.Bio,
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return translateErr(err, "insert user")
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateErr(err, "find user")
	}
	return &domain.User{
		ID:             doc.ID,
		Username:       doc.Username,
		DisplayName:    doc.DisplayName,
		ProfilePicture: doc.ProfilePicture,
		Bio:            doc.Bio,
	}, nil
}
