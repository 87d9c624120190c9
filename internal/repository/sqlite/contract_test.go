package sqlite

import (
	"context"
	"testing"

	"petgram/internal/repository"
	"petgram/internal/repository/repotest"
)

func TestRepositoryContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) (repository.UserRepository, repository.PostRepository) {
		db := openTestDB(t)
		users, posts := NewUserRepository(db), NewPostRepository(db)
		if err := users.Init(context.Background()); err != nil {
			t.Fatalf("init users: %v", err)
		}
		if err := posts.Init(context.Background()); err != nil {
			t.Fatalf("init posts: %v", err)
		}
		return users, posts
	})
}
