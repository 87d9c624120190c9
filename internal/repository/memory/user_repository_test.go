package memory

import (
	"context"
	"errors"
	"testing"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

func TestUserLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	for _, u := range domain.SeedUsers() {
		u := u
		if err := repo.Create(ctx, &u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}

	user, err := repo.GetByUsername(ctx, "goodboy")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if user.ID != "2" {
		t.Fatalf("id = %q, want 2", user.ID)
	}

	if _, err := repo.GetByUsername(ctx, "GoodBoy"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("lookup must be case-sensitive, err = %v", err)
	}
	if _, err := repo.GetByID(ctx, "99"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserUsernameIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	if err := repo.Create(ctx, &domain.User{ID: "1", Username: "fluffycat"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, &domain.User{ID: "2", Username: "fluffycat"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}
