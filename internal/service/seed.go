package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

// Seed loads the demo users and posts into empty repositories. Entities that
// already exist are left untouched, so seeding a persistent backend twice is
// harmless.
func Seed(ctx context.Context, users repository.UserRepository, posts repository.PostRepository, logger *logrus.Logger) error {
	created := 0
	for _, user := range domain.SeedUsers() {
		if _, err := users.GetByID(ctx, user.ID); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup seed user %s: %w", user.ID, err)
		}
		if err := users.Create(ctx, &user); err != nil {
			return fmt.Errorf("seed user %s: %w", user.Username, err)
		}
		created++
	}

	// oldest first, since Create puts each post ahead of the previous ones
	seeds := domain.SeedPosts()
	for i := len(seeds) - 1; i >= 0; i-- {
		post := seeds[i]
		if _, err := posts.Get(ctx, post.ID); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup seed post %s: %w", post.ID, err)
		}
		if err := posts.Create(ctx, &post); err != nil {
			return fmt.Errorf("seed post %s: %w", post.ID, err)
		}
		created++
	}

	if created > 0 {
		logger.Infof("seeded %d demo entities", created)
	}
	return nil
}
