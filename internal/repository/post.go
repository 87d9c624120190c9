package repository

import (
	"context"

	"petgram/internal/domain"
)

// PostRepository exposes persistence operations for Post aggregates and
// their comments. Lists are ordered most recently created first.
type PostRepository interface {
	Init(ctx context.Context) error
	// Create inserts the post, together with any comments it already carries,
	// ahead of every existing post.
	Create(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, id string) (*domain.Post, error)
	List(ctx context.Context) ([]domain.Post, error)
	ListByUsername(ctx context.Context, username string) ([]domain.Post, error)
	// Search matches query as a case-insensitive substring of the caption.
	Search(ctx context.Context, query string) ([]domain.Post, error)
	IncrementLikes(ctx context.Context, id string) (int, error)
	AppendComment(ctx context.Context, comment *domain.Comment) error
}
