package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

// PostRepository keeps posts in a slice, newest first. Every read returns
// deep copies taken under the lock, so callers never share comment slices
// with the repository.
type PostRepository struct {
	mu    sync.RWMutex
	posts []*domain.Post
	index map[string]*domain.Post
}

func NewPostRepository() *PostRepository {
	return &PostRepository{
		index: make(map[string]*domain.Post),
	}
}

func (r *PostRepository) Init(ctx context.Context) error {
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[post.ID]; exists {
		return fmt.Errorf("post %s: %w", post.ID, repository.ErrConflict)
	}
	stored := post.Clone()
	r.posts = append([]*domain.Post{&stored}, r.posts...)
	r.index[stored.ID] = &stored
	return nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, repository.ErrNotFound)
	}
	out := post.Clone()
	return &out, nil
}

func (r *PostRepository) List(ctx context.Context) ([]domain.Post, error) {
	return r.filter(func(*domain.Post) bool { return true }), nil
}

func (r *PostRepository) ListByUsername(ctx context.Context, username string) ([]domain.Post, error) {
	return r.filter(func(p *domain.Post) bool { return p.Username == username }), nil
}

func (r *PostRepository) Search(ctx context.Context, query string) ([]domain.Post, error) {
	needle := strings.ToLower(query)
	return r.filter(func(p *domain.Post) bool {
		return strings.Contains(strings.ToLower(p.Caption), needle)
	}), nil
}

func (r *PostRepository) IncrementLikes(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.index[id]
	if !ok {
		return 0, fmt.Errorf("post %s: %w", id, repository.ErrNotFound)
	}
	post.Likes++
	return post.Likes, nil
}

func (r *PostRepository) AppendComment(ctx context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.index[comment.PostID]
	if !ok {
		return fmt.Errorf("post %s: %w", comment.PostID, repository.ErrNotFound)
	}
	post.Comments = append(post.Comments, *comment)
	return nil
}

func (r *PostRepository) filter(match func(*domain.Post) bool) []domain.Post {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Post, 0, len(r.posts))
	for _, post := range r.posts {
		if match(post) {
			out = append(out, post.Clone())
		}
	}
	return out
}

var _ repository.PostRepository = (*PostRepository)(nil)
