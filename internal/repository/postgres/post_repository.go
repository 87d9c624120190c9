package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		user_profile_pic TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_username ON posts(username)`,
	`CREATE TABLE IF NOT EXISTS comments (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id)`,
}

const selectPosts = `
SELECT id, user_id, username, user_profile_pic, image_url, caption, likes, created_at
FROM posts`

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) repository.PostRepository {
	return &PostRepository{pool: pool}
}

func (r *PostRepository) Init(ctx context.Context) error {
	for _, q := range schema {
		if _, err := r.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init post schema: %w", err)
		}
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO posts (id, user_id, username, user_profile_pic, image_url, caption, likes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID,
		post.UserID,
		post.Username,
		post.UserProfilePic,
		post.ImageURL,
		post.Caption,
		post.Likes,
		post.Timestamp.UTC(),
	); err != nil {
		return translateErr(err, "insert post")
	}

	for i := range post.Comments {
		if err := insertComment(ctx, tx, &post.Comments[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (*domain.Post, error) {
	posts, err := r.query(ctx, nil, selectPosts+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("post %s: %w", id, repository.ErrNotFound)
	}
	return &posts[0], nil
}

func (r *PostRepository) List(ctx context.Context) ([]domain.Post, error) {
	return r.query(ctx, nil, selectPosts+` ORDER BY seq DESC`)
}

func (r *PostRepository) ListByUsername(ctx context.Context, username string) ([]domain.Post, error) {
	return r.query(ctx, nil, selectPosts+` WHERE username = $1 ORDER BY seq DESC`, username)
}

func (r *PostRepository) Search(ctx context.Context, query string) ([]domain.Post, error) {
	// lower() depends on the database ctype and leaves non-ASCII text alone
	// under the C locale, so captions are folded here instead.
	needle := strings.ToLower(query)
	return r.query(ctx, func(p *domain.Post) bool {
		return strings.Contains(strings.ToLower(p.Caption), needle)
	}, selectPosts+` ORDER BY seq DESC`)
}

func (r *PostRepository) IncrementLikes(ctx context.Context, id string) (int, error) {
	var likes int
	err := r.pool.QueryRow(ctx, `
UPDATE posts
SET likes = likes + 1
WHERE id = $1
RETURNING likes`, id).Scan(&likes)
	if err != nil {
		return 0, translateErr(err, fmt.Sprintf("increment likes for post %s", id))
	}
	return likes, nil
}

func (r *PostRepository) AppendComment(ctx context.Context, comment *domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// the row lock orders concurrent appends to the same post by commit
	var seq int64
	if err := tx.QueryRow(ctx, `SELECT seq FROM posts WHERE id = $1 FOR UPDATE`, comment.PostID).Scan(&seq); err != nil {
		return translateErr(err, fmt.Sprintf("post %s", comment.PostID))
	}
	if err := insertComment(ctx, tx, comment); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit comment: %w", err)
	}
	return nil
}

// query reads posts and comments from a single repeatable-read snapshot.
// When keep is set, only the posts it accepts are returned.
func (r *PostRepository) query(ctx context.Context, keep func(*domain.Post) bool, query string, args ...any) ([]domain.Post, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	posts := []domain.Post{}
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(
			&post.ID,
			&post.UserID,
			&post.Username,
			&post.UserProfilePic,
			&post.ImageURL,
			&post.Caption,
			&post.Likes,
			&post.Timestamp,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan post: %w", err)
		}
		if keep != nil && !keep(&post) {
			continue
		}
		post.Timestamp = post.Timestamp.UTC()
		post.Comments = []domain.Comment{}
		posts = append(posts, post)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	if err := attachComments(ctx, tx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func attachComments(ctx context.Context, tx pgx.Tx, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	byID := make(map[string]*domain.Post, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		byID[posts[i].ID] = &posts[i]
	}

	rows, err := tx.Query(ctx, `
SELECT id, post_id, user_id, username, text, created_at
FROM comments
WHERE post_id = ANY($1)
ORDER BY seq ASC`, ids)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			comment   domain.Comment
			createdAt time.Time
		)
		if err := rows.Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Username, &comment.Text, &createdAt); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		comment.Timestamp = createdAt.UTC()
		if post, ok := byID[comment.PostID]; ok {
			post.Comments = append(post.Comments, comment)
		}
	}
	return rows.Err()
}

func insertComment(ctx context.Context, tx pgx.Tx, comment *domain.Comment) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO comments (id, post_id, user_id, username, text, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		comment.ID,
		comment.PostID,
		comment.UserID,
		comment.Username,
		comment.Text,
		comment.Timestamp.UTC(),
	); err != nil {
		return translateErr(err, "insert comment")
	}
	return nil
}
