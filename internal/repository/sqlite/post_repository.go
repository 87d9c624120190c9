package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

const (
	createPostsTable = `
CREATE TABLE IF NOT EXISTS posts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	user_profile_pic TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL,
	caption TEXT NOT NULL DEFAULT '',
	likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_username ON posts(username);
`
	createCommentsTable = `
CREATE TABLE IF NOT EXISTS comments (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	post_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(post_id) REFERENCES posts(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`
	selectPosts = `
SELECT id, user_id, username, user_profile_pic, image_url, caption, likes, created_at
FROM posts`
)

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPostsTable); err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createCommentsTable); err != nil {
		return fmt.Errorf("create comments table: %w", err)
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `
INSERT INTO posts (id, user_id, username, user_profile_pic, image_url, caption, likes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
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

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (*domain.Post, error) {
	posts, err := r.query(ctx, selectPosts+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("post %s: %w", id, repository.ErrNotFound)
	}
	return &posts[0], nil
}

func (r *PostRepository) List(ctx context.Context) ([]domain.Post, error) {
	return r.query(ctx, selectPosts+` ORDER BY seq DESC`)
}

func (r *PostRepository) ListByUsername(ctx context.Context, username string) ([]domain.Post, error) {
	return r.query(ctx, selectPosts+` WHERE username = ? ORDER BY seq DESC`, username)
}

func (r *PostRepository) Search(ctx context.Context, query string) ([]domain.Post, error) {
	// instr avoids LIKE wildcards in user input
	return r.query(ctx, selectPosts+` WHERE instr(`+foldFunc+`(caption), `+foldFunc+`(?)) > 0 ORDER BY seq DESC`, query)
}

func (r *PostRepository) IncrementLikes(ctx context.Context, id string) (int, error) {
	var likes int
	err := r.db.QueryRowContext(ctx, `
UPDATE posts
SET likes = likes + 1
WHERE id = ?
RETURNING likes`,
		id,
	).Scan(&likes)
	if err != nil {
		return 0, translateErr(err, fmt.Sprintf("increment likes for post %s", id))
	}
	return likes, nil
}

func (r *PostRepository) AppendComment(ctx context.Context, comment *domain.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, comment.PostID).Scan(&exists); err != nil {
		return translateErr(err, fmt.Sprintf("post %s", comment.PostID))
	}
	if err := insertComment(ctx, tx, comment); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit comment: %w", err)
	}
	return nil
}

// query loads posts and their comments inside one read transaction so a
// concurrent append is either fully visible or not at all.
func (r *PostRepository) query(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}

	posts := []domain.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	rows.Close()

	if err := attachComments(ctx, tx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func attachComments(ctx context.Context, tx *sql.Tx, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	placeholders := make([]string, len(posts))
	args := make([]any, len(posts))
	byID := make(map[string]*domain.Post, len(posts))
	for i := range posts {
		placeholders[i] = "?"
		args[i] = posts[i].ID
		byID[posts[i].ID] = &posts[i]
	}

	query := fmt.Sprintf(`
SELECT id, post_id, user_id, username, text, created_at
FROM comments
WHERE post_id IN (%s)
ORDER BY seq ASC`, strings.Join(placeholders, ","))

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			comment   domain.Comment
			createdAt time.Time
		)
		if err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.UserID,
			&comment.Username,
			&comment.Text,
			&createdAt,
		); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		comment.Timestamp = createdAt.UTC()
		if post, ok := byID[comment.PostID]; ok {
			post.Comments = append(post.Comments, comment)
		}
	}
	return rows.Err()
}

func insertComment(ctx context.Context, tx *sql.Tx, comment *domain.Comment) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO comments (id, post_id, user_id, username, text, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
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

func scanPost(scanner rowScanner) (*domain.Post, error) {
	var (
		post      domain.Post
		createdAt time.Time
	)
	if err := scanner.Scan(
		&post.ID,
		&post.UserID,
		&post.Username,
		&post.UserProfilePic,
		&post.ImageURL,
		&post.Caption,
		&post.Likes,
		&createdAt,
	); err != nil {
		return nil, translateErr(err, "scan post")
	}
	post.Timestamp = createdAt.UTC()
	post.Comments = []domain.Comment{}
	return &post, nil
}
