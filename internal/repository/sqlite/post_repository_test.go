package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "petgram.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newPostRepo(t *testing.T) repository.PostRepository {
	t.Helper()
	repo := NewPostRepository(openTestDB(t))
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo
}

func seedPosts(t *testing.T, repo repository.PostRepository) {
	t.Helper()
	seeds := domain.SeedPosts()
	for i := len(seeds) - 1; i >= 0; i-- {
		if err := repo.Create(context.Background(), &seeds[i]); err != nil {
			t.Fatalf("create seed %s: %v", seeds[i].ID, err)
		}
	}
}

func TestPostRepositoryListOrderAndComments(t *testing.T) {
	ctx := context.Background()
	repo := newPostRepo(t)
	seedPosts(t, repo)

	posts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(posts))
	}
	for i, want := range []string{"1", "2", "3"} {
		if posts[i].ID != want {
			t.Fatalf("posts[%d].ID = %s, want %s", i, posts[i].ID, want)
		}
	}
	if len(posts[1].Comments) != 0 {
		t.Fatalf("post 2 comments = %d, want 0", len(posts[1].Comments))
	}
	third := posts[2]
	if len(third.Comments) != 2 || third.Comments[0].ID != "c2" || third.Comments[1].ID != "c3" {
		t.Fatalf("post 3 comments out of order: %+v", third.Comments)
	}
	want := time.Date(2023, 4, 13, 18, 45, 0, 0, time.UTC)
	if !third.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", third.Timestamp, want)
	}
}

func TestPostRepositoryCreatePrepends(t *testing.T) {
	ctx := context.Background()
	repo := newPostRepo(t)
	seedPosts(t, repo)

	post := &domain.Post{
		ID:        "new",
		UserID:    "1",
		Username:  "fluffycat",
		ImageURL:  "/media/images/new.png",
		Caption:   "<b>raw</b> caption",
		Timestamp: time.Now().UTC(),
	}
	if err := repo.Create(ctx, post); err != nil {
		t.Fatalf("create: %v", err)
	}

	posts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if posts[0].ID != "new" {
		t.Fatalf("first post = %s, want new", posts[0].ID)
	}
	if posts[0].Caption != "<b>raw</b> caption" {
		t.Fatalf("caption altered: %q", posts[0].Caption)
	}
	if posts[0].Comments == nil || len(posts[0].Comments) != 0 {
		t.Fatalf("comments = %#v, want empty slice", posts[0].Comments)
	}

	if err := repo.Create(ctx, post); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("duplicate create err = %v, want ErrConflict", err)
	}
}

func TestPostRepositorySearch(t *testing.T) {
	ctx := context.Background()
	repo := newPostRepo(t)
	seedPosts(t, repo)
	summer := &domain.Post{ID: "ete", UserID: "2", Username: "goodboy", ImageURL: "x", Caption: "Été à la plage", Timestamp: time.Now().UTC()}
	if err := repo.Create(ctx, summer); err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := []struct {
		query string
		want  int
	}{
		{"BEACH", 1},
		{"zzz", 0},
		{"", 4},
		{"%", 0},
		{"' OR '1'='1", 0},
		{"DAY", 3},
		{"ÉTÉ", 1},
		{"À LA", 1},
	}
	for _, tc := range cases {
		posts, err := repo.Search(ctx, tc.query)
		if err != nil {
			t.Fatalf("search %q: %v", tc.query, err)
		}
		if len(posts) != tc.want {
			t.Errorf("search %q returned %d posts, want %d", tc.query, len(posts), tc.want)
		}
	}
}

func TestPostRepositoryListByUsername(t *testing.T) {
	ctx := context.Background()
	repo := newPostRepo(t)
	seedPosts(t, repo)

	posts, err := repo.ListByUsername(ctx, "goodboy")
	if err != nil {
		t.Fatalf("list by username: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "2" {
		t.Fatalf("unexpected posts: %+v", posts)
	}

	posts, err = repo.ListByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("list by username: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("got %d posts for unknown user", len(posts))
	}
}

func TestPostRepositoryIncrementLikes(t *testing.T) {
	ctx := context.Background()
	repo := newPostRepo(t)
	seedPosts(t, repo)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			likes, err := repo.IncrementLikes(ctx, "2")
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			mu.Lock()
			seen[likes] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("observed %d distinct counts, want %d", len(seen), n)
	}
	post, err := repo.Get(ctx, "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if post.Likes != 76+n {
		t.Fatalf("likes = %d, want %d", post.Likes, 76+n)
	}

	if _, err := repo.IncrementLikes(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPostRepositoryAppendComment(t *testing.T) {
	ctx := context.Background()
	repo := newPostRepo(t)
	seedPosts(t, repo)

	for i := 0; i < 3; i++ {
		comment := &domain.Comment{
			ID:        fmt.Sprintf("n%d", i),
			PostID:    "1",
			UserID:    "3",
			Username:  "hamsterdance",
			Text:      fmt.Sprintf("comment %d", i),
			Timestamp: time.Now().UTC(),
		}
		if err := repo.AppendComment(ctx, comment); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	post, err := repo.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ids := []string{"c1", "n0", "n1", "n2"}
	if len(post.Comments) != len(ids) {
		t.Fatalf("comments = %d, want %d", len(post.Comments), len(ids))
	}
	for i := range ids {
		if post.Comments[i].ID != ids[i] {
			t.Fatalf("comments[%d] = %s, want %s", i, post.Comments[i].ID, ids[i])
		}
	}

	err = repo.AppendComment(ctx, &domain.Comment{ID: "orphan", PostID: "missing", Timestamp: time.Now()})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(openTestDB(t))
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, u := range domain.SeedUsers() {
		u := u
		if err := repo.Create(ctx, &u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}

	user, err := repo.GetByUsername(ctx, "hamsterdance")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if user.DisplayName != "Hammy" {
		t.Fatalf("display name = %q", user.DisplayName)
	}
	if _, err := repo.GetByUsername(ctx, "HamsterDance"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "1"); err != nil {
		t.Fatalf("get by id: %v", err)
	}
	dup := domain.User{ID: "9", Username: "goodboy"}
	if err := repo.Create(ctx, &dup); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}
