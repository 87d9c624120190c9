// Package repotest holds the behaviour every repository backend must share.
// Backends call Run from their own tests with a factory returning empty,
// initialized repositories.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"petgram/internal/domain"
	"petgram/internal/repository"
)

// Factory returns fresh, initialized and empty repositories for one test.
type Factory func(t *testing.T) (repository.UserRepository, repository.PostRepository)

// Run exercises users and posts through the repository interfaces.
func Run(t *testing.T, newRepos Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, users repository.UserRepository, posts repository.PostRepository)
	}{
		{"ListNewestFirst", testListNewestFirst},
		{"GetMissing", testGetMissing},
		{"Conflicts", testConflicts},
		{"Search", testSearch},
		{"ListByUsername", testListByUsername},
		{"ConcurrentLikes", testConcurrentLikes},
		{"AppendComment", testAppendComment},
		{"ConcurrentComments", testConcurrentComments},
		{"ReadsAreCopies", testReadsAreCopies},
		{"Users", testUsers},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users, posts := newRepos(t)
			seed(t, users, posts)
			tc.fn(t, users, posts)
		})
	}
}

func seed(t *testing.T, users repository.UserRepository, posts repository.PostRepository) {
	t.Helper()
	ctx := context.Background()
	for _, u := range domain.SeedUsers() {
		if err := users.Create(ctx, &u); err != nil {
			t.Fatalf("create user %s: %v", u.Username, err)
		}
	}
	seeds := domain.SeedPosts()
	for i := len(seeds) - 1; i >= 0; i-- {
		if err := posts.Create(ctx, &seeds[i]); err != nil {
			t.Fatalf("create post %s: %v", seeds[i].ID, err)
		}
	}
}

func ids(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i := range posts {
		out[i] = posts[i].ID
	}
	return out
}

func testListNewestFirst(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
	list, err := posts.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := fmt.Sprint(ids(list)); got != "[1 2 3]" {
		t.Fatalf("order = %s, want [1 2 3]", got)
	}
	if list[1].Comments == nil || len(list[1].Comments) != 0 {
		t.Fatalf("post 2 comments = %#v, want empty slice", list[1].Comments)
	}
	third := list[2]
	if len(third.Comments) != 2 || third.Comments[0].ID != "c2" || third.Comments[1].ID != "c3" {
		t.Fatalf("post 3 comments out of order: %+v", third.Comments)
	}
	want := time.Date(2023, 4, 13, 18, 45, 0, 0, time.UTC)
	if !third.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", third.Timestamp, want)
	}

	post := &domain.Post{
		ID:        "new",
		UserID:    "1",
		Username:  "fluffycat",
		ImageURL:  "/media/images/new.png",
		Caption:   "<b>raw</b>",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Comments:  []domain.Comment{},
	}
	if err := posts.Create(ctx, post); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err = posts.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[0].ID != "new" || list[0].Caption != "<b>raw</b>" {
		t.Fatalf("first post = %+v", list[0])
	}
}

func testGetMissing(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	if _, err := posts.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func testConflicts(t *testing.T, users repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
	dup := domain.SeedPosts()[0]
	if err := posts.Create(ctx, &dup); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("duplicate post err = %v, want ErrConflict", err)
	}
	user := domain.User{ID: "99", Username: "goodboy"}
	if err := users.Create(ctx, &user); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("duplicate username err = %v, want ErrConflict", err)
	}
}

func testSearch(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
	summer := &domain.Post{
		ID:        "ete",
		UserID:    "2",
		Username:  "goodboy",
		ImageURL:  "/media/images/ete.png",
		Caption:   "Été à la plage",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Comments:  []domain.Comment{},
	}
	if err := posts.Create(ctx, summer); err != nil {
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
		{".*", 0},
		{"' OR '1'='1", 0},
		{"DAY", 3},
		{"ÉTÉ", 1},
		{"À LA", 1},
	}
	for _, tc := range cases {
		got, err := posts.Search(ctx, tc.query)
		if err != nil {
			t.Fatalf("search %q: %v", tc.query, err)
		}
		if len(got) != tc.want {
			t.Errorf("search %q returned %d posts, want %d", tc.query, len(got), tc.want)
		}
	}
}

func testListByUsername(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
	got, err := posts.ListByUsername(ctx, "goodboy")
	if err != nil {
		t.Fatalf("list by username: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("unexpected posts: %v", ids(got))
	}
	got, err = posts.ListByUsername(ctx, "GoodBoy")
	if err != nil {
		t.Fatalf("list by username: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("username match must be case-sensitive, got %v", ids(got))
	}
}

func testConcurrentLikes(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
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
			likes, err := posts.IncrementLikes(ctx, "2")
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
	post, err := posts.Get(ctx, "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if post.Likes != 76+n {
		t.Fatalf("likes = %d, want %d", post.Likes, 76+n)
	}
	if _, err := posts.IncrementLikes(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func newComment(id, postID string) *domain.Comment {
	return &domain.Comment{
		ID:        id,
		PostID:    postID,
		UserID:    "3",
		Username:  "hamsterdance",
		Text:      "comment " + id,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testAppendComment(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := posts.AppendComment(ctx, newComment(fmt.Sprintf("n%d", i), "1")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	post, err := posts.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got := make([]string, len(post.Comments))
	for i, c := range post.Comments {
		got[i] = c.ID
	}
	if fmt.Sprint(got) != "[c1 n0 n1 n2]" {
		t.Fatalf("comments = %v, want [c1 n0 n1 n2]", got)
	}

	if err := posts.AppendComment(ctx, newComment("orphan", "missing")); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func testConcurrentComments(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := posts.AppendComment(ctx, newComment(fmt.Sprintf("p%d", i), "2")); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	post, err := posts.Get(ctx, "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(post.Comments) != n {
		t.Fatalf("comments = %d, want %d", len(post.Comments), n)
	}
	unique := make(map[string]struct{}, n)
	for _, c := range post.Comments {
		unique[c.ID] = struct{}{}
	}
	if len(unique) != n {
		t.Fatalf("distinct comments = %d, want %d", len(unique), n)
	}
}

func testReadsAreCopies(t *testing.T, _ repository.UserRepository, posts repository.PostRepository) {
	ctx := context.Background()
	post, err := posts.Get(ctx, "3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	post.Comments[0].Text = "changed"
	post.Comments = append(post.Comments, domain.Comment{ID: "ghost"})
	post.Likes = 1000

	again, err := posts.Get(ctx, "3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Likes != 31 || len(again.Comments) != 2 || again.Comments[0].Text != "So tiny and cute!" {
		t.Fatalf("stored post changed through a returned copy: %+v", again)
	}
}

func testUsers(t *testing.T, users repository.UserRepository, _ repository.PostRepository) {
	ctx := context.Background()
	user, err := users.GetByUsername(ctx, "hamsterdance")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if user.ID != "3" || user.DisplayName != "Hammy" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, err := users.GetByUsername(ctx, "HamsterDance"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := users.GetByID(ctx, "2"); err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if _, err := users.GetByID(ctx, "42"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
