package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"petgram/internal/repository/memory"
	"petgram/internal/service"
	"petgram/internal/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func newTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := memory.NewUserRepository()
	posts := memory.NewPostRepository()
	if err := service.Seed(context.Background(), users, posts, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dir := t.TempDir()
	store, err := storage.NewLocalService(dir, "/media")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	feed := service.NewFeedService(service.FeedConfig{Logger: logger}, users, posts, store)

	opts.MediaPrefix = "/media"
	opts.MediaDir = dir
	opts.Logger = logger

	router := gin.New()
	NewHandler(feed, opts).RegisterRoutes(router)
	return router
}

func do(router *gin.Engine, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func multipartUpload(t *testing.T, caption string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("caption", caption); err != nil {
		t.Fatalf("write caption: %v", err)
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "upload.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestListPosts(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(router, http.MethodGet, "/api/posts", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	posts := decode[[]PostResponse](t, rec)
	if len(posts) != 3 || posts[0].ID != "1" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
	if posts[0].Timestamp != "2023-04-15T14:30:00Z" {
		t.Fatalf("timestamp = %q", posts[0].Timestamp)
	}
	if posts[1].Comments == nil {
		t.Fatalf("comments must encode as an empty array")
	}
	if !strings.Contains(rec.Body.String(), `"userProfilePic"`) {
		t.Fatalf("response missing camelCase fields: %s", rec.Body.String())
	}
}

func TestGetPost(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(router, http.MethodGet, "/api/posts/3", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	post := decode[PostResponse](t, rec)
	if len(post.Comments) != 2 || post.Comments[1].Text != "Looks fun!" {
		t.Fatalf("unexpected post: %+v", post)
	}

	rec = do(router, http.MethodGet, "/api/posts/nonexistent", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing post status = %d", rec.Code)
	}
}

func TestSearchPosts(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(router, http.MethodGet, "/api/posts/search?q=BEACH", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	posts := decode[[]PostResponse](t, rec)
	if len(posts) != 1 || posts[0].ID != "2" {
		t.Fatalf("unexpected posts: %+v", posts)
	}

	rec = do(router, http.MethodGet, "/api/posts/search", nil, "")
	if got := decode[[]PostResponse](t, rec); len(got) != 3 {
		t.Fatalf("empty query returned %d posts", len(got))
	}
}

func TestUserProfileAndPosts(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(router, http.MethodGet, "/api/users/hamsterdance", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	user := decode[UserResponse](t, rec)
	if user.DisplayName != "Hammy" {
		t.Fatalf("unexpected user: %+v", user)
	}

	rec = do(router, http.MethodGet, "/api/users/hamsterdance/posts", nil, "")
	if posts := decode[[]PostResponse](t, rec); len(posts) != 1 || posts[0].ID != "3" {
		t.Fatalf("unexpected posts: %+v", posts)
	}

	rec = do(router, http.MethodGet, "/api/users/nobody", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing user status = %d", rec.Code)
	}
}

func TestLikePost(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(router, http.MethodPost, "/api/posts/1/like", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]int](t, rec); got["likes"] != 43 {
		t.Fatalf("likes = %d, want 43", got["likes"])
	}

	rec = do(router, http.MethodPost, "/api/posts/nonexistent/like", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing post status = %d", rec.Code)
	}
}

func TestAddComment(t *testing.T) {
	router := newTestRouter(t, Options{})

	rec := do(router, http.MethodPost, "/api/posts/2/comments", strings.NewReader(`{"userId":"3","text":"<b>nice</b>"}`), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	comment := decode[CommentResponse](t, rec)
	if comment.Username != "hamsterdance" || comment.Text != "<b>nice</b>" || comment.PostID != "2" {
		t.Fatalf("unexpected comment: %+v", comment)
	}

	post := decode[PostResponse](t, do(router, http.MethodGet, "/api/posts/2", nil, ""))
	if len(post.Comments) != 1 || post.Comments[0].ID != comment.ID {
		t.Fatalf("comment not appended: %+v", post.Comments)
	}

	rec = do(router, http.MethodPost, "/api/posts/nonexistent/comments", strings.NewReader(`{"userId":"3","text":"x"}`), "application/json")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing post status = %d", rec.Code)
	}
	rec = do(router, http.MethodPost, "/api/posts/2/comments", strings.NewReader(`{"text":"x"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing userId status = %d", rec.Code)
	}
}

func TestUploadImage(t *testing.T) {
	router := newTestRouter(t, Options{})

	body, contentType := multipartUpload(t, "fresh #upload", pngBytes)
	rec := do(router, http.MethodPost, "/api/posts", body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	post := decode[PostResponse](t, rec)
	if post.Likes != 0 || len(post.Comments) != 0 || post.Caption != "fresh #upload" {
		t.Fatalf("unexpected post: %+v", post)
	}
	if !strings.HasPrefix(post.ImageURL, "/media/images/") {
		t.Fatalf("image url = %q", post.ImageURL)
	}

	img := do(router, http.MethodGet, post.ImageURL, nil, "")
	if img.Code != http.StatusOK || !bytes.Equal(img.Body.Bytes(), pngBytes) {
		t.Fatalf("stored image not served: status=%d", img.Code)
	}

	posts := decode[[]PostResponse](t, do(router, http.MethodGet, "/api/posts", nil, ""))
	if posts[0].ID != post.ID {
		t.Fatalf("uploaded post is not first in feed")
	}
}

func TestUploadImageRejectsNonImages(t *testing.T) {
	router := newTestRouter(t, Options{})

	body, contentType := multipartUpload(t, "keep me", []byte("just some text"))
	rec := do(router, http.MethodPost, "/api/posts", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["caption"] != "keep me" {
		t.Fatalf("caption not echoed back: %+v", got)
	}

	body, contentType = multipartUpload(t, "no file", nil)
	rec = do(router, http.MethodPost, "/api/posts", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file status = %d", rec.Code)
	}
}

func TestUploadImageTooLargeKeepsCaption(t *testing.T) {
	router := newTestRouter(t, Options{MaxUploadBytes: 1024})

	// larger than the request body cap, caption first
	huge := append(append([]byte{}, pngBytes...), make([]byte, 2<<20)...)
	body, contentType := multipartUpload(t, "keep me", huge)
	rec := do(router, http.MethodPost, "/api/posts", body, contentType)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["caption"] != "keep me" {
		t.Fatalf("caption not echoed back: %+v", got)
	}

	// over the image limit but within the body cap, caption after the image
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "big.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(append(append([]byte{}, pngBytes...), make([]byte, 4096)...)); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := w.WriteField("caption", "still here"); err != nil {
		t.Fatalf("write caption: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	rec = do(router, http.MethodPost, "/api/posts", &buf, w.FormDataContentType())
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["caption"] != "still here" {
		t.Fatalf("caption not echoed back: %+v", got)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	router := newTestRouter(t, Options{RateLimit: 2, RateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		if rec := do(router, http.MethodPost, "/api/posts/1/like", nil, ""); rec.Code != http.StatusOK {
			t.Fatalf("like %d status = %d", i, rec.Code)
		}
	}
	if rec := do(router, http.MethodPost, "/api/posts/1/like", nil, ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/api/posts", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status = %d", rec.Code)
	}
}
