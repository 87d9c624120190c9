package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"petgram/internal/domain"
	"petgram/internal/repository"
	"petgram/internal/storage"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultMaxConcurrent  = 4
	defaultCurrentUser    = "fluffycat"
)

var (
	// ErrInvalidUpload indicates the uploaded file is empty or not a supported image.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrUploadTooLarge indicates the uploaded file exceeds the configured size limit.
	ErrUploadTooLarge = fmt.Errorf("%w: image too large", ErrInvalidUpload)
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Upload is an image submitted for a new post.
type Upload struct {
	Filename string
	Body     io.Reader
}

// FeedService is the single entry point for reading and mutating users,
// posts and comments. Lookups report a missing entity through the boolean
// result; errors are reserved for storage and validation failures.
type FeedService interface {
	ListPosts(ctx context.Context) ([]domain.Post, error)
	GetPost(ctx context.Context, id string) (domain.Post, bool, error)
	SearchPosts(ctx context.Context, query string) ([]domain.Post, error)
	GetUserProfile(ctx context.Context, username string) (domain.User, bool, error)
	ListPostsByUser(ctx context.Context, username string) ([]domain.Post, error)
	UploadImage(ctx context.Context, upload Upload, caption string) (domain.Post, error)
	AddComment(ctx context.Context, postID, userID, text string) (domain.Comment, bool, error)
	LikePost(ctx context.Context, postID string) (int, bool, error)
}

// FeedConfig tunes upload handling.
type FeedConfig struct {
	// CurrentUser is the username every upload is attributed to.
	CurrentUser    string
	MaxUploadBytes int64
	MaxConcurrent  int
	Logger         *logrus.Logger
	Now            func() time.Time
}

type feedService struct {
	cfg     FeedConfig
	users   repository.UserRepository
	posts   repository.PostRepository
	storage storage.Service
	sem     chan struct{}
}

func NewFeedService(cfg FeedConfig, users repository.UserRepository, posts repository.PostRepository, store storage.Service) FeedService {
	if cfg.CurrentUser == "" {
		cfg.CurrentUser = defaultCurrentUser
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &feedService{
		cfg:     cfg,
		users:   users,
		posts:   posts,
		storage: store,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (s *feedService) ListPosts(ctx context.Context) ([]domain.Post, error) {
	return s.posts.List(ctx)
}

func (s *feedService) GetPost(ctx context.Context, id string) (domain.Post, bool, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return domain.Post{}, false, notFound(err)
	}
	return *post, true, nil
}

func (s *feedService) SearchPosts(ctx context.Context, query string) ([]domain.Post, error) {
	posts, err := s.posts.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	s.cfg.Logger.WithFields(logrus.Fields{
		"query":   query,
		"matches": len(posts),
	}).Debug("search posts")
	return posts, nil
}

func (s *feedService) GetUserProfile(ctx context.Context, username string) (domain.User, bool, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return domain.User{}, false, notFound(err)
	}
	return *user, true, nil
}

func (s *feedService) ListPostsByUser(ctx context.Context, username string) ([]domain.Post, error) {
	return s.posts.ListByUsername(ctx, username)
}

func (s *feedService) UploadImage(ctx context.Context, upload Upload, caption string) (domain.Post, error) {
	logger := s.cfg.Logger.WithField("filename", upload.Filename)

	data, mime, err := s.readImage(upload.Body)
	if err != nil {
		logger.Warnf("rejected upload: %v", err)
		return domain.Post{}, err
	}

	author, err := s.users.GetByUsername(ctx, s.cfg.CurrentUser)
	if err != nil {
		return domain.Post{}, fmt.Errorf("resolve current user %s: %w", s.cfg.CurrentUser, err)
	}

	id := uuid.NewString()
	key := path.Join("images", id+mime.Extension())

	obj, err := s.putObject(ctx, key, data, mime.String())
	if err != nil {
		return domain.Post{}, err
	}

	post := domain.Post{
		ID:             id,
		UserID:         author.ID,
		Username:       author.Username,
		UserProfilePic: author.ProfilePicture,
		ImageURL:       obj.URL,
		Caption:        caption,
		Likes:          0,
		Timestamp:      s.cfg.Now().UTC(),
		Comments:       []domain.Comment{},
	}

	if err := s.posts.Create(ctx, &post); err != nil {
		if delErr := s.storage.DeleteObject(context.WithoutCancel(ctx), obj.Key); delErr != nil {
			logger.Warnf("remove orphaned image %s: %v", obj.Key, delErr)
		}
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"post_id": post.ID,
		"size":    formatBytes(int64(len(data))),
		"type":    mime.String(),
	}).Info("post uploaded")
	return post, nil
}

func (s *feedService) AddComment(ctx context.Context, postID, userID, text string) (domain.Comment, bool, error) {
	if _, err := s.posts.Get(ctx, postID); err != nil {
		return domain.Comment{}, false, notFound(err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.Comment{}, false, notFound(err)
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    user.ID,
		Username:  user.Username,
		Text:      text,
		Timestamp: s.cfg.Now().UTC(),
	}
	if err := s.posts.AppendComment(ctx, &comment); err != nil {
		return domain.Comment{}, false, notFound(err)
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"post_id":    postID,
		"comment_id": comment.ID,
		"user_id":    userID,
	}).Debug("comment added")
	return comment, true, nil
}

func (s *feedService) LikePost(ctx context.Context, postID string) (int, bool, error) {
	likes, err := s.posts.IncrementLikes(ctx, postID)
	if err != nil {
		return 0, false, notFound(err)
	}
	return likes, true, nil
}

func (s *feedService) readImage(body io.Reader) ([]byte, *mimetype.MIME, error) {
	if body == nil {
		return nil, nil, fmt.Errorf("%w: no image provided", ErrInvalidUpload)
	}
	data, err := io.ReadAll(io.LimitReader(body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty image", ErrInvalidUpload)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, nil, fmt.Errorf("%w: limit is %s", ErrUploadTooLarge, formatBytes(s.cfg.MaxUploadBytes))
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), allowedImageTypes...) {
		return nil, nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidUpload, mime.String())
	}
	return data, mime, nil
}

// putObject bounds how many uploads talk to object storage at once.
func (s *feedService) putObject(ctx context.Context, key string, data []byte, contentType string) (storage.Object, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return storage.Object{}, ctx.Err()
	}

	obj, err := s.storage.PutObject(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return storage.Object{}, fmt.Errorf("store image: %w", err)
	}
	return obj, nil
}

// notFound turns a repository miss into a nil error so callers see ok=false.
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB",
		float64(b)/float64(div),
		"KMGTPE"[exp],
	)
}
