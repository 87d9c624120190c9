package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"petgram/internal/domain"
	"petgram/internal/service"
)

const (
	// multipart framing on top of the image itself
	uploadOverhead  = 1 << 20
	maxCaptionBytes = 64 << 10
)

// Options configures the HTTP surface.
type Options struct {
	// MediaPrefix and MediaDir, when both set, serve locally stored images.
	MediaPrefix    string
	MediaDir       string
	MaxUploadBytes int64
	RateLimit      int
	RateWindow     time.Duration
	Logger         *logrus.Logger
}

// Handler wires HTTP routes to the feed service.
type Handler struct {
	feed    service.FeedService
	opts    Options
	limiter *IPRateLimiter
	logger  *logrus.Logger
}

func NewHandler(feed service.FeedService, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	var limiter *IPRateLimiter
	if opts.RateLimit > 0 && opts.RateWindow > 0 {
		limiter = NewIPRateLimiter(opts.RateLimit, opts.RateWindow)
	}
	return &Handler{
		feed:    feed,
		opts:    opts,
		limiter: limiter,
		logger:  opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), cors.New(corsConfig()))

	if h.opts.MediaPrefix != "" && h.opts.MediaDir != "" {
		router.Static(h.opts.MediaPrefix, h.opts.MediaDir)
	}

	api := router.Group("/api")
	{
		api.GET("/posts", h.listPosts)
		api.GET("/posts/search", h.searchPosts)
		api.GET("/posts/:id", h.getPost)
		api.GET("/users/:username", h.getUser)
		api.GET("/users/:username/posts", h.listUserPosts)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		writes := api.Group("", rateLimit(h.limiter))
		writes.POST("/posts", h.uploadImage)
		writes.POST("/posts/:id/like", h.likePost)
		writes.POST("/posts/:id/comments", h.addComment)
	}
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}
}

type addCommentRequest struct {
	UserID string `json:"userId" binding:"required"`
	Text   string `json:"text"`
}

func (h *Handler) listPosts(c *gin.Context) {
	posts, err := h.feed.ListPosts(c.Request.Context())
	if err != nil {
		h.internalError(c, "list posts", err)
		return
	}
	c.JSON(http.StatusOK, postsToResponse(posts))
}

func (h *Handler) searchPosts(c *gin.Context) {
	posts, err := h.feed.SearchPosts(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.internalError(c, "search posts", err)
		return
	}
	c.JSON(http.StatusOK, postsToResponse(posts))
}

func (h *Handler) getPost(c *gin.Context) {
	post, ok, err := h.feed.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.internalError(c, "get post", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, postToResponse(post))
}

func (h *Handler) getUser(c *gin.Context) {
	user, ok, err := h.feed.GetUserProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.internalError(c, "get user", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) listUserPosts(c *gin.Context) {
	posts, err := h.feed.ListPostsByUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.internalError(c, "list user posts", err)
		return
	}
	c.JSON(http.StatusOK, postsToResponse(posts))
}

func (h *Handler) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+uploadOverhead)

	form, err := h.readUploadForm(c.Request)
	caption := form.caption
	switch {
	case form.tooLarge:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large", "caption": caption})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed upload", "caption": caption})
		return
	case form.image == nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required", "caption": caption})
		return
	}

	post, err := h.feed.UploadImage(c.Request.Context(), service.Upload{
		Filename: form.filename,
		Body:     bytes.NewReader(form.image),
	}, caption)
	switch {
	case errors.Is(err, service.ErrUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error(), "caption": caption})
		return
	case errors.Is(err, service.ErrInvalidUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "caption": caption})
		return
	case err != nil:
		h.logger.WithField("filename", form.filename).Errorf("upload image: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed, please try again", "caption": caption})
		return
	}

	c.JSON(http.StatusCreated, postToResponse(post))
}

type uploadForm struct {
	caption  string
	filename string
	image    []byte
	tooLarge bool
}

// readUploadForm walks the multipart parts in order so a caption sent
// before an oversized image is still returned to the client.
func (h *Handler) readUploadForm(req *http.Request) (uploadForm, error) {
	var form uploadForm
	reader, err := req.MultipartReader()
	if err != nil {
		return form, err
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			form.tooLarge = form.tooLarge || isMaxBytes(err)
			return form, err
		}

		switch part.FormName() {
		case "caption":
			data, err := io.ReadAll(io.LimitReader(part, maxCaptionBytes))
			if err != nil {
				form.tooLarge = form.tooLarge || isMaxBytes(err)
				return form, err
			}
			form.caption = string(data)
		case "image":
			data, err := io.ReadAll(io.LimitReader(part, h.opts.MaxUploadBytes+1))
			if err != nil {
				form.tooLarge = form.tooLarge || isMaxBytes(err)
				return form, err
			}
			if int64(len(data)) > h.opts.MaxUploadBytes {
				// keep reading, a caption may still follow
				form.tooLarge = true
				continue
			}
			form.filename = part.FileName()
			form.image = data
		}
		part.Close()
	}
}

func isMaxBytes(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func (h *Handler) likePost(c *gin.Context) {
	likes, ok, err := h.feed.LikePost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.internalError(c, "like post", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

func (h *Handler) addComment(c *gin.Context) {
	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, ok, err := h.feed.AddComment(c.Request.Context(), c.Param("id"), req.UserID, req.Text)
	if err != nil {
		h.internalError(c, "add comment", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "post or user not found"})
		return
	}
	c.JSON(http.StatusCreated, commentToResponse(comment))
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.WithField("path", c.Request.URL.Path).Errorf("%s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if strings.HasSuffix(c.Request.URL.Path, "/health") {
			return
		}
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Debug("request")
	}
}

type UserResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	ProfilePicture string `json:"profilePicture"`
	Bio            string `json:"bio"`
}

type CommentResponse struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type PostResponse struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Username       string            `json:"username"`
	UserProfilePic string            `json:"userProfilePic"`
	ImageURL       string            `json:"imageUrl"`
	Caption        string            `json:"caption"`
	Likes          int               `json:"likes"`
	Timestamp      string            `json:"timestamp"`
	Comments       []CommentResponse `json:"comments"`
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName,
		ProfilePicture: user.ProfilePicture,
		Bio:            user.Bio,
	}
}

func commentToResponse(comment domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		PostID:    comment.PostID,
		UserID:    comment.UserID,
		Username:  comment.Username,
		Text:      comment.Text,
		Timestamp: comment.Timestamp.UTC().Format(time.RFC3339),
	}
}

func postToResponse(post domain.Post) PostResponse {
	resp := PostResponse{
		ID:             post.ID,
		UserID:         post.UserID,
		Username:       post.Username,
		UserProfilePic: post.UserProfilePic,
		ImageURL:       post.ImageURL,
		Caption:        post.Caption,
		Likes:          post.Likes,
		Timestamp:      post.Timestamp.UTC().Format(time.RFC3339),
		Comments:       make([]CommentResponse, len(post.Comments)),
	}
	for i := range post.Comments {
		resp.Comments[i] = commentToResponse(post.Comments[i])
	}
	return resp
}

func postsToResponse(posts []domain.Post) []PostResponse {
	resp := make([]PostResponse, len(posts))
	for i := range posts {
		resp[i] = postToResponse(posts[i])
	}
	return resp
}
