package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"petgram/internal/config"
	apphttp "petgram/internal/http"
	"petgram/internal/repository"
	"petgram/internal/repository/memory"
	"petgram/internal/repository/mongodb"
	"petgram/internal/repository/postgres"
	"petgram/internal/repository/sqlite"
	"petgram/internal/service"
	"petgram/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Fatalf("parse log level: %v", err)
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, posts, closeDB, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup database: %v", err)
	}
	defer closeDB()

	if err := users.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := posts.Init(ctx); err != nil {
		logger.Fatalf("init post repository: %v", err)
	}
	if cfg.Database.Seed {
		if err := service.Seed(ctx, users, posts, logger); err != nil {
			logger.Fatalf("seed database: %v", err)
		}
	}

	storageSvc, mediaDir, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	feed := service.NewFeedService(service.FeedConfig{
		CurrentUser:    cfg.Upload.CurrentUser,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		MaxConcurrent:  cfg.Upload.MaxConcurrent,
		Logger:         logger,
	}, users, posts, storageSvc)

	opts := apphttp.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		RateLimit:      cfg.RateLimit.Requests,
		RateWindow:     cfg.RateLimit.Window,
		Logger:         logger,
	}
	// only relative base URLs are ours to serve
	if mediaDir != "" && strings.HasPrefix(cfg.Storage.BaseURL, "/") {
		opts.MediaPrefix = cfg.Storage.BaseURL
		opts.MediaDir = mediaDir
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(feed, opts).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildRepositories(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.UserRepository, repository.PostRepository, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		return sqlite.NewUserRepository(db), sqlite.NewPostRepository(db), func() { _ = db.Close() }, nil
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("using postgres database")
		return postgres.NewUserRepository(pool), postgres.NewPostRepository(pool), pool.Close, nil
	case "mongo":
		db, err := mongodb.Connect(ctx, cfg.Database.URL, cfg.Database.Name)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		logger.Infof("using mongo database %s", cfg.Database.Name)
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(disconnectCtx); err != nil {
				logger.Warnf("mongo disconnect: %v", err)
			}
		}
		return mongodb.NewUserRepository(db), mongodb.NewPostRepository(db), closeFn, nil
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewUserRepository(), memory.NewPostRepository(), func() {}, nil
	}
}

// buildStorage returns the image store and, for the local driver, the
// directory that should be served over HTTP.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, string, error) {
	if cfg.Storage.Driver == "local" {
		local, err := storage.NewLocalService(cfg.Storage.Dir, cfg.Storage.BaseURL)
		if err != nil {
			return nil, "", err
		}
		logger.Infof("storing images in %s", local.Root())
		return local, local.Root(), nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, "", fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)

	// /media is the local default and means nothing for s3
	baseURL := cfg.Storage.BaseURL
	if strings.HasPrefix(baseURL, "/") {
		baseURL = ""
	}
	return storage.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix, baseURL), "", nil
}
