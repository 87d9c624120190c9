package storage

import (
	"context"
	"io"
)

// Object describes an image stored by a Service.
type Object struct {
	Key string
	URL string
}

// Service stores uploaded image bytes and hands back a URL clients can load.
type Service interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) (Object, error)
	DeleteObject(ctx context.Context, key string) error
}
