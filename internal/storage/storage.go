package storage

import (
	"context"
	"io"
)

// ObjectStore is the object-storage surface the upload/download gateway
// depends on. The MinIO client implements it in production; tests use
// an in-memory fake.
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectName string) (Object, error)
	Delete(ctx context.Context, objectName string) error
}

// Object is a readable remote object with its metadata.
type Object interface {
	io.ReadCloser
	Stat() (ObjectInfo, error)
}

type ObjectInfo struct {
	Size        int64
	ContentType string
}
