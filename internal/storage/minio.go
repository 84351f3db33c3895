package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/skydrive/backend/internal/config"
	"github.com/skydrive/backend/pkg/logger"
)

type MinIOClient struct {
	client  *minio.Client
	bucket  string
	timeout time.Duration
}

var _ ObjectStore = (*MinIOClient)(nil)

func NewMinIOClient(cfg config.MinIOConfig, timeout time.Duration) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{
		client:  client,
		bucket:  cfg.Bucket,
		timeout: timeout,
	}, nil
}

func (m *MinIOClient) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("minio_upload_failed", err, map[string]interface{}{
			"object_name":  objectName,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
	} else {
		logger.Info("minio_upload_success", map[string]interface{}{
			"object_name":  objectName,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
	}
	return err
}

// Download intentionally runs on the caller's context: a fixed deadline
// would abort large streams mid-transfer.
func (m *MinIOClient) Download(ctx context.Context, objectName string) (Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("minio_download_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		logger.Error("minio_download_stat_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return nil, err
	}
	return &minioObject{obj: obj}, nil
}

func (m *MinIOClient) Delete(ctx context.Context, objectName string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("minio_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
	}
	return err
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIOClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

type minioObject struct {
	obj *minio.Object
}

func (o *minioObject) Read(p []byte) (int, error) {
	return o.obj.Read(p)
}

func (o *minioObject) Close() error {
	return o.obj.Close()
}

func (o *minioObject) Stat() (ObjectInfo, error) {
	stat, err := o.obj.Stat()
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Size: stat.Size, ContentType: stat.ContentType}, nil
}
