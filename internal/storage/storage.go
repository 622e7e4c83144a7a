// Package storage stores uploaded exam images on the local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/SAP-F-2025/answer-sheet-service/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Provider is the storage backend used by the upload service.
type Provider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}

// NewProvider builds the provider selected by cfg.Type.
func NewProvider(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalProvider(cfg.LocalPath, cfg.PublicBaseURL), nil
	case "minio":
		return NewMinioProvider(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

// LocalProvider writes objects below a root directory.
type LocalProvider struct {
	root    string
	baseURL string
}

func NewLocalProvider(root, baseURL string) *LocalProvider {
	return &LocalProvider{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *LocalProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst, err := p.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	dst, err := p.path(key)
	if err != nil {
		return err
	}
	return os.Remove(dst)
}

func (p *LocalProvider) GetURL(key string) string {
	return p.baseURL + "/" + key
}

// Root is the directory served under the public base URL.
func (p *LocalProvider) Root() string {
	return p.root
}

func (p *LocalProvider) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(p.root, clean), nil
}

// MinioProvider stores objects in a MinIO/S3 bucket.
type MinioProvider struct {
	client *minio.Client
	bucket string
	scheme string
	host   string
}

func NewMinioProvider(ctx context.Context, cfg config.StorageConfig) (*MinioProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
	}

	scheme := "http"
	if cfg.MinioUseSSL {
		scheme = "https"
	}
	return &MinioProvider{client: client, bucket: cfg.MinioBucket, scheme: scheme, host: cfg.MinioEndpoint}, nil
}

func (p *MinioProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.client.PutObject(ctx, p.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioProvider) Delete(ctx context.Context, key string) error {
	return p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioProvider) GetURL(key string) string {
	return fmt.Sprintf("%s://%s/%s/%s", p.scheme, p.host, p.bucket, key)
}
