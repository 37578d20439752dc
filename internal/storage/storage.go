package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"civicwatch/internal/config"
)

// ErrForeignURL is returned when asked to delete an object another store produced.
var ErrForeignURL = errors.New("url does not belong to this store")

// Store persists uploaded report images and returns their public URL.
type Store interface {
	Save(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// New builds the store selected by STORAGE_DRIVER.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocal(cfg.UploadPath, "/uploads"), nil
	case "s3":
		return NewS3(S3Options{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
