package blobstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/modzart/internal/server/config"
)

// New builds the backend selected by cfg.StorageMode. It is called once at
// startup and the result is injected into the upload pipeline.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	opts := S3Options{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3BaseEndpoint,
		AccessKey: cfg.S3RootUser,
		SecretKey: cfg.S3RootPassword,
	}

	switch cfg.StorageMode {
	case config.StorageModeLocal:
		l, err := NewLocal(cfg.LocalStoragePath, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.StorageModeS3:
		s, err := NewS3(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageModeMinio:
		m, err := NewMinio(opts)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
}
