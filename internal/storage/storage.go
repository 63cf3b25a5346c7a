// Package storage publishes benchmark reports to an object store.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/histobench/pkg/config"
	apperrors "github.com/histobench/pkg/errors"
)

// Storage is a flat key/value object store for report files.
type Storage interface {
	// Put writes the content of r under key, replacing any previous object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Get opens the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns where the object under key can be fetched from.
	URL(key string) string
}

// Type names a storage backend.
type Type string

const (
	TypeLocal Type = "local"
	TypeCOS   Type = "cos"
)

// New creates the backend selected by cfg.
func New(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch Type(cfg.Type) {
	case TypeCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return apperrors.InvalidConfig("storage config is nil")
	}

	switch Type(cfg.Type) {
	case "", TypeLocal:
		if cfg.LocalPath == "" {
			return apperrors.InvalidConfig("local storage path is required")
		}
	case TypeCOS:
		if cfg.Bucket == "" || cfg.Region == "" {
			return apperrors.InvalidConfig("COS bucket and region are required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return apperrors.InvalidConfig("COS credentials are required")
		}
	default:
		return apperrors.InvalidConfig("unsupported storage type: %s", cfg.Type)
	}
	return nil
}

// ContentType guesses the content type of a report key.
func ContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json.gz"), strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".pprof"), strings.HasSuffix(key, ".pb.gz"):
		return "application/octet-stream"
	default:
		return "text/plain; charset=utf-8"
	}
}

func storageError(op, key string, err error) error {
	return apperrors.Wrap(apperrors.CodeStorageError, op+" "+key, err)
}
