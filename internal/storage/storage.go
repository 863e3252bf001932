package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when object storage is disabled in config.
var ErrNotConfigured = errors.New("object storage is not configured")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// ObjectStorage captures the minimal S3-compatible operations the exports need.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	UploadObject(ctx context.Context, key string, data []byte, contentType string) error
}
