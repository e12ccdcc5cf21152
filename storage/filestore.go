package storage

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// FileStore fetches raw object bytes by volume path. Drivers exist for
// Unity Catalog volumes and S3; which one runs is a deployment choice.
type FileStore interface {
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

// Sentinel errors drivers wrap so handlers can map them to 404/403.
var (
	ErrNotFound         = errors.New("file not found")
	ErrPermissionDenied = errors.New("permission denied")
)
