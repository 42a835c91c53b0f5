// Package blob stores visitor photos behind a small driver interface.
package blob

import (
	"context"
	"errors"
	"io"
)

type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// ErrNotFound is returned for a key with no stored object.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is the storage backend for uploaded photos. Keys are relative paths;
// drivers must reject traversal outside their root.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
