// Package storage opens stock import files from the local filesystem or
// S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the named file or object does not exist
var ErrObjectNotFound = errors.New("import file not found")

// Source opens import files by name
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
}
