// Package fsx abstracts the byte stores the pipeline reads documents from
// and spools them to.
package fsx

import (
	"context"
	"io"
)

type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

type FileWriter interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	WriteFileStream(ctx context.Context, path string, r io.Reader) error
}

type FileSystem interface {
	FileReader
	FileWriter
	DeleteFile(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	Join(elem ...string) string
}
