package io

import (
	"context"
	"os"

	"github.com/OFFIS-RIT/ontokit/pkg/loader"
)

// IOFileLoader loads files directly from the local filesystem with caching.
type IOFileLoader struct {
	loader.Cache
}

// NewIOFileLoader creates a new filesystem-based file loader.
func NewIOFileLoader() *IOFileLoader {
	return &IOFileLoader{}
}

// GetFileBytes reads the file content from the filesystem.
func (l *IOFileLoader) GetFileBytes(ctx context.Context, file loader.File) ([]byte, error) {
	return l.Get(ctx, file, func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return os.ReadFile(file.FilePath)
	})
}
