// Package storage_manager stores the assistant's files (persona prompt and
// database backups) on the local filesystem or in S3 behind one interface.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Read when the file does not exist.
var ErrNotFound = errors.New("file not found")

// FileProvider is a flat key/value file store. Paths use forward slashes.
type FileProvider interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// List returns the paths under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// scopedProvider confines another provider to a sub-directory.
type scopedProvider struct {
	inner FileProvider
	scope string
}

// Scope returns a provider whose paths are relative to dir inside p.
func Scope(p FileProvider, dir string) FileProvider {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return p
	}
	return &scopedProvider{inner: p, scope: dir + "/"}
}

func (s *scopedProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return s.inner.Read(ctx, s.scope+path)
}

func (s *scopedProvider) Write(ctx context.Context, path string, data []byte) error {
	return s.inner.Write(ctx, s.scope+path, data)
}

func (s *scopedProvider) Exists(ctx context.Context, path string) (bool, error) {
	return s.inner.Exists(ctx, s.scope+path)
}

func (s *scopedProvider) Delete(ctx context.Context, path string) error {
	return s.inner.Delete(ctx, s.scope+path)
}

func (s *scopedProvider) List(ctx context.Context, prefix string) ([]string, error) {
	paths, err := s.inner.List(ctx, s.scope+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, strings.TrimPrefix(p, s.scope))
	}
	return out, nil
}
