// Package local implements the storage capability interface on the local
// filesystem. There is no session to manage: Close only marks the backend
// unusable, and object metadata is not supported (the shared metadata
// store of the owning resource tree still applies).
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/driftfs/driftfs/internal/pathkit"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Backend is a local-filesystem storage backend rooted at a directory.
type Backend struct {
	root   string
	closed bool
}

// New creates a backend rooted at dir. When createIfMissing is set the
// directory (and parents) are created; otherwise a missing root is an
// error.
func New(dir string, createIfMissing bool) (*Backend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, dferr.InvalidPath(dir)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, dferr.NotADirectory(dir)
		}
	case os.IsNotExist(err):
		if !createIfMissing {
			return nil, dferr.DirNotFound(dir)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("creating root directory: %w", err)
		}
	default:
		return nil, err
	}
	return &Backend{root: abs}, nil
}

// Root returns the backend's absolute root directory.
func (b *Backend) Root() string { return b.root }

func (b *Backend) abs(path string) string {
	return filepath.Join(b.root, filepath.FromSlash(path))
}

func (b *Backend) guard() error {
	if b.closed {
		return dferr.ResourceClosed()
	}
	return nil
}

func (b *Backend) ListEntries(ctx context.Context, path string, recursive bool) ([]types.Entry, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	base := b.abs(path)
	if !recursive {
		items, err := os.ReadDir(base)
		if err != nil {
			return nil, err
		}
		entries := make([]types.Entry, 0, len(items))
		for _, it := range items {
			entries = append(entries, types.Entry{Path: it.Name(), IsDir: it.IsDir()})
		}
		return entries, nil
	}

	var entries []types.Entry
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == base {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		entries = append(entries, types.Entry{
			Path:  pathkit.MustNormalize(filepath.ToSlash(rel)),
			IsDir: d.IsDir(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	if err := b.guard(); err != nil {
		return 0, err
	}
	info, err := os.Stat(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, dferr.FileNotFound(path)
		}
		return 0, err
	}
	return info.Size(), nil
}

func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	f, err := os.Open(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	return f, nil
}

func (b *Backend) ReadRange(ctx context.Context, path string, start, length int64) ([]byte, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	f, err := os.Open(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	defer f.Close()

	if length < 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		length = info.Size() - start
		if length < 0 {
			length = 0
		}
	}
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func (b *Backend) Write(ctx context.Context, path string, r io.Reader, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	target := b.abs(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GetMetadata returns an empty mapping: the local filesystem carries no
// object metadata.
func (b *Backend) GetMetadata(ctx context.Context, path string) (map[string]string, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	return map[string]string{}, nil
}

// SetMetadata is a no-op for the same reason.
func (b *Backend) SetMetadata(ctx context.Context, path string, md map[string]string) error {
	return b.guard()
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := b.guard(); err != nil {
		return false, err
	}
	_, err := os.Stat(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *Backend) IsDir(ctx context.Context, path string) (bool, error) {
	if err := b.guard(); err != nil {
		return false, err
	}
	info, err := os.Stat(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (b *Backend) Close() error {
	b.closed = true
	return nil
}
