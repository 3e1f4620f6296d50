// Package sftpfs implements the storage capability interface over an
// SFTP session. The backend owns both the SSH transport and the SFTP
// subsystem client; closing it invalidates every entity sharing the
// session. Like the local backend it carries no object metadata.
package sftpfs

import (
	"context"
	"fmt"
	"io"
	"os"
	gopath "path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/driftfs/driftfs/internal/pathkit"
	"github.com/driftfs/driftfs/pkg/auth"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Backend is an SFTP storage backend rooted at a remote directory.
type Backend struct {
	conn   *ssh.Client
	client *sftp.Client
	host   string
	root   string
	closed bool
}

// Dial opens the SSH and SFTP sessions eagerly and verifies the root
// directory, creating it when createIfMissing is set.
func Dial(a auth.SSH, root string, createIfMissing bool) (*Backend, error) {
	cfg, err := a.ClientConfig()
	if err != nil {
		return nil, err
	}
	conn, err := ssh.Dial("tcp", a.Addr(), cfg)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", a.Addr(), err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("starting sftp subsystem: %w", err)
	}

	b := &Backend{conn: conn, client: client, host: a.Host, root: root}
	info, err := client.Stat(root)
	switch {
	case err == nil:
		if !info.IsDir() {
			b.Close()
			return nil, dferr.NotADirectory(root)
		}
	case os.IsNotExist(err):
		if !createIfMissing {
			b.Close()
			return nil, dferr.DirNotFound(root)
		}
		if err := client.MkdirAll(root); err != nil {
			b.Close()
			return nil, fmt.Errorf("creating root directory: %w", err)
		}
	default:
		b.Close()
		return nil, err
	}
	return b, nil
}

// Host returns the remote hostname.
func (b *Backend) Host() string { return b.host }

func (b *Backend) abs(path string) string {
	return gopath.Join(b.root, path)
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
		items, err := b.client.ReadDir(base)
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
	walker := b.client.Walk(base)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return nil, err
		}
		if walker.Path() == base {
			continue
		}
		rel := pathkit.Relative(pathkit.MustNormalize(walker.Path()), pathkit.MustNormalize(base))
		entries = append(entries, types.Entry{Path: rel, IsDir: walker.Stat().IsDir()})
	}
	return entries, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	if err := b.guard(); err != nil {
		return 0, err
	}
	info, err := b.client.Stat(b.abs(path))
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
	f, err := b.client.Open(b.abs(path))
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
	f, err := b.client.Open(b.abs(path))
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
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

func (b *Backend) Write(ctx context.Context, path string, r io.Reader, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	target := b.abs(path)
	if dir := gopath.Dir(target); dir != "." && dir != "/" {
		if err := b.client.MkdirAll(dir); err != nil {
			return err
		}
	}
	f, err := b.client.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GetMetadata returns an empty mapping: SFTP carries no object metadata.
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
	_, err := b.client.Stat(b.abs(path))
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
	info, err := b.client.Stat(b.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	var first error
	if b.client != nil {
		first = b.client.Close()
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
