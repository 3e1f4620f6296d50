// Package gcs implements the storage capability interface on Google
// Cloud Storage. Directories are object name prefixes; object metadata
// maps to GCS custom metadata.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/driftfs/driftfs/internal/pathkit"
	"github.com/driftfs/driftfs/pkg/auth"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Backend is a GCS storage backend rooted at a bucket and name prefix.
type Backend struct {
	client *gstorage.Client
	bucket string
	prefix string
	closed bool
}

// Connect builds the GCS client and verifies the bucket exists, creating
// it when createIfMissing is set (which requires auth.GCP.ProjectID).
func Connect(ctx context.Context, a auth.GCP, bucket, prefix string, createIfMissing bool) (*Backend, error) {
	client, err := gstorage.NewClient(ctx, a.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("building storage client: %w", err)
	}

	bkt := client.Bucket(bucket)
	_, err = bkt.Attrs(ctx)
	if err != nil {
		if !errors.Is(err, gstorage.ErrBucketNotExist) {
			client.Close()
			return nil, fmt.Errorf("checking bucket %q: %w", bucket, err)
		}
		if !createIfMissing {
			client.Close()
			return nil, dferr.NewPath(dferr.CodeBucketNotFound, "bucket not found", bucket)
		}
		if err := bkt.Create(ctx, a.ProjectID, nil); err != nil {
			client.Close()
			return nil, fmt.Errorf("creating bucket %q: %w", bucket, err)
		}
	}
	return &Backend{client: client, bucket: bucket, prefix: prefix}, nil
}

// Bucket returns the backend's bucket name.
func (b *Backend) Bucket() string { return b.bucket }

func (b *Backend) name(path string) string {
	return pathkit.Join(b.prefix, path)
}

func (b *Backend) dirPrefix(path string) string {
	n := b.name(path)
	if n == "" {
		return ""
	}
	return n + "/"
}

func (b *Backend) guard() error {
	if b.closed {
		return dferr.ResourceClosed()
	}
	return nil
}

func (b *Backend) object(path string) *gstorage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.name(path))
}

func (b *Backend) ListEntries(ctx context.Context, path string, recursive bool) ([]types.Entry, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	listPrefix := b.dirPrefix(path)
	query := &gstorage.Query{Prefix: listPrefix}
	if !recursive {
		query.Delimiter = "/"
	}

	var entries []types.Entry
	it := b.client.Bucket(b.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if attrs.Prefix != "" {
			name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, listPrefix), "/")
			if name != "" {
				entries = append(entries, types.Entry{Path: name, IsDir: true})
			}
			continue
		}
		if attrs.Name == listPrefix {
			continue
		}
		entries = append(entries, types.Entry{Path: strings.TrimPrefix(attrs.Name, listPrefix)})
	}
	return entries, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	if err := b.guard(); err != nil {
		return 0, err
	}
	attrs, err := b.object(path).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return 0, dferr.FileNotFound(path)
		}
		return 0, err
	}
	return attrs.Size, nil
}

func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	r, err := b.object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	return r, nil
}

func (b *Backend) ReadRange(ctx context.Context, path string, start, length int64) ([]byte, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	r, err := b.object(path).NewRangeReader(ctx, start, length)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *Backend) Write(ctx context.Context, path string, r io.Reader, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	w := b.object(path).NewWriter(ctx)
	if len(md) > 0 {
		w.Metadata = md
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *Backend) GetMetadata(ctx context.Context, path string) (map[string]string, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	attrs, err := b.object(path).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, dferr.FileNotFound(path)
		}
		return nil, err
	}
	md := make(map[string]string, len(attrs.Metadata))
	for k, v := range attrs.Metadata {
		md[k] = v
	}
	return md, nil
}

func (b *Backend) SetMetadata(ctx context.Context, path string, md map[string]string) error {
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.object(path).Update(ctx, gstorage.ObjectAttrsToUpdate{Metadata: md})
	if err != nil && errors.Is(err, gstorage.ErrObjectNotExist) {
		return dferr.FileNotFound(path)
	}
	return err
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := b.guard(); err != nil {
		return false, err
	}
	if path == "" {
		return true, nil
	}
	_, err := b.object(path).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gstorage.ErrObjectNotExist) {
		return false, err
	}
	return b.IsDir(ctx, path)
}

func (b *Backend) IsDir(ctx context.Context, path string) (bool, error) {
	if err := b.guard(); err != nil {
		return false, err
	}
	if path == "" {
		return true, nil
	}
	it := b.client.Bucket(b.bucket).Objects(ctx, &gstorage.Query{Prefix: b.dirPrefix(path)})
	_, err := it.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.client.Close()
}
