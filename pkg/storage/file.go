package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/driftfs/driftfs/internal/pathkit"
	dferr "github.com/driftfs/driftfs/pkg/errors"
)

// File is a handle on a single file within a resource tree. A File
// obtained from a constructor owns the tree's backend session; a File
// spawned through Dir.GetFile shares its parent's session and its Close
// is a no-op.
type File struct {
	res  *resource
	path string
	owns bool
}

// Path returns the file's path relative to the resource root.
func (f *File) Path() string { return f.path }

// Name returns the file's final path segment.
func (f *File) Name() string { return pathkit.Base(f.path) }

// URI returns the scheme-qualified location of the file.
func (f *File) URI() string { return f.res.uriBase + f.path }

// Close releases the backend session when this handle owns it. Closing
// a spawned handle does nothing; closing twice does nothing.
func (f *File) Close() error {
	if !f.owns {
		return nil
	}
	return f.res.close()
}

// GetSize returns the file's size in bytes.
func (f *File) GetSize(ctx context.Context) (int64, error) {
	if err := f.res.guard(); err != nil {
		return 0, err
	}
	return f.res.fileSize(ctx, f.path)
}

// Read returns the file's entire contents.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	if err := f.res.guard(); err != nil {
		return nil, err
	}
	rc, err := f.res.backend.Open(ctx, f.path)
	f.res.record("open", err)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, dferr.WrapPath(dferr.CodeBackend, "reading file", f.path, err)
	}
	return data, nil
}

// ReadRange returns the bytes in [start, end). A negative end reads to
// the end of the file.
func (f *File) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := f.res.guard(); err != nil {
		return nil, err
	}
	if start < 0 || (end >= 0 && end < start) {
		return nil, dferr.NewPath(dferr.CodeInvalidArgument,
			fmt.Sprintf("invalid byte range [%d, %d)", start, end), f.path)
	}
	length := int64(-1)
	if end >= 0 {
		length = end - start
	}
	data, err := f.res.backend.ReadRange(ctx, f.path, start, length)
	f.res.record("read_range", err)
	return data, err
}

// ReadChunks yields the file's contents in chunks of at most chunkSize
// bytes. Iteration stops at the first error; breaking out early simply
// stops issuing reads.
func (f *File) ReadChunks(ctx context.Context, chunkSize int64) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if err := f.res.guard(); err != nil {
			yield(nil, err)
			return
		}
		if chunkSize <= 0 {
			yield(nil, dferr.InvalidChunkSize(chunkSize))
			return
		}
		var off int64
		for {
			data, err := f.res.backend.ReadRange(ctx, f.path, off, chunkSize)
			f.res.record("read_range", err)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(data) == 0 {
				return
			}
			if !yield(data, nil) {
				return
			}
			if int64(len(data)) < chunkSize {
				return
			}
			off += int64(len(data))
		}
	}
}

// ReadText returns the file's contents decoded as UTF-8 text.
func (f *File) ReadText(ctx context.Context) (string, error) {
	data, err := f.Read(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadLines returns the file's contents split into lines, without
// terminators.
func (f *File) ReadLines(ctx context.Context) ([]string, error) {
	data, err := f.Read(ctx)
	if err != nil {
		return nil, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, dferr.WrapPath(dferr.CodeBackend, "splitting lines", f.path, err)
	}
	return lines, nil
}

// Cat writes the file's contents to standard output.
func (f *File) Cat(ctx context.Context) error {
	data, err := f.Read(ctx)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// GetMetadata returns the metadata currently assigned to the file in
// the tree's shared store. It never contacts the backend; use
// LoadMetadata to pull service-side metadata in.
func (f *File) GetMetadata() (map[string]string, error) {
	if err := f.res.guard(); err != nil {
		return nil, err
	}
	return f.res.meta.Snapshot(f.path), nil
}

// SetMetadata assigns metadata to the file in the tree's shared store.
// The assignment is visible to every entity sharing the tree; nothing
// is sent to the backend until the file is transferred or the backend's
// metadata is written explicitly.
func (f *File) SetMetadata(md map[string]string) error {
	if err := f.res.guard(); err != nil {
		return err
	}
	f.res.meta.Set(f.path, md)
	return nil
}

// LoadMetadata fetches the file's service-side metadata into the shared
// store and returns it. Backends without object metadata yield an empty
// mapping.
func (f *File) LoadMetadata(ctx context.Context) (map[string]string, error) {
	if err := f.res.guard(); err != nil {
		return nil, err
	}
	md, err := f.res.fetchMetadata(ctx, f.path)
	if err != nil {
		return nil, err
	}
	f.res.meta.Set(f.path, md)
	return md, nil
}

// WriteMetadata pushes the metadata currently assigned to the file out
// to the backend. Backends without object metadata ignore it.
func (f *File) WriteMetadata(ctx context.Context) error {
	if err := f.res.guard(); err != nil {
		return err
	}
	if !f.res.nativeMetadata {
		return nil
	}
	err := f.res.backend.SetMetadata(ctx, f.path, f.res.meta.Snapshot(f.path))
	f.res.record("set_metadata", err)
	if err == nil && f.res.cache != nil {
		f.res.cache.StoreMetadata(f.path, f.res.meta.Snapshot(f.path))
	}
	return err
}
