package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/driftfs/driftfs/internal/backend"
	"github.com/driftfs/driftfs/internal/pathkit"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// fakeBackend is an in-memory storage backend for entity and transfer
// tests. It counts calls per operation so tests can assert on cache
// behavior, and can be told to fail specific writes and opens.
type fakeBackend struct {
	files map[string][]byte
	dirs  map[string]bool
	meta  map[string]map[string]string
	calls map[string]int

	openErr   map[string]error
	writeFail map[string]int
	closed    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		files:     make(map[string][]byte),
		dirs:      make(map[string]bool),
		meta:      make(map[string]map[string]string),
		calls:     make(map[string]int),
		openErr:   make(map[string]error),
		writeFail: make(map[string]int),
	}
}

func (f *fakeBackend) put(path, content string) {
	f.files[path] = []byte(content)
}

func (f *fakeBackend) putDir(path string) {
	f.dirs[path] = true
}

func (f *fakeBackend) count(op string) {
	f.calls[op]++
}

func (f *fakeBackend) isDir(path string) bool {
	if path == "" || f.dirs[path] {
		return true
	}
	for k := range f.files {
		if pathkit.IsChildOf(k, path) {
			return true
		}
	}
	for k := range f.dirs {
		if pathkit.IsChildOf(k, path) {
			return true
		}
	}
	return false
}

func (f *fakeBackend) ListEntries(ctx context.Context, path string, recursive bool) ([]types.Entry, error) {
	f.count("list")
	var out []types.Entry
	if recursive {
		for k := range f.files {
			if path == "" || pathkit.IsChildOf(k, path) {
				out = append(out, types.Entry{Path: pathkit.Relative(k, path)})
			}
		}
		for k := range f.dirs {
			if path == "" || pathkit.IsChildOf(k, path) {
				out = append(out, types.Entry{Path: pathkit.Relative(k, path), IsDir: true})
			}
		}
	} else {
		seen := make(map[string]bool)
		add := func(k string, isDir bool) {
			if path != "" && !pathkit.IsChildOf(k, path) {
				return
			}
			rel := pathkit.Relative(k, path)
			if i := strings.IndexByte(rel, '/'); i >= 0 {
				name := rel[:i]
				if !seen[name] {
					seen[name] = true
					out = append(out, types.Entry{Path: name, IsDir: true})
				}
				return
			}
			if !seen[rel] {
				seen[rel] = true
				out = append(out, types.Entry{Path: rel, IsDir: isDir})
			}
		}
		for k := range f.files {
			add(k, false)
		}
		for k := range f.dirs {
			add(k, true)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *fakeBackend) GetSize(ctx context.Context, path string) (int64, error) {
	f.count("get_size")
	data, ok := f.files[path]
	if !ok {
		return 0, dferr.FileNotFound(path)
	}
	return int64(len(data)), nil
}

func (f *fakeBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f.count("open")
	if err := f.openErr[path]; err != nil {
		return nil, err
	}
	data, ok := f.files[path]
	if !ok {
		return nil, dferr.FileNotFound(path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBackend) ReadRange(ctx context.Context, path string, start, length int64) ([]byte, error) {
	f.count("read_range")
	data, ok := f.files[path]
	if !ok {
		return nil, dferr.FileNotFound(path)
	}
	if start >= int64(len(data)) {
		return nil, nil
	}
	end := int64(len(data))
	if length >= 0 && start+length < end {
		end = start + length
	}
	return data[start:end], nil
}

func (f *fakeBackend) Write(ctx context.Context, path string, r io.Reader, md map[string]string) error {
	f.count("write")
	if f.writeFail[path] > 0 {
		f.writeFail[path]--
		io.Copy(io.Discard, r)
		return dferr.Wrap(dferr.CodeBackend, "write failed", fmt.Errorf("injected"))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.files[path] = data
	if md != nil {
		f.meta[path] = copyMap(md)
	}
	return nil
}

func (f *fakeBackend) GetMetadata(ctx context.Context, path string) (map[string]string, error) {
	f.count("get_metadata")
	if _, ok := f.files[path]; !ok {
		return nil, dferr.FileNotFound(path)
	}
	return copyMap(f.meta[path]), nil
}

func (f *fakeBackend) SetMetadata(ctx context.Context, path string, md map[string]string) error {
	f.count("set_metadata")
	if _, ok := f.files[path]; !ok {
		return dferr.FileNotFound(path)
	}
	f.meta[path] = copyMap(md)
	return nil
}

func (f *fakeBackend) Exists(ctx context.Context, path string) (bool, error) {
	f.count("exists")
	if _, ok := f.files[path]; ok {
		return true, nil
	}
	return f.isDir(path), nil
}

func (f *fakeBackend) IsDir(ctx context.Context, path string) (bool, error) {
	f.count("is_dir")
	if _, ok := f.files[path]; ok {
		return false, nil
	}
	return f.isDir(path), nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func copyMap(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// limitedFake adds a per-chunk write bound, like the blob backend.
type limitedFake struct {
	*fakeBackend
	limit int64
}

func (l *limitedFake) ChunkLimit() int64 { return l.limit }

// newTestDir builds a root directory entity over b without touching any
// real service.
func newTestDir(b backend.Storage, opts *Options) *Dir {
	o := opts.orDefault()
	r := newResource(b, "fake", "fake://root/", true, o, true)
	return &Dir{res: r, owns: true}
}
