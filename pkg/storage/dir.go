package storage

import (
	"context"
	"sort"

	"github.com/driftfs/driftfs/internal/pathkit"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Dir is a handle on a directory within a resource tree. A Dir obtained
// from a constructor owns the tree's backend session; a Dir spawned
// through GetSubdir shares its parent's session and its Close is a
// no-op.
type Dir struct {
	res  *resource
	path string
	owns bool
}

// Path returns the directory's path relative to the resource root. The
// root directory's path is the empty string.
func (d *Dir) Path() string { return d.path }

// Name returns the directory's final path segment, or the empty string
// for the root.
func (d *Dir) Name() string { return pathkit.Base(d.path) }

// URI returns the scheme-qualified location of the directory.
func (d *Dir) URI() string { return d.res.uriBase + d.path }

// Close releases the backend session when this handle owns it. Closing
// a spawned handle does nothing; closing twice does nothing.
func (d *Dir) Close() error {
	if !d.owns {
		return nil
	}
	return d.res.close()
}

// Purge discards every cached listing, size, and metadata record of the
// resource tree. Valid, and a no-op, when caching is disabled.
func (d *Dir) Purge() {
	if d.res.cache != nil {
		d.res.cache.Purge()
	}
}

// resolve normalizes a user-supplied path relative to this directory
// and returns the tree-relative result.
func (d *Dir) resolve(rel string) (string, error) {
	n, err := pathkit.Normalize(rel)
	if err != nil {
		return "", err
	}
	return pathkit.Join(d.path, n), nil
}

// contents lists this directory through the cache. Returned paths are
// relative to the directory.
func (d *Dir) contents(ctx context.Context, recursive, includeDirs bool) ([]types.Entry, error) {
	if d.res.cache != nil {
		if entries, ok := d.res.cache.Contents(d.path, recursive, includeDirs); ok {
			d.res.metrics.RecordCacheHit()
			return entries, nil
		}
		d.res.metrics.RecordCacheMiss()
	}
	entries, err := d.res.backend.ListEntries(ctx, d.path, recursive)
	d.res.record("list", err)
	if err != nil {
		return nil, err
	}
	if d.res.cache != nil {
		d.res.cache.StoreContents(d.path, entries, recursive)
		// Reread through the cache so the result carries the same
		// ordering and filtering a later hit would.
		if cached, ok := d.res.cache.Contents(d.path, recursive, includeDirs); ok {
			return cached, nil
		}
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.IsDir && (!includeDirs || recursive) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Ls lists the directory's contents as paths relative to it, sorted.
// Non-recursive listings include immediate subdirectories with a
// trailing separator; recursive listings enumerate descendant files.
func (d *Dir) Ls(ctx context.Context, recursive bool) ([]string, error) {
	if err := d.res.guard(); err != nil {
		return nil, err
	}
	entries, err := d.contents(ctx, recursive, !recursive)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			names = append(names, e.Path+"/")
		} else {
			names = append(names, e.Path)
		}
	}
	return names, nil
}

// Count returns the number of items in the directory. Non-recursive
// counts immediate files and subdirectories; recursive counts every
// descendant file.
func (d *Dir) Count(ctx context.Context, recursive bool) (int, error) {
	if err := d.res.guard(); err != nil {
		return 0, err
	}
	entries, err := d.contents(ctx, recursive, !recursive)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// GetSize returns the total size in bytes of the directory's files,
// immediate only or across the whole subtree.
func (d *Dir) GetSize(ctx context.Context, recursive bool) (int64, error) {
	if err := d.res.guard(); err != nil {
		return 0, err
	}
	if d.res.cache != nil {
		if total, ok := d.res.cache.AggregateSize(d.path, recursive); ok {
			d.res.metrics.RecordCacheHit()
			return total, nil
		}
		d.res.metrics.RecordCacheMiss()
	}
	entries, err := d.contents(ctx, recursive, false)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		size, err := d.res.fileSize(ctx, pathkit.Join(d.path, e.Path))
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

// PathExists reports whether rel denotes an existing file or directory
// under this directory.
func (d *Dir) PathExists(ctx context.Context, rel string) (bool, error) {
	if err := d.res.guard(); err != nil {
		return false, err
	}
	full, err := d.resolve(rel)
	if err != nil {
		return false, err
	}
	if full == d.path {
		return true, nil
	}
	if d.res.cache != nil {
		// Cache nodes only exist for observed paths, so a hit proves
		// existence. Absence is only provable from a complete parent
		// listing.
		if d.res.cache.KnownFile(full) || d.res.cache.KnownDir(full) {
			d.res.metrics.RecordCacheHit()
			return true, nil
		}
		parent := pathkit.Parent(full)
		if entries, ok := d.res.cache.Contents(parent, false, true); ok {
			d.res.metrics.RecordCacheHit()
			name := pathkit.Base(full)
			for _, e := range entries {
				if e.Path == name {
					return true, nil
				}
			}
			return false, nil
		}
		d.res.metrics.RecordCacheMiss()
	}
	ok, err := d.res.backend.Exists(ctx, full)
	d.res.record("exists", err)
	return ok, err
}

// IsFile reports whether rel denotes an existing file under this
// directory.
func (d *Dir) IsFile(ctx context.Context, rel string) (bool, error) {
	if err := d.res.guard(); err != nil {
		return false, err
	}
	full, err := d.resolve(rel)
	if err != nil {
		return false, err
	}
	if full == d.path {
		return false, nil
	}
	if d.res.cache != nil {
		if d.res.cache.KnownFile(full) {
			d.res.metrics.RecordCacheHit()
			return true, nil
		}
		if entries, ok := d.res.cache.Contents(pathkit.Parent(full), false, true); ok {
			d.res.metrics.RecordCacheHit()
			name := pathkit.Base(full)
			for _, e := range entries {
				if e.Path == name {
					return !e.IsDir, nil
				}
			}
			return false, nil
		}
		d.res.metrics.RecordCacheMiss()
	}
	ok, err := d.res.backend.Exists(ctx, full)
	d.res.record("exists", err)
	if err != nil || !ok {
		return false, err
	}
	isDir, err := d.res.backend.IsDir(ctx, full)
	d.res.record("is_dir", err)
	if err != nil {
		return false, err
	}
	return !isDir, nil
}

// GetFile spawns a handle on the file at rel. The handle shares this
// directory's session, metadata store, and cache.
func (d *Dir) GetFile(ctx context.Context, rel string) (*File, error) {
	if err := d.res.guard(); err != nil {
		return nil, err
	}
	full, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	isFile, err := d.IsFile(ctx, rel)
	if err != nil {
		return nil, err
	}
	if !isFile {
		exists, err := d.PathExists(ctx, rel)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, dferr.NotAFile(full)
		}
		return nil, dferr.FileNotFound(full)
	}
	return &File{res: d.res, path: full}, nil
}

// GetSubdir spawns a handle on the directory at rel. The handle shares
// this directory's session, metadata store, and cache.
func (d *Dir) GetSubdir(ctx context.Context, rel string) (*Dir, error) {
	if err := d.res.guard(); err != nil {
		return nil, err
	}
	full, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	if full == d.path {
		return &Dir{res: d.res, path: full}, nil
	}
	exists, err := d.PathExists(ctx, rel)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, dferr.DirNotFound(full)
	}
	isFile, err := d.IsFile(ctx, rel)
	if err != nil {
		return nil, err
	}
	if isFile {
		return nil, dferr.NotADirectory(full)
	}
	return &Dir{res: d.res, path: full}, nil
}

// GetFiles spawns a handle for every file in the directory, sorted by
// path.
func (d *Dir) GetFiles(ctx context.Context, recursive bool) ([]*File, error) {
	if err := d.res.guard(); err != nil {
		return nil, err
	}
	entries, err := d.contents(ctx, recursive, false)
	if err != nil {
		return nil, err
	}
	files := make([]*File, 0, len(entries))
	for _, e := range entries {
		files = append(files, &File{res: d.res, path: pathkit.Join(d.path, e.Path)})
	}
	return files, nil
}

// GetMetadata returns the metadata currently assigned to the file at
// rel in the tree's shared store. It never contacts the backend for the
// metadata itself; it only validates that rel is a file.
func (d *Dir) GetMetadata(ctx context.Context, rel string) (map[string]string, error) {
	if err := d.res.guard(); err != nil {
		return nil, err
	}
	full, err := d.validateFilePath(ctx, rel)
	if err != nil {
		return nil, err
	}
	return d.res.meta.Snapshot(full), nil
}

// SetMetadata assigns metadata to the file at rel in the tree's shared
// store. A File handle on the same path observes the assignment.
func (d *Dir) SetMetadata(ctx context.Context, rel string, md map[string]string) error {
	if err := d.res.guard(); err != nil {
		return err
	}
	full, err := d.validateFilePath(ctx, rel)
	if err != nil {
		return err
	}
	d.res.meta.Set(full, md)
	return nil
}

// LoadMetadata fetches service-side metadata for every file in the
// directory into the shared store. Backends without object metadata
// make this a no-op.
func (d *Dir) LoadMetadata(ctx context.Context, recursive bool) error {
	if err := d.res.guard(); err != nil {
		return err
	}
	if !d.res.nativeMetadata {
		return nil
	}
	entries, err := d.contents(ctx, recursive, false)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := pathkit.Join(d.path, e.Path)
		md, err := d.res.fetchMetadata(ctx, full)
		if err != nil {
			return err
		}
		d.res.meta.Set(full, md)
	}
	return nil
}

func (d *Dir) validateFilePath(ctx context.Context, rel string) (string, error) {
	full, err := d.resolve(rel)
	if err != nil {
		return "", err
	}
	isFile, err := d.IsFile(ctx, rel)
	if err != nil {
		return "", err
	}
	if !isFile {
		return "", dferr.NotAFile(full)
	}
	return full, nil
}
