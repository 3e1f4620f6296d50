package storage

import (
	"context"
	"io"

	"github.com/driftfs/driftfs/internal/backend"
	"github.com/driftfs/driftfs/internal/pathkit"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/retry"
	"github.com/driftfs/driftfs/pkg/types"
)

// TransferOptions configures a transfer. The zero value copies
// top-level files only, refuses to overwrite, streams without chunking,
// and carries no metadata.
type TransferOptions struct {
	// Recursive transfers the whole subtree of a directory source,
	// recreating its layout under the destination.
	Recursive bool

	// Overwrite allows replacing files that already exist at the
	// destination. Without it an existing destination fails that item.
	Overwrite bool

	// ChunkSize bounds the size of each source read. Zero streams each
	// file in a single pass. Negative values are rejected, as are sizes
	// above the destination service's per-chunk bound.
	ChunkSize int64

	// IncludeMetadata carries each file's metadata to the destination:
	// the metadata assigned in the source tree's store if any, otherwise
	// the source backend's service-side metadata.
	IncludeMetadata bool

	// Filter, when set, is consulted per file; returning false skips the
	// file without failing the transfer.
	Filter func(types.FileInfo) bool

	// Retry, when set, retries each item's copy on transient backend
	// failures. An item fails only after its attempts are exhausted.
	Retry *retry.Config
}

// TransferTo copies this file into dst under its own name. The returned
// error covers validation only; a per-item failure is reported in the
// report with the transfer call itself succeeding.
func (f *File) TransferTo(ctx context.Context, dst *Dir, opts TransferOptions) (*types.TransferReport, error) {
	if err := validateTransfer(f.res, dst, opts); err != nil {
		return nil, err
	}
	report := &types.TransferReport{}
	report.Items = append(report.Items, transferOne(ctx, f.res, f.path, f.Name(), dst, opts))
	return report, nil
}

// TransferTo copies this directory's files into dst, preserving their
// paths relative to this directory. Items are processed in sorted path
// order; one item's failure does not stop the rest. The returned error
// covers validation and source listing only.
func (d *Dir) TransferTo(ctx context.Context, dst *Dir, opts TransferOptions) (*types.TransferReport, error) {
	if err := validateTransfer(d.res, dst, opts); err != nil {
		return nil, err
	}
	entries, err := d.contents(ctx, opts.Recursive, false)
	if err != nil {
		return nil, err
	}
	report := &types.TransferReport{}
	for _, e := range entries {
		src := pathkit.Join(d.path, e.Path)
		report.Items = append(report.Items, transferOne(ctx, d.res, src, e.Path, dst, opts))
	}
	return report, nil
}

func validateTransfer(src *resource, dst *Dir, opts TransferOptions) error {
	if err := src.guard(); err != nil {
		return err
	}
	if err := dst.res.guard(); err != nil {
		return err
	}
	if opts.ChunkSize < 0 {
		return dferr.InvalidChunkSize(opts.ChunkSize)
	}
	if opts.ChunkSize > 0 {
		if lim, ok := dst.res.backend.(backend.ChunkLimiter); ok && opts.ChunkSize > lim.ChunkLimit() {
			return dferr.InvalidChunkSize(opts.ChunkSize)
		}
	}
	return nil
}

// transferOne moves a single file and reports its outcome. srcPath is
// the file's path in the source tree; rel is its path relative to the
// transfer source, reused under the destination.
func transferOne(ctx context.Context, src *resource, srcPath, rel string, dst *Dir, opts TransferOptions) types.TransferItem {
	item := types.TransferItem{Path: rel}
	fail := func(err error) types.TransferItem {
		item.Status = types.TransferFailed
		item.Err = err
		src.metrics.RecordTransfer(item.Status.String(), 0)
		if src.logger != nil {
			src.logger.Warn("transfer failed", "path", rel, "error", err)
		}
		return item
	}

	if opts.Filter != nil {
		size, err := src.fileSize(ctx, srcPath)
		if err != nil {
			return fail(err)
		}
		info := types.FileInfo{Path: rel, Size: size, Metadata: src.meta.Snapshot(srcPath)}
		if !opts.Filter(info) {
			item.Status = types.TransferSkipped
			src.metrics.RecordTransfer(item.Status.String(), 0)
			if src.logger != nil {
				src.logger.Debug("transfer skipped by filter", "path", rel)
			}
			return item
		}
	}

	dstPath := pathkit.Join(dst.path, rel)
	if !opts.Overwrite {
		exists, err := dst.res.backend.Exists(ctx, dstPath)
		dst.res.record("exists", err)
		if err != nil {
			return fail(err)
		}
		if exists {
			return fail(dferr.DestinationExists(dstPath))
		}
	}

	var md map[string]string
	if opts.IncludeMetadata {
		if src.meta.Has(srcPath) {
			md = src.meta.Snapshot(srcPath)
		} else {
			var err error
			md, err = src.fetchMetadata(ctx, srcPath)
			if err != nil {
				return fail(err)
			}
		}
	}

	// Each attempt restarts the copy from the beginning; a source stream
	// consumed by a failed write cannot be reused.
	var counted *countingReader
	copyOnce := func(ctx context.Context) error {
		var reader io.Reader
		if opts.ChunkSize > 0 {
			reader = &chunkedReader{ctx: ctx, res: src, path: srcPath, chunk: opts.ChunkSize}
		} else {
			rc, err := src.backend.Open(ctx, srcPath)
			src.record("open", err)
			if err != nil {
				return err
			}
			defer rc.Close()
			reader = rc
		}
		counted = &countingReader{r: reader}
		err := dst.res.backend.Write(ctx, dstPath, counted, md)
		dst.res.record("write", err)
		return err
	}

	var err error
	if opts.Retry != nil {
		err = retry.New(*opts.Retry).Do(ctx, copyOnce)
	} else {
		err = copyOnce(ctx)
	}
	if err != nil {
		return fail(err)
	}

	item.Status = types.TransferOK
	item.Bytes = counted.n
	src.metrics.RecordTransfer(item.Status.String(), item.Bytes)
	if src.logger != nil {
		src.logger.Info("transferred", "path", rel, "bytes", item.Bytes, "dest", dst.URI())
	}
	return item
}

// chunkedReader adapts bounded range reads into an io.Reader, so the
// destination backend streams without the source ever buffering more
// than one chunk.
type chunkedReader struct {
	ctx   context.Context
	res   *resource
	path  string
	chunk int64

	off int64
	buf []byte
	eof bool
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.buf) == 0 {
		if c.eof {
			return 0, io.EOF
		}
		data, err := c.res.backend.ReadRange(c.ctx, c.path, c.off, c.chunk)
		c.res.record("read_range", err)
		if err != nil {
			return 0, err
		}
		if int64(len(data)) < c.chunk {
			c.eof = true
		}
		if len(data) == 0 {
			return 0, io.EOF
		}
		c.off += int64(len(data))
		c.buf = data
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
