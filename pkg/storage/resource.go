package storage

import (
	"context"
	"log/slog"

	"github.com/driftfs/driftfs/internal/backend"
	"github.com/driftfs/driftfs/internal/cache"
	"github.com/driftfs/driftfs/internal/meta"
	"github.com/driftfs/driftfs/internal/metrics"
	dferr "github.com/driftfs/driftfs/pkg/errors"
)

// resource is the shared state of one resource tree: the single backend
// session plus the metadata store and cache that every entity spawned
// from the root references. Spawned entities hold the same *resource,
// never a copy.
type resource struct {
	backend backend.Storage
	// name identifies the backend kind for metrics and URIs.
	name string
	// uriBase is the scheme-qualified location prefix, ending in "/".
	uriBase string
	// nativeMetadata is true for backends with service-side object
	// metadata (the object stores).
	nativeMetadata bool

	meta    *meta.Store
	cache   *cache.Tree // nil when caching is disabled
	metrics *metrics.Collector
	logger  *slog.Logger

	closed bool
}

func (r *resource) guard() error {
	if r.closed {
		return dferr.ResourceClosed()
	}
	return nil
}

// close releases the backend session. Idempotent.
func (r *resource) close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.backend.Close()
}

// record counts one backend capability call.
func (r *resource) record(op string, err error) {
	r.metrics.RecordBackendOp(r.name, op, err)
}

// fileSize resolves a file's size through the cache.
func (r *resource) fileSize(ctx context.Context, path string) (int64, error) {
	if r.cache != nil {
		if size, ok := r.cache.Size(path); ok {
			r.metrics.RecordCacheHit()
			return size, nil
		}
		r.metrics.RecordCacheMiss()
	}
	size, err := r.backend.GetSize(ctx, path)
	r.record("get_size", err)
	if err != nil {
		return 0, err
	}
	if r.cache != nil {
		r.cache.StoreSize(path, size)
	}
	return size, nil
}

// fetchMetadata resolves a file's service-side metadata through the
// cache.
func (r *resource) fetchMetadata(ctx context.Context, path string) (map[string]string, error) {
	if r.cache != nil {
		if md, ok := r.cache.Metadata(path); ok {
			r.metrics.RecordCacheHit()
			return md, nil
		}
		r.metrics.RecordCacheMiss()
	}
	md, err := r.backend.GetMetadata(ctx, path)
	r.record("get_metadata", err)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.StoreMetadata(path, md)
	}
	return md, nil
}
