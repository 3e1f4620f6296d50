package storage

import (
	"log/slog"

	"github.com/driftfs/driftfs/internal/metrics"
)

// Options configures entity construction. The zero value disables
// caching, requires the root location to exist, and fetches no metadata
// eagerly.
type Options struct {
	// Cache enables the shared listing/size/metadata cache for the
	// resource tree. Ignored for local entities, which have nothing to
	// save by caching.
	Cache bool

	// CreateIfMissing creates the root directory (local, SFTP) or the
	// bucket/container (object stores) instead of failing construction.
	CreateIfMissing bool

	// LoadMetadata eagerly fetches service-side metadata for every file
	// under the root at construction. Only meaningful for object-store
	// entities.
	LoadMetadata bool

	// Metrics receives instrumentation. Nil disables it.
	Metrics *metrics.Collector

	// Logger receives diagnostics such as per-item transfer outcomes.
	// Nil keeps operations silent.
	Logger *slog.Logger
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return &Options{}
	}
	return o
}
