// Package backend defines the narrow capability interfaces the driftfs
// core consumes from each concrete storage and queue service. One
// implementation exists per service; the core never touches an SDK
// directly.
package backend

import (
	"context"
	"io"

	"github.com/driftfs/driftfs/pkg/types"
)

// Storage is the capability set a storage service must provide. An
// implementation is rooted at construction (directory path, bucket and
// prefix, container and prefix); every method takes normalized paths
// relative to that root, with "" denoting the root itself.
// Implementations are not safe for concurrent use.
type Storage interface {
	// ListEntries lists the entries under path. Returned paths are
	// relative to path. A recursive listing enumerates every descendant
	// file; it may omit directory entries.
	ListEntries(ctx context.Context, path string, recursive bool) ([]types.Entry, error)

	// GetSize returns the byte size of the file at path.
	GetSize(ctx context.Context, path string) (int64, error)

	// Open returns a stream over the whole file at path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// ReadRange returns length bytes starting at start. A negative
	// length reads to the end of the file.
	ReadRange(ctx context.Context, path string, start, length int64) ([]byte, error)

	// Write stores the stream r at path, replacing any existing object.
	// A non-nil md is attached as object metadata where the service
	// supports it.
	Write(ctx context.Context, path string, r io.Reader, md map[string]string) error

	// GetMetadata fetches the service-side metadata of the file at path.
	// Services without object metadata return an empty mapping.
	GetMetadata(ctx context.Context, path string) (map[string]string, error)

	// SetMetadata replaces the service-side metadata of the file at
	// path. Services without object metadata treat this as a no-op.
	SetMetadata(ctx context.Context, path string, md map[string]string) error

	// Exists reports whether path denotes an existing file or directory.
	Exists(ctx context.Context, path string) (bool, error)

	// IsDir reports whether path denotes a directory (or, for object
	// stores, a key prefix with at least one object under it).
	IsDir(ctx context.Context, path string) (bool, error)

	// Close releases the underlying session. Further calls fail.
	Close() error
}

// ChunkLimiter is an optional capability: a Storage implementation whose
// service bounds the size of a single write chunk exposes the bound here.
// The transfer engine consults it before a chunked transfer.
type ChunkLimiter interface {
	ChunkLimit() int64
}

// Queue is the capability set a queue service must provide.
// Implementations are not safe for concurrent use.
type Queue interface {
	// Name returns the queue's name.
	Name() string

	// Send enqueues one text message.
	Send(ctx context.Context, body string) error

	// Receive fetches up to max currently visible messages, making them
	// invisible for the service's default visibility window.
	Receive(ctx context.Context, max int) ([]types.Message, error)

	// Peek fetches up to max currently visible messages without hiding
	// or deleting them. The service may still count the fetch against
	// each message's receive counter.
	Peek(ctx context.Context, max int) ([]types.Message, error)

	// Delete removes a received message using its deletion receipt.
	Delete(ctx context.Context, msg types.Message) error

	// Close releases the underlying session.
	Close() error
}
