package types

// Entry describes a single item discovered by a storage backend listing.
// Path is relative to the listed directory and always slash-separated.
type Entry struct {
	Path  string
	IsDir bool
}

// FileInfo carries the identifying attributes of a file as seen by the
// transfer engine. It is handed to user-supplied filter predicates.
type FileInfo struct {
	// Path is the file's path relative to the transferred directory.
	Path string
	// Size is the file's size in bytes.
	Size int64
	// Metadata is the file's currently assigned metadata mapping.
	// It may be empty if none has been assigned or loaded.
	Metadata map[string]string
}

// Message is a single queue message as delivered by a queue backend.
type Message struct {
	// ID is the backend-assigned message identifier.
	ID string
	// Body is the opaque text payload.
	Body string
	// Receipt is the backend-assigned deletion token for this delivery.
	Receipt string
	// ReceiveCount is how many times the backend has handed out this
	// message, when the backend reports it. Zero if unknown.
	ReceiveCount int
}

// TransferStatus is the per-item outcome of a transfer.
type TransferStatus int

const (
	// TransferOK indicates the item's bytes (and metadata, if requested)
	// reached the destination.
	TransferOK TransferStatus = iota
	// TransferSkipped indicates the item was excluded by a filter.
	TransferSkipped
	// TransferFailed indicates the item could not be transferred. The
	// remaining items of a multi-item transfer are unaffected.
	TransferFailed
)

func (s TransferStatus) String() string {
	switch s {
	case TransferOK:
		return "ok"
	case TransferSkipped:
		return "skipped"
	case TransferFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferItem records the outcome of one file within a transfer.
type TransferItem struct {
	// Path is the file's path relative to the transfer source.
	Path string
	// Status is the item's outcome.
	Status TransferStatus
	// Bytes is the number of payload bytes written for this item.
	Bytes int64
	// Err holds the failure cause when Status is TransferFailed.
	Err error
}

// TransferReport aggregates the per-item outcomes of a transfer call.
type TransferReport struct {
	Items []TransferItem
}

// OK reports whether no item failed. Skipped items do not count as
// failures.
func (r *TransferReport) OK() bool {
	for _, it := range r.Items {
		if it.Status == TransferFailed {
			return false
		}
	}
	return true
}

// Transferred returns the number of items that completed successfully.
func (r *TransferReport) Transferred() int {
	n := 0
	for _, it := range r.Items {
		if it.Status == TransferOK {
			n++
		}
	}
	return n
}

// Failed returns the items that could not be transferred.
func (r *TransferReport) Failed() []TransferItem {
	var out []TransferItem
	for _, it := range r.Items {
		if it.Status == TransferFailed {
			out = append(out, it)
		}
	}
	return out
}
