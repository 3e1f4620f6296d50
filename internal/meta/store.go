// Package meta implements the in-memory metadata store shared by a root
// entity and every entity spawned from it. A file handle and its parent
// directory address the same backing entry, so a write through either is
// immediately visible through the other.
//
// The store performs no locking: driftfs assumes single-threaded use of a
// resource tree, matching the synchronous call model of the entities that
// share it.
package meta

// Store maps normalized storage paths to metadata mappings.
type Store struct {
	entries map[string]map[string]string
}

// NewStore creates an empty metadata store.
func NewStore() *Store {
	return &Store{entries: make(map[string]map[string]string)}
}

// Get returns the metadata assigned to path, creating an empty entry if
// none exists yet. The returned mapping is the live entry; callers that
// need a snapshot must copy it.
func (s *Store) Get(path string) map[string]string {
	if e, ok := s.entries[path]; ok {
		return e
	}
	e := make(map[string]string)
	s.entries[path] = e
	return e
}

// Set replaces the metadata assigned to path with a copy of md.
func (s *Store) Set(path string, md map[string]string) {
	entry := make(map[string]string, len(md))
	for k, v := range md {
		entry[k] = v
	}
	s.entries[path] = entry
}

// Has reports whether metadata has been assigned to path, without
// creating an entry.
func (s *Store) Has(path string) bool {
	e, ok := s.entries[path]
	return ok && len(e) > 0
}

// Snapshot returns a copy of the metadata assigned to path. The copy is
// safe to hand to backends or user code.
func (s *Store) Snapshot(path string) map[string]string {
	e := s.entries[path]
	out := make(map[string]string, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
