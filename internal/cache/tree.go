package cache

import (
	"sort"

	"github.com/driftfs/driftfs/internal/pathkit"
	"github.com/driftfs/driftfs/pkg/types"
)

// Traversal records how completely a directory's listing has been
// observed. A directory whose listing was only fetched top-level must not
// satisfy a recursive request.
type Traversal int

const (
	NotTraversed Traversal = iota
	TopLevelTraversed
	RecursivelyTraversed
)

// Tree is the path-keyed cache shared by one resource tree. Keys are
// normalized paths relative to the cache's owning root; the empty string
// is a valid key denoting the root itself.
//
// The tree is purely an optimization: a miss means the caller goes to the
// backend, and no tree operation can fail.
type Tree struct {
	root *node
}

type node struct {
	state Traversal
	files map[string]*fileEntry
	dirs  map[string]*node
}

type fileEntry struct {
	size     int64
	hasSize  bool
	metadata map[string]string
}

func newNode() *node {
	return &node{
		files: make(map[string]*fileEntry),
		dirs:  make(map[string]*node),
	}
}

// New creates an empty cache tree.
func New() *Tree {
	return &Tree{root: newNode()}
}

// Purge discards everything. Valid on an empty tree.
func (t *Tree) Purge() {
	t.root = newNode()
}

// lookupDir returns the node for a normalized directory path, or nil.
func (t *Tree) lookupDir(path string) *node {
	n := t.root
	for _, seg := range pathkit.Split(path) {
		next, ok := n.dirs[seg]
		if !ok {
			return nil
		}
		n = next
	}
	return n
}

// ensureDir returns the node for path, creating intermediate nodes as
// needed. Created nodes start NotTraversed.
func (t *Tree) ensureDir(path string) *node {
	n := t.root
	for _, seg := range pathkit.Split(path) {
		next, ok := n.dirs[seg]
		if !ok {
			next = newNode()
			n.dirs[seg] = next
		}
		n = next
	}
	return n
}

// ensureFile returns the file entry for path, creating it and any
// intermediate directory nodes as needed.
func (t *Tree) ensureFile(path string) *fileEntry {
	dir := t.ensureDir(pathkit.Parent(path))
	name := pathkit.Base(path)
	fe, ok := dir.files[name]
	if !ok {
		fe = &fileEntry{}
		dir.files[name] = fe
	}
	return fe
}

func (t *Tree) lookupFile(path string) *fileEntry {
	dir := t.lookupDir(pathkit.Parent(path))
	if dir == nil {
		return nil
	}
	return dir.files[pathkit.Base(path)]
}

// Size returns the cached size of a file, if known.
func (t *Tree) Size(path string) (int64, bool) {
	fe := t.lookupFile(path)
	if fe == nil || !fe.hasSize {
		return 0, false
	}
	return fe.size, true
}

// StoreSize caches a file's size, creating the entry if absent.
func (t *Tree) StoreSize(path string, size int64) {
	fe := t.ensureFile(path)
	fe.size = size
	fe.hasSize = true
}

// Metadata returns a copy of the cached metadata of a file, if known.
func (t *Tree) Metadata(path string) (map[string]string, bool) {
	fe := t.lookupFile(path)
	if fe == nil || fe.metadata == nil {
		return nil, false
	}
	out := make(map[string]string, len(fe.metadata))
	for k, v := range fe.metadata {
		out[k] = v
	}
	return out, true
}

// StoreMetadata caches a file's metadata, creating the entry if absent.
func (t *Tree) StoreMetadata(path string, md map[string]string) {
	fe := t.ensureFile(path)
	fe.metadata = make(map[string]string, len(md))
	for k, v := range md {
		fe.metadata[k] = v
	}
}

// StoreContents records a directory listing. Entries are relative to
// path. A recursive listing marks the directory and every directory
// reachable through it as recursively traversed, since the listing
// enumerated the entire subtree.
func (t *Tree) StoreContents(path string, entries []types.Entry, recursive bool) {
	n := t.ensureDir(path)
	for _, e := range entries {
		p := pathkit.Join(path, e.Path)
		if e.IsDir {
			t.ensureDir(p)
		} else {
			t.ensureFile(p)
		}
	}
	if recursive {
		markRecursive(n)
	} else if n.state == NotTraversed {
		n.state = TopLevelTraversed
	}
}

func markRecursive(n *node) {
	n.state = RecursivelyTraversed
	for _, d := range n.dirs {
		markRecursive(d)
	}
}

// Contents returns the cached listing of a directory, sorted by path.
// A non-recursive request is satisfied by either completeness state; a
// recursive request only by a recursively traversed node. The boolean is
// false on a miss.
//
// Non-recursive results contain the directory's immediate files and,
// when includeDirs is set, its immediate subdirectories. Recursive
// results contain every descendant file path.
func (t *Tree) Contents(path string, recursive, includeDirs bool) ([]types.Entry, bool) {
	n := t.lookupDir(path)
	if n == nil || n.state == NotTraversed {
		return nil, false
	}
	if recursive && n.state != RecursivelyTraversed {
		return nil, false
	}

	var out []types.Entry
	if recursive {
		collectFiles(n, "", &out)
	} else {
		for name := range n.files {
			out = append(out, types.Entry{Path: name})
		}
		if includeDirs {
			for name := range n.dirs {
				out = append(out, types.Entry{Path: name, IsDir: true})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, true
}

func collectFiles(n *node, prefix string, out *[]types.Entry) {
	for name := range n.files {
		*out = append(*out, types.Entry{Path: pathkit.Join(prefix, name)})
	}
	for name, d := range n.dirs {
		collectFiles(d, pathkit.Join(prefix, name), out)
	}
}

// Count returns the cached item count of a directory. Non-recursive
// counts immediate files and subdirectories; recursive counts descendant
// files only. Misses under the same completeness rules as Contents.
func (t *Tree) Count(path string, recursive bool) (int, bool) {
	entries, ok := t.Contents(path, recursive, !recursive)
	if !ok {
		return 0, false
	}
	return len(entries), true
}

// AggregateSize sums the cached sizes of a directory's files. The sum is
// only trustworthy when the listing completeness covers the requested
// depth and every file involved has a cached size; a single uncached
// size is a miss rather than an undercount.
//
// Individually cached file sizes warm this aggregate: fetching each
// file's size one by one makes a later directory size query answerable
// from cache, provided the listing itself is known complete.
func (t *Tree) AggregateSize(path string, recursive bool) (int64, bool) {
	n := t.lookupDir(path)
	if n == nil || n.state == NotTraversed {
		return 0, false
	}
	if recursive && n.state != RecursivelyTraversed {
		return 0, false
	}
	return sumSizes(n, recursive)
}

func sumSizes(n *node, recursive bool) (int64, bool) {
	var total int64
	for _, fe := range n.files {
		if !fe.hasSize {
			return 0, false
		}
		total += fe.size
	}
	if recursive {
		for _, d := range n.dirs {
			sub, ok := sumSizes(d, true)
			if !ok {
				return 0, false
			}
			total += sub
		}
	}
	return total, true
}

// KnownFile reports whether the cache has any entry for the file path,
// regardless of what has been cached for it.
func (t *Tree) KnownFile(path string) bool {
	return t.lookupFile(path) != nil
}

// KnownDir reports whether the cache has a node for the directory path.
// The root path always has a node, so the empty key never reads as
// absent.
func (t *Tree) KnownDir(path string) bool {
	return t.lookupDir(path) != nil
}

// State returns the traversal state recorded for a directory path.
func (t *Tree) State(path string) Traversal {
	n := t.lookupDir(path)
	if n == nil {
		return NotTraversed
	}
	return n.state
}
