/*
Package cache implements the invalidatable, path-keyed cache shared by a
resource tree's entities.

The cache is a tree of directory nodes mirroring the structure of the
backing store. Each node tracks how completely its listing has been
observed:

	NotTraversed          → nothing trustworthy is known
	TopLevelTraversed     → the immediate children are fully known
	RecursivelyTraversed  → the entire subtree is fully known

A non-recursive query may be served from either traversed state; a
recursive query only from a recursively traversed node. Aggregate queries
(directory size) additionally require a cached size for every file they
would sum; partial sums are reported as misses, never silently
undercounted.

File entries cache size and metadata independently of listings, which is
what lets per-file lookups warm a later directory-level aggregate query.

The cache never expires entries on its own; Purge drops the whole tree.
*/
package cache
