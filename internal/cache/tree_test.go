package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftfs/driftfs/pkg/types"
)

func entries(paths ...string) []types.Entry {
	out := make([]types.Entry, 0, len(paths))
	for _, p := range paths {
		e := types.Entry{Path: p}
		if p[len(p)-1] == '/' {
			e.Path = p[:len(p)-1]
			e.IsDir = true
		}
		out = append(out, e)
	}
	return out
}

func TestContentsMissWhenNotTraversed(t *testing.T) {
	tr := New()
	_, ok := tr.Contents("", false, true)
	assert.False(t, ok)
	_, ok = tr.Contents("sub", true, false)
	assert.False(t, ok)
}

func TestTopLevelListingDoesNotServeRecursive(t *testing.T) {
	tr := New()
	tr.StoreContents("", entries("a.txt", "sub/"), false)

	got, ok := tr.Contents("", false, true)
	require.True(t, ok)
	assert.Len(t, got, 2)

	_, ok = tr.Contents("", true, false)
	assert.False(t, ok, "top-level completeness must not satisfy a recursive read")
}

func TestRecursiveListingMarksSubtree(t *testing.T) {
	tr := New()
	tr.StoreContents("", entries("a.txt", "sub/x.txt", "sub/deep/y.txt"), true)

	assert.Equal(t, RecursivelyTraversed, tr.State(""))
	assert.Equal(t, RecursivelyTraversed, tr.State("sub"))
	assert.Equal(t, RecursivelyTraversed, tr.State("sub/deep"))

	got, ok := tr.Contents("sub", true, false)
	require.True(t, ok)
	assert.Equal(t, []types.Entry{{Path: "deep/y.txt"}, {Path: "x.txt"}}, got)
}

func TestCountSemantics(t *testing.T) {
	tr := New()
	// Top level: one file and one subdir; the subdir holds two files.
	tr.StoreContents("", entries("a.txt", "sub/", "sub/x.txt", "sub/y.txt"), true)

	n, ok := tr.Count("", false)
	require.True(t, ok)
	assert.Equal(t, 2, n, "non-recursive counts files and subdirs")

	n, ok = tr.Count("", true)
	require.True(t, ok)
	assert.Equal(t, 3, n, "recursive counts descendant files only")

	n, ok = tr.Count("sub", true)
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestCountEmptyDirRecursive(t *testing.T) {
	tr := New()
	tr.StoreContents("", entries("empty/"), true)

	n, ok := tr.Count("", false)
	require.True(t, ok)
	assert.Equal(t, 1, n)

	n, ok = tr.Count("", true)
	require.True(t, ok)
	assert.Equal(t, 0, n)
}

func TestSizeRoundTrip(t *testing.T) {
	tr := New()
	_, ok := tr.Size("a.txt")
	assert.False(t, ok)

	tr.StoreSize("a.txt", 42)
	size, ok := tr.Size("a.txt")
	require.True(t, ok)
	assert.Equal(t, int64(42), size)
}

func TestAggregateSizeConservative(t *testing.T) {
	tr := New()
	tr.StoreContents("", entries("a.txt", "b.txt"), false)
	tr.StoreSize("a.txt", 10)

	// One file's size is unknown: the aggregate must miss, not
	// undercount.
	_, ok := tr.AggregateSize("", false)
	assert.False(t, ok)

	tr.StoreSize("b.txt", 5)
	total, ok := tr.AggregateSize("", false)
	require.True(t, ok)
	assert.Equal(t, int64(15), total)
}

func TestAggregateSizeWarmedByIndividualFetches(t *testing.T) {
	tr := New()
	tr.StoreContents("", entries("sub/", "sub/x.txt", "a.txt"), true)
	tr.StoreSize("a.txt", 1)
	tr.StoreSize("sub/x.txt", 2)

	total, ok := tr.AggregateSize("", true)
	require.True(t, ok)
	assert.Equal(t, int64(3), total)

	// Top-level aggregate excludes the subtree.
	total, ok = tr.AggregateSize("", false)
	require.True(t, ok)
	assert.Equal(t, int64(1), total)
}

func TestAggregateSizeMissesWithoutListing(t *testing.T) {
	tr := New()
	tr.StoreSize("a.txt", 10)
	// A cached size alone cannot prove the listing is complete.
	_, ok := tr.AggregateSize("", false)
	assert.False(t, ok)
}

func TestMetadataRoundTrip(t *testing.T) {
	tr := New()
	_, ok := tr.Metadata("a.txt")
	assert.False(t, ok)

	tr.StoreMetadata("a.txt", map[string]string{"k": "v"})
	md, ok := tr.Metadata("a.txt")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"k": "v"}, md)

	// The returned mapping is a copy.
	md["k"] = "changed"
	md2, _ := tr.Metadata("a.txt")
	assert.Equal(t, "v", md2["k"])
}

func TestPurge(t *testing.T) {
	tr := New()
	tr.StoreContents("", entries("a.txt"), false)
	tr.StoreSize("a.txt", 42)

	tr.Purge()
	_, ok := tr.Contents("", false, true)
	assert.False(t, ok)
	_, ok = tr.Size("a.txt")
	assert.False(t, ok)

	// Purging an empty tree is valid.
	tr.Purge()
}

func TestRootIsAValidKey(t *testing.T) {
	tr := New()
	assert.True(t, tr.KnownDir(""))
	assert.Equal(t, NotTraversed, tr.State(""))

	tr.StoreContents("", nil, false)
	assert.Equal(t, TopLevelTraversed, tr.State(""))
	got, ok := tr.Contents("", false, true)
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestKnownFileKnownDir(t *testing.T) {
	tr := New()
	assert.False(t, tr.KnownFile("a.txt"))
	assert.False(t, tr.KnownDir("sub"))

	tr.StoreContents("", entries("a.txt", "sub/"), false)
	assert.True(t, tr.KnownFile("a.txt"))
	assert.True(t, tr.KnownDir("sub"))
	assert.False(t, tr.KnownFile("sub"))
}
