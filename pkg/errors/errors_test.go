package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := NewPath(CodeFileNotFound, "file not found", "a/b.txt")
	assert.Contains(t, err.Error(), `"a/b.txt"`)
	assert.Contains(t, err.Error(), string(CodeFileNotFound))

	wrapped := WrapPath(CodeBackend, "reading file", "a.txt", fmt.Errorf("boom"))
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(CodeBackend, "listing", cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsMatchesByCode(t *testing.T) {
	err := FileNotFound("a.txt")
	assert.True(t, stderrors.Is(err, FileNotFound("other.txt")))
	assert.False(t, stderrors.Is(err, DirNotFound("a.txt")))
}

func TestCategories(t *testing.T) {
	tests := []struct {
		err  *Error
		want Category
	}{
		{InvalidPath("../x"), CategoryValidation},
		{FileNotFound("a"), CategoryValidation},
		{NotADirectory("a"), CategoryValidation},
		{InvalidChunkSize(-1), CategoryValidation},
		{NewPath(CodeBucketNotFound, "bucket not found", "b"), CategoryExistence},
		{NewPath(CodeQueueNotFound, "queue not found", "q"), CategoryExistence},
		{DestinationExists("a"), CategoryConflict},
		{ResourceClosed(), CategoryResource},
		{Wrap(CodeBackend, "io", fmt.Errorf("x")), CategoryBackend},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Category(), "code %s", tt.err.Code)
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeFileNotFound, CodeOf(FileNotFound("a")))
	assert.Equal(t, CodeBackend, CodeOf(fmt.Errorf("plain")))

	// Wrapped structured errors are still visible through fmt wrapping.
	err := fmt.Errorf("outer: %w", ResourceClosed())
	assert.Equal(t, CodeResourceClosed, CodeOf(err))
	assert.True(t, HasCode(err, CodeResourceClosed))
}

func TestHasCode(t *testing.T) {
	require.True(t, HasCode(InvalidChunkSize(0), CodeInvalidChunkSize))
	require.False(t, HasCode(fmt.Errorf("plain"), CodeInvalidChunkSize))
}
