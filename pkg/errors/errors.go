// Package errors provides the structured error system used across driftfs,
// with error codes and categories covering path validation, resource
// existence, transfer conflicts, and connection state.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// Validation errors. Fatal to the single call that raised them.
	CodePathInvalid      Code = "PATH_INVALID"
	CodeFileNotFound     Code = "FILE_NOT_FOUND"
	CodeDirNotFound      Code = "DIR_NOT_FOUND"
	CodeNotAFile         Code = "NOT_A_FILE"
	CodeNotADirectory    Code = "NOT_A_DIRECTORY"
	CodeInvalidChunkSize Code = "INVALID_CHUNK_SIZE"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"

	// Existence errors. Raised at entity or channel construction.
	CodeBucketNotFound    Code = "BUCKET_NOT_FOUND"
	CodeContainerNotFound Code = "CONTAINER_NOT_FOUND"
	CodeQueueNotFound     Code = "QUEUE_NOT_FOUND"

	// Conflict errors. Isolated per transferred item.
	CodeDestinationExists Code = "DESTINATION_EXISTS"

	// Resource-state errors.
	CodeResourceClosed Code = "RESOURCE_CLOSED"

	// Backend/transport errors, propagated unchanged from the capability
	// interface.
	CodeBackend Code = "BACKEND"
)

// Category groups codes by the way callers are expected to react.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryExistence  Category = "existence"
	CategoryConflict   Category = "conflict"
	CategoryResource   Category = "resource"
	CategoryBackend    Category = "backend"
)

var categories = map[Code]Category{
	CodePathInvalid:       CategoryValidation,
	CodeFileNotFound:      CategoryValidation,
	CodeDirNotFound:       CategoryValidation,
	CodeNotAFile:          CategoryValidation,
	CodeNotADirectory:     CategoryValidation,
	CodeInvalidChunkSize:  CategoryValidation,
	CodeInvalidArgument:   CategoryValidation,
	CodeBucketNotFound:    CategoryExistence,
	CodeContainerNotFound: CategoryExistence,
	CodeQueueNotFound:     CategoryExistence,
	CodeDestinationExists: CategoryConflict,
	CodeResourceClosed:    CategoryResource,
	CodeBackend:           CategoryBackend,
}

// Error is a structured driftfs error.
type Error struct {
	Code    Code
	Message string
	// Path is the storage path or resource name involved, if any.
	Path string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %v", msg, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s [%s]", msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches two structured errors by code, so sentinel-style comparisons
// with errors.Is work against any instance carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Category returns the error's category.
func (e *Error) Category() Category {
	if c, ok := categories[e.Code]; ok {
		return c
	}
	return CategoryBackend
}

// New creates a structured error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewPath creates a structured error tied to a storage path.
func NewPath(code Code, message, path string) *Error {
	return &Error{Code: code, Message: message, Path: path}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapPath attaches a code, message, and storage path to an underlying
// error.
func WrapPath(code Code, message, path string, cause error) *Error {
	return &Error{Code: code, Message: message, Path: path, Cause: cause}
}

// CodeOf extracts the code of err, or CodeBackend if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeBackend
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Convenience constructors for the most common cases.

// InvalidPath reports a malformed or unresolvable path.
func InvalidPath(path string) *Error {
	return NewPath(CodePathInvalid, "invalid path", path)
}

// FileNotFound reports a missing file.
func FileNotFound(path string) *Error {
	return NewPath(CodeFileNotFound, "file not found", path)
}

// DirNotFound reports a missing directory.
func DirNotFound(path string) *Error {
	return NewPath(CodeDirNotFound, "directory not found", path)
}

// NotAFile reports that a path resolves to a directory where a file was
// requested.
func NotAFile(path string) *Error {
	return NewPath(CodeNotAFile, "path is not a file", path)
}

// NotADirectory reports that a path resolves to a file where a directory
// was requested.
func NotADirectory(path string) *Error {
	return NewPath(CodeNotADirectory, "path is not a directory", path)
}

// DestinationExists reports an overwrite conflict for one transferred item.
func DestinationExists(path string) *Error {
	return NewPath(CodeDestinationExists, "destination already exists", path)
}

// ResourceClosed reports an operation on a closed resource tree.
func ResourceClosed() *Error {
	return New(CodeResourceClosed, "operation on closed resource")
}

// InvalidChunkSize reports an unusable transfer chunk size.
func InvalidChunkSize(size int64) *Error {
	return New(CodeInvalidChunkSize, fmt.Sprintf("invalid chunk size %d", size))
}
