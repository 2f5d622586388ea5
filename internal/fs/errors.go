// Package fs implements the passfs state machine: it resolves kernel
// inode and handle numbers through the tables in package state, performs
// the matching I/O against the source tree, and translates the results.
//
// This file contains error types and error handling utilities.
package fs

import (
	"errors"
	"fmt"
	"syscall"

	"passfs/internal/logging"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrNotFound indicates an inode or path that does not resolve
	ErrNotFound = errors.New("no such entry")

	// ErrBadHandle indicates a handle absent from the relevant open table
	ErrBadHandle = errors.New("bad handle")

	// ErrInvalidArgument indicates a malformed request, such as a negative offset
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrReadOnly indicates attempt to modify read-only filesystem
	ErrReadOnly = errors.New("filesystem is read-only")

	// ErrUnsupported indicates an operation passfs deliberately refuses
	ErrUnsupported = errors.New("operation not permitted")
)

// Error wraps filesystem errors with context about the operation and
// affected path to provide more detailed error information.
type Error struct {
	Op   string // Operation that failed (e.g., "lookup", "readdir")
	Path string // Affected source path, relative to the root
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given operation, path, and underlying error
func NewError(op string, path string, err error) *Error {
	return &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// ToErrno converts an error returned by a FileSystem operation into the
// errno reported to the kernel. Native failures keep their own errno;
// anything unrecognised becomes EIO.
func ToErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, ErrBadHandle):
		return syscall.EBADF
	case errors.Is(err, ErrInvalidArgument):
		return syscall.EINVAL
	case errors.Is(err, ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, ErrUnsupported):
		return syscall.EPERM
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return errno
	}

	errLogger.Debug("Unknown error type, returning EIO: %v", err)
	return syscall.EIO
}

// isNotFound reports whether err means the source path no longer exists.
func isNotFound(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, ErrNotFound)
}

// Common operation names for consistent logging and error reporting
const (
	OpGetattr    = "getattr"
	OpLookup     = "lookup"
	OpOpendir    = "opendir"
	OpReaddir    = "readdir"
	OpReleasedir = "releasedir"
	OpOpen       = "open"
	OpRead       = "read"
	OpRelease    = "release"
	OpReadlink   = "readlink"
	OpCreate     = "create"
	OpSetattr    = "setattr"
	OpSetxattr   = "setxattr"
	OpStatfs     = "statfs"
)
