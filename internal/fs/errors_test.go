package fs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{"nil", nil, 0},
		{"not found", NewError(OpGetattr, "", ErrNotFound), syscall.ENOENT},
		{"bad handle", NewError(OpRead, "", fmt.Errorf("handle 3: %w", ErrBadHandle)), syscall.EBADF},
		{"invalid", NewError(OpReaddir, "", ErrInvalidArgument), syscall.EINVAL},
		{"read-only", NewError(OpCreate, "x", ErrReadOnly), syscall.EROFS},
		{"unsupported", NewError(OpStatfs, "", ErrUnsupported), syscall.EPERM},
		{"native errno", NewError(OpLookup, "a", syscall.ENOTDIR), syscall.ENOTDIR},
		{"path error", NewError(OpOpen, "a", &os.PathError{Op: "openat", Path: "a", Err: syscall.EACCES}), syscall.EACCES},
		{"unknown", errors.New("boom"), syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToErrno(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewError(OpLookup, "dir/file", syscall.ENOENT)
	assert.Equal(t, "operation lookup on dir/file failed: no such file or directory", err.Error())

	err = NewError(OpRead, "", ErrBadHandle)
	assert.Equal(t, "operation read failed: bad handle", err.Error())
	assert.True(t, errors.Is(err, ErrBadHandle))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&os.PathError{Op: "fstatat", Path: "x", Err: syscall.ENOENT}))
	assert.True(t, isNotFound(ErrNotFound))
	assert.False(t, isNotFound(syscall.EACCES))
}
