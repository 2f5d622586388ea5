// Package source gives openat-style access to the directory tree being
// exposed. Every path handed to a Directory is relative to it, and
// resolution never leaves the directory the descriptor was opened on.
package source

import (
	"os"
	"path/filepath"
	"strings"

	"passfs/internal/logging"

	"golang.org/x/sys/unix"
)

var (
	sourceLogger = logging.GetLogger().WithPrefix("source")
)

// Directory is an open directory descriptor used as the base of all
// relative path resolution. It is released exactly once by Close.
type Directory struct {
	fd   int
	name string
	// beneath is set when openat2 with RESOLVE_BENEATH is available.
	// Otherwise paths are walked one component at a time.
	beneath bool
}

// OpenRoot opens the directory at path as the root of a source tree and
// checks once whether openat2 can be used below it.
func OpenRoot(path string) (*Directory, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	d := &Directory{fd: fd, name: path, beneath: openat2Supported(fd)}
	if !d.beneath {
		sourceLogger.Warn("openat2 is not available, resolving %q one component at a time", path)
	}
	sourceLogger.Debug("Opened source root %q (fd %d)", path, fd)
	return d, nil
}

// openat2Supported opens "." below fd with openat2. ENOSYS comes from
// kernels before 5.6 and EPERM from seccomp profiles that predate it.
func openat2Supported(fd int) bool {
	how := unix.OpenHow{
		Flags:   unix.O_PATH | unix.O_DIRECTORY | unix.O_CLOEXEC,
		Resolve: unix.RESOLVE_BENEATH,
	}
	pfd, err := unix.Openat2(fd, ".", &how)
	if err != nil {
		sourceLogger.Debug("openat2 probe failed: %v", err)
		return false
	}
	unix.Close(pfd)
	return true
}

// Name returns the path the directory was opened with, for diagnostics.
func (d *Directory) Name() string {
	return d.name
}

// relative maps the empty path, which names the directory itself, to ".".
func relative(path string) string {
	if path == "" {
		return "."
	}
	return path
}

// openat opens path relative to d. Neither ".." nor a symlink in any
// component may resolve outside of d.
func (d *Directory) openat(path string, flags int) (int, error) {
	path = relative(path)
	flags |= unix.O_CLOEXEC
	if d.beneath {
		how := unix.OpenHow{
			Flags:   uint64(flags),
			Resolve: unix.RESOLVE_BENEATH | unix.RESOLVE_NO_MAGICLINKS,
		}
		return unix.Openat2(d.fd, path, &how)
	}
	return d.walk(path, flags)
}

// walk resolves path with plain openat, opening each intermediate
// directory with O_NOFOLLOW so that a symlink anywhere in path fails
// instead of being followed. The last component is opened with flags.
func (d *Directory) walk(path string, flags int) (int, error) {
	var components []string
	for _, component := range strings.Split(path, "/") {
		switch component {
		case "", ".":
		case "..":
			return -1, unix.EXDEV
		default:
			components = append(components, component)
		}
	}
	if len(components) == 0 {
		return unix.Openat(d.fd, ".", flags, 0)
	}

	dirfd := d.fd
	defer func() {
		if dirfd != d.fd {
			unix.Close(dirfd)
		}
	}()
	last := len(components) - 1
	for _, component := range components[:last] {
		fd, err := unix.Openat(dirfd, component, unix.O_PATH|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
		if err != nil {
			return -1, err
		}
		if dirfd != d.fd {
			unix.Close(dirfd)
		}
		dirfd = fd
	}
	return unix.Openat(dirfd, components[last], flags|unix.O_NOFOLLOW, 0)
}

// withParent runs fn against the directory containing path and the final
// component of path.
func (d *Directory) withParent(path string, fn func(dirfd int, name string) error) error {
	if path == "" {
		return fn(d.fd, ".")
	}
	parent, name := filepath.Split(path)
	parent = strings.TrimSuffix(parent, "/")
	if parent == "" {
		return fn(d.fd, name)
	}
	pfd, err := d.openat(parent, unix.O_PATH|unix.O_DIRECTORY|unix.O_NOFOLLOW)
	if err != nil {
		return err
	}
	defer unix.Close(pfd)
	return fn(pfd, name)
}

// Stat returns the status of path without following a trailing symlink.
func (d *Directory) Stat(path string) (*unix.Stat_t, error) {
	var st unix.Stat_t
	err := d.withParent(path, func(dirfd int, name string) error {
		return unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW)
	})
	if err != nil {
		return nil, &os.PathError{Op: "fstatat", Path: relative(path), Err: err}
	}
	return &st, nil
}

// OpenDirectory opens the subdirectory at path.
func (d *Directory) OpenDirectory(path string) (*Directory, error) {
	fd, err := d.openat(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: relative(path), Err: err}
	}
	return &Directory{fd: fd, name: filepath.Join(d.name, path), beneath: d.beneath}, nil
}

// OpenFile opens the file at path for reading.
func (d *Directory) OpenFile(path string) (*os.File, error) {
	fd, err := d.openat(path, unix.O_RDONLY|unix.O_NOFOLLOW)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: relative(path), Err: err}
	}
	return os.NewFile(uintptr(fd), filepath.Join(d.name, path)), nil
}

// ReadLink returns the target of the symlink at path.
func (d *Directory) ReadLink(path string) (string, error) {
	var target string
	err := d.withParent(path, func(dirfd int, name string) error {
		for size := 256; ; size *= 2 {
			buf := make([]byte, size)
			n, err := unix.Readlinkat(dirfd, name, buf)
			if err != nil {
				return err
			}
			if n < size {
				target = string(buf[:n])
				return nil
			}
		}
	})
	if err != nil {
		return "", &os.PathError{Op: "readlinkat", Path: relative(path), Err: err}
	}
	return target, nil
}

// List returns a stream over the entries of d, positioned at the start.
// The stream has its own descriptor and must be closed separately.
func (d *Directory) List() (*Stream, error) {
	fd, err := d.openat(".", unix.O_RDONLY|unix.O_DIRECTORY)
	if err != nil {
		return nil, &os.PathError{Op: "openat", Path: d.name, Err: err}
	}
	return &Stream{file: os.NewFile(uintptr(fd), d.name)}, nil
}

// Close releases the descriptor.
func (d *Directory) Close() error {
	if d.fd < 0 {
		return os.ErrClosed
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return &os.PathError{Op: "close", Path: d.name, Err: err}
	}
	return nil
}
