package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"passfs/internal/logging"
	"passfs/internal/source"
	"passfs/internal/state"

	"golang.org/x/sys/unix"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

// openDirectory is the resource behind a directory handle: a descriptor
// scoped to the directory, used to stat entries by name, and the stream
// of entry names.
type openDirectory struct {
	path   SourcePath
	dir    *source.Directory
	stream *source.Stream

	// An entry taken from the stream that did not fit in the last reply.
	// It is delivered first by the next call.
	pending    string
	hasPending bool
}

func (od *openDirectory) next() (string, error) {
	if od.hasPending {
		od.hasPending = false
		return od.pending, nil
	}
	return od.stream.Next()
}

func (od *openDirectory) unread(name string) {
	od.pending = name
	od.hasPending = true
}

func (od *openDirectory) rewind() error {
	od.hasPending = false
	return od.stream.Rewind()
}

func (od *openDirectory) close() {
	if err := od.stream.Close(); err != nil {
		vfsLogger.Warn("Failed to close stream of %q: %v", od.path.String(), err)
	}
	if err := od.dir.Close(); err != nil {
		vfsLogger.Warn("Failed to close directory %q: %v", od.path.String(), err)
	}
}

// openFile is the resource behind a file handle.
type openFile struct {
	path SourcePath
	file *os.File
}

func (of *openFile) close() {
	if err := of.file.Close(); err != nil {
		vfsLogger.Warn("Failed to close file %q: %v", of.path.String(), err)
	}
}

// PassFS exposes a source directory read-only. All of its state is
// guarded by a single mutex, so requests are handled one at a time and
// handle numbers are handed out in a deterministic order.
type PassFS struct {
	mu      sync.Mutex
	root    *source.Directory
	inodes  *state.InodeTable
	handles *state.HandleAllocator
	dirs    *state.OpenTable[*openDirectory]
	files   *state.OpenTable[*openFile]
}

var _ FileSystem = (*PassFS)(nil)

// New opens rootPath and returns a filesystem exposing it. Failure to open
// the root is fatal for the mount and is returned as is.
func New(rootPath string) (*PassFS, error) {
	vfsLogger.Info("Creating passthrough filesystem")
	vfsLogger.Debug("Source directory: %s", rootPath)

	root, err := source.OpenRoot(rootPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open passfs root directory %s: %w", rootPath, err)
	}

	return &PassFS{
		root:    root,
		inodes:  state.NewInodeTable(),
		handles: state.NewHandleAllocator(),
		dirs:    state.NewOpenTable[*openDirectory](),
		files:   state.NewOpenTable[*openFile](),
	}, nil
}

// resolveLocked maps ino to its recorded source path.
func (p *PassFS) resolveLocked(op string, ino state.Inode) (SourcePath, error) {
	path, ok := p.inodes.Resolve(ino)
	if !ok {
		vfsLogger.Debug("%s: unknown %v", op, ino)
		return SourcePath{}, NewError(op, "", fmt.Errorf("%v: %w", ino, ErrNotFound))
	}
	return NewSourcePath(path), nil
}

// failLocked wraps an I/O error against the path of ino, pruning the
// inode if the path has disappeared.
func (p *PassFS) failLocked(op string, ino state.Inode, path SourcePath, err error) error {
	if isNotFound(err) {
		vfsLogger.Debug("%s: %q no longer exists, forgetting %v", op, path.String(), ino)
		p.inodes.Forget(ino)
	} else {
		vfsLogger.Debug("%s on %q failed: %v", op, path.String(), err)
	}
	return NewError(op, path.String(), err)
}

// GetAttr returns the attributes of ino.
func (p *PassFS) GetAttr(_ context.Context, ino state.Inode) (*Attr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := p.resolveLocked(OpGetattr, ino)
	if err != nil {
		return nil, err
	}

	st, err := p.root.Stat(path.String())
	if err != nil {
		return nil, p.failLocked(OpGetattr, ino, path, err)
	}

	attr := AttrFromStat(st)
	if ino == state.RootInode {
		attr.Inode = state.RootInode
	}
	vfsLogger.Trace("getattr %v (%q): kind=%v size=%d", ino, path.String(), attr.Kind, attr.Size)
	return attr, nil
}

// Lookup resolves name within parent and records the inode it is found
// under. Failures leave the inode table untouched.
func (p *PassFS) Lookup(_ context.Context, parent state.Inode, name string) (*Attr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	parentPath, err := p.resolveLocked(OpLookup, parent)
	if err != nil {
		return nil, err
	}

	childPath, err := parentPath.Child(name)
	if err != nil {
		return nil, NewError(OpLookup, name, err)
	}

	st, err := p.root.Stat(childPath.String())
	if err != nil {
		vfsLogger.Trace("lookup %q in %v failed: %v", name, parent, err)
		return nil, NewError(OpLookup, childPath.String(), err)
	}

	attr := AttrFromStat(st)
	if childPath.IsRoot() {
		attr.Inode = state.RootInode
	} else {
		p.inodes.Record(attr.Inode, childPath.String())
	}
	vfsLogger.Trace("lookup %q in %v: %v", name, parent, attr.Inode)
	return attr, nil
}

// ReadLink returns the target of the symlink ino.
func (p *PassFS) ReadLink(_ context.Context, ino state.Inode) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := p.resolveLocked(OpReadlink, ino)
	if err != nil {
		return "", err
	}

	target, err := p.root.ReadLink(path.String())
	if err != nil {
		return "", p.failLocked(OpReadlink, ino, path, err)
	}
	return target, nil
}

// OpenDir opens the directory ino and returns a handle for ReadDir.
func (p *PassFS) OpenDir(_ context.Context, ino state.Inode) (state.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := p.resolveLocked(OpOpendir, ino)
	if err != nil {
		return 0, err
	}

	dir, err := p.root.OpenDirectory(path.String())
	if err != nil {
		return 0, p.failLocked(OpOpendir, ino, path, err)
	}

	stream, err := dir.List()
	if err != nil {
		dir.Close()
		return 0, p.failLocked(OpOpendir, ino, path, err)
	}

	h := p.handles.Acquire()
	p.dirs.Insert(h, &openDirectory{
		path:   path,
		dir:    dir,
		stream: stream,
	})
	vfsLogger.Debug("opendir %v (%q): %v", ino, path.String(), h)
	return h, nil
}

// ReadDir hands the remaining entries of directory handle h to add until
// add reports a full buffer or the directory is exhausted. Each entry is
// stat'ed relative to the open directory so that it carries its own inode
// number. An offset of zero on a stream that has already produced entries
// restarts the listing.
func (p *PassFS) ReadDir(_ context.Context, h state.Handle, offset int64, add DirEntryAdder) error {
	if offset < 0 {
		return NewError(OpReaddir, "", ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	od, ok := p.dirs.Get(h)
	if !ok {
		vfsLogger.Debug("readdir: %v is not an open directory", h)
		return NewError(OpReaddir, "", fmt.Errorf("%v: %w", h, ErrBadHandle))
	}

	if offset == 0 && (od.stream.Produced() > 0 || od.hasPending) {
		vfsLogger.Debug("readdir: rewinding %v (%q)", h, od.path.String())
		if err := od.rewind(); err != nil {
			return NewError(OpReaddir, od.path.String(), err)
		}
	}

	count := 0
	for {
		name, err := od.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return NewError(OpReaddir, od.path.String(), err)
		}

		// A failing entry ends this request and is not retried.
		st, err := od.dir.Stat(name)
		if err != nil {
			childPath, _ := od.path.Child(name)
			return NewError(OpReaddir, childPath.String(), err)
		}

		entry := DirEntry{
			Inode: state.Inode(st.Ino),
			Kind:  KindFromStat(st),
			Name:  name,
		}
		if add(entry) {
			od.unread(name)
			break
		}
		count++
	}

	vfsLogger.Trace("readdir %v (%q): %d entries", h, od.path.String(), count)
	return nil
}

// ReleaseDir closes directory handle h.
func (p *PassFS) ReleaseDir(_ context.Context, h state.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if od, ok := p.dirs.Remove(h); ok {
		od.close()
	} else {
		vfsLogger.Warn("releasedir, but %v is not in the open directories", h)
	}

	if !p.handles.Release(h) {
		vfsLogger.Warn("releasedir, but %v is not in use", h)
	}
	vfsLogger.Debug("releasedir %v", h)
}

// openRejected reports whether flags ask for anything other than reading.
func openRejected(flags int) bool {
	const mask = unix.O_APPEND | unix.O_CREAT | unix.O_TRUNC
	return flags&mask != 0 || flags&unix.O_ACCMODE != unix.O_RDONLY
}

// Open opens the file ino for reading and returns a handle for Read.
func (p *PassFS) Open(_ context.Context, ino state.Inode, flags int) (state.Handle, error) {
	vfsLogger.Trace("open %v with flags %o", ino, flags)
	if openRejected(flags) {
		vfsLogger.Debug("open %v: refusing flags %o on a read-only filesystem", ino, flags)
		return 0, NewError(OpOpen, "", ErrReadOnly)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	path, err := p.resolveLocked(OpOpen, ino)
	if err != nil {
		return 0, err
	}

	file, err := p.root.OpenFile(path.String())
	if err != nil {
		return 0, p.failLocked(OpOpen, ino, path, err)
	}

	h := p.handles.Acquire()
	p.files.Insert(h, &openFile{path: path, file: file})
	vfsLogger.Debug("open %v (%q): %v", ino, path.String(), h)
	return h, nil
}

// Read returns up to size bytes of file handle h starting at offset. Fewer
// bytes are returned only at end of file.
func (p *PassFS) Read(_ context.Context, h state.Handle, offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, NewError(OpRead, "", ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	of, ok := p.files.Get(h)
	if !ok {
		vfsLogger.Debug("read: %v is not an open file", h)
		return nil, NewError(OpRead, "", fmt.Errorf("%v: %w", h, ErrBadHandle))
	}

	if _, err := of.file.Seek(offset, io.SeekStart); err != nil {
		return nil, NewError(OpRead, of.path.String(), err)
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(of.file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, NewError(OpRead, of.path.String(), err)
	}

	vfsLogger.Trace("read %v (%q): %d of %d bytes at %d", h, of.path.String(), n, size, offset)
	return buf[:n], nil
}

// Release closes file handle h.
func (p *PassFS) Release(_ context.Context, h state.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if of, ok := p.files.Remove(h); ok {
		of.close()
	} else {
		vfsLogger.Warn("release, but %v is not in the open files", h)
	}

	if !p.handles.Release(h) {
		vfsLogger.Warn("release, but %v is not in use", h)
	}
	vfsLogger.Debug("release %v", h)
}

// Create is refused: the filesystem is read-only.
func (p *PassFS) Create(_ context.Context, parent state.Inode, name string) error {
	vfsLogger.Debug("create %q in %v refused", name, parent)
	return NewError(OpCreate, name, ErrReadOnly)
}

// SetAttr is refused: the filesystem is read-only.
func (p *PassFS) SetAttr(_ context.Context, ino state.Inode) error {
	vfsLogger.Debug("setattr on %v refused", ino)
	return NewError(OpSetattr, "", ErrReadOnly)
}

// SetXAttr is refused: the filesystem is read-only.
func (p *PassFS) SetXAttr(_ context.Context, ino state.Inode, name string, _ []byte) error {
	vfsLogger.Debug("setxattr %q on %v refused", name, ino)
	return NewError(OpSetxattr, "", ErrReadOnly)
}

// StatFS is refused; volume statistics of the source are not exposed.
func (p *PassFS) StatFS(_ context.Context, ino state.Inode) error {
	vfsLogger.Debug("statfs on %v refused", ino)
	return NewError(OpStatfs, "", ErrUnsupported)
}

// Stats returns the current size of the bookkeeping tables.
func (p *PassFS) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Inodes:          p.inodes.Len(),
		OpenDirectories: p.dirs.Len(),
		OpenFiles:       p.files.Len(),
	}
}

// Close releases every resource still open and the source root. The
// filesystem must not be used afterwards.
func (p *PassFS) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dirs.Drain(func(h state.Handle, od *openDirectory) {
		vfsLogger.Debug("Closing leftover directory %v (%q)", h, od.path.String())
		od.close()
		p.handles.Release(h)
	})
	p.files.Drain(func(h state.Handle, of *openFile) {
		vfsLogger.Debug("Closing leftover file %v (%q)", h, of.path.String())
		of.close()
		p.handles.Release(h)
	})

	vfsLogger.Info("Closing source root %s", p.root.Name())
	return p.root.Close()
}
