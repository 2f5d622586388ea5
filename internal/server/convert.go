package server

import (
	"passfs/internal/fs"

	"bazil.org/fuse"
)

// fuseAttr converts attributes for a reply. Valid is left at zero so the
// kernel never caches them.
func fuseAttr(a *fs.Attr) fuse.Attr {
	return fuse.Attr{
		Valid:     0,
		Inode:     uint64(a.Inode),
		Size:      a.Size,
		Blocks:    a.Blocks,
		Atime:     a.Atime,
		Mtime:     a.Mtime,
		Ctime:     a.Ctime,
		Mode:      a.Mode(),
		Nlink:     a.Nlink,
		Uid:       a.Uid,
		Gid:       a.Gid,
		Rdev:      a.Rdev,
		BlockSize: a.BlockSize,
	}
}

func direntType(kind fs.FileKind) fuse.DirentType {
	switch kind {
	case fs.KindDirectory:
		return fuse.DT_Dir
	case fs.KindSymlink:
		return fuse.DT_Link
	case fs.KindSocket:
		return fuse.DT_Socket
	case fs.KindBlockDevice:
		return fuse.DT_Block
	case fs.KindCharDevice:
		return fuse.DT_Char
	case fs.KindNamedPipe:
		return fuse.DT_FIFO
	default:
		return fuse.DT_File
	}
}

// direntBuffer accumulates encoded directory entries without exceeding
// the size the kernel asked for.
type direntBuffer struct {
	data []byte
	size int
}

func newDirentBuffer(size int) *direntBuffer {
	return &direntBuffer{data: make([]byte, 0, size), size: size}
}

// add encodes entry. It returns true, leaving the buffer unchanged, if the
// entry does not fit.
func (b *direntBuffer) add(entry fs.DirEntry) bool {
	prev := len(b.data)
	b.data = fuse.AppendDirent(b.data, fuse.Dirent{
		Inode: uint64(entry.Inode),
		Type:  direntType(entry.Kind),
		Name:  entry.Name,
	})
	if len(b.data) > b.size {
		b.data = b.data[:prev]
		return true
	}
	return false
}
