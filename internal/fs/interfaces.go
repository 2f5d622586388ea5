// internal/fs/interfaces.go

package fs

import (
	"context"

	"passfs/internal/state"
)

// DirEntry is one directory entry reported by ReadDir.
type DirEntry struct {
	Inode state.Inode
	Kind  FileKind
	Name  string
}

// DirEntryAdder appends an entry to a readdir reply. It returns true when
// the reply buffer is full and the entry was not taken.
type DirEntryAdder func(entry DirEntry) bool

// Stats describes the live bookkeeping of a FileSystem.
type Stats struct {
	Inodes          int
	OpenDirectories int
	OpenFiles       int
}

// FileSystem is the request surface the FUSE server dispatches into.
// Every method corresponds to one kernel request.
type FileSystem interface {
	GetAttr(ctx context.Context, ino state.Inode) (*Attr, error)
	Lookup(ctx context.Context, parent state.Inode, name string) (*Attr, error)
	ReadLink(ctx context.Context, ino state.Inode) (string, error)

	OpenDir(ctx context.Context, ino state.Inode) (state.Handle, error)
	ReadDir(ctx context.Context, h state.Handle, offset int64, add DirEntryAdder) error
	// ReleaseDir never fails; inconsistencies are only logged.
	ReleaseDir(ctx context.Context, h state.Handle)

	Open(ctx context.Context, ino state.Inode, flags int) (state.Handle, error)
	Read(ctx context.Context, h state.Handle, offset int64, size int) ([]byte, error)
	// Release never fails; inconsistencies are only logged.
	Release(ctx context.Context, h state.Handle)

	Create(ctx context.Context, parent state.Inode, name string) error
	SetAttr(ctx context.Context, ino state.Inode) error
	SetXAttr(ctx context.Context, ino state.Inode, name string, value []byte) error
	StatFS(ctx context.Context, ino state.Inode) error

	Stats() Stats
}
