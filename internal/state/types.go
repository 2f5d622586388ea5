// Package state holds the in-memory bookkeeping of a mounted passfs
// session: which inode numbers map to which source paths, which handle
// numbers are live, and which open directory or file each handle names.
//
// None of the types in this package synchronize access. The filesystem
// that owns them serializes every request behind a single lock.
package state

import "strconv"

// Inode is the node identifier exchanged with the kernel. Apart from
// RootInode it equals the st_ino the source filesystem reported for the
// path it was recorded under.
type Inode uint64

// RootInode names the source root. It always resolves to the empty path.
const RootInode Inode = 1

func (i Inode) String() string {
	return "inode " + strconv.FormatUint(uint64(i), 10)
}

// Handle identifies one open directory or file between an open and its
// release. Directories and files share one handle namespace.
type Handle uint64

func (h Handle) String() string {
	return "handle " + strconv.FormatUint(uint64(h), 10)
}
