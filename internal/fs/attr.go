package fs

import (
	"os"
	"time"

	"passfs/internal/logging"
	"passfs/internal/state"

	"golang.org/x/sys/unix"
)

var (
	attrLogger = logging.GetLogger().WithPrefix("attr")

	epoch = time.Unix(0, 0).UTC()
)

// FileKind is the type of a node as reported to the kernel.
type FileKind int

const (
	KindRegular FileKind = iota
	KindDirectory
	KindSymlink
	KindSocket
	KindBlockDevice
	KindCharDevice
	KindNamedPipe
)

var kindNames = [...]string{
	KindRegular:     "regular",
	KindDirectory:   "directory",
	KindSymlink:     "symlink",
	KindSocket:      "socket",
	KindBlockDevice: "block device",
	KindCharDevice:  "char device",
	KindNamedPipe:   "named pipe",
}

func (k FileKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// kindFromMode maps the S_IFMT bits of mode to a FileKind. The second
// result is false when the bits are not recognised, in which case the
// kind falls back to KindRegular.
func kindFromMode(mode uint32) (FileKind, bool) {
	switch mode & unix.S_IFMT {
	case unix.S_IFSOCK:
		return KindSocket, true
	case unix.S_IFLNK:
		return KindSymlink, true
	case unix.S_IFREG:
		return KindRegular, true
	case unix.S_IFBLK:
		return KindBlockDevice, true
	case unix.S_IFDIR:
		return KindDirectory, true
	case unix.S_IFCHR:
		return KindCharDevice, true
	case unix.S_IFIFO:
		return KindNamedPipe, true
	default:
		return KindRegular, false
	}
}

// KindFromStat returns the kind of the node described by st, logging a
// warning for unrecognised type bits.
func KindFromStat(st *unix.Stat_t) FileKind {
	kind, ok := kindFromMode(st.Mode)
	if !ok {
		attrLogger.Warn("Unrecognised file type %o for inode %#x, reporting a regular file",
			st.Mode, st.Ino)
	}
	return kind
}

// Attr is the kernel-facing view of a native stat record.
type Attr struct {
	Inode     state.Inode
	Kind      FileKind
	Perm      uint16 // permission, setuid, setgid and sticky bits
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Size      uint64
	Blocks    uint64
	BlockSize uint32
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Crtime    time.Time
}

// AttrFromStat translates st. It never fails.
func AttrFromStat(st *unix.Stat_t) *Attr {
	return &Attr{
		Inode:     state.Inode(st.Ino),
		Kind:      KindFromStat(st),
		Perm:      uint16(st.Mode & 0o7777),
		Nlink:     uint32(st.Nlink),
		Uid:       st.Uid,
		Gid:       st.Gid,
		Rdev:      uint32(st.Rdev),
		Size:      safeInt64ToUint64(st.Size),
		Blocks:    safeInt64ToUint64(int64(st.Blocks)),
		BlockSize: uint32(st.Blksize),
		Atime:     epochSeconds(int64(st.Atim.Sec)),
		Mtime:     epochSeconds(int64(st.Mtim.Sec)),
		Ctime:     epochSeconds(int64(st.Ctim.Sec)),
		Crtime:    epoch,
	}
}

// epochSeconds converts a stat timestamp. Values before the epoch cannot
// be represented by the kernel interface and are clamped to it.
func epochSeconds(sec int64) time.Time {
	if sec < 0 {
		return epoch
	}
	return time.Unix(sec, 0).UTC()
}

// Mode returns the attribute's type and permission bits as an os.FileMode.
func (a *Attr) Mode() os.FileMode {
	mode := os.FileMode(a.Perm & 0o777)
	if a.Perm&unix.S_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if a.Perm&unix.S_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if a.Perm&unix.S_ISVTX != 0 {
		mode |= os.ModeSticky
	}

	switch a.Kind {
	case KindDirectory:
		mode |= os.ModeDir
	case KindSymlink:
		mode |= os.ModeSymlink
	case KindSocket:
		mode |= os.ModeSocket
	case KindNamedPipe:
		mode |= os.ModeNamedPipe
	case KindBlockDevice:
		mode |= os.ModeDevice
	case KindCharDevice:
		mode |= os.ModeDevice | os.ModeCharDevice
	}
	return mode
}
