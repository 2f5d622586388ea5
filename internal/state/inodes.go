package state

import (
	"passfs/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("state")
)

// InodeTable caches the source path at which each inode number was last
// observed. Entries are added by successful lookups and dropped only when
// a later operation finds the path gone.
type InodeTable struct {
	paths map[Inode]string
}

// NewInodeTable returns a table containing only the root mapping.
func NewInodeTable() *InodeTable {
	return &InodeTable{
		paths: map[Inode]string{RootInode: ""},
	}
}

// Resolve returns the source path recorded for ino.
func (t *InodeTable) Resolve(ino Inode) (string, bool) {
	path, ok := t.paths[ino]
	return path, ok
}

// Record inserts or overwrites the mapping for ino. The root mapping is
// fixed; an attempt to rebind RootInode is ignored.
func (t *InodeTable) Record(ino Inode, path string) {
	if ino == RootInode {
		if path != "" {
			logger.Warn("Refusing to rebind %v to %q", ino, path)
		}
		return
	}
	if old, ok := t.paths[ino]; ok && old != path {
		logger.Debug("Rebinding %v: %q -> %q", ino, old, path)
	}
	t.paths[ino] = path
}

// Forget removes the mapping for ino. The root mapping is never removed.
func (t *InodeTable) Forget(ino Inode) {
	if ino == RootInode {
		return
	}
	if path, ok := t.paths[ino]; ok {
		logger.Debug("Forgetting %v (%q)", ino, path)
		delete(t.paths, ino)
	}
}

// Len returns the number of mappings, including the root.
func (t *InodeTable) Len() int {
	return len(t.paths)
}
