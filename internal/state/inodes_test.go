package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInodeTableRoot(t *testing.T) {
	table := NewInodeTable()

	path, ok := table.Resolve(RootInode)
	assert.True(t, ok)
	assert.Equal(t, "", path)

	table.Record(RootInode, "elsewhere")
	table.Forget(RootInode)

	path, ok = table.Resolve(RootInode)
	assert.True(t, ok)
	assert.Equal(t, "", path)
}

func TestInodeTableRecordAndForget(t *testing.T) {
	table := NewInodeTable()

	_, ok := table.Resolve(1234)
	assert.False(t, ok)

	table.Record(1234, "dir/file.txt")
	path, ok := table.Resolve(1234)
	assert.True(t, ok)
	assert.Equal(t, "dir/file.txt", path)
	assert.Equal(t, 2, table.Len())

	// Observing the same inode at another path overwrites the entry.
	table.Record(1234, "dir/hardlink.txt")
	path, _ = table.Resolve(1234)
	assert.Equal(t, "dir/hardlink.txt", path)
	assert.Equal(t, 2, table.Len())

	table.Forget(1234)
	_, ok = table.Resolve(1234)
	assert.False(t, ok)

	// Forgetting an unknown inode is harmless.
	table.Forget(1234)
	assert.Equal(t, 1, table.Len())
}
