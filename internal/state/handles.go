package state

import (
	"github.com/google/btree"
)

// HandleAllocator hands out the smallest handle number not currently in
// use, so released numbers are recycled before new ones are minted.
type HandleAllocator struct {
	inUse *btree.BTreeG[Handle]
}

func lessHandle(a, b Handle) bool {
	return a < b
}

// NewHandleAllocator returns an allocator with no live handles.
func NewHandleAllocator() *HandleAllocator {
	return &HandleAllocator{
		inUse: btree.NewG[Handle](8, lessHandle),
	}
}

// Acquire returns the first gap in the ordered in-use set, that is the
// first position whose value differs from the position itself, or the
// size of the set if there is no gap. The result is marked in use.
func (a *HandleAllocator) Acquire() Handle {
	next := Handle(a.inUse.Len())
	position := Handle(0)
	a.inUse.Ascend(func(h Handle) bool {
		if h != position {
			next = position
			return false
		}
		position++
		return true
	})
	a.inUse.ReplaceOrInsert(next)
	return next
}

// Release returns h to the pool. It reports whether h was live; a false
// result indicates a double release, which callers log and otherwise
// ignore.
func (a *HandleAllocator) Release(h Handle) bool {
	_, found := a.inUse.Delete(h)
	return found
}

// InUse reports whether h is currently allocated.
func (a *HandleAllocator) InUse(h Handle) bool {
	return a.inUse.Has(h)
}

// Len returns the number of live handles.
func (a *HandleAllocator) Len() int {
	return a.inUse.Len()
}
