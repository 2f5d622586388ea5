package state

// OpenTable associates live handles with the resource backing them. It
// only tracks ownership; closing the resource is up to whoever removes it.
type OpenTable[T any] struct {
	entries map[Handle]T
}

// NewOpenTable returns an empty table.
func NewOpenTable[T any]() *OpenTable[T] {
	return &OpenTable[T]{
		entries: make(map[Handle]T),
	}
}

// Insert stores resource under a freshly acquired handle.
func (t *OpenTable[T]) Insert(h Handle, resource T) {
	t.entries[h] = resource
}

// Get returns the resource stored under h.
func (t *OpenTable[T]) Get(h Handle) (T, bool) {
	resource, ok := t.entries[h]
	return resource, ok
}

// Remove deletes and returns the resource stored under h.
func (t *OpenTable[T]) Remove(h Handle) (T, bool) {
	resource, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	return resource, ok
}

// Drain removes every entry, handing each to fn. It is used when the
// filesystem is torn down with resources still open.
func (t *OpenTable[T]) Drain(fn func(Handle, T)) {
	for h, resource := range t.entries {
		delete(t.entries, h)
		fn(h, resource)
	}
}

// Len returns the number of live entries.
func (t *OpenTable[T]) Len() int {
	return len(t.entries)
}
