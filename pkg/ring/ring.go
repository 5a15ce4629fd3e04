// Package ring provides a fixed-capacity buffer that overwrites its oldest
// entry once full.
package ring

import "sync"

type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// New returns a buffer holding at most capacity items. A capacity below one
// is raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.next] = v
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
}

func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Snapshot returns the stored items, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.full {
		out := make([]T, b.next)
		copy(out, b.items[:b.next])
		return out
	}
	out := make([]T, 0, len(b.items))
	out = append(out, b.items[b.next:]...)
	out = append(out, b.items[:b.next]...)
	return out
}

// Last returns the most recently pushed item.
func (b *Buffer[T]) Last() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var zero T
	if !b.full && b.next == 0 {
		return zero, false
	}
	idx := (b.next - 1 + len(b.items)) % len(b.items)
	return b.items[idx], true
}

func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.items)
	b.next = 0
	b.full = false
}
