// Package ring provides fixed-capacity circular buffers addressed by a
// monotonically increasing step counter.
package ring

// Ring is a fixed-capacity circular buffer. Slot i always holds the most
// recent value written at a step s with s mod Len() == i.
type Ring[T any] struct {
	buf []T
}

// New creates a ring of the given capacity with every slot set to seed.
// Capacity below 1 is raised to 1.
func New[T any](capacity int, seed T) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	buf := make([]T, capacity)
	for i := range buf {
		buf[i] = seed
	}
	return &Ring[T]{buf: buf}
}

// Len returns the ring capacity.
func (r *Ring[T]) Len() int {
	return len(r.buf)
}

// Slot maps a step onto a slot index.
func (r *Ring[T]) Slot(step uint64) int {
	return int(step % uint64(len(r.buf)))
}

// Put stores v into the slot for step and returns that slot.
func (r *Ring[T]) Put(step uint64, v T) int {
	i := r.Slot(step)
	r.buf[i] = v
	return i
}

// At returns the value in slot i. i must be in [0, Len()).
func (r *Ring[T]) At(i int) T {
	return r.buf[i]
}

// Fill overwrites every slot with v.
func (r *Ring[T]) Fill(v T) {
	for i := range r.buf {
		r.buf[i] = v
	}
}

// Each calls fn for every slot in index order.
func (r *Ring[T]) Each(fn func(i int, v T)) {
	for i, v := range r.buf {
		fn(i, v)
	}
}

// Snapshot returns a copy of the slots in index order.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, len(r.buf))
	copy(out, r.buf)
	return out
}
