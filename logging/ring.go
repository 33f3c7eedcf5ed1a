package logging

// ring is a fixed-capacity FIFO. Push is O(1); once full, each push
// overwrites the oldest element. Not safe for concurrent use.
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	capacity := len(r.items)
	if r.size < capacity {
		r.items[(r.head+r.size)%capacity] = v
		r.size++
		return
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % capacity
}

func (r *ring[T]) len() int {
	return r.size
}

// snapshot copies the contents oldest first.
func (r *ring[T]) snapshot() []T {
	out := make([]T, r.size)
	capacity := len(r.items)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%capacity]
	}
	return out
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
}
