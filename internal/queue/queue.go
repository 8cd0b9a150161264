// Package queue implements FIFO queue on top of a ring buffer.
package queue

const minSize = 4

// Queue is a FIFO queue. Buffer length is always a power of 2.
type Queue[T any] struct {
	items      []T
	head, size int
	zero       T
}

func New[T any](items ...T) *Queue[T] {
	l := minSize
	for l < len(items) {
		l <<= 1
	}
	result := &Queue[T]{items: make([]T, l), size: len(items)}
	copy(result.items, items)
	return result
}

func (q *Queue[T]) IsEmpty() bool {
	return q.size == 0
}

func (q *Queue[T]) Len() int {
	return q.size
}

func (q *Queue[T]) mask() int {
	return len(q.items) - 1
}

func (q *Queue[T]) Append(items ...T) *Queue[T] {
	for _, item := range items {
		if q.size == len(q.items) {
			q.grow()
		}
		q.items[(q.head+q.size)&q.mask()] = item
		q.size++
	}
	return q
}

// First removes and returns the oldest item, false if queue is empty.
func (q *Queue[T]) First() (T, bool) {
	if q.size == 0 {
		return q.zero, false
	}

	result := q.items[q.head]
	q.items[q.head] = q.zero
	q.head = (q.head + 1) & q.mask()
	q.size--
	return result, true
}

func (q *Queue[T]) grow() {
	items := make([]T, len(q.items)<<1)
	n := copy(items, q.items[q.head:])
	copy(items[n:], q.items[:q.head])
	q.items = items
	q.head = 0
}
