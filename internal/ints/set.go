// Package ints implements a set of small non-negative integers.
package ints

import "math/bits"

const chunkShift = 6
const chunkSize = 1 << chunkShift

// Set is a bit set of non-negative integers, zero value is an empty set.
type Set struct {
	chunks []uint64
}

func NewSet(items ...int) *Set {
	return (&Set{}).Add(items...)
}

func (s *Set) grow(item int) {
	need := (item >> chunkShift) + 1
	if need > len(s.chunks) {
		chunks := make([]uint64, need)
		copy(chunks, s.chunks)
		s.chunks = chunks
	}
}

// Add panics on negative items.
func (s *Set) Add(items ...int) *Set {
	for _, item := range items {
		if item < 0 {
			panic("ints: negative set item")
		}

		s.grow(item)
		s.chunks[item>>chunkShift] |= 1 << (uint(item) & (chunkSize - 1))
	}
	return s
}

func (s *Set) Contains(item int) bool {
	if item < 0 || (item>>chunkShift) >= len(s.chunks) {
		return false
	}

	return s.chunks[item>>chunkShift]&(1<<(uint(item)&(chunkSize-1))) != 0
}

func (s *Set) Union(t *Set) *Set {
	if t == nil {
		return s
	}

	if len(t.chunks) > len(s.chunks) {
		s.grow((len(t.chunks) << chunkShift) - 1)
	}
	for i, chunk := range t.chunks {
		s.chunks[i] |= chunk
	}
	return s
}

func (s *Set) Len() int {
	result := 0
	for _, chunk := range s.chunks {
		result += bits.OnesCount64(chunk)
	}
	return result
}

func (s *Set) IsEmpty() bool {
	for _, chunk := range s.chunks {
		if chunk != 0 {
			return false
		}
	}
	return true
}

func (s *Set) IsEqual(t *Set) bool {
	a, b := s.chunks, t.chunks
	if len(a) < len(b) {
		a, b = b, a
	}
	for i, chunk := range a {
		if i < len(b) {
			if chunk != b[i] {
				return false
			}
		} else if chunk != 0 {
			return false
		}
	}
	return true
}

func (s *Set) Copy() *Set {
	result := &Set{make([]uint64, len(s.chunks))}
	copy(result.chunks, s.chunks)
	return result
}

// ToSlice returns items in ascending order.
func (s *Set) ToSlice() []int {
	result := make([]int, 0, s.Len())
	for i, chunk := range s.chunks {
		for chunk != 0 {
			bit := bits.TrailingZeros64(chunk)
			result = append(result, (i<<chunkShift)+bit)
			chunk &= chunk - 1
		}
	}
	return result
}
