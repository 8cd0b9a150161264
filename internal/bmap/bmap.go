// Package bmap implements hash map with []byte key type.
package bmap

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

type entry[T any] struct {
	key   []byte
	value T
}

// BMap maps byte strings to values. Keys are grouped in buckets by xxhash digest
// and compared byte-wise inside a bucket.
// Keys cannot be deleted. Added keys are copied into internal byte slices.
type BMap[T any] struct {
	buckets map[uint64][]entry[T]
	keys    []byte
	count   int
}

// New creates bytes map, size is a capacity hint.
func New[T any](size int) *BMap[T] {
	return &BMap[T]{
		buckets: make(map[uint64][]entry[T], size),
	}
}

func (m *BMap[T]) Len() int {
	return m.count
}

// Get returns stored value by key and a flag telling whether this key is stored in the map.
// Returns zero value if the key is not present.
func (m *BMap[T]) Get(key []byte) (T, bool) {
	for _, e := range m.buckets[xxhash.Sum64(key)] {
		if bytes.Equal(e.key, key) {
			return e.value, true
		}
	}

	var zero T
	return zero, false
}

// Set adds or rewrites value for given key.
func (m *BMap[T]) Set(key []byte, value T) {
	digest := xxhash.Sum64(key)
	bucket := m.buckets[digest]
	for i, e := range bucket {
		if bytes.Equal(e.key, key) {
			bucket[i].value = value
			return
		}
	}

	ofs := len(m.keys)
	m.keys = append(m.keys, key...)
	m.buckets[digest] = append(bucket, entry[T]{m.keys[ofs : ofs+len(key) : ofs+len(key)], value})
	m.count++
}

// Intern returns value stored for key, otherwise stores and returns value produced by next.
func (m *BMap[T]) Intern(key []byte, next func() T) (value T, added bool) {
	value, found := m.Get(key)
	if found {
		return value, false
	}

	value = next()
	m.Set(key, value)
	return value, true
}
