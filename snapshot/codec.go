package snapshot

import (
	"sort"

	"github.com/ava12/packrat/grammar"
	"github.com/ava12/packrat/internal/wire"
)

// Root array items of encoded blob:
const (
	versionItem = iota
	entryItem
	kindsItem
	valuesItem
	refsItem
	listsItem
	reshapeItem
	eachItem
	flagsItem
	keysItem
	popsItem
	rangesItem
	nativesItem
	itemCount
)

func sortedKeys[T any](m map[int]T) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func pairs[T any](m map[int]T, conv func(T) any) []any {
	result := make([]any, 0, len(m))
	for _, k := range sortedKeys(m) {
		result = append(result, []any{k, conv(m[k])})
	}
	return result
}

func asIs[T any](v T) any {
	return v
}

// Encode packs snapshot tables (except Strings) into binary blob.
func Encode(s *Snapshot) ([]byte, error) {
	kinds := make([]byte, len(s.Kinds))
	for i, k := range s.Kinds {
		if !k.IsValid() {
			return nil, kindError(i, k)
		}
		kinds[i] = byte(k)
	}

	lists := make([]any, len(s.Lists))
	for i, l := range s.Lists {
		lists[i] = l
	}

	root := []any{
		Version,
		s.Entry,
		kinds,
		s.Values,
		s.Refs,
		lists,
		pairs(s.Reshape, asIs[int]),
		pairs(s.ReshapeEach, asIs[int]),
		pairs(s.Flags, func(fs []grammar.Flags) any {
			result := make([]int, len(fs))
			for i, f := range fs {
				result[i] = int(f)
			}
			return result
		}),
		pairs(s.Keys, asIs[[]int]),
		pairs(s.PopFns, asIs[[]int]),
		pairs(s.Ranges, func(r [2]int) any { return r[:] }),
		s.Natives,
	}

	blob, e := wire.Marshal(root)
	if e != nil {
		return nil, encodeError(e)
	}
	return blob, nil
}

type decoder struct {
	root []any
	e    error
}

func (d *decoder) ints(index int, what string) []int {
	if d.e != nil {
		return nil
	}

	result, e := wire.Ints(d.root[index])
	if e != nil {
		d.e = malformedError(what, e)
	}
	return result
}

func (d *decoder) pairs(index int, what string, value func(pair []any) error) {
	if d.e != nil {
		return
	}

	items, e := wire.Array(d.root[index])
	prev := -1
	for _, item := range items {
		if e != nil {
			break
		}

		var pair []any
		pair, e = wire.Array(item)
		if e == nil && len(pair) != 2 {
			d.e = malformedError(what, nil)
			return
		}

		var k int
		if e == nil {
			k, e = wire.Uint(pair[0])
		}
		if e == nil && k <= prev {
			d.e = malformedError(what+" order", nil)
			return
		}
		prev = k
		if e == nil {
			e = value(pair)
		}
	}
	if e != nil {
		d.e = malformedError(what, e)
	}
}

// Decode unpacks blob produced by Encode and attaches string table to it.
// Decoded snapshot is checked with Validate.
func Decode(blob []byte, strings []string) (*Snapshot, error) {
	v, e := wire.Unmarshal(blob)
	if e != nil {
		return nil, malformedError("blob", e)
	}

	root, e := wire.Array(v)
	if e != nil || len(root) != itemCount {
		return nil, malformedError("root", e)
	}

	version, e := wire.Uint(root[versionItem])
	if e != nil {
		return nil, malformedError("version", e)
	}
	if version != Version {
		return nil, versionError(version)
	}

	s := newSnapshot()
	s.Strings = strings
	s.Entry, e = wire.Uint(root[entryItem])
	if e != nil {
		return nil, malformedError("entry", e)
	}

	kinds, e := wire.Bytes(root[kindsItem])
	if e != nil {
		return nil, malformedError("kinds", e)
	}
	s.Kinds = make([]grammar.Kind, len(kinds))
	for i, k := range kinds {
		s.Kinds[i] = grammar.Kind(k)
	}

	d := &decoder{root: root}
	s.Values = d.ints(valuesItem, "values")
	s.Refs = d.ints(refsItem, "refs")
	s.Natives = d.ints(nativesItem, "natives")
	if d.e == nil {
		var lists []any
		lists, e = wire.Array(root[listsItem])
		s.Lists = make([][]int, len(lists))
		for i := 0; e == nil && i < len(lists); i++ {
			s.Lists[i], e = wire.Ints(lists[i])
		}
		if e != nil {
			d.e = malformedError("lists", e)
		}
	}

	intPair := func(m map[int]int) func(pair []any) (e error) {
		return func(pair []any) (e error) {
			k, _ := wire.Uint(pair[0])
			m[k], e = wire.Uint(pair[1])
			return
		}
	}
	d.pairs(reshapeItem, "reshape", intPair(s.Reshape))
	d.pairs(eachItem, "reshapeEach", intPair(s.ReshapeEach))
	d.pairs(flagsItem, "flags", func(pair []any) error {
		k, _ := wire.Uint(pair[0])
		fs, e := wire.Ints(pair[1])
		flags := make([]grammar.Flags, len(fs))
		for i, f := range fs {
			flags[i] = grammar.Flags(f)
		}
		s.Flags[k] = flags
		return e
	})
	d.pairs(keysItem, "keys", func(pair []any) (e error) {
		k, _ := wire.Uint(pair[0])
		s.Keys[k], e = wire.Ints(pair[1])
		return
	})
	d.pairs(popsItem, "popFns", func(pair []any) (e error) {
		k, _ := wire.Uint(pair[0])
		s.PopFns[k], e = wire.Ints(pair[1])
		return
	})
	d.pairs(rangesItem, "ranges", func(pair []any) error {
		k, _ := wire.Uint(pair[0])
		r, e := wire.Ints(pair[1])
		if e == nil && len(r) != 2 {
			return wire.ErrRange
		}
		if e == nil {
			s.Ranges[k] = [2]int{r[0], r[1]}
		}
		return e
	})
	if d.e != nil {
		return nil, d.e
	}

	if e = s.Validate(); e != nil {
		return nil, e
	}
	return s, nil
}
