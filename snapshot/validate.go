package snapshot

import (
	"github.com/ava12/packrat/grammar"
	"github.com/ava12/packrat/internal/leftrec"
)

func checkIndex(id int, table string, index, size int) error {
	if index < 0 || index >= size {
		return indexError(id, table, index, size)
	}
	return nil
}

// Validate checks that every index of snapshot refers to existing table entry,
// that metadata is attached to rules of proper kinds, and that no rule may call itself
// without consuming tokens.
func (s *Snapshot) Validate() error {
	n := len(s.Kinds)
	if len(s.Values) != n {
		return malformedError("values table size", nil)
	}
	if e := checkIndex(-1, "entry rule", s.Entry, n); e != nil {
		return e
	}

	for i, name := range s.Natives {
		if e := checkIndex(-1, "native name", name, len(s.Strings)); e != nil {
			return e
		}
		for _, other := range s.Natives[:i] {
			if other == name {
				return nativeConflictError(s.Strings[name])
			}
		}
	}
	for _, target := range s.Refs {
		if e := checkIndex(-1, "ref target", target, n); e != nil {
			return e
		}
	}
	for _, list := range s.Lists {
		for _, child := range list {
			if e := checkIndex(-1, "list item", child, n); e != nil {
				return e
			}
		}
	}

	for id, k := range s.Kinds {
		if e := s.validateRule(id, k, s.Values[id]); e != nil {
			return e
		}
	}
	if e := s.validateMetadata(); e != nil {
		return e
	}
	if ids := leftrec.Find(rules{s}); ids != nil {
		return leftRecursionError(ids)
	}
	return nil
}

func (s *Snapshot) validateRule(id int, k grammar.Kind, value int) error {
	switch k {
	case grammar.TokenRule, grammar.RegexRule:
		return checkIndex(id, "string", value, len(s.Strings))

	case grammar.AtomRule:
		return checkIndex(id, "native", value, len(s.Natives))

	case grammar.RefRule:
		return checkIndex(id, "ref", value, len(s.Refs))

	case grammar.AnyRule:
		if value < 0 {
			return metadataError(id, "negative token count %d of any rule", value)
		}
		return nil

	case grammar.EofRule:
		if value != 0 {
			return metadataError(id, "non-zero value %d of eof rule", value)
		}
		return nil

	case grammar.NotRule, grammar.OrRule, grammar.SeqRule, grammar.SeqObjectRule, grammar.RepeatRule:
		if e := checkIndex(id, "list", value, len(s.Lists)); e != nil {
			return e
		}
		size := len(s.Lists[value])
		if k == grammar.RepeatRule && size != 1 {
			return metadataError(id, "repeat rule with %d children", size)
		}
		if k == grammar.OrRule && size == 0 {
			return metadataError(id, "choice without alternatives")
		}
		return nil

	default:
		return kindError(id, k)
	}
}

func (s *Snapshot) isSeq(id int) bool {
	return id >= 0 && id < len(s.Kinds) && (s.Kinds[id] == grammar.SeqRule || s.Kinds[id] == grammar.SeqObjectRule)
}

func (s *Snapshot) checkItems(id int, what string, size int) error {
	if !s.isSeq(id) {
		return metadataError(id, "%s attached to non-sequence rule", what)
	}
	if size != len(s.Children(id)) {
		return metadataError(id, "%s count %d does not match item count", what, size)
	}
	return nil
}

func (s *Snapshot) validateMetadata() error {
	n := len(s.Kinds)
	for id, native := range s.Reshape {
		if e := checkIndex(id, "rule", id, n); e != nil {
			return e
		}
		if e := checkIndex(id, "reshape native", native, len(s.Natives)); e != nil {
			return e
		}
	}

	for id, native := range s.ReshapeEach {
		if e := checkIndex(id, "rule", id, n); e != nil {
			return e
		}
		if s.Kinds[id] != grammar.RepeatRule {
			return metadataError(id, "per-iteration reshape attached to %s rule", s.Kinds[id])
		}
		if e := checkIndex(id, "reshape native", native, len(s.Natives)); e != nil {
			return e
		}
	}

	for id, r := range s.Ranges {
		if e := checkIndex(id, "rule", id, n); e != nil {
			return e
		}
		if s.Kinds[id] != grammar.RepeatRule {
			return metadataError(id, "range attached to %s rule", s.Kinds[id])
		}
		if r[0] < 0 || r[1] < 0 || (r[1] > 0 && r[1]-1 < r[0]) {
			return metadataError(id, "invalid range {%d, %d}", r[0], r[1])
		}
	}

	for id, flags := range s.Flags {
		if e := s.checkItems(id, "flags", len(flags)); e != nil {
			return e
		}
		for i, f := range flags {
			if f&^grammar.AllFlags != 0 {
				return metadataError(id, "unknown flags %b of item %d", f, i)
			}
		}
	}

	for id, keys := range s.Keys {
		if e := s.checkItems(id, "keys", len(keys)); e != nil {
			return e
		}
		for _, key := range keys {
			if e := checkIndex(id, "key string", key-1, len(s.Strings)); key != 0 && e != nil {
				return e
			}
		}
	}

	for id, pops := range s.PopFns {
		if e := s.checkItems(id, "predicates", len(pops)); e != nil {
			return e
		}
		for i, pop := range pops {
			if e := checkIndex(id, "predicate native", pop-1, len(s.Natives)); pop != 0 && e != nil {
				return e
			}
			if (pop != 0) != (s.itemFlags(id, i)&grammar.PopItem != 0) {
				return metadataError(id, "predicate does not match flags of item %d", i)
			}
		}
	}

	for id, flags := range s.Flags {
		for i, f := range flags {
			if f&grammar.PopItem != 0 && s.itemPop(id, i) == 0 {
				return metadataError(id, "pop item %d without predicate", i)
			}
		}
	}
	return nil
}

// itemFlags returns flags of sequence item.
func (s *Snapshot) itemFlags(id, i int) grammar.Flags {
	if flags := s.Flags[id]; flags != nil {
		return flags[i]
	}
	return 0
}

func (s *Snapshot) itemPop(id, i int) int {
	if pops := s.PopFns[id]; pops != nil {
		return pops[i]
	}
	return 0
}

// rules adapts validated snapshot to left recursion analysis.
type rules struct {
	s *Snapshot
}

func (r rules) Len() int {
	return r.s.Len()
}

// Nullable treats atoms as consuming.
func (r rules) Nullable(id int, known []bool) bool {
	s := r.s
	switch s.Kinds[id] {
	case grammar.EofRule, grammar.NotRule:
		return true
	case grammar.AnyRule:
		return s.Values[id] == 0
	case grammar.RefRule:
		return known[s.Refs[s.Values[id]]]
	case grammar.OrRule:
		for _, c := range s.Children(id) {
			if known[c] {
				return true
			}
		}
		return false
	case grammar.RepeatRule:
		min, _ := s.Range(id)
		return min == 0 || known[s.Children(id)[0]]
	case grammar.SeqRule, grammar.SeqObjectRule:
		for i, c := range s.Children(id) {
			if s.itemFlags(id, i)&grammar.OptionalItem == 0 && !known[c] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (r rules) LeftCalls(id int, nullable []bool) []int {
	s := r.s
	switch s.Kinds[id] {
	case grammar.RefRule:
		return []int{s.Refs[s.Values[id]]}
	case grammar.OrRule, grammar.NotRule, grammar.RepeatRule:
		return s.Children(id)
	case grammar.SeqRule, grammar.SeqObjectRule:
		children := s.Children(id)
		for i, c := range children {
			if s.itemFlags(id, i)&grammar.OptionalItem == 0 && !nullable[c] {
				return children[:i+1]
			}
		}
		return children
	default:
		return nil
	}
}
