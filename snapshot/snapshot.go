// Package snapshot flattens closed grammars into numeric tables and packs them into binary blobs.
//
// Rule ids of a snapshot differ from grammar ids. Every rule has a kind and a value,
// meaning of the value depends on the kind:
//   - TokenRule, RegexRule: index in Strings;
//   - AnyRule: token count;
//   - AtomRule: index in Natives;
//   - NotRule, OrRule, SeqRule, SeqObjectRule, RepeatRule: index in Lists (children ids);
//   - RefRule: index in Refs (target rule id);
//   - EofRule: zero.
//
// Per-rule metadata is kept in sparse maps keyed by rule id.
// Natives are stored by name, functions are re-attached when snapshot is loaded.
package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"

	"github.com/ava12/packrat/grammar"
)

// Version is the blob format version.
const Version = 1

// Snapshot is a flattened purely numeric form of a grammar.
type Snapshot struct {
	Entry  int            `json:"entry" yaml:"entry"`
	Kinds  []grammar.Kind `json:"kinds" yaml:"kinds,flow"`
	Values []int          `json:"values" yaml:"values,flow"`
	Refs   []int          `json:"refs" yaml:"refs,flow"`
	Lists  [][]int        `json:"lists" yaml:"lists"`

	// Reshape and ReshapeEach map rule ids to native indexes.
	Reshape     map[int]int `json:"reshape,omitempty" yaml:"reshape,omitempty"`
	ReshapeEach map[int]int `json:"reshapeEach,omitempty" yaml:"reshapeEach,omitempty"`

	// Flags, Keys, and PopFns hold per-item data of sequences.
	// Keys are string indexes plus 1, PopFns are native indexes plus 1, zero means none.
	Flags  map[int][]grammar.Flags `json:"flags,omitempty" yaml:"flags,omitempty"`
	Keys   map[int][]int           `json:"keys,omitempty" yaml:"keys,omitempty"`
	PopFns map[int][]int           `json:"popFns,omitempty" yaml:"popFns,omitempty"`

	// Ranges holds {min, max + 1} of repetitions, zero upper bound means no limit.
	// Repetitions without entry have range [0, *].
	Ranges map[int][2]int `json:"ranges,omitempty" yaml:"ranges,omitempty"`

	// Natives holds name indexes of natives in Strings.
	Natives []int `json:"natives" yaml:"natives,flow"`

	// Strings is not a part of encoded blob.
	Strings []string `json:"strings" yaml:"strings"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Reshape:     make(map[int]int),
		ReshapeEach: make(map[int]int),
		Flags:       make(map[int][]grammar.Flags),
		Keys:        make(map[int][]int),
		PopFns:      make(map[int][]int),
		Ranges:      make(map[int][2]int),
	}
}

// Len returns number of rules.
func (s *Snapshot) Len() int {
	return len(s.Kinds)
}

// NativeName returns name of native by index.
func (s *Snapshot) NativeName(index int) string {
	return s.Strings[s.Natives[index]]
}

// Range returns repetition bounds of rule id, negative max means no limit.
func (s *Snapshot) Range(id int) (min, max int) {
	r, has := s.Ranges[id]
	if !has {
		return 0, -1
	}
	return r[0], r[1] - 1
}

// Children returns children ids of rule id, nil for kinds without children.
func (s *Snapshot) Children(id int) []int {
	switch s.Kinds[id] {
	case grammar.NotRule, grammar.OrRule, grammar.SeqRule, grammar.SeqObjectRule, grammar.RepeatRule:
		return s.Lists[s.Values[id]]
	default:
		return nil
	}
}

// Equal compares snapshots structurally, nil and empty tables are equal.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return cmp.Equal(*s, *other, cmpopts.EquateEmpty())
}

// Stats contains snapshot table sizes.
type Stats struct {
	Rules   int            `json:"rules" yaml:"rules"`
	Lists   int            `json:"lists" yaml:"lists"`
	Refs    int            `json:"refs" yaml:"refs"`
	Strings int            `json:"strings" yaml:"strings"`
	Natives int            `json:"natives" yaml:"natives"`
	Kinds   map[string]int `json:"kinds" yaml:"kinds"`
}

func (s *Snapshot) Stats() Stats {
	result := Stats{
		Rules:   len(s.Kinds),
		Lists:   len(s.Lists),
		Refs:    len(s.Refs),
		Strings: len(s.Strings),
		Natives: len(s.Natives),
		Kinds:   make(map[string]int),
	}
	for _, k := range s.Kinds {
		result.Kinds[k.String()]++
	}
	return result
}

func (st Stats) String() string {
	names := make([]string, 0, len(st.Kinds))
	for name := range st.Kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %d", name, st.Kinds[name])
	}
	return fmt.Sprintf("rules: %d, lists: %d, refs: %d, strings: %d, natives: %d (%s)",
		st.Rules, st.Lists, st.Refs, st.Strings, st.Natives, strings.Join(parts, ", "))
}

// Option configures Create.
type Option func(*flattener)

// WithLogger makes Create log flattening statistics at debug level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *flattener) {
		f.logger = l
	}
}
