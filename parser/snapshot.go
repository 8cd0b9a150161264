package parser

import (
	"github.com/ava12/packrat/grammar"
	"github.com/ava12/packrat/snapshot"
)

type snapshotLoader struct {
	s       *snapshot.Snapshot
	natives Natives
}

func (sl *snapshotLoader) native(index int) (name string, fn any, e error) {
	if index < 0 || index >= len(sl.s.Natives) {
		return "", nil, invalidNativeIndexError(index)
	}

	name = sl.s.NativeName(index)
	fn, has := sl.natives[name]
	if !has || fn == nil {
		return name, nil, missingNativeError(name)
	}
	return name, fn, nil
}

func (sl *snapshotLoader) reshape(id int, table map[int]int) (ReshapeFunc, error) {
	index, has := table[id]
	if !has {
		return nil, nil
	}

	name, fn, e := sl.native(index)
	if e != nil {
		return nil, e
	}
	return reshapeFunc(name, fn)
}

func (sl *snapshotLoader) spec(id int) (spec ruleSpec, e error) {
	s := sl.s
	spec = ruleSpec{kind: s.Kinds[id], max: -1}
	value := s.Values[id]

	switch spec.kind {
	case grammar.TokenRule, grammar.RegexRule:
		spec.text = s.Strings[value]

	case grammar.AnyRule:
		spec.count = value

	case grammar.RefRule:
		spec.target = s.Refs[value]

	case grammar.AtomRule:
		var name string
		var fn any
		if name, fn, e = sl.native(value); e == nil {
			spec.atom, e = atomFunc(name, fn)
		}

	case grammar.RepeatRule:
		spec.children = s.Children(id)
		spec.min, spec.max = s.Range(id)

	case grammar.SeqRule, grammar.SeqObjectRule:
		spec.children = s.Children(id)
		e = sl.items(id, &spec)

	default:
		spec.children = s.Children(id)
	}
	if e != nil {
		return
	}

	if spec.reshape, e = sl.reshape(id, s.Reshape); e != nil {
		return
	}
	spec.reshapeEach, e = sl.reshape(id, s.ReshapeEach)
	return
}

func (sl *snapshotLoader) items(id int, spec *ruleSpec) error {
	n := len(spec.children)
	spec.flags = make([]grammar.Flags, n)
	spec.keys = make([]string, n)
	spec.pops = make([]PopFunc, n)

	copy(spec.flags, sl.s.Flags[id])
	for i, key := range sl.s.Keys[id] {
		if key != 0 {
			spec.keys[i] = sl.s.Strings[key-1]
		}
	}
	for i, pop := range sl.s.PopFns[id] {
		if pop == 0 {
			continue
		}

		name, fn, e := sl.native(pop - 1)
		if e == nil {
			spec.pops[i], e = popFunc(name, fn)
		}
		if e != nil {
			return e
		}
	}
	return nil
}

// LoadSnapshot creates program evaluating snapshot rules. Natives are looked up by name,
// every native used by snapshot must be supplied.
// Snapshot is validated first, so it may come from untrusted source.
func LoadSnapshot(natives Natives, s *snapshot.Snapshot, opts ...Option) (*Program, error) {
	if e := s.Validate(); e != nil {
		return nil, e
	}

	sl := &snapshotLoader{s: s, natives: natives}
	specs := make([]ruleSpec, s.Len())
	for id := range specs {
		spec, e := sl.spec(id)
		if e != nil {
			return nil, e
		}
		specs[id] = spec
	}

	return newProgram(specs, s.Entry, makeOptions(opts))
}
