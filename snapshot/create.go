package snapshot

import (
	"github.com/sirupsen/logrus"

	"github.com/ava12/packrat/grammar"
	"github.com/ava12/packrat/internal/bmap"
	"github.com/ava12/packrat/internal/queue"
	"github.com/ava12/packrat/internal/wire"
)

type flattener struct {
	g       *grammar.Grammar
	s       *Snapshot
	logger  logrus.FieldLogger
	ids     map[int]int
	shapes  *bmap.BMap[int]
	lists   *bmap.BMap[int]
	strings map[string]int
	natives map[string]*grammar.Native
	refs    map[int]int
	targets []int
	pending *queue.Queue[int]
}

// Create flattens rules reachable from grammar entry.
// Structurally equal rules (including attached metadata) are stored once.
func Create(g *grammar.Grammar, opts ...Option) (*Snapshot, error) {
	f := &flattener{
		g:       g,
		s:       newSnapshot(),
		ids:     make(map[int]int),
		shapes:  bmap.New[int](len(g.Nodes)),
		lists:   bmap.New[int](len(g.Nodes)),
		strings: make(map[string]int),
		natives: make(map[string]*grammar.Native),
		refs:    make(map[int]int),
		pending: queue.New[int](),
	}
	for _, opt := range opts {
		opt(f)
	}

	entry, e := f.emit(g.Entry)
	if e != nil {
		return nil, e
	}
	f.s.Entry = entry

	for !f.pending.IsEmpty() {
		target, _ := f.pending.First()
		if _, e = f.emit(target); e != nil {
			return nil, e
		}
	}

	f.s.Refs = make([]int, len(f.targets))
	for i, target := range f.targets {
		f.s.Refs[i] = f.ids[target]
	}

	if f.logger != nil {
		f.logger.WithFields(logrus.Fields{
			"nodes":   len(g.Nodes),
			"reached": len(f.ids),
			"rules":   f.s.Len(),
			"lists":   len(f.s.Lists),
			"strings": len(f.s.Strings),
			"natives": len(f.s.Natives),
		}).Debug("grammar flattened")
	}
	return f.s, nil
}

func (f *flattener) str(text string) int {
	index, has := f.strings[text]
	if !has {
		index = len(f.s.Strings)
		f.strings[text] = index
		f.s.Strings = append(f.s.Strings, text)
	}
	return index
}

func (f *flattener) native(id int, n *grammar.Native) (int, error) {
	if n.Name == "" {
		return 0, unnamedNativeError(id)
	}

	if known, has := f.natives[n.Name]; has && known != n {
		return 0, nativeConflictError(n.Name)
	}
	f.natives[n.Name] = n

	name := f.str(n.Name)
	for i, index := range f.s.Natives {
		if index == name {
			return i, nil
		}
	}
	f.s.Natives = append(f.s.Natives, name)
	return len(f.s.Natives) - 1, nil
}

func (f *flattener) list(ids []int) (int, error) {
	key, e := wire.Marshal(ids)
	if e != nil {
		return 0, encodeError(e)
	}

	index, added := f.lists.Intern(key, func() int { return len(f.s.Lists) })
	if added {
		f.s.Lists = append(f.s.Lists, ids)
	}
	return index, nil
}

func (f *flattener) ref(target int) int {
	index, has := f.refs[target]
	if !has {
		index = len(f.targets)
		f.refs[target] = index
		f.targets = append(f.targets, target)
		f.pending.Append(target)
	}
	return index
}

// emit stores node id after its children and returns its snapshot id.
// Recursion is broken by RefRule nodes: their targets are queued and resolved later.
func (f *flattener) emit(id int) (int, error) {
	if sid, has := f.ids[id]; has {
		return sid, nil
	}

	n := f.g.Node(id)
	var value int
	var e error
	switch n.Kind {
	case grammar.TokenRule, grammar.RegexRule:
		value = f.str(n.Text)

	case grammar.AnyRule:
		value = n.Count

	case grammar.AtomRule:
		value, e = f.native(id, n.Atom)

	case grammar.RefRule:
		value = f.ref(n.Target)

	case grammar.EofRule:

	case grammar.NotRule, grammar.OrRule, grammar.SeqRule, grammar.SeqObjectRule, grammar.RepeatRule:
		children := make([]int, len(n.Children))
		for i, c := range n.Children {
			children[i], e = f.emit(c)
			if e != nil {
				return 0, e
			}
		}
		value, e = f.list(children)

	default:
		return 0, kindError(id, n.Kind)
	}
	if e != nil {
		return 0, e
	}

	m, e := f.metadata(id, n)
	if e != nil {
		return 0, e
	}

	key, e := wire.Marshal([]any{int(n.Kind), value, m.shape()})
	if e != nil {
		return 0, encodeError(e)
	}

	sid, added := f.shapes.Intern(key, func() int { return f.s.Len() })
	f.ids[id] = sid
	if added {
		f.s.Kinds = append(f.s.Kinds, n.Kind)
		f.s.Values = append(f.s.Values, value)
		m.store(f.s, sid)
	}
	return sid, nil
}

// metadata holds sparse data of a rule, -1 and nil mean absence.
type metadata struct {
	reshape, each int
	flags         []grammar.Flags
	keys, pops    []int
	hasRange      bool
	rng           [2]int
}

func (f *flattener) metadata(id int, n *grammar.Node) (m metadata, e error) {
	m.reshape, m.each = -1, -1
	if n.Reshape != nil {
		if m.reshape, e = f.native(id, n.Reshape); e != nil {
			return
		}
	}
	if n.ReshapeEach != nil {
		if m.each, e = f.native(id, n.ReshapeEach); e != nil {
			return
		}
	}

	if n.Kind == grammar.RepeatRule && (n.Min != 0 || n.Max >= 0) {
		m.hasRange = true
		m.rng = [2]int{n.Min, n.Max + 1}
	}

	hasFlags, hasKeys, hasPops := false, false, false
	keys := make([]int, len(n.Flags))
	pops := make([]int, len(n.Flags))
	for i, fl := range n.Flags {
		hasFlags = hasFlags || fl != 0
		if n.Keys[i] != "" {
			hasKeys = true
			keys[i] = f.str(n.Keys[i]) + 1
		}
		if n.Pops[i] != nil {
			hasPops = true
			index, e := f.native(id, n.Pops[i])
			if e != nil {
				return m, e
			}
			pops[i] = index + 1
		}
	}
	if hasFlags {
		m.flags = n.Flags
	}
	if hasKeys {
		m.keys = keys
	}
	if hasPops {
		m.pops = pops
	}
	return
}

func (m *metadata) shape() []any {
	flags := make([]int, len(m.flags))
	for i, fl := range m.flags {
		flags[i] = int(fl)
	}
	rng := []int{}
	if m.hasRange {
		rng = m.rng[:]
	}
	return []any{m.reshape + 1, m.each + 1, flags, m.keys, m.pops, rng}
}

func (m *metadata) store(s *Snapshot, id int) {
	if m.reshape >= 0 {
		s.Reshape[id] = m.reshape
	}
	if m.each >= 0 {
		s.ReshapeEach[id] = m.each
	}
	if m.flags != nil {
		s.Flags[id] = m.flags
	}
	if m.keys != nil {
		s.Keys[id] = m.keys
	}
	if m.pops != nil {
		s.PopFns[id] = m.pops
	}
	if m.hasRange {
		s.Ranges[id] = m.rng
	}
}
