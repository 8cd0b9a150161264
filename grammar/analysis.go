package grammar

import (
	"github.com/ava12/packrat/internal/ints"
	"github.com/ava12/packrat/internal/leftrec"
)

// nodes adapts grammar to left recursion analysis.
type nodes []Node

func (ns nodes) Len() int {
	return len(ns)
}

// Nullable treats atoms as consuming.
func (ns nodes) Nullable(id int, known []bool) bool {
	n := &ns[id]
	switch n.Kind {
	case EofRule, NotRule:
		return true
	case AnyRule:
		return n.Count == 0
	case RefRule:
		return known[n.Target]
	case OrRule:
		for _, c := range n.Children {
			if known[c] {
				return true
			}
		}
		return false
	case RepeatRule:
		return n.Min == 0 || known[n.Children[0]]
	case SeqRule, SeqObjectRule:
		for i, c := range n.Children {
			if n.Flags[i]&OptionalItem == 0 && !known[c] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (ns nodes) LeftCalls(id int, nullable []bool) []int {
	n := &ns[id]
	switch n.Kind {
	case RefRule:
		return []int{n.Target}
	case OrRule, NotRule, RepeatRule:
		return n.Children
	case SeqRule, SeqObjectRule:
		for i, c := range n.Children {
			if n.Flags[i]&OptionalItem == 0 && !nullable[c] {
				return n.Children[:i+1]
			}
		}
		return n.Children
	default:
		return nil
	}
}

// nullables marks rules that may succeed without consuming tokens.
func nullables(g *Grammar) []bool {
	return leftrec.Nullables(nodes(g.Nodes))
}

func findLeftRecursions(g *Grammar) error {
	ids := leftrec.Find(nodes(g.Nodes))
	if ids == nil {
		return nil
	}

	var named []int
	for _, id := range ids {
		if id < g.Reserved {
			named = append(named, id)
		}
	}
	if len(named) > 0 {
		ids = named
	}
	return leftRecursionError(ids)
}

type headRec struct {
	leaves   *ints.Set
	wildcard bool
}

type headFinder struct {
	g        *Grammar
	nullable []bool
	done     map[int]headRec
	visiting map[int]bool
}

func computeHeads(g *Grammar) map[int][]Head {
	hf := &headFinder{
		g:        g,
		nullable: nullables(g),
		done:     make(map[int]headRec),
		visiting: make(map[int]bool),
	}

	result := make(map[int][]Head)
	for id, n := range g.Nodes {
		if n.Kind != OrRule {
			continue
		}

		heads := make([]Head, len(n.Children))
		for i, c := range n.Children {
			h := hf.head(c)
			heads[i] = Head{Leaves: h.leaves.ToSlice(), Wildcard: h.wildcard}
		}
		result[id] = heads
	}
	return result
}

func (hf *headFinder) head(id int) headRec {
	if h, has := hf.done[id]; has {
		return h
	}
	if hf.visiting[id] {
		return headRec{ints.NewSet(), true}
	}

	hf.visiting[id] = true
	h := hf.compute(&hf.g.Nodes[id], id)
	delete(hf.visiting, id)
	hf.done[id] = h
	return h
}

func (hf *headFinder) compute(n *Node, id int) headRec {
	result := headRec{leaves: ints.NewSet()}
	merge := func(child int) headRec {
		h := hf.head(child)
		result.leaves.Union(h.leaves)
		result.wildcard = result.wildcard || h.wildcard
		return h
	}

	switch n.Kind {
	case TokenRule, RegexRule, EofRule:
		result.leaves.Add(id)

	case RefRule:
		merge(n.Target)

	case OrRule:
		for _, c := range n.Children {
			merge(c)
		}

	case RepeatRule:
		merge(n.Children[0])
		if n.Min == 0 {
			result.wildcard = true
		}

	case SeqRule, SeqObjectRule:
		stopped := false
		for i, c := range n.Children {
			merge(c)
			if n.Flags[i]&OptionalItem == 0 && !hf.nullable[c] {
				stopped = true
				break
			}
		}
		if !stopped {
			result.wildcard = true
		}

	default:
		result.wildcard = true
	}

	return result
}
