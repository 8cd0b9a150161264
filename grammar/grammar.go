// Package grammar defines rule model, combinators, and the builder producing closed grammars.
package grammar

import (
	"fmt"
	"strings"
)

// Node is a rule of closed grammar. Children refer to other nodes by id.
type Node struct {
	Kind     Kind
	Text     string
	Count    int
	Target   int
	Children []int

	// Flags, Keys, and Pops are per-child data of sequences, nil for other kinds.
	Flags []Flags
	Keys  []string
	Pops  []*Native

	Min, Max int

	Atom        *Native
	Reshape     *Native
	ReshapeEach *Native
}

// Head describes tokens that can begin a match of an alternative.
// Leaves holds ids of TokenRule, RegexRule, and EofRule nodes.
// Wildcard is set when the alternative can begin with anything (or match empty input).
type Head struct {
	Leaves   []int
	Wildcard bool
}

// Grammar is an arena of rules indexed by dense id.
// Ids [0, Reserved) belong to reserved rules, other nodes are anonymous.
// Grammar is immutable and safe for concurrent use.
type Grammar struct {
	Entry    int
	Reserved int
	Nodes    []Node

	// Natives contains every distinct native used by the grammar in order of discovery.
	Natives []*Native

	heads map[int][]Head
}

// Len returns number of nodes.
func (g *Grammar) Len() int {
	return len(g.Nodes)
}

// Node returns node by id or nil.
func (g *Grammar) Node(id int) *Node {
	if id < 0 || id >= len(g.Nodes) {
		return nil
	}
	return &g.Nodes[id]
}

// Heads returns head set of each alternative of OrRule, nil for other kinds.
func (g *Grammar) Heads(id int) []Head {
	return g.heads[id]
}

// Resolve follows RefRule chain starting at id.
func (g *Grammar) Resolve(id int) int {
	for i := 0; i < len(g.Nodes) && g.Nodes[id].Kind == RefRule; i++ {
		id = g.Nodes[id].Target
	}
	return id
}

// String returns readable dump, one node per line.
func (g *Grammar) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "entry #%d\n", g.Entry)
	for id, n := range g.Nodes {
		fmt.Fprintf(&sb, "#%d = %s\n", id, n.String())
	}
	return sb.String()
}

func (n *Node) String() string {
	var sb strings.Builder
	sb.WriteString(n.Kind.String())
	switch n.Kind {
	case TokenRule, RegexRule:
		fmt.Fprintf(&sb, " %q", n.Text)
	case AnyRule:
		fmt.Fprintf(&sb, " %d", n.Count)
	case RefRule:
		fmt.Fprintf(&sb, " #%d", n.Target)
	case AtomRule:
		sb.WriteString(" " + n.Atom.String())
	case RepeatRule:
		fmt.Fprintf(&sb, " #%d [%d, ", n.Children[0], n.Min)
		if n.Max < 0 {
			sb.WriteString("*]")
		} else {
			fmt.Fprintf(&sb, "%d]", n.Max)
		}
	default:
		for i, c := range n.Children {
			sb.WriteString(" ")
			if n.Flags != nil {
				sb.WriteString(itemPrefix(n.Flags[i], n.Keys[i]))
			}
			fmt.Fprintf(&sb, "#%d", c)
		}
	}

	if n.Reshape != nil {
		sb.WriteString(" => " + n.Reshape.String())
	}
	if n.ReshapeEach != nil {
		sb.WriteString(" =>* " + n.ReshapeEach.String())
	}
	return sb.String()
}

func itemPrefix(f Flags, key string) string {
	result := ""
	if key != "" {
		result = key + ":"
	}
	if f&OptionalItem != 0 {
		result += "?"
	}
	if f&SkipItem != 0 {
		result += "-"
	}
	if f&PushItem != 0 {
		result += ">"
	}
	if f&PopItem != 0 {
		result += "<"
	}
	return result
}
