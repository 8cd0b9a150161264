// Package parser evaluates closed grammars and grammar snapshots against token arrays.
package parser

import (
	"strings"

	"github.com/sirupsen/logrus"
	regexp "github.com/wasilibs/go-re2"

	"github.com/ava12/packrat/grammar"
)

// Option configures Program.
type Option func(*options)

type options struct {
	noMemo     bool
	headFilter bool
	logger     logrus.FieldLogger
}

// WithoutMemo disables result cache. Results stay the same, evaluation may take exponential time.
func WithoutMemo() Option {
	return func(o *options) {
		o.noMemo = true
	}
}

// WithHeadFilter makes choices skip alternatives that cannot begin with current token.
// Results stay the same, failure trees contain HeadUnmatch failures for skipped alternatives.
// The option is ignored by LoadSnapshot since snapshots carry no head sets.
func WithHeadFilter() Option {
	return func(o *options) {
		o.headFilter = true
	}
}

// WithLogger makes program log every rule evaluation at debug level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// ruleSpec is a rule in a form common for grammars and snapshots.
type ruleSpec struct {
	kind     grammar.Kind
	text     string
	count    int
	target   int
	children []int
	flags    []grammar.Flags
	keys     []string
	pops     []PopFunc
	min, max int
	atom     AtomFunc

	reshape     ReshapeFunc
	reshapeEach ReshapeFunc
}

type matcher = func(c *Context, pos int) Result

type rule struct {
	kind    grammar.Kind
	text    string
	re      *regexp.Regexp
	match   matcher
	reshape ReshapeFunc
	heads   []head
}

type head struct {
	leaves   []int
	wildcard bool
	detail   string
}

// Program is a compiled grammar. Program is immutable and may be used by several goroutines,
// each parse gets its own Context.
type Program struct {
	entry  int
	rules  []rule
	memo   bool
	logger logrus.FieldLogger
}

// Entry returns entry rule id.
func (p *Program) Entry() int {
	return p.entry
}

// Len returns number of rules.
func (p *Program) Len() int {
	return len(p.rules)
}

// Compile creates program evaluating closed grammar directly.
func Compile(g *grammar.Grammar, opts ...Option) (*Program, error) {
	o := makeOptions(opts)
	specs := make([]ruleSpec, len(g.Nodes))
	for id := range g.Nodes {
		spec, e := nodeSpec(&g.Nodes[id])
		if e != nil {
			return nil, e
		}
		specs[id] = spec
	}

	p, e := newProgram(specs, g.Entry, o)
	if e != nil {
		return nil, e
	}

	if o.headFilter {
		for id := range p.rules {
			if p.rules[id].kind == grammar.OrRule {
				p.rules[id].heads = p.makeHeads(g.Heads(id))
			}
		}
	}
	return p, nil
}

func makeOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func nodeSpec(n *grammar.Node) (spec ruleSpec, e error) {
	spec = ruleSpec{
		kind:     n.Kind,
		text:     n.Text,
		count:    n.Count,
		target:   n.Target,
		children: n.Children,
		flags:    n.Flags,
		keys:     n.Keys,
		min:      n.Min,
		max:      n.Max,
	}

	if n.Atom != nil {
		spec.atom, e = atomFunc(n.Atom.Name, n.Atom.Fn)
		if e != nil {
			return
		}
	}
	if n.Reshape != nil {
		spec.reshape, e = reshapeFunc(n.Reshape.Name, n.Reshape.Fn)
		if e != nil {
			return
		}
	}
	if n.ReshapeEach != nil {
		spec.reshapeEach, e = reshapeFunc(n.ReshapeEach.Name, n.ReshapeEach.Fn)
		if e != nil {
			return
		}
	}
	if n.Pops != nil {
		spec.pops = make([]PopFunc, len(n.Pops))
		for i, native := range n.Pops {
			if native != nil {
				spec.pops[i], e = popFunc(native.Name, native.Fn)
				if e != nil {
					return
				}
			}
		}
	}
	return
}

func newProgram(specs []ruleSpec, entry int, o *options) (*Program, error) {
	p := &Program{
		entry:  entry,
		rules:  make([]rule, len(specs)),
		memo:   !o.noMemo,
		logger: o.logger,
	}
	if entry < 0 || entry >= len(specs) {
		return nil, invalidRuleIdError(-1, entry)
	}

	for id := range specs {
		r, e := p.makeRule(id, &specs[id])
		if e != nil {
			return nil, e
		}
		p.rules[id] = r
	}
	return p, nil
}

func (p *Program) checkIds(id int, ids ...int) error {
	for _, target := range ids {
		if target < 0 || target >= len(p.rules) {
			return invalidRuleIdError(id, target)
		}
	}
	return nil
}

func (p *Program) makeRule(id int, s *ruleSpec) (r rule, e error) {
	r = rule{kind: s.kind, text: s.text, reshape: s.reshape}
	if e = p.checkIds(id, s.children...); e != nil {
		return
	}

	switch s.kind {
	case grammar.TokenRule:
		r.match = matchToken(id, s.text)

	case grammar.RegexRule:
		r.re, e = regexp.Compile(s.text)
		if e != nil {
			return r, regexError(id, s.text, e)
		}
		r.match = matchRegex(id, s.text, r.re)

	case grammar.EofRule:
		r.match = matchEof(id)

	case grammar.AnyRule:
		r.match = matchAny(id, s.count)

	case grammar.NotRule:
		r.match = matchNot(id, s.children)

	case grammar.RefRule:
		if e = p.checkIds(id, s.target); e != nil {
			return
		}
		r.match = matchRef(s.target)

	case grammar.SeqRule, grammar.SeqObjectRule:
		sm := &seqMatcher{
			id:       id,
			children: s.children,
			flags:    s.flags,
			keys:     s.keys,
			pops:     s.pops,
			object:   s.kind == grammar.SeqObjectRule,
		}
		n := len(s.children)
		if len(sm.flags) != n || len(sm.keys) != n || len(sm.pops) != n {
			return r, malformedRuleError(id, "item data does not match children")
		}
		for i, f := range sm.flags {
			if f&grammar.PopItem != 0 && sm.pops[i] == nil {
				return r, malformedRuleError(id, "pop item without predicate")
			}
		}
		r.match = sm.match

	case grammar.OrRule:
		r.match = matchOr(id, s.children)

	case grammar.RepeatRule:
		if len(s.children) != 1 {
			return r, malformedRuleError(id, "repeat must have exactly one child")
		}
		r.match = matchRepeat(id, s.children[0], s.min, s.max, s.reshapeEach)

	case grammar.AtomRule:
		if s.atom == nil {
			return r, malformedRuleError(id, "atom without matcher")
		}
		r.match = matchAtom(id, s.atom)

	default:
		return r, unknownKindError(id, s.kind)
	}
	return
}

func (p *Program) makeHeads(hs []grammar.Head) []head {
	result := make([]head, len(hs))
	for i, h := range hs {
		names := make([]string, 0, len(h.Leaves))
		for _, leaf := range h.Leaves {
			r := &p.rules[leaf]
			switch r.kind {
			case grammar.TokenRule:
				names = append(names, `"`+r.text+`"`)
			case grammar.RegexRule:
				names = append(names, "/"+r.text+"/")
			default:
				names = append(names, "end of input")
			}
		}
		result[i] = head{leaves: h.Leaves, wildcard: h.Wildcard, detail: strings.Join(names, " or ")}
	}
	return result
}

// NewContext creates parsing context for token array.
func (p *Program) NewContext(tokens []string) *Context {
	c := &Context{program: p, tokens: tokens}
	if p.memo {
		c.cache = make(map[cacheKey]Result)
	}
	return c
}

// Parse matches entry rule against tokens starting at position 0.
// Failed match is not an error, error is returned only if evaluation was aborted.
func (p *Program) Parse(tokens []string) (Result, error) {
	return p.NewContext(tokens).Parse(0)
}

// ParseAt matches entry rule against tokens starting at pos.
func (p *Program) ParseAt(tokens []string, pos int) (Result, error) {
	return p.NewContext(tokens).Parse(pos)
}
