package grammar

// Builder collects rule definitions of a single grammar.
// Rule ids are reserved first and defined later, so rules may refer to themselves
// and to each other with Ref. Builder is not safe for concurrent use,
// but separate builders are independent.
type Builder struct {
	defs      []*Rule
	factories map[int]func() *Rule
	closed    bool
}

func NewBuilder() *Builder {
	return &Builder{factories: make(map[int]func() *Rule)}
}

// Reserve returns new rule id. The rule must be defined before Close.
func (b *Builder) Reserve() int {
	b.defs = append(b.defs, nil)
	return len(b.defs) - 1
}

// Define sets root node of reserved rule.
func (b *Builder) Define(id int, r *Rule) error {
	if b.closed {
		return builderClosedError()
	}
	if id < 0 || id >= len(b.defs) {
		return unknownRuleError(id)
	}
	if b.defs[id] != nil || b.factories[id] != nil {
		return ruleDefinedError(id)
	}
	if r == nil {
		return invalidRuleError(id, "nil rule")
	}

	b.defs[id] = r
	return nil
}

// DefineRule reserves new rule id, factory is called exactly once when the builder is closed.
func (b *Builder) DefineRule(factory func() *Rule) int {
	id := b.Reserve()
	b.factories[id] = factory
	return id
}

// Rule reserves new rule id and defines it.
func (b *Builder) Rule(r *Rule) int {
	id := b.Reserve()
	b.defs[id] = r
	return id
}

// Close invokes pending factories, assigns ids to every node and validates resulting grammar.
// Reserved rules keep their ids, other nodes get subsequent ids in depth-first order.
func (b *Builder) Close(entry int) (*Grammar, error) {
	if b.closed {
		return nil, builderClosedError()
	}
	b.closed = true

	for id := range b.defs {
		factory := b.factories[id]
		if factory == nil {
			continue
		}

		r := factory()
		if r == nil {
			return nil, invalidRuleError(id, "factory returned nil rule")
		}
		b.defs[id] = r
	}
	b.factories = nil

	var undefined []int
	for id, r := range b.defs {
		if r == nil {
			undefined = append(undefined, id)
		}
	}
	if len(undefined) > 0 {
		return nil, undefinedRuleError(undefined)
	}
	if entry < 0 || entry >= len(b.defs) {
		return nil, unknownRuleError(entry)
	}

	c := newCloser(len(b.defs))
	e := c.close(b.defs)
	if e != nil {
		return nil, e
	}

	g := &Grammar{
		Entry:    entry,
		Reserved: len(b.defs),
		Nodes:    c.nodes,
		Natives:  c.natives,
	}
	e = findLeftRecursions(g)
	if e != nil {
		return nil, e
	}

	g.heads = computeHeads(g)
	return g, nil
}

type closer struct {
	reserved int
	ids      map[*Rule]int
	nodes    []Node
	natives  []*Native
	names    map[string]*Native
	seen     map[*Native]bool
}

func newCloser(reserved int) *closer {
	return &closer{
		reserved: reserved,
		ids:      make(map[*Rule]int),
		nodes:    make([]Node, reserved),
		names:    make(map[string]*Native),
		seen:     make(map[*Native]bool),
	}
}

func (c *closer) close(defs []*Rule) error {
	aliases := make(map[int]int)
	for id, r := range defs {
		if first, has := c.ids[r]; has {
			aliases[id] = first
		} else {
			c.ids[r] = id
		}
	}

	for id, r := range defs {
		if target, has := aliases[id]; has {
			c.nodes[id] = Node{Kind: RefRule, Target: target, Max: -1}
			continue
		}

		n, e := c.convert(id, r)
		if e != nil {
			return e
		}
		c.nodes[id] = n
	}
	return nil
}

func (c *closer) assign(r *Rule) (int, error) {
	if id, has := c.ids[r]; has {
		return id, nil
	}

	id := len(c.nodes)
	c.ids[r] = id
	c.nodes = append(c.nodes, Node{})
	n, e := c.convert(id, r)
	if e != nil {
		return id, e
	}
	c.nodes[id] = n
	return id, nil
}

func (c *closer) native(id int, n *Native) error {
	if n == nil || c.seen[n] {
		return nil
	}
	if n.Fn == nil {
		return invalidRuleError(id, "native "+n.String()+" has no function")
	}

	if n.Name != "" {
		if other, has := c.names[n.Name]; has && other != n {
			return nativeConflictError(n.Name)
		}
		c.names[n.Name] = n
	}
	c.seen[n] = true
	c.natives = append(c.natives, n)
	return nil
}

func (c *closer) convert(id int, r *Rule) (Node, error) {
	if r.err != nil {
		return Node{}, r.err
	}

	n := Node{
		Kind:        r.Kind,
		Text:        r.Text,
		Count:       r.Count,
		Target:      r.Target,
		Min:         r.Min,
		Max:         r.Max,
		Atom:        r.Atom,
		Reshape:     r.Reshaper,
		ReshapeEach: r.EachReshaper,
	}

	switch r.Kind {
	case TokenRule, RegexRule, EofRule:

	case AnyRule:
		if r.Count < 0 {
			return n, invalidRuleError(id, "negative token count")
		}

	case RefRule:
		if r.Target < 0 || r.Target >= c.reserved {
			return n, unknownRuleError(r.Target)
		}

	case AtomRule:
		if r.Atom == nil {
			return n, invalidRuleError(id, "atom without native")
		}

	case OrRule, NotRule:
		if r.Kind == OrRule && len(r.Items) == 0 {
			return n, emptyChoiceError(id)
		}

	case RepeatRule:
		if len(r.Items) != 1 {
			return n, invalidRuleError(id, "repeat must have exactly one child")
		}
		if r.Min < 0 || (r.Max >= 0 && r.Max < r.Min) {
			return n, invalidRangeError(id, r.Min, r.Max)
		}

	case SeqRule, SeqObjectRule:
		n.Flags = make([]Flags, len(r.Items))
		n.Keys = make([]string, len(r.Items))
		n.Pops = make([]*Native, len(r.Items))
		for i, item := range r.Items {
			if item.Flags&^AllFlags != 0 {
				return n, ruleError(id, InvalidItemError, "unknown flags %b of item %d", item.Flags, i)
			}
			if item.Flags&PopItem != 0 && item.Pop == nil {
				return n, missingPredicateError(id, i)
			}

			n.Flags[i] = item.Flags
			n.Keys[i] = item.Key
			n.Pops[i] = item.Pop
		}

	default:
		return n, invalidRuleError(id, "unknown rule kind "+r.Kind.String())
	}

	if r.EachReshaper != nil && r.Kind != RepeatRule {
		return n, misplacedReshapeError(id, r.Kind)
	}

	for _, native := range []*Native{r.Atom, r.Reshaper, r.EachReshaper} {
		if e := c.native(id, native); e != nil {
			return n, e
		}
	}
	for _, native := range n.Pops {
		if e := c.native(id, native); e != nil {
			return n, e
		}
	}

	if len(r.Items) > 0 {
		n.Children = make([]int, len(r.Items))
	}
	for i, item := range r.Items {
		if item.Rule == nil {
			return n, invalidRuleError(id, "nil child rule")
		}

		child, e := c.assign(item.Rule)
		if e != nil {
			return n, e
		}
		n.Children[i] = child
	}

	return n, nil
}
