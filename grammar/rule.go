package grammar

import (
	"fmt"
)

// Kind is the kind of production.
type Kind int

const (
	// TokenRule matches single token equal to Rule.Text.
	TokenRule Kind = iota
	// RegexRule matches single token whose text matches Rule.Text pattern.
	RegexRule
	// EofRule matches (with zero width) the end of token array.
	EofRule
	// AnyRule consumes exactly Rule.Count tokens.
	AnyRule
	// NotRule is a negative lookahead: succeeds with zero width iff none of its children match.
	NotRule
	// RefRule is an indirection to a reserved rule.
	RefRule
	// SeqRule matches items in order producing flat list of values.
	SeqRule
	// SeqObjectRule matches items in order producing single keyed record.
	SeqObjectRule
	// OrRule is an ordered choice: first matching child wins.
	OrRule
	// RepeatRule is a greedy repetition of its child.
	RepeatRule
	// AtomRule delegates matching to a native function.
	AtomRule

	// KindCount is the number of known kinds.
	KindCount
)

var kindNames = [KindCount]string{
	"token", "regex", "eof", "any", "not", "ref", "seq", "seq-object", "or", "repeat", "atom",
}

func (k Kind) String() string {
	if k >= 0 && k < KindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsValid tells whether k is a known kind.
func (k Kind) IsValid() bool {
	return k >= 0 && k < KindCount
}

// Flags is a set of per-item flags of Seq and SeqObject rules.
type Flags int

const (
	// OptionalItem failure is tolerated and contributes nothing.
	OptionalItem Flags = 1 << iota
	// SkipItem success advances position but produces no values.
	SkipItem
	// PushItem success is pushed onto sequence capture stack.
	PushItem
	// PopItem success pops capture stack and calls the predicate of the item.
	PopItem

	// AllFlags is the mask of known flags.
	AllFlags = OptionalItem | SkipItem | PushItem | PopItem
)

// Native is a named reference to Go function.
// Natives cannot be serialized, snapshots keep their names and natives are re-attached by name.
// Expected function types are defined by parser package.
type Native struct {
	Name string
	Fn   any
}

// Fn creates new native. Name should be unique within a grammar, it may be empty
// if the grammar is never turned into a snapshot.
func Fn(name string, fn any) *Native {
	return &Native{Name: name, Fn: fn}
}

func (n *Native) String() string {
	if n.Name == "" {
		return "<anonymous>"
	}
	return n.Name
}

// Rule is a node of a grammar under construction.
// The same node may be used in several places, it gets single rule id when the builder is closed.
type Rule struct {
	Kind Kind

	// Text holds token text for TokenRule and pattern for RegexRule.
	Text string

	// Count holds token count for AnyRule.
	Count int

	// Target holds reserved rule id for RefRule.
	Target int

	// Items holds children of NotRule, SeqRule, SeqObjectRule, OrRule, and RepeatRule (single item).
	// Flags, keys, and predicates are used by sequences only.
	Items []Item

	// Min and Max bound RepeatRule iteration count, negative Max means no upper bound.
	Min, Max int

	// Atom holds matcher of AtomRule.
	Atom *Native

	// Reshaper is applied to resolved values of successful match.
	Reshaper *Native

	// EachReshaper is applied to resolved values of each RepeatRule iteration.
	EachReshaper *Native

	err error
}

// Item is a child of a sequence with its flags.
type Item struct {
	Rule  *Rule
	Flags Flags
	Key   string
	Pop   *Native
}

// Reshape sets reshape function, returns r.
func (r *Rule) Reshape(n *Native) *Rule {
	r.Reshaper = n
	return r
}

// ReshapeEach sets per-iteration reshape function of RepeatRule, returns r.
func (r *Rule) ReshapeEach(n *Native) *Rule {
	r.EachReshaper = n
	return r
}

func (r *Rule) fail(e error) *Rule {
	if r.err == nil {
		r.err = e
	}
	return r
}

// Token creates rule matching a token equal to text.
func Token(text string) *Rule {
	return &Rule{Kind: TokenRule, Text: text}
}

// Regex creates rule matching a token against RE2 pattern. Pattern is not anchored implicitly.
func Regex(pattern string) *Rule {
	return &Rule{Kind: RegexRule, Text: pattern}
}

// Eof creates rule matching the end of token array.
func Eof() *Rule {
	return &Rule{Kind: EofRule}
}

// Any creates rule consuming exactly n tokens.
func Any(n int) *Rule {
	return &Rule{Kind: AnyRule, Count: n}
}

// Ref creates reference to rule reserved with Builder.Reserve or Builder.DefineRule.
func Ref(id int) *Rule {
	return &Rule{Kind: RefRule, Target: id}
}

// Atom creates rule calling native matcher.
func Atom(n *Native) *Rule {
	return &Rule{Kind: AtomRule, Atom: n}
}

func plainItems(children []*Rule) []Item {
	result := make([]Item, len(children))
	for i, c := range children {
		result[i] = Item{Rule: c}
	}
	return result
}

// Not creates negative lookahead.
func Not(children ...*Rule) *Rule {
	return &Rule{Kind: NotRule, Items: plainItems(children)}
}

// Or creates ordered choice.
func Or(children ...*Rule) *Rule {
	return &Rule{Kind: OrRule, Items: plainItems(children)}
}

// Repeat creates greedy repetition. Optional limits are minimum and maximum iteration count,
// default is zero or more.
func Repeat(child *Rule, limits ...int) *Rule {
	result := &Rule{Kind: RepeatRule, Items: []Item{{Rule: child}}, Max: -1}
	switch len(limits) {
	case 0:
	case 1:
		result.Min = limits[0]
	case 2:
		result.Min, result.Max = limits[0], limits[1]
	default:
		result.fail(FormatError(InvalidRangeError, "too many repeat limits: %v", limits))
	}
	return result
}

// Repeat1 creates one-or-more repetition.
func Repeat1(child *Rule) *Rule {
	return Repeat(child, 1)
}

// Seq creates sequence producing flat list of values. Each item is either *Rule or Item.
func Seq(items ...any) *Rule {
	return sequence(SeqRule, items)
}

// SeqObject creates sequence producing a record of keyed item values. Each item is either *Rule or Item,
// values of items without keys are dropped.
func SeqObject(items ...any) *Rule {
	return sequence(SeqObjectRule, items)
}

func sequence(kind Kind, items []any) *Rule {
	result := &Rule{Kind: kind, Items: make([]Item, len(items))}
	for i, x := range items {
		item, e := toItem(x)
		if e != nil {
			result.fail(e)
		}
		result.Items[i] = item
	}
	return result
}

func toItem(x any) (Item, error) {
	switch v := x.(type) {
	case *Rule:
		return Item{Rule: v}, nil
	case Item:
		return v, nil
	default:
		return Item{}, FormatError(InvalidItemError, "sequence item must be *Rule or Item, got %T", x)
	}
}

func modify(x any, flags Flags) Item {
	item, e := toItem(x)
	if e != nil {
		item.Rule = (&Rule{Kind: SeqRule}).fail(e)
	}
	item.Flags |= flags
	return item
}

// Key names item value in SeqObject.
func Key(key string, x any) Item {
	item := modify(x, 0)
	item.Key = key
	return item
}

// Optional marks item as optional.
func Optional(x any) Item {
	return modify(x, OptionalItem)
}

// Skip drops item values.
func Skip(x any) Item {
	return modify(x, SkipItem)
}

// SkipOptional marks item as optional and drops its values.
func SkipOptional(x any) Item {
	return modify(x, OptionalItem|SkipItem)
}

// PushCapture pushes item values onto sequence capture stack.
func PushCapture(x any) Item {
	return modify(x, PushItem)
}

// PopCapture pops sequence capture stack and calls predicate with pushed and current item values.
func PopCapture(predicate *Native, x any) Item {
	item := modify(x, PopItem)
	item.Pop = predicate
	return item
}
