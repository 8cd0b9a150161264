package parser

import (
	"fmt"
	"strings"

	"github.com/ava12/packrat"
)

// TokenRef is a value referring to token by its index, it is replaced with token text when values are resolved.
type TokenRef int

// Object is the value produced by SeqObject rule. An item that produced single value is stored as is,
// other items are stored as []any.
type Object map[string]any

// Result is the outcome of a rule evaluated at Pos.
// Successful result consumes Len tokens and contains Values, failed result contains Fail.
// Results are cached and shared, Values must not be modified.
type Result struct {
	Pos    int
	Len    int
	Values []any
	Fail   *Failure
}

// OK tells whether result is successful.
func (r Result) OK() bool {
	return r.Fail == nil
}

// End returns position following consumed tokens.
func (r Result) End() int {
	return r.Pos + r.Len
}

// Match creates successful result, it is intended for atoms.
func Match(pos, length int, values ...any) Result {
	return Result{Pos: pos, Len: length, Values: values}
}

// Mismatch creates failed result, it is intended for atoms. expected describes what the atom was looking for.
func Mismatch(pos int, expected string) Result {
	return Result{Pos: pos, Fail: &Failure{Kind: TokenUnmatch, Pos: pos, Rule: -1, Index: -1, Detail: expected}}
}

// FailKind is a failure kind, values are error codes of packrat.ParseErrors class.
type FailKind int

// Failure kinds:
const (
	// TokenUnmatch: current token differs from expected (Detail), or there is no current token.
	TokenUnmatch FailKind = packrat.ParseErrors + iota
	// RegexUnmatch: current token does not match pattern (Detail), or there is no current token.
	RegexUnmatch
	// EofUnmatch: there are unconsumed tokens.
	EofUnmatch
	// AnyUnmatch: there are less than Count tokens left.
	AnyUnmatch
	// NotIncorrectMatch: a child of negative lookahead matched, Match contains its result.
	NotIncorrectMatch
	// SeqStop: sequence item Index failed with Child.
	SeqStop
	// SeqUnmatchStack: predicate of item Index rejected captured values.
	SeqUnmatchStack
	// SeqNoStackOnPop: item Index pops empty capture stack.
	SeqNoStackOnPop
	// OrUnmatchAll: every alternative failed, Children contains their failures in order.
	OrUnmatchAll
	// RepeatRangeError: iteration Count is out of range (Detail).
	RepeatRangeError
	// AtomError: native matcher failed with Child.
	AtomError
	// HeadUnmatch: alternative was skipped by head filter, Detail lists its head tokens.
	HeadUnmatch
)

var failKindNames = []string{
	"TokenUnmatch", "RegexUnmatch", "EofUnmatch", "AnyUnmatch", "NotIncorrectMatch", "SeqStop",
	"SeqUnmatchStack", "SeqNoStackOnPop", "OrUnmatchAll", "RepeatRangeError", "AtomError", "HeadUnmatch",
}

func (k FailKind) String() string {
	i := int(k - TokenUnmatch)
	if i >= 0 && i < len(failKindNames) {
		return failKindNames[i]
	}
	return fmt.Sprintf("FailKind(%d)", int(k))
}

// Failure is a node of failure tree.
type Failure struct {
	Kind FailKind

	// Pos is the position where failed rule was evaluated.
	Pos int

	// Rule is failed rule id or -1 for failures created by atoms.
	Rule int

	// Index is the item index for sequence failures, -1 otherwise.
	Index int

	// Count is the number of iterations for RepeatRangeError or required tokens for AnyUnmatch.
	Count int

	// Detail describes expectation: token text, pattern, range.
	Detail string

	Match    *Result
	Child    *Failure
	Children []*Failure
}

func (f *Failure) isLeaf() bool {
	return f.Child == nil && len(f.Children) == 0
}

// Path returns failure chain from f to the deepest leaf.
// Among alternatives with equally deep leaves the first one is chosen.
func (f *Failure) Path() []*Failure {
	var result []*Failure
	for f != nil {
		result = append(result, f)
		switch {
		case f.Child != nil:
			f = f.Child
		case len(f.Children) != 0:
			best := f.Children[0]
			bestPos := best.Deepest().Pos
			for _, c := range f.Children[1:] {
				if p := c.Deepest().Pos; p > bestPos {
					best, bestPos = c, p
				}
			}
			f = best
		default:
			f = nil
		}
	}
	return result
}

// Deepest returns the last element of Path.
func (f *Failure) Deepest() *Failure {
	for {
		if f.Child != nil {
			f = f.Child
			continue
		}
		if len(f.Children) == 0 {
			return f
		}

		path := f.Path()
		return path[len(path)-1]
	}
}

// Expected returns descriptions of leaf failures located at the deepest position of the tree, without duplicates.
func (f *Failure) Expected() []string {
	pos := f.Deepest().Pos
	seen := make(map[string]bool)
	var result []string
	var walk func(f *Failure)
	walk = func(f *Failure) {
		if f.isLeaf() {
			if f.Pos == pos {
				d := f.describe()
				if !seen[d] {
					seen[d] = true
					result = append(result, d)
				}
			}
			return
		}

		if f.Child != nil {
			walk(f.Child)
		}
		for _, c := range f.Children {
			walk(c)
		}
	}
	walk(f)
	return result
}

func (f *Failure) describe() string {
	switch f.Kind {
	case TokenUnmatch:
		return fmt.Sprintf("%q", f.Detail)
	case RegexUnmatch:
		return "/" + f.Detail + "/"
	case EofUnmatch:
		return "end of input"
	case AnyUnmatch:
		return fmt.Sprintf("%d tokens", f.Count)
	case NotIncorrectMatch:
		return "no match of negative lookahead"
	case SeqUnmatchStack:
		return fmt.Sprintf("captured values at item %d", f.Index)
	case SeqNoStackOnPop:
		return fmt.Sprintf("capture before item %d", f.Index)
	case RepeatRangeError:
		return fmt.Sprintf("%s repetitions, got %d", f.Detail, f.Count)
	case HeadUnmatch:
		return f.Detail
	default:
		return f.Kind.String()
	}
}

// Error describes the deepest failure.
func (f *Failure) Error() string {
	d := f.Deepest()
	return fmt.Sprintf("%s: expecting %s at token %d", d.Kind, strings.Join(f.Expected(), " or "), d.Pos)
}

// ToError converts failure tree to packrat.Error using the deepest failure.
// tokens may be nil, otherwise the token found at failure position is added to message.
func (f *Failure) ToError(tokens []string) *packrat.Error {
	d := f.Deepest()
	msg := "expecting " + strings.Join(f.Expected(), " or ")
	if tokens != nil {
		if d.Pos < len(tokens) {
			msg += fmt.Sprintf(", got %q", tokens[d.Pos])
		} else {
			msg += ", got end of input"
		}
	}
	return packrat.NewError(int(d.Kind), msg, d.Rule, d.Pos)
}
