package parser

import (
	"fmt"

	regexp "github.com/wasilibs/go-re2"

	"github.com/ava12/packrat/grammar"
)

func fail(kind FailKind, id, pos int) *Failure {
	return &Failure{Kind: kind, Pos: pos, Rule: id, Index: -1}
}

func failed(f *Failure) Result {
	return Result{Pos: f.Pos, Fail: f}
}

func matchToken(id int, text string) matcher {
	return func(c *Context, pos int) Result {
		if pos < len(c.tokens) && c.tokens[pos] == text {
			return Result{Pos: pos, Len: 1, Values: []any{TokenRef(pos)}}
		}

		f := fail(TokenUnmatch, id, pos)
		f.Detail = text
		return failed(f)
	}
}

func matchRegex(id int, pattern string, re *regexp.Regexp) matcher {
	return func(c *Context, pos int) Result {
		if pos < len(c.tokens) && re.MatchString(c.tokens[pos]) {
			return Result{Pos: pos, Len: 1, Values: []any{TokenRef(pos)}}
		}

		f := fail(RegexUnmatch, id, pos)
		f.Detail = pattern
		return failed(f)
	}
}

func matchEof(id int) matcher {
	return func(c *Context, pos int) Result {
		if pos >= len(c.tokens) {
			return Result{Pos: pos}
		}
		return failed(fail(EofUnmatch, id, pos))
	}
}

func matchAny(id, count int) matcher {
	return func(c *Context, pos int) Result {
		if count > len(c.tokens)-pos {
			f := fail(AnyUnmatch, id, pos)
			f.Count = count
			return failed(f)
		}

		values := make([]any, count)
		for i := range values {
			values[i] = TokenRef(pos + i)
		}
		return Result{Pos: pos, Len: count, Values: values}
	}
}

func matchNot(id int, children []int) matcher {
	return func(c *Context, pos int) Result {
		for _, child := range children {
			r := c.ParseRule(child, pos)
			if r.Fail == nil {
				f := fail(NotIncorrectMatch, id, pos)
				f.Match = &r
				return failed(f)
			}
		}
		return Result{Pos: pos}
	}
}

func matchRef(target int) matcher {
	return func(c *Context, pos int) Result {
		return c.ParseRule(target, pos)
	}
}

func matchOr(id int, children []int) matcher {
	return func(c *Context, pos int) Result {
		heads := c.program.rules[id].heads
		fails := make([]*Failure, len(children))
		for i, child := range children {
			if heads != nil && !c.headMatches(&heads[i], pos) {
				f := fail(HeadUnmatch, child, pos)
				f.Detail = heads[i].detail
				fails[i] = f
				continue
			}

			r := c.ParseRule(child, pos)
			if r.Fail == nil {
				return r
			}
			fails[i] = r.Fail
		}

		f := fail(OrUnmatchAll, id, pos)
		f.Children = fails
		return failed(f)
	}
}

func (c *Context) headMatches(h *head, pos int) bool {
	if h.wildcard {
		return true
	}

	for _, leaf := range h.leaves {
		r := &c.program.rules[leaf]
		switch r.kind {
		case grammar.TokenRule:
			if pos < len(c.tokens) && c.tokens[pos] == r.text {
				return true
			}
		case grammar.RegexRule:
			if pos < len(c.tokens) && r.re.MatchString(c.tokens[pos]) {
				return true
			}
		case grammar.EofRule:
			if pos >= len(c.tokens) {
				return true
			}
		}
	}
	return false
}

// matchRepeat consumes child matches greedily, the range is checked after the loop.
func matchRepeat(id, child, min, max int, each ReshapeFunc) matcher {
	return func(c *Context, pos int) Result {
		cursor := pos
		count := 0
		var values []any
		for {
			r := c.ParseRule(child, cursor)
			if r.Fail != nil {
				break
			}
			if r.Len == 0 {
				panic(fatal{zeroWidthRepeatError(id, cursor)})
			}

			count++
			cursor += r.Len
			if each != nil {
				values = append(values, each(c.Resolve(r.Values)))
			} else {
				values = append(values, r.Values...)
			}
		}

		if count < min || (max >= 0 && count > max) {
			f := fail(RepeatRangeError, id, pos)
			f.Count = count
			if max < 0 {
				f.Detail = fmt.Sprintf("at least %d", min)
			} else {
				f.Detail = fmt.Sprintf("%d to %d", min, max)
			}
			return failed(f)
		}

		return Result{Pos: pos, Len: cursor - pos, Values: values}
	}
}

type seqMatcher struct {
	id       int
	children []int
	flags    []grammar.Flags
	keys     []string
	pops     []PopFunc
	object   bool
}

func (sm *seqMatcher) match(c *Context, pos int) Result {
	cursor := pos
	var values []any
	var record Object
	if sm.object {
		record = make(Object)
	}
	var stack [][]any

	for i, child := range sm.children {
		flags := sm.flags[i]
		r := c.ParseRule(child, cursor)
		if r.Fail != nil {
			if flags&grammar.OptionalItem != 0 {
				continue
			}

			f := sm.fail(SeqStop, pos, i)
			f.Child = r.Fail
			return failed(f)
		}

		if flags&grammar.PopItem != 0 {
			if len(stack) == 0 {
				return failed(sm.fail(SeqNoStackOnPop, pos, i))
			}

			pushed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !sm.pops[i](c.Resolve(pushed), c.Resolve(r.Values), c) {
				return failed(sm.fail(SeqUnmatchStack, pos, i))
			}
		}
		if flags&grammar.PushItem != 0 {
			stack = append(stack, r.Values)
		}

		cursor += r.Len
		if flags&grammar.SkipItem != 0 {
			continue
		}

		if !sm.object {
			values = append(values, r.Values...)
		} else if sm.keys[i] != "" {
			record[sm.keys[i]] = collapse(r.Values)
		}
	}

	if sm.object {
		values = []any{record}
	}
	return Result{Pos: pos, Len: cursor - pos, Values: values}
}

func (sm *seqMatcher) fail(kind FailKind, pos, index int) *Failure {
	f := fail(kind, sm.id, pos)
	f.Index = index
	return f
}

func collapse(values []any) any {
	if len(values) == 1 {
		return values[0]
	}
	return values
}

func matchAtom(id int, fn AtomFunc) matcher {
	return func(c *Context, pos int) Result {
		r := fn(c, pos)
		if r.Fail != nil {
			f := fail(AtomError, id, pos)
			f.Child = r.Fail
			return failed(f)
		}

		if r.Pos != pos || r.Len < 0 || pos+r.Len > len(c.tokens) {
			panic(fatal{atomResultError(id, pos)})
		}
		return r
	}
}
