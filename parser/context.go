package parser

import (
	"github.com/sirupsen/logrus"
)

type cacheKey struct {
	rule, pos int
}

// Context holds the state of a single parse: token array, result cache, and the farthest failure.
// Context is not safe for concurrent use.
type Context struct {
	program  *Program
	tokens   []string
	cache    map[cacheKey]Result
	farthest *Failure
}

// Tokens returns token array being parsed.
func (c *Context) Tokens() []string {
	return c.tokens
}

// Token returns token text at pos, valid is false if pos is out of range.
func (c *Context) Token(pos int) (text string, valid bool) {
	if pos < 0 || pos >= len(c.tokens) {
		return "", false
	}
	return c.tokens[pos], true
}

// Farthest returns the failure with the greatest position met so far (the first one if there are several).
func (c *Context) Farthest() *Failure {
	return c.farthest
}

// Parse matches entry rule starting at pos.
func (c *Context) Parse(pos int) (Result, error) {
	return c.ParseFrom(c.program.entry, pos)
}

// ParseFrom matches rule id starting at pos.
// Failed match is not an error, error is returned only if arguments are invalid or evaluation was aborted.
func (c *Context) ParseFrom(id, pos int) (r Result, e error) {
	if pos < 0 || pos > len(c.tokens) {
		return Result{Pos: pos}, invalidPositionError(pos, len(c.tokens))
	}
	if id < 0 || id >= len(c.program.rules) {
		return Result{Pos: pos}, invalidRuleIdError(-1, id)
	}

	defer func() {
		if x := recover(); x != nil {
			f, ok := x.(fatal)
			if !ok {
				panic(x)
			}
			r, e = Result{Pos: pos}, f.err
		}
	}()

	return c.ParseRule(id, pos), nil
}

// ParseRule matches rule id at pos using result cache. It is intended for atoms,
// other callers should use ParseFrom.
func (c *Context) ParseRule(id, pos int) Result {
	if id < 0 || id >= len(c.program.rules) {
		panic(fatal{invalidRuleIdError(-1, id)})
	}

	key := cacheKey{id, pos}
	if c.cache != nil {
		if result, has := c.cache[key]; has {
			return result
		}
	}

	r := &c.program.rules[id]
	result := r.match(c, pos)
	if result.Fail == nil {
		if r.reshape != nil {
			result.Values = []any{r.reshape(c.Resolve(result.Values))}
		}
	} else {
		c.noteFailure(result.Fail)
	}

	if c.program.logger != nil {
		c.program.logger.WithFields(logrus.Fields{
			"rule": id,
			"kind": r.kind.String(),
			"pos":  pos,
			"ok":   result.OK(),
			"len":  result.Len,
		}).Debug("rule evaluated")
	}

	if c.cache != nil {
		c.cache[key] = result
	}
	return result
}

func (c *Context) noteFailure(f *Failure) {
	if c.farthest == nil || f.Pos > c.farthest.Pos {
		c.farthest = f
	}
}

// Resolve returns a copy of values with token references replaced by token text.
// Objects are resolved recursively.
func (c *Context) Resolve(values []any) []any {
	if values == nil {
		return nil
	}

	result := make([]any, len(values))
	for i, v := range values {
		result[i] = c.resolve(v)
	}
	return result
}

func (c *Context) resolve(v any) any {
	switch x := v.(type) {
	case TokenRef:
		return c.tokens[x]
	case Object:
		o := make(Object, len(x))
		for k, item := range x {
			o[k] = c.resolve(item)
		}
		return o
	case []any:
		return c.Resolve(x)
	default:
		return v
	}
}
