package parser

import (
	"github.com/ava12/packrat/grammar"
)

// ReshapeFunc transforms resolved values of successful match into single value.
type ReshapeFunc = func(values []any) any

// PopFunc is a capture predicate. It receives resolved values of the latest captured item
// and of the current item and tells whether the sequence may continue.
type PopFunc = func(pushed, popped []any, ctx *Context) bool

// AtomFunc is a native matcher. It must return result with Pos equal to pos and must not consume
// tokens beyond the end of token array.
type AtomFunc = func(ctx *Context, pos int) Result

// Natives maps native names to functions, it is used to re-attach natives to a snapshot.
type Natives map[string]any

// NativesOf collects natives of a grammar by name.
func NativesOf(g *grammar.Grammar) Natives {
	result := make(Natives, len(g.Natives))
	for _, n := range g.Natives {
		result[n.Name] = n.Fn
	}
	return result
}

func reshapeFunc(name string, fn any) (ReshapeFunc, error) {
	switch f := fn.(type) {
	case func(values []any) any:
		return f, nil
	default:
		return nil, nativeTypeError("reshape function", name, fn)
	}
}

func popFunc(name string, fn any) (PopFunc, error) {
	switch f := fn.(type) {
	case func(pushed, popped []any, ctx *Context) bool:
		return f, nil
	case func(pushed, popped []any) bool:
		return func(pushed, popped []any, _ *Context) bool {
			return f(pushed, popped)
		}, nil
	default:
		return nil, nativeTypeError("capture predicate", name, fn)
	}
}

func atomFunc(name string, fn any) (AtomFunc, error) {
	switch f := fn.(type) {
	case func(ctx *Context, pos int) Result:
		return f, nil
	default:
		return nil, nativeTypeError("atom", name, fn)
	}
}
