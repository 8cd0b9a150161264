// Package leftrec finds rules that may call themselves without consuming tokens.
package leftrec

import (
	"github.com/ava12/packrat/internal/ints"
)

// Graph is a rule table.
type Graph interface {
	// Len returns number of rules.
	Len() int

	// Nullable tells whether rule id may succeed without consuming tokens,
	// given nullability of other rules known so far.
	Nullable(id int, known []bool) bool

	// LeftCalls returns rules that may be invoked by rule id at its own start position.
	LeftCalls(id int, nullable []bool) []int
}

// Nullables computes nullability of every rule.
func Nullables(g Graph) []bool {
	result := make([]bool, g.Len())
	for changed := true; changed; {
		changed = false
		for id := range result {
			if !result[id] && g.Nullable(id, result) {
				result[id] = true
				changed = true
			}
		}
	}
	return result
}

const (
	white = iota
	grey
	black
)

// Find returns sorted ids of rules belonging to left call cycles, nil if there are none.
func Find(g Graph) []int {
	nullable := Nullables(g)
	colors := make([]int, g.Len())
	var stack []int
	found := ints.NewSet()

	var visit func(id int)
	visit = func(id int) {
		colors[id] = grey
		stack = append(stack, id)
		for _, c := range g.LeftCalls(id, nullable) {
			switch colors[c] {
			case white:
				visit(c)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					found.Add(stack[i])
					if stack[i] == c {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = black
	}

	for id := range colors {
		if colors[id] == white {
			visit(id)
		}
	}

	if found.IsEmpty() {
		return nil
	}
	return found.ToSlice()
}
