/*
Package packrat is a packrat parser-combinator engine working on token arrays.

Consists of subpackages:
  - grammar: rule model, combinators and the two-phase builder producing a closed grammar;
  - parser: memoizing evaluator running a grammar (or a snapshot of it) against a token array;
  - snapshot: flattens a closed grammar into numeric tables and packs them into a compact binary blob;
  - snapgen: renders a snapshot as Go source, JSON or YAML;
  - cmd/packratgen: console utility generating snapshot artifacts for bundled grammars.

Typical usage is:

1. Describe grammar with grammar combinators. Mutually recursive rules are reserved first
and defined later, reshape functions and capture predicates are attached as named natives.

2. Either compile closed grammar directly with parser.Compile ("eager" mode) or create a snapshot,
encode it and ship the blob together with its string table.

3. Load the snapshot with parser.LoadSnapshot supplying the same natives by name.

4. Feed token arrays produced by an external tokenizer to the program.
*/
package packrat

import (
	"fmt"
)

// Error classes used by subpackages, each class contains up to 99 error codes:
const (
	BuildErrors    = 1   // used by grammar
	SnapshotErrors = 101 // used by snapshot
	ParseErrors    = 201 // used by parser for failure kinds
	RuntimeErrors  = 301 // used by parser for program construction and fatal evaluation errors
)

// Error is the error type used by packrat subpackages.
type Error struct {
	// Code contains non-zero error code.
	Code int

	// Message contains non-empty error message including rule and position information if provided.
	Message string

	// Rule contains rule id related to this error or -1.
	Rule int

	// Pos contains token position related to this error or -1.
	Pos int
}

// NewError creates new Error structure.
// rule and pos will be added to error message if provided (non-negative).
func NewError(code int, msg string, rule, pos int) *Error {
	if rule >= 0 {
		msg += fmt.Sprintf(" in rule #%d", rule)
	}
	if pos >= 0 {
		msg += fmt.Sprintf(" at token %d", pos)
	}
	return &Error{code, msg, rule, pos}
}

// Error simply returns Error.Message.
func (e *Error) Error() string {
	return e.Message
}

// FormatError creates Error structure with no rule and position information.
// params will be added to error message using fmt.Sprintf function.
func FormatError(code int, msg string, params ...any) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return NewError(code, msg, -1, -1)
}

// FormatErrorAt creates Error structure with rule and position information.
// params will be added to error message using fmt.Sprintf function.
func FormatErrorAt(rule, pos, code int, msg string, params ...any) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return NewError(code, msg, rule, pos)
}

// HasCode reports whether e is an Error with given code.
func HasCode(e error, code int) bool {
	pe, valid := e.(*Error)
	return valid && pe.Code == code
}
