package parser

import (
	"github.com/ava12/packrat"
	"github.com/ava12/packrat/grammar"
)

// Error codes used by parser:
const (
	UnknownKindError = packrat.RuntimeErrors + iota
	InvalidRuleIdError
	MalformedRuleError
	RegexError
	NativeTypeError
	MissingNativeError
	ZeroWidthRepeatError
	InvalidPositionError
	AtomResultError
)

func unknownKindError(id int, k grammar.Kind) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, UnknownKindError, "no evaluator for %s rule", k)
}

func invalidRuleIdError(id, target int) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, InvalidRuleIdError, "reference to unknown rule #%d", target)
}

func malformedRuleError(id int, msg string) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, MalformedRuleError, msg)
}

func regexError(id int, pattern string, e error) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, RegexError, "incorrect pattern /%s/ (%s)", pattern, e.Error())
}

func nativeTypeError(role, name string, fn any) *packrat.Error {
	return packrat.FormatError(NativeTypeError, "native %q cannot be used as %s: %T", name, role, fn)
}

func missingNativeError(name string) *packrat.Error {
	return packrat.FormatError(MissingNativeError, "native %q is not supplied", name)
}

func invalidNativeIndexError(index int) *packrat.Error {
	return packrat.FormatError(MissingNativeError, "native index %d is out of range", index)
}

func zeroWidthRepeatError(id, pos int) *packrat.Error {
	return packrat.FormatErrorAt(id, pos, ZeroWidthRepeatError, "repeated rule matched empty input")
}

func invalidPositionError(pos, length int) *packrat.Error {
	return packrat.FormatError(InvalidPositionError, "start position %d is out of range [0, %d]", pos, length)
}

func atomResultError(id, pos int) *packrat.Error {
	return packrat.FormatErrorAt(id, pos, AtomResultError, "atom returned result out of token range")
}

// fatal is raised with panic to abort evaluation, it is recovered by Context.Parse.
type fatal struct {
	err *packrat.Error
}
