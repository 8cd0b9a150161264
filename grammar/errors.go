package grammar

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ava12/packrat"
)

// Error codes used by grammar builder:
const (
	UndefinedRuleError = packrat.BuildErrors + iota
	RuleDefinedError
	UnknownRuleError
	InvalidItemError
	InvalidRangeError
	InvalidRuleError
	MisplacedReshapeError
	MissingPredicateError
	NativeConflictError
	EmptyChoiceError
	LeftRecursionError
	BuilderClosedError
)

// FormatError creates packrat.Error with no rule and position information.
func FormatError(code int, msg string, params ...any) *packrat.Error {
	return packrat.FormatError(code, msg, params...)
}

func ruleError(id, code int, msg string, params ...any) *packrat.Error {
	return packrat.FormatErrorAt(id, -1, code, msg, params...)
}

func joinIds(ids []int) string {
	sort.Ints(ids)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = "#" + strconv.Itoa(id)
	}
	return strings.Join(names, ", ")
}

func undefinedRuleError(ids []int) *packrat.Error {
	return FormatError(UndefinedRuleError, "reserved but undefined rules: %s", joinIds(ids))
}

func ruleDefinedError(id int) *packrat.Error {
	return ruleError(id, RuleDefinedError, "rule already defined")
}

func unknownRuleError(id int) *packrat.Error {
	return FormatError(UnknownRuleError, "rule #%d is not reserved", id)
}

func invalidRuleError(id int, msg string) *packrat.Error {
	return ruleError(id, InvalidRuleError, "%s", msg)
}

func invalidRangeError(id, min, max int) *packrat.Error {
	return ruleError(id, InvalidRangeError, "invalid repeat range [%d, %d]", min, max)
}

func misplacedReshapeError(id int, kind Kind) *packrat.Error {
	return ruleError(id, MisplacedReshapeError, "per-iteration reshape on %s rule", kind)
}

func missingPredicateError(id, index int) *packrat.Error {
	return ruleError(id, MissingPredicateError, "pop item %d has no predicate", index)
}

func nativeConflictError(name string) *packrat.Error {
	return FormatError(NativeConflictError, "different natives named %q", name)
}

func emptyChoiceError(id int) *packrat.Error {
	return ruleError(id, EmptyChoiceError, "choice without alternatives")
}

func leftRecursionError(ids []int) *packrat.Error {
	return FormatError(LeftRecursionError, "left-recursive rules: %s", joinIds(ids))
}

func builderClosedError() *packrat.Error {
	return FormatError(BuilderClosedError, "builder is already closed")
}
