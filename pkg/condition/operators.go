package condition

import "strings"

// Canonical operator identifiers. Input operators are case-insensitive and
// each family accepts the synonyms administrators have accumulated in the
// authoring surface over time.
const (
	opEquals          = "equals"
	opNotEquals       = "not_equals"
	opContains        = "contains"
	opNotContains     = "not_contains"
	opStartsWith      = "starts_with"
	opEndsWith        = "ends_with"
	opIsEmpty         = "is_empty"
	opIsNotEmpty      = "is_not_empty"
	opGreaterThan     = "greater_than"
	opGreaterOrEqual  = "greater_or_equal"
	opLessThan        = "less_than"
	opLessOrEqual     = "less_or_equal"
	opBetween         = "between"
	opAnyOf           = "any_of"
	opNoneOf          = "none_of"
	opBefore          = "before"
	opAfter           = "after"
	opBeforeDate      = "before_date"
	opAfterDate       = "after_date"
	opWithinLast      = "within_last"
	opWithinNext      = "within_next"
	opMoreThanDaysAgo = "more_than_days_ago"
	opLessThanDaysAgo = "less_than_days_ago"
	opIsTrue          = "is_true"
	opIsFalse         = "is_false"
)

var operatorSynonyms = map[string]string{
	"equals":     opEquals,
	"equal":      opEquals,
	"eq":         opEquals,
	"is":         opEquals,
	"==":         opEquals,
	"=":          opEquals,
	"not_equals": opNotEquals,
	"not_equal":  opNotEquals,
	"neq":        opNotEquals,
	"is_not":     opNotEquals,
	"!=":         opNotEquals,

	"contains":         opContains,
	"includes":         opContains,
	"not_contains":     opNotContains,
	"does_not_contain": opNotContains,
	"starts_with":      opStartsWith,
	"begins_with":      opStartsWith,
	"ends_with":        opEndsWith,

	"is_empty":     opIsEmpty,
	"is_null":      opIsEmpty,
	"is_blank":     opIsEmpty,
	"is_not_empty": opIsNotEmpty,
	"is_not_null":  opIsNotEmpty,
	"has_value":    opIsNotEmpty,

	"greater_than":          opGreaterThan,
	"gt":                    opGreaterThan,
	">":                     opGreaterThan,
	"greater_than_or_equal": opGreaterOrEqual,
	"greater_or_equal":      opGreaterOrEqual,
	"gte":                   opGreaterOrEqual,
	">=":                    opGreaterOrEqual,
	"less_than":             opLessThan,
	"lt":                    opLessThan,
	"<":                     opLessThan,
	"less_than_or_equal":    opLessOrEqual,
	"less_or_equal":         opLessOrEqual,
	"lte":                   opLessOrEqual,
	"<=":                    opLessOrEqual,
	"between":               opBetween,
	"in_range":              opBetween,

	"any_of":   opAnyOf,
	"in":       opAnyOf,
	"one_of":   opAnyOf,
	"none_of":  opNoneOf,
	"not_in":   opNoneOf,
	"excludes": opNoneOf,

	"before":       opBefore,
	"date_before":  opBefore,
	"after":        opAfter,
	"date_after":   opAfter,
	"before_date":  opBeforeDate,
	"on_or_before": opBeforeDate,
	"after_date":   opAfterDate,
	"on_or_after":  opAfterDate,

	"within_last": opWithinLast,
	"in_the_last": opWithinLast,
	"within_next": opWithinNext,
	"in_the_next": opWithinNext,

	"more_than_days_ago": opMoreThanDaysAgo,
	"older_than_days":    opMoreThanDaysAgo,
	"less_than_days_ago": opLessThanDaysAgo,
	"newer_than_days":    opLessThanDaysAgo,

	"is_true":  opIsTrue,
	"true":     opIsTrue,
	"is_false": opIsFalse,
	"false":    opIsFalse,
}

// canonicalOperator maps an input operator to its canonical identifier.
// Returns the empty string for operators the evaluator does not know.
func canonicalOperator(op string) string {
	return operatorSynonyms[strings.ToLower(strings.TrimSpace(op))]
}
