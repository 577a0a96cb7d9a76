package condition

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Evaluator evaluates canonical predicate trees against record snapshots.
// Evaluation never returns an error: unknown operators are logged and count as
// false, and missing snapshot fields are treated as empty values.
type Evaluator struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With("module", "condition_evaluator"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns an evaluator using the given clock for relative-date
// operators.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	return &Evaluator{logger: e.logger, now: now}
}

// Evaluate returns whether the snapshot satisfies the predicate tree. A nil
// or empty tree is vacuously true.
func (e *Evaluator) Evaluate(group *Group, snapshot map[string]any) bool {
	if group.Empty() {
		return true
	}

	results := make([]bool, 0, len(group.Conditions)+len(group.Groups))

	for _, cond := range group.Conditions {
		results = append(results, e.evaluateCondition(cond, snapshot))
	}

	for _, sub := range group.Groups {
		if sub.Empty() {
			continue
		}

		results = append(results, e.Evaluate(sub, snapshot))
	}

	if group.Logic == LogicOr {
		for _, r := range results {
			if r {
				return true
			}
		}

		return false
	}

	for _, r := range results {
		if !r {
			return false
		}
	}

	return true
}

func (e *Evaluator) evaluateCondition(cond Condition, snapshot map[string]any) bool {
	actual, found := Lookup(snapshot, cond.Field)

	switch canonicalOperator(cond.Operator) {
	case opEquals:
		return found && looseEquals(actual, cond.Value)
	case opNotEquals:
		return !found || !looseEquals(actual, cond.Value)
	case opContains:
		return found && strings.Contains(lowerString(actual), lowerString(cond.Value))
	case opNotContains:
		return !found || !strings.Contains(lowerString(actual), lowerString(cond.Value))
	case opStartsWith:
		return found && strings.HasPrefix(lowerString(actual), lowerString(cond.Value))
	case opEndsWith:
		return found && strings.HasSuffix(lowerString(actual), lowerString(cond.Value))
	case opIsEmpty:
		return !found || isEmptyValue(actual)
	case opIsNotEmpty:
		return found && !isEmptyValue(actual)
	case opGreaterThan:
		return compareNumbers(actual, cond.Value, found, func(a, b float64) bool { return a > b })
	case opGreaterOrEqual:
		return compareNumbers(actual, cond.Value, found, func(a, b float64) bool { return a >= b })
	case opLessThan:
		return compareNumbers(actual, cond.Value, found, func(a, b float64) bool { return a < b })
	case opLessOrEqual:
		return compareNumbers(actual, cond.Value, found, func(a, b float64) bool { return a <= b })
	case opBetween:
		return evaluateBetween(actual, cond.Value, cond.HighValue, found)
	case opAnyOf:
		return found && inSet(actual, cond.Values)
	case opNoneOf:
		return !found || !inSet(actual, cond.Values)
	case opBefore:
		return e.compareDates(actual, cond.Value, found, false, false)
	case opAfter:
		return e.compareDates(actual, cond.Value, found, true, false)
	case opBeforeDate:
		return e.compareDates(actual, cond.Value, found, false, true)
	case opAfterDate:
		return e.compareDates(actual, cond.Value, found, true, true)
	case opWithinLast:
		return e.withinWindow(actual, cond, found, true)
	case opWithinNext:
		return e.withinWindow(actual, cond, found, false)
	case opMoreThanDaysAgo:
		return e.daysAgo(actual, cond.Value, found, func(days, n float64) bool { return days > n })
	case opLessThanDaysAgo:
		return e.daysAgo(actual, cond.Value, found, func(days, n float64) bool { return days >= 0 && days < n })
	case opIsTrue:
		return found && isTruthy(actual)
	case opIsFalse:
		return !found || !isTruthy(actual)
	default:
		e.logger.Warn("Unknown condition operator, evaluating to false",
			"operator", cond.Operator,
			"field", cond.Field)

		return false
	}
}

// Lookup resolves a dot-path in a nested snapshot. The second return value is
// false when any path component is missing or the value is nil.
func Lookup(snapshot map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = snapshot

	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}

	if current == nil {
		return nil, false
	}

	return current, true
}

// looseEquals applies the coercion policy: numeric comparison first when both
// sides parse as numbers, case-insensitive string equality otherwise.
func looseEquals(a, b any) bool {
	na, aOK := toNumber(a)
	nb, bOK := toNumber(b)

	if aOK && bOK {
		return na == nb
	}

	return strings.EqualFold(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func compareNumbers(actual, expected any, found bool, cmp func(a, b float64) bool) bool {
	if !found {
		return false
	}

	a, aOK := toNumber(actual)
	b, bOK := toNumber(expected)

	if !aOK || !bOK {
		return false
	}

	return cmp(a, b)
}

func evaluateBetween(actual, low, high any, found bool) bool {
	if !found {
		return false
	}

	a, aOK := toNumber(actual)
	lo, loOK := toNumber(low)
	hi, hiOK := toNumber(high)

	if !aOK || !loOK || !hiOK {
		return false
	}

	return a >= lo && a <= hi
}

func inSet(actual any, values []any) bool {
	for _, v := range values {
		if looseEquals(actual, v) {
			return true
		}
	}

	return false
}

func (e *Evaluator) compareDates(actual, expected any, found, after, dateOnly bool) bool {
	if !found {
		return false
	}

	at, aOK := toTime(actual)
	et, eOK := toTime(expected)

	if !aOK || !eOK {
		return false
	}

	if dateOnly {
		at = truncateToDay(at)
		et = truncateToDay(et)
	}

	if after {
		return at.After(et)
	}

	return at.Before(et)
}

// withinWindow implements within_last / within_next N units.
func (e *Evaluator) withinWindow(actual any, cond Condition, found, last bool) bool {
	if !found {
		return false
	}

	at, ok := toTime(actual)
	if !ok {
		return false
	}

	n, ok := toNumber(cond.Value)
	if !ok {
		return false
	}

	window := windowDuration(n, unitOf(cond.HighValue))
	now := e.now()

	if last {
		return !at.After(now) && at.After(now.Add(-window))
	}

	return !at.Before(now) && at.Before(now.Add(window))
}

func (e *Evaluator) daysAgo(actual, expected any, found bool, cmp func(days, n float64) bool) bool {
	if !found {
		return false
	}

	at, ok := toTime(actual)
	if !ok {
		return false
	}

	n, ok := toNumber(expected)
	if !ok {
		return false
	}

	days := e.now().Sub(at).Hours() / 24

	return cmp(days, n)
}

func unitOf(v any) string {
	s := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", v)))
	if s == "" || s == "<nil>" {
		return "days"
	}

	return strings.TrimSuffix(s, "s") + "s"
}

func windowDuration(n float64, unit string) time.Duration {
	day := 24 * time.Hour

	switch unit {
	case "hours":
		return time.Duration(n * float64(time.Hour))
	case "weeks":
		return time.Duration(n * float64(7*day))
	case "months":
		return time.Duration(n * float64(30*day))
	case "years":
		return time.Duration(n * float64(365*day))
	default:
		return time.Duration(n * float64(day))
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
