package condition

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvaluator() *Evaluator {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewEvaluator(logger).WithClock(func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	})
}

func TestEvaluate_NilTreeIsTrue(t *testing.T) {
	e := testEvaluator()

	assert.True(t, e.Evaluate(nil, map[string]any{"status": "active"}))
	assert.True(t, e.Evaluate(&Group{Logic: LogicAnd}, nil))
}

func TestEvaluate_Operators(t *testing.T) {
	snapshot := map[string]any{
		"status":     "Active",
		"visits":     float64(12),
		"email":      "maria@example.com",
		"balance":    "42.5",
		"vip":        true,
		"notes":      "",
		"created_at": "2024-06-10T09:00:00Z",
		"next_visit": "2024-06-18T09:00:00Z",
		"owner": map[string]any{
			"first_name": "Maria",
		},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equals case-insensitive", Condition{Field: "status", Operator: "equals", Value: "active"}, true},
		{"equals synonym is", Condition{Field: "status", Operator: "is", Value: "Active"}, true},
		{"equals numeric string", Condition{Field: "balance", Operator: "==", Value: 42.5}, true},
		{"not equals", Condition{Field: "status", Operator: "not_equals", Value: "inactive"}, true},
		{"not equals missing field", Condition{Field: "missing", Operator: "!=", Value: "x"}, true},
		{"contains", Condition{Field: "email", Operator: "contains", Value: "EXAMPLE"}, true},
		{"starts_with synonym", Condition{Field: "email", Operator: "begins_with", Value: "maria"}, true},
		{"ends_with", Condition{Field: "email", Operator: "ends_with", Value: ".com"}, true},
		{"is_empty on empty string", Condition{Field: "notes", Operator: "is_empty"}, true},
		{"is_empty on missing field", Condition{Field: "missing", Operator: "is_null"}, true},
		{"is_not_empty", Condition{Field: "email", Operator: "is_not_empty"}, true},
		{"greater_than", Condition{Field: "visits", Operator: "greater_than", Value: float64(10)}, true},
		{"gt symbol", Condition{Field: "visits", Operator: ">", Value: float64(12)}, false},
		{"gte", Condition{Field: "visits", Operator: ">=", Value: float64(12)}, true},
		{"less_than string number", Condition{Field: "balance", Operator: "less_than", Value: float64(50)}, true},
		{"between inclusive", Condition{Field: "visits", Operator: "between", Value: float64(12), HighValue: float64(20)}, true},
		{"between synonym", Condition{Field: "visits", Operator: "in_range", Value: float64(13), HighValue: float64(20)}, false},
		{"any_of", Condition{Field: "status", Operator: "any_of", Values: []any{"active", "paused"}}, true},
		{"in synonym", Condition{Field: "visits", Operator: "in", Values: []any{float64(1), float64(12)}}, true},
		{"none_of", Condition{Field: "status", Operator: "none_of", Values: []any{"inactive"}}, true},
		{"none_of missing field", Condition{Field: "missing", Operator: "not_in", Values: []any{"x"}}, true},
		{"before", Condition{Field: "created_at", Operator: "before", Value: "2024-06-12T00:00:00Z"}, true},
		{"after", Condition{Field: "created_at", Operator: "after", Value: "2024-06-12T00:00:00Z"}, false},
		{"within_last days", Condition{Field: "created_at", Operator: "within_last", Value: float64(7), HighValue: "days"}, true},
		{"within_last synonym", Condition{Field: "created_at", Operator: "in_the_last", Value: float64(2), HighValue: "days"}, false},
		{"within_next", Condition{Field: "next_visit", Operator: "within_next", Value: float64(7), HighValue: "days"}, true},
		{"more_than_days_ago", Condition{Field: "created_at", Operator: "more_than_days_ago", Value: float64(3)}, true},
		{"less_than_days_ago", Condition{Field: "created_at", Operator: "less_than_days_ago", Value: float64(3)}, false},
		{"is_true", Condition{Field: "vip", Operator: "is_true"}, true},
		{"is_false on true value", Condition{Field: "vip", Operator: "is_false"}, false},
		{"dot path lookup", Condition{Field: "owner.first_name", Operator: "equals", Value: "maria"}, true},
		{"missing field equals", Condition{Field: "owner.last_name", Operator: "equals", Value: "x"}, false},
		{"unknown operator is false", Condition{Field: "status", Operator: "resembles", Value: "active"}, false},
	}

	e := testEvaluator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := &Group{Logic: LogicAnd, Conditions: []Condition{tt.cond}}

			assert.Equal(t, tt.want, e.Evaluate(group, snapshot))
		})
	}
}

func TestEvaluate_LogicCombination(t *testing.T) {
	e := testEvaluator()
	snapshot := map[string]any{"a": float64(1), "b": float64(2)}

	and := &Group{Logic: LogicAnd, Conditions: []Condition{
		{Field: "a", Operator: "equals", Value: float64(1)},
		{Field: "b", Operator: "equals", Value: float64(99)},
	}}
	assert.False(t, e.Evaluate(and, snapshot))

	or := &Group{Logic: LogicOr, Conditions: []Condition{
		{Field: "a", Operator: "equals", Value: float64(1)},
		{Field: "b", Operator: "equals", Value: float64(99)},
	}}
	assert.True(t, e.Evaluate(or, snapshot))
}

func TestEvaluate_NestedGroups(t *testing.T) {
	e := testEvaluator()
	snapshot := map[string]any{"status": "active", "visits": float64(3)}

	tree := &Group{
		Logic: LogicOr,
		Groups: []*Group{
			{Logic: LogicAnd, Conditions: []Condition{
				{Field: "status", Operator: "equals", Value: "inactive"},
			}},
			{Logic: LogicAnd, Conditions: []Condition{
				{Field: "status", Operator: "equals", Value: "active"},
				{Field: "visits", Operator: "greater_than", Value: float64(2)},
			}},
		},
	}

	assert.True(t, e.Evaluate(tree, snapshot))
}

func TestLookup(t *testing.T) {
	snapshot := map[string]any{
		"pet": map[string]any{
			"name": "Rex",
			"vet": map[string]any{
				"phone": "555",
			},
		},
		"nil_field": nil,
	}

	v, ok := Lookup(snapshot, "pet.vet.phone")
	require.True(t, ok)
	assert.Equal(t, "555", v)

	_, ok = Lookup(snapshot, "pet.missing")
	assert.False(t, ok)

	_, ok = Lookup(snapshot, "nil_field")
	assert.False(t, ok)

	_, ok = Lookup(snapshot, "")
	assert.False(t, ok)
}
