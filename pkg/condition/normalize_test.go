package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "null"} {
		group, err := Normalize(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Nil(t, group)
	}
}

func TestNormalize_BareArrayIsImplicitAnd(t *testing.T) {
	raw := json.RawMessage(`[
		{"field": "status", "operator": "equals", "value": "active"},
		{"field": "visits", "operator": "gt", "value": 3}
	]`)

	group, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, LogicAnd, group.Logic)
	assert.Len(t, group.Conditions, 2)
	assert.Empty(t, group.Groups)
}

func TestNormalize_FlatDialect(t *testing.T) {
	raw := json.RawMessage(`{
		"logic": "or",
		"conditions": [
			{"field": "status", "operator": "equals", "value": "active"},
			{"field": "status", "operator": "equals", "value": "paused"}
		]
	}`)

	group, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, LogicOr, group.Logic)
	assert.Len(t, group.Conditions, 2)
}

func TestNormalize_GroupedDialect(t *testing.T) {
	raw := json.RawMessage(`{
		"group_operator": "OR",
		"groups": [
			{"logic": "AND", "conditions": [{"field": "a", "operator": "equals", "value": 1}]},
			{"logic": "AND", "conditions": [{"field": "b", "operator": "equals", "value": 2}]}
		]
	}`)

	group, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, LogicOr, group.Logic)
	require.Len(t, group.Groups, 2)
	assert.Equal(t, LogicAnd, group.Groups[0].Logic)
	assert.Len(t, group.Groups[0].Conditions, 1)
}

func TestNormalize_BranchDialect(t *testing.T) {
	raw := json.RawMessage(`{
		"operator": "AND",
		"conditions": [{"field": "status", "operator": "equals", "value": "active"}],
		"branches": [
			{
				"operator": "OR",
				"conditions": [
					{"field": "visits", "operator": "gt", "value": 5},
					{"field": "vip", "operator": "is_true"}
				]
			}
		]
	}`)

	group, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, LogicAnd, group.Logic)
	assert.Len(t, group.Conditions, 1)
	require.Len(t, group.Groups, 1)
	assert.Equal(t, LogicOr, group.Groups[0].Logic)
	assert.Len(t, group.Groups[0].Conditions, 2)
}

// The same predicate authored in each dialect must evaluate identically.
func TestNormalize_DialectEquivalence(t *testing.T) {
	snapshot := map[string]any{"status": "active", "visits": float64(7)}

	dialects := map[string]string{
		"bare array": `[
			{"field": "status", "operator": "equals", "value": "active"},
			{"field": "visits", "operator": "gt", "value": 5}
		]`,
		"flat": `{
			"logic": "AND",
			"conditions": [
				{"field": "status", "operator": "equals", "value": "active"},
				{"field": "visits", "operator": "gt", "value": 5}
			]
		}`,
		"grouped": `{
			"group_operator": "AND",
			"groups": [
				{"logic": "AND", "conditions": [
					{"field": "status", "operator": "equals", "value": "active"},
					{"field": "visits", "operator": "gt", "value": 5}
				]}
			]
		}`,
		"branch tree": `{
			"operator": "AND",
			"conditions": [
				{"field": "status", "operator": "equals", "value": "active"},
				{"field": "visits", "operator": "gt", "value": 5}
			]
		}`,
	}

	e := testEvaluator()

	for name, raw := range dialects {
		t.Run(name, func(t *testing.T) {
			group, err := Normalize(json.RawMessage(raw))
			require.NoError(t, err)
			assert.True(t, e.Evaluate(group, snapshot))

			miss := map[string]any{"status": "inactive", "visits": float64(7)}
			assert.False(t, e.Evaluate(group, miss))
		})
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := Normalize(json.RawMessage(`{"logic": "AND", "conditions": "nope"}`))
	assert.Error(t, err)

	_, err = Normalize(json.RawMessage(`[{]`))
	assert.Error(t, err)
}
