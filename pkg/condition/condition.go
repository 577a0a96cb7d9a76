// Package condition evaluates administrator-authored predicate trees against
// materialized record snapshots. Three historically-accumulated input dialects
// are normalized into one canonical tree at the boundary; a single evaluator
// runs over the canonical form.
package condition

// Logic combines sibling conditions or groups.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Condition is a single leaf predicate against one snapshot field.
type Condition struct {
	// Field is a dot-path into the record snapshot, e.g. "owner.email".
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
	// HighValue is the upper bound for range operators, or the unit for
	// relative-date windows.
	HighValue any `json:"highValue,omitempty"`
	// Values is the candidate set for membership operators.
	Values []any `json:"values,omitempty"`
}

// Group is the canonical predicate tree: a logic operator over leaf conditions
// and nested groups.
type Group struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions,omitempty"`
	Groups     []*Group    `json:"groups,omitempty"`
}

// Empty reports whether the group holds no predicates at any depth.
func (g *Group) Empty() bool {
	if g == nil {
		return true
	}

	if len(g.Conditions) > 0 {
		return false
	}

	for _, sub := range g.Groups {
		if !sub.Empty() {
			return false
		}
	}

	return true
}
