package condition

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize converts any of the three accepted predicate dialects into the
// canonical Group tree:
//
//  1. branch tree: {"operator": "AND", "conditions": [...], "branches": [...]}
//     with alternating AND/OR branch nodes nesting arbitrarily deep;
//  2. condition groups: {"group_operator": "OR", "groups": [{"logic": "AND",
//     "conditions": [...]}, ...]};
//  3. flat list: {"logic": "AND", "conditions": [...]} or a bare JSON array of
//     conditions (implicit AND).
//
// A nil or empty input normalizes to nil, which evaluates to true.
func Normalize(raw json.RawMessage) (*Group, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	trimmed := strings.TrimSpace(string(raw))

	if strings.HasPrefix(trimmed, "[") {
		var conditions []Condition
		if err := json.Unmarshal(raw, &conditions); err != nil {
			return nil, fmt.Errorf("failed to parse condition list: %w", err)
		}

		return &Group{Logic: LogicAnd, Conditions: conditions}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse condition tree: %w", err)
	}

	switch {
	case hasKey(probe, "branches") || hasKey(probe, "operator"):
		return normalizeBranchTree(raw)
	case hasKey(probe, "groups"):
		return normalizeGroups(raw)
	default:
		return normalizeFlat(raw)
	}
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	v, ok := m[key]

	return ok && string(v) != "null"
}

// branchNode is dialect (1): alternating AND/OR nodes.
type branchNode struct {
	Operator   string       `json:"operator"`
	Conditions []Condition  `json:"conditions"`
	Branches   []branchNode `json:"branches"`
}

func normalizeBranchTree(raw json.RawMessage) (*Group, error) {
	var node branchNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("failed to parse branch tree: %w", err)
	}

	return branchToGroup(node), nil
}

func branchToGroup(node branchNode) *Group {
	group := &Group{
		Logic:      parseLogic(node.Operator),
		Conditions: node.Conditions,
	}

	for _, branch := range node.Branches {
		group.Groups = append(group.Groups, branchToGroup(branch))
	}

	return group
}

// groupedConditions is dialect (2): flat groups with an outer combinator.
type groupedConditions struct {
	GroupOperator string `json:"group_operator"`
	Groups        []struct {
		Logic      string      `json:"logic"`
		Conditions []Condition `json:"conditions"`
	} `json:"groups"`
}

func normalizeGroups(raw json.RawMessage) (*Group, error) {
	var grouped groupedConditions
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return nil, fmt.Errorf("failed to parse condition groups: %w", err)
	}

	root := &Group{Logic: parseLogic(grouped.GroupOperator)}

	for _, g := range grouped.Groups {
		root.Groups = append(root.Groups, &Group{
			Logic:      parseLogic(g.Logic),
			Conditions: g.Conditions,
		})
	}

	return root, nil
}

// flatConditions is dialect (3): one list, one logic operator.
type flatConditions struct {
	Logic      string      `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

func normalizeFlat(raw json.RawMessage) (*Group, error) {
	var flat flatConditions
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse flat conditions: %w", err)
	}

	return &Group{Logic: parseLogic(flat.Logic), Conditions: flat.Conditions}, nil
}

func parseLogic(s string) Logic {
	if strings.EqualFold(strings.TrimSpace(s), "or") {
		return LogicOr
	}

	return LogicAnd
}
