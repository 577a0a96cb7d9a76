package models

import "encoding/json"

// StepType identifies the behavior of a workflow step.
type StepType string

const (
	StepTypeAction       StepType = "action"
	StepTypeWait         StepType = "wait"
	StepTypeDeterminator StepType = "determinator"
	StepTypeGate         StepType = "gate"
	StepTypeTerminus     StepType = "terminus"
)

// ActionType identifies the effect of an action step.
type ActionType string

const (
	ActionSendSMS          ActionType = "send_sms"
	ActionSendEmail        ActionType = "send_email"
	ActionCreateTask       ActionType = "create_task"
	ActionUpdateField      ActionType = "update_field"
	ActionInternalNote     ActionType = "internal_note"
	ActionEnrollInWorkflow ActionType = "enroll_in_workflow"
)

// WorkflowStep is a node in the ordered step tree of a workflow. Steps are
// immutable during execution; only the authoring surface edits them.
type WorkflowStep struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	StepType   StepType   `json:"step_type" validate:"required,oneof=action wait determinator gate terminus"`
	ActionType ActionType `json:"action_type,omitempty"`
	// Config carries the type-specific parameters: action config, wait
	// policy, or the condition tree for determinator and gate steps.
	Config map[string]any `json:"config,omitempty"`
	// ParentStepID is nil for root-level steps.
	ParentStepID *string `json:"parent_step_id,omitempty"`
	// BranchPath distinguishes sibling branches under a determinator,
	// e.g. "yes" or "no". Nil for unbranched children.
	BranchPath *string `json:"branch_path,omitempty"`
	// Position orders siblings within the same parent and branch. Strictly
	// increasing, unique per (parent, branch).
	Position int `json:"position"`
}

// SameBranch reports whether the step sits under the given parent and branch.
func (s *WorkflowStep) SameBranch(parentID, branch *string) bool {
	return strPtrEq(s.ParentStepID, parentID) && strPtrEq(s.BranchPath, branch)
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

// ConditionTree extracts the raw condition payload from a determinator or
// gate step config.
func (s *WorkflowStep) ConditionTree() (json.RawMessage, bool) {
	raw, ok := s.Config["conditions"]
	if !ok {
		return nil, false
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}

	return data, true
}
