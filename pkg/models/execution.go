package models

import "time"

// ExecutionStatus represents the lifecycle state of one enrollment.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// CompletionReason explains why an execution reached the completed state.
type CompletionReason string

const (
	CompletionReasonCompleted   CompletionReason = "completed"
	CompletionReasonGoalReached CompletionReason = "goal_reached"
	CompletionReasonGateBlocked CompletionReason = "gate_blocked"
)

// PauseReason explains why an execution is paused.
type PauseReason string

const (
	PauseReasonWait   PauseReason = "wait"
	PauseReasonTiming PauseReason = "timing"
)

// WorkflowExecution is one enrollment of one record into one workflow run.
// Created by the enrollment manager, mutated only by the step executor, and
// never deleted: completed and failed rows form the audit trail.
type WorkflowExecution struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	TenantID   string `json:"tenant_id"`
	RecordID   string `json:"record_id"`
	RecordType string `json:"record_type"`

	Status           ExecutionStatus   `json:"status"`
	CurrentStepID    *string           `json:"current_step_id,omitempty"`
	ResumeAt         *time.Time        `json:"resume_at,omitempty"`
	PauseReason      *PauseReason      `json:"pause_reason,omitempty"`
	CompletionReason *CompletionReason `json:"completion_reason,omitempty"`
	ErrorMessage     *string           `json:"error_message,omitempty"`

	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsActive reports whether the execution still occupies the (workflow, record)
// slot for enrollment deduplication.
func (e *WorkflowExecution) IsActive() bool {
	return e.Status == ExecutionStatusRunning || e.Status == ExecutionStatusPaused
}

// ExecutionLogEntry is one append-only audit row per step outcome. Write-once:
// the engine never updates or deletes log rows.
type ExecutionLogEntry struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	StepID      string         `json:"step_id,omitempty"`
	Outcome     string         `json:"outcome"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Log outcome names. Every step outcome, skip reason, and early completion is
// recorded under one of these.
const (
	LogOutcomeActionExecuted  = "action_executed"
	LogOutcomeActionFailed    = "action_failed"
	LogOutcomeWaitScheduled   = "wait_scheduled"
	LogOutcomeWaitElapsed     = "wait_elapsed"
	LogOutcomeBranchEvaluated = "branch_evaluated"
	LogOutcomeGatePassed      = "gate_passed"
	LogOutcomeGateBlocked     = "gate_blocked"
	LogOutcomeTimingDeferred  = "timing_deferred"
	LogOutcomeGoalReached     = "goal_reached"
	LogOutcomeCompleted       = "completed"
	LogOutcomeFailed          = "failed"
	LogOutcomeEnrolled        = "enrolled"
	LogOutcomeSkipped         = "skipped"
)
