// Package models defines the core domain models for the workflow automation engine.
package models

import (
	"encoding/json"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// TriggerType describes what kind of entry condition enrolls records.
type TriggerType string

const (
	TriggerTypeEvent  TriggerType = "event"  // Enroll on a matching domain event
	TriggerTypeFilter TriggerType = "filter" // Standing filter, evaluated on a periodic sweep
	TriggerTypeManual TriggerType = "manual" // Enroll only through the manual entry point
)

// EntryCondition configures what triggers enrollment into a workflow.
type EntryCondition struct {
	TriggerType TriggerType `json:"trigger_type" validate:"required,oneof=event filter manual"`
	// EventType is the domain event name to match when TriggerType is "event",
	// e.g. "booking.created".
	EventType string `json:"event_type,omitempty"`
	// Filter is a predicate tree (any accepted dialect) for standing-filter
	// triggers.
	Filter json.RawMessage `json:"filter,omitempty"`
	// PayloadSchema optionally holds a JSON Schema that event payloads must
	// satisfy before the event is considered a match.
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`
}

// WorkflowSettings holds enrollment policy and timing-window configuration.
type WorkflowSettings struct {
	AllowReenrollment bool `json:"allow_reenrollment"`
	// ReenrollmentDelayMinutes must have elapsed since the prior enrollment
	// before a record may re-enroll. Zero means no delay.
	ReenrollmentDelayMinutes int           `json:"reenrollment_delay_minutes"`
	Timing                   *TimingConfig `json:"timing,omitempty"`
}

// TimingConfig restricts action steps to an allowed execution window.
type TimingConfig struct {
	Enabled bool `json:"enabled"`
	// Days are lowercase weekday names. Empty means Monday through Friday.
	Days []string `json:"days,omitempty"`
	// Start and End are "HH:MM" times of day; the window is [Start, End).
	Start string `json:"start"`
	End   string `json:"end"`
	// Timezone is an IANA zone name, e.g. "America/Chicago". Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// Workflow is a tenant-scoped automation definition. The engine treats it as
// read-only; only the authoring surface mutates definitions.
type Workflow struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"     validate:"required"`
	Name        string `json:"name"          validate:"required,min=3"`
	Description string `json:"description"`
	// ObjectType names the business record type this workflow operates on
	// (e.g. "owners", "pets", "bookings").
	ObjectType     string           `json:"object_type" validate:"required"`
	Status         WorkflowStatus   `json:"status"      validate:"required,oneof=active inactive"`
	EntryCondition EntryCondition   `json:"entry_condition"`
	GoalCondition  json.RawMessage  `json:"goal_condition,omitempty"`
	Settings       WorkflowSettings `json:"settings"`
	// SuppressionSegmentIDs lists segments whose members are excluded from
	// enrollment, checked in order.
	SuppressionSegmentIDs []string `json:"suppression_segment_ids,omitempty"`

	EnrolledCount    int64 `json:"enrolled_count"`
	CompletedCount   int64 `json:"completed_count"`
	GoalReachedCount int64 `json:"goal_reached_count"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsActive reports whether the workflow may enroll records.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive && w.DeletedAt == nil
}

// WorkflowCounter identifies one of the running counters on a workflow,
// incremented atomically at the storage layer.
type WorkflowCounter string

const (
	CounterEnrolled    WorkflowCounter = "enrolled_count"
	CounterCompleted   WorkflowCounter = "completed_count"
	CounterGoalReached WorkflowCounter = "goal_reached_count"
)
