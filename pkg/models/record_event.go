package models

import "time"

// RecordEvent is an inbound domain event about a business record, e.g.
// "booking.created" or "pet.vaccination_expired".
type RecordEvent struct {
	EventType  string         `json:"event_type" validate:"required"`
	RecordID   string         `json:"record_id"  validate:"required"`
	RecordType string         `json:"record_type" validate:"required"`
	TenantID   string         `json:"tenant_id"  validate:"required"`
	Payload    map[string]any `json:"payload,omitempty"`
	// SourceWorkflowID is set when the event was caused by a workflow action
	// (e.g. update_field). Used for loop prevention: a record mutated by a
	// workflow must not re-trigger that same workflow.
	SourceWorkflowID string    `json:"source_workflow_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
