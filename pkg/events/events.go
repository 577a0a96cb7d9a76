// Package events defines the queue message types that drive the automation
// engine: inbound record events, step execution, delayed resumption, and
// workflow-initiated enrollment requests.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

type EventType string

// Topics.
const Topic = "barkbase.automation"         // Engine-internal execution messages
const RecordEventTopic = "barkbase.records" // Inbound domain events from the platform

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// RecordEventReceivedEvent carries an inbound domain event into trigger
	// matching.
	RecordEventReceivedEvent EventType = "record.event.received"

	// ExecutionStepAvailableEvent asks a worker to execute one step of one
	// execution.
	ExecutionStepAvailableEvent EventType = "execution.step.available"

	// ExecutionResumeEvent wakes a paused execution.
	ExecutionResumeEvent EventType = "execution.resume"

	// EnrollmentRequestedEvent asks a worker to enroll a record into a
	// workflow, used by the enroll_in_workflow action.
	EnrollmentRequestedEvent EventType = "enrollment.requested"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// RecordEventReceived wraps an inbound domain event.
type RecordEventReceived struct {
	BaseEvent

	Event models.RecordEvent `json:"event"`
}

func (e RecordEventReceived) GetType() EventType {
	return RecordEventReceivedEvent
}

// ExecutionStepAvailable instructs a worker to execute the given step. StepID
// must still be the execution's current step when the message is handled;
// stale deliveries are dropped by the compare-and-swap on apply.
type ExecutionStepAvailable struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
}

func (e ExecutionStepAvailable) GetType() EventType {
	return ExecutionStepAvailableEvent
}

// ExecutionResume wakes a paused execution once its resume instant passed.
type ExecutionResume struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TenantID    string `json:"tenant_id"`
}

func (e ExecutionResume) GetType() EventType {
	return ExecutionResumeEvent
}

// EnrollmentRequested asks for a record to be enrolled into a target
// workflow. SourceWorkflowID propagates for loop prevention.
type EnrollmentRequested struct {
	BaseEvent

	TargetWorkflowID string `json:"target_workflow_id"`
	TenantID         string `json:"tenant_id"`
	RecordID         string `json:"record_id"`
	RecordType       string `json:"record_type"`
	SourceWorkflowID string `json:"source_workflow_id,omitempty"`
}

func (e EnrollmentRequested) GetType() EventType {
	return EnrollmentRequestedEvent
}
