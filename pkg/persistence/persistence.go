// Package persistence provides the storage abstraction for workflows,
// executions, the append-only execution log, and segment lookups.
package persistence

import (
	"context"
	"time"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

// Persistence is the storage contract the engine runs against. Two
// implementations exist: postgresql for production and memory for tests and
// local development.
type Persistence interface {
	WorkflowRepository
	ExecutionRepository
	SegmentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	// ActiveWorkflowsByEvent selects active workflows of the tenant and
	// object type whose entry condition matches the event type.
	ActiveWorkflowsByEvent(ctx context.Context, tenantID, objectType, eventType string) ([]*models.Workflow, error)

	// ActiveFilterWorkflows selects active workflows with a standing-filter
	// entry condition, across tenants, for the periodic sweep.
	ActiveFilterWorkflows(ctx context.Context) ([]*models.Workflow, error)

	// IncrementWorkflowCounter atomically increments one of the running
	// counters; concurrent executions never read-modify-write these.
	IncrementWorkflowCounter(ctx context.Context, workflowID string, counter models.WorkflowCounter) error

	StepsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error)
	SaveStep(ctx context.Context, step *models.WorkflowStep) error
}

type ExecutionRepository interface {
	CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// ActiveExecution returns the running or paused execution for the
	// (workflow, record) pair, or nil when none exists.
	ActiveExecution(ctx context.Context, workflowID, recordID, recordType string) (*models.WorkflowExecution, error)

	// LatestExecution returns the most recently enrolled execution for the
	// pair regardless of status, or nil when the record was never enrolled.
	LatestExecution(ctx context.Context, workflowID, recordID, recordType string) (*models.WorkflowExecution, error)

	// UpdateExecutionCAS persists the execution's mutable fields only if the
	// stored row still carries the expected current step and status. Returns
	// ErrVersionConflict otherwise; a conflict means another delivery of the
	// same message already applied the transition.
	UpdateExecutionCAS(ctx context.Context, execution *models.WorkflowExecution, expectedStepID *string, expectedStatus models.ExecutionStatus) error

	// DueExecutions returns paused executions whose resume_at has passed,
	// used as a safety net behind the scheduler.
	DueExecutions(ctx context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error)

	AppendExecutionLog(ctx context.Context, entry *models.ExecutionLogEntry) error
	ExecutionLog(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error)
}

type SegmentRepository interface {
	SegmentByID(ctx context.Context, tenantID, segmentID string) (*models.Segment, error)
	SaveSegment(ctx context.Context, segment *models.Segment) error

	// SegmentMember reports static-segment membership.
	SegmentMember(ctx context.Context, segmentID, recordID string) (bool, error)
	AddSegmentMember(ctx context.Context, segmentID, recordID string) error
}
