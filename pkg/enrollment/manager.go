// Package enrollment decides whether a candidate record enters a workflow and
// creates the execution when it does.
package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/suppression"
)

// Skip reasons surfaced on Result.Reason when Enrolled is false.
const (
	SkipWorkflowInactive    = "workflow_inactive"
	SkipObjectTypeMismatch  = "object_type_mismatch"
	SkipLoopPrevented       = "loop_prevented"
	SkipSuppressed          = "suppressed"
	SkipAlreadyActive       = "already_active"
	SkipReenrollmentBlocked = "reenrollment_blocked"
	SkipReenrollmentDelay   = "reenrollment_delay"
	SkipGoalAlreadyMet      = "goal_already_met"
	SkipNoSteps             = "no_steps"
)

// Request is one enrollment attempt. SourceWorkflowID is set when another
// workflow's enroll action initiated the attempt; it drives loop prevention.
type Request struct {
	Workflow         *models.Workflow
	TenantID         string
	RecordID         string
	RecordType       string
	SourceWorkflowID string
}

// Result reports the enrollment decision. When Enrolled is false, Reason
// names the policy that stopped it.
type Result struct {
	Enrolled    bool
	Reason      string
	ExecutionID string
	FirstStepID string
}

// Manager runs the enrollment policy chain. Checks run in a fixed order and
// the first failing check wins: loop prevention, suppression, active-execution
// guard, re-enrollment policy, goal pre-check, root step resolution.
type Manager struct {
	persistence  persistence.Persistence
	suppression  *suppression.Checker
	materializer *record.Materializer
	evaluator    *condition.Evaluator
	publisher    eventbus.EventPublisher
	logger       *slog.Logger
	now          func() time.Time
}

func NewManager(
	p persistence.Persistence,
	checker *suppression.Checker,
	materializer *record.Materializer,
	evaluator *condition.Evaluator,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		persistence:  p,
		suppression:  checker,
		materializer: materializer,
		evaluator:    evaluator,
		publisher:    publisher,
		logger:       logger.With("module", "enrollment_manager"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Enroll runs the policy chain and, when every check passes, creates the
// execution at the workflow's root step and publishes its first step message.
func (m *Manager) Enroll(ctx context.Context, req Request) (Result, error) {
	workflow := req.Workflow

	if !workflow.IsActive() {
		return m.skip(ctx, req, SkipWorkflowInactive), nil
	}

	if req.RecordType != workflow.ObjectType {
		return m.skip(ctx, req, SkipObjectTypeMismatch), nil
	}

	if req.SourceWorkflowID != "" && req.SourceWorkflowID == workflow.ID {
		return m.skip(ctx, req, SkipLoopPrevented), nil
	}

	suppressed, err := m.suppression.Check(ctx, req.TenantID, req.RecordID, req.RecordType, workflow.SuppressionSegmentIDs)
	if err != nil {
		return Result{}, fmt.Errorf("checking suppression: %w", err)
	}

	if suppressed.Suppressed {
		m.logger.InfoContext(ctx, "Enrollment suppressed by segment",
			"workflow_id", workflow.ID,
			"record_id", req.RecordID,
			"segment_id", suppressed.SegmentID)

		return m.skip(ctx, req, SkipSuppressed), nil
	}

	active, err := m.persistence.ActiveExecution(ctx, workflow.ID, req.RecordID, req.RecordType)
	if err != nil {
		return Result{}, fmt.Errorf("checking active execution: %w", err)
	}

	if active != nil {
		// A running execution whose step message was lost after the commit
		// has no other delivery to replay it; the triggering event's
		// redelivery lands here, so re-emit the current step. Duplicates are
		// dropped by the engine's compare-and-swap.
		if active.Status == models.ExecutionStatusRunning && active.CurrentStepID != nil {
			step := events.ExecutionStepAvailable{
				BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, workflow.ID),
				ExecutionID: active.ID,
				StepID:      *active.CurrentStepID,
			}

			if err := m.publisher.Publish(ctx, active.ID, step); err != nil {
				return Result{}, fmt.Errorf("republishing current step for execution %s: %w", active.ID, err)
			}
		}

		return m.skip(ctx, req, SkipAlreadyActive), nil
	}

	if reason, ok := m.reenrollmentAllowed(ctx, workflow, req); !ok {
		return m.skip(ctx, req, reason), nil
	}

	var snapshot map[string]any

	if len(workflow.GoalCondition) > 0 {
		goal, err := condition.Normalize(workflow.GoalCondition)
		if err != nil {
			return Result{}, fmt.Errorf("parsing goal condition: %w", err)
		}

		snapshot, err = m.materializer.Materialize(ctx, req.TenantID, req.RecordType, req.RecordID)
		if err != nil {
			return Result{}, fmt.Errorf("materializing record for goal pre-check: %w", err)
		}

		if m.evaluator.Evaluate(goal, snapshot) {
			return m.skip(ctx, req, SkipGoalAlreadyMet), nil
		}
	}

	root, err := m.rootStep(ctx, workflow.ID)
	if err != nil {
		return Result{}, err
	}

	if root == nil {
		return m.skip(ctx, req, SkipNoSteps), nil
	}

	execution := &models.WorkflowExecution{
		ID:            uuid.New().String(),
		WorkflowID:    workflow.ID,
		TenantID:      req.TenantID,
		RecordID:      req.RecordID,
		RecordType:    req.RecordType,
		Status:        models.ExecutionStatusRunning,
		CurrentStepID: &root.ID,
		EnrolledAt:    m.now(),
	}

	if err := m.persistence.CreateExecution(ctx, execution); err != nil {
		return Result{}, fmt.Errorf("creating execution: %w", err)
	}

	if err := m.persistence.IncrementWorkflowCounter(ctx, workflow.ID, models.CounterEnrolled); err != nil {
		m.logger.ErrorContext(ctx, "Failed to increment enrolled counter",
			"workflow_id", workflow.ID,
			"error", err)
	}

	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		Outcome:     models.LogOutcomeEnrolled,
		Detail: map[string]any{
			"record_id":   req.RecordID,
			"record_type": req.RecordType,
		},
		CreatedAt: m.now(),
	}

	if req.SourceWorkflowID != "" {
		entry.Detail["source_workflow_id"] = req.SourceWorkflowID
	}

	if err := m.persistence.AppendExecutionLog(ctx, entry); err != nil {
		m.logger.ErrorContext(ctx, "Failed to append enrollment log entry",
			"execution_id", execution.ID,
			"error", err)
	}

	step := events.ExecutionStepAvailable{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, workflow.ID),
		ExecutionID: execution.ID,
		StepID:      root.ID,
	}

	if err := m.publisher.Publish(ctx, execution.ID, step); err != nil {
		return Result{}, fmt.Errorf("publishing first step: %w", err)
	}

	m.logger.InfoContext(ctx, "Record enrolled",
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
		"record_id", req.RecordID,
		"first_step_id", root.ID)

	return Result{Enrolled: true, ExecutionID: execution.ID, FirstStepID: root.ID}, nil
}

func (m *Manager) reenrollmentAllowed(ctx context.Context, workflow *models.Workflow, req Request) (string, bool) {
	latest, err := m.persistence.LatestExecution(ctx, workflow.ID, req.RecordID, req.RecordType)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to load latest execution, blocking enrollment",
			"workflow_id", workflow.ID,
			"record_id", req.RecordID,
			"error", err)

		return SkipReenrollmentBlocked, false
	}

	if latest == nil {
		return "", true
	}

	if !workflow.Settings.AllowReenrollment {
		return SkipReenrollmentBlocked, false
	}

	if delay := workflow.Settings.ReenrollmentDelayMinutes; delay > 0 {
		eligible := latest.EnrolledAt.Add(time.Duration(delay) * time.Minute)
		if m.now().Before(eligible) {
			return SkipReenrollmentDelay, false
		}
	}

	return "", true
}

// rootStep returns the entry step: nil parent, nil branch, lowest position.
func (m *Manager) rootStep(ctx context.Context, workflowID string) (*models.WorkflowStep, error) {
	steps, err := m.persistence.StepsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("loading workflow steps: %w", err)
	}

	roots := make([]*models.WorkflowStep, 0, 1)
	for _, step := range steps {
		if step.ParentStepID == nil {
			roots = append(roots, step)
		}
	}

	if len(roots) == 0 {
		return nil, nil
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].Position < roots[j].Position })

	return roots[0], nil
}

func (m *Manager) skip(ctx context.Context, req Request, reason string) Result {
	m.logger.InfoContext(ctx, "Enrollment skipped",
		"workflow_id", req.Workflow.ID,
		"record_id", req.RecordID,
		"reason", reason)

	// Refusals for a record with enrollment history are auditable on its most
	// recent execution; a first-touch refusal has no execution to log against.
	latest, err := m.persistence.LatestExecution(ctx, req.Workflow.ID, req.RecordID, req.RecordType)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to load latest execution for skip audit",
			"workflow_id", req.Workflow.ID,
			"record_id", req.RecordID,
			"error", err)

		return Result{Reason: reason}
	}

	if latest == nil {
		return Result{Reason: reason}
	}

	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		ExecutionID: latest.ID,
		Outcome:     models.LogOutcomeSkipped,
		Detail:      map[string]any{"reason": reason},
		CreatedAt:   m.now(),
	}

	if err := m.persistence.AppendExecutionLog(ctx, entry); err != nil {
		m.logger.ErrorContext(ctx, "Failed to append skip log entry",
			"execution_id", latest.ID,
			"error", err)
	}

	return Result{Reason: reason}
}
