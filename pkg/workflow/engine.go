package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/actions"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/scheduler"
)

// Engine drives executions through their step tree. Each method handles one
// queue message independently; delivery is at-least-once, so every state
// change goes through a compare-and-swap keyed on the execution's current
// step and status. A conflict means another delivery already applied the
// transition and the message is dropped without re-running its effect.
type Engine struct {
	persistence  persistence.Persistence
	executor     *Executor
	materializer *record.Materializer
	timers       scheduler.Store
	publisher    eventbus.EventPublisher
	logger       *slog.Logger
	now          func() time.Time
}

func NewEngine(
	p persistence.Persistence,
	executor *Executor,
	materializer *record.Materializer,
	timers scheduler.Store,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence:  p,
		executor:     executor,
		materializer: materializer,
		timers:       timers,
		publisher:    publisher,
		logger:       logger.With("module", "workflow_engine"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HandleStepAvailable executes one step of one execution. Stale deliveries,
// where the execution already moved past the named step, are dropped.
func (e *Engine) HandleStepAvailable(ctx context.Context, msg events.ExecutionStepAvailable) error {
	execution, err := e.persistence.ExecutionByID(ctx, msg.ExecutionID)
	if err != nil {
		return fmt.Errorf("loading execution %s: %w", msg.ExecutionID, err)
	}

	if execution.Status != models.ExecutionStatusRunning {
		e.logger.DebugContext(ctx, "Dropping step message for non-running execution",
			"execution_id", execution.ID,
			"status", execution.Status)

		return nil
	}

	if execution.CurrentStepID == nil || *execution.CurrentStepID != msg.StepID {
		e.logger.DebugContext(ctx, "Dropping stale step message",
			"execution_id", execution.ID,
			"message_step_id", msg.StepID)

		// A stale redelivery can be the only message left in flight when the
		// publish after the previous commit was lost. Re-emit the current
		// step; duplicates are dropped by the compare-and-swap.
		return e.republishCurrentStep(ctx, execution)
	}

	workflow, err := e.persistence.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return fmt.Errorf("loading workflow %s: %w", execution.WorkflowID, err)
	}

	steps, err := e.persistence.StepsByWorkflow(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("loading steps for workflow %s: %w", workflow.ID, err)
	}

	idx := NewStepIndex(steps)

	step, ok := idx.Step(msg.StepID)
	if !ok {
		// The step vanished under us; configuration error, not retryable.
		return e.apply(ctx, execution, workflow,
			models.Fail(fmt.Errorf("step %s not found in workflow %s", msg.StepID, workflow.ID)),
			execution.CurrentStepID, execution.Status, nil)
	}

	snapshot, err := e.materializer.Materialize(ctx, execution.TenantID, execution.RecordType, execution.RecordID)
	if err != nil {
		return fmt.Errorf("materializing record %s: %w", execution.RecordID, err)
	}

	execCtx := actions.ExecutionContext{
		TenantID:    execution.TenantID,
		WorkflowID:  workflow.ID,
		ExecutionID: execution.ID,
		RecordID:    execution.RecordID,
		RecordType:  execution.RecordType,
		Snapshot:    snapshot,
	}

	transition, outcomes := e.executor.ExecuteStep(ctx, workflow, idx, step, execCtx)

	return e.apply(ctx, execution, workflow, transition, execution.CurrentStepID, execution.Status, outcomes)
}

// HandleResume wakes a paused execution. A wait pause advances past the wait
// step, re-checking the goal first; a timing pause re-executes the deferred
// action step so the window is checked again.
func (e *Engine) HandleResume(ctx context.Context, msg events.ExecutionResume) error {
	execution, err := e.persistence.ExecutionByID(ctx, msg.ExecutionID)
	if err != nil {
		return fmt.Errorf("loading execution %s: %w", msg.ExecutionID, err)
	}

	if execution.Status != models.ExecutionStatusPaused {
		e.logger.DebugContext(ctx, "Dropping resume message for non-paused execution",
			"execution_id", execution.ID,
			"status", execution.Status)

		return nil
	}

	if execution.ResumeAt != nil && execution.ResumeAt.After(e.now()) {
		// Fired early; push the timer back out.
		if e.timers != nil {
			return e.timers.Schedule(ctx, scheduler.Entry{
				ExecutionID: execution.ID,
				TenantID:    execution.TenantID,
				ResumeAt:    *execution.ResumeAt,
			})
		}

		return nil
	}

	workflow, err := e.persistence.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return fmt.Errorf("loading workflow %s: %w", execution.WorkflowID, err)
	}

	if execution.CurrentStepID == nil {
		return e.apply(ctx, execution, workflow,
			models.Fail(fmt.Errorf("paused execution %s has no current step", execution.ID)),
			execution.CurrentStepID, execution.Status, nil)
	}

	if execution.PauseReason != nil && *execution.PauseReason == models.PauseReasonTiming {
		// Rewind to running on the same step; its handler re-checks the
		// window before acting.
		return e.apply(ctx, execution, workflow,
			models.Advance(execution.CurrentStepID),
			execution.CurrentStepID, execution.Status, nil)
	}

	steps, err := e.persistence.StepsByWorkflow(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("loading steps for workflow %s: %w", workflow.ID, err)
	}

	idx := NewStepIndex(steps)

	waitStep, ok := idx.Step(*execution.CurrentStepID)
	if !ok {
		return e.apply(ctx, execution, workflow,
			models.Fail(fmt.Errorf("step %s not found in workflow %s", *execution.CurrentStepID, workflow.ID)),
			execution.CurrentStepID, execution.Status, nil)
	}

	execCtx := actions.ExecutionContext{
		TenantID:    execution.TenantID,
		WorkflowID:  workflow.ID,
		ExecutionID: execution.ID,
		RecordID:    execution.RecordID,
		RecordType:  execution.RecordType,
	}

	outcomes := []StepOutcome{{
		Outcome: models.LogOutcomeWaitElapsed,
		Detail:  map[string]any{"step_id": waitStep.ID},
	}}

	transition, outcomes := e.executor.advanceWithGoalCheck(ctx, workflow, idx.After(waitStep), execCtx, outcomes)

	return e.apply(ctx, execution, workflow, transition, execution.CurrentStepID, execution.Status, outcomes)
}

// republishCurrentStep re-emits the step message for a running execution's
// current step. It recovers executions stranded by a publish failure after a
// committed transition.
func (e *Engine) republishCurrentStep(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution.CurrentStepID == nil {
		return nil
	}

	step := events.ExecutionStepAvailable{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		StepID:      *execution.CurrentStepID,
	}

	if err := e.publisher.Publish(ctx, execution.ID, step); err != nil {
		return fmt.Errorf("republishing current step for execution %s: %w", execution.ID, err)
	}

	return nil
}

// apply commits one transition under optimistic concurrency control, writes
// the step's audit rows, and publishes whatever message drives the execution
// next.
func (e *Engine) apply(
	ctx context.Context,
	execution *models.WorkflowExecution,
	workflow *models.Workflow,
	transition models.Transition,
	expectedStepID *string,
	expectedStatus models.ExecutionStatus,
	outcomes []StepOutcome,
) error {
	now := e.now()

	execution.ResumeAt = nil
	execution.PauseReason = nil

	switch transition.Kind {
	case models.TransitionAdvance:
		if transition.NextStepID == nil {
			return e.complete(ctx, execution, workflow, models.CompletionReasonCompleted, expectedStepID, expectedStatus, outcomes)
		}

		execution.Status = models.ExecutionStatusRunning
		execution.CurrentStepID = transition.NextStepID

	case models.TransitionPauseUntil:
		execution.Status = models.ExecutionStatusPaused
		execution.ResumeAt = &transition.ResumeAt
		reason := models.PauseReasonWait
		execution.PauseReason = &reason

	case models.TransitionPauseForTiming:
		execution.Status = models.ExecutionStatusPaused
		execution.ResumeAt = &transition.ResumeAt
		reason := models.PauseReasonTiming
		execution.PauseReason = &reason

	case models.TransitionComplete:
		return e.complete(ctx, execution, workflow, transition.Reason, expectedStepID, expectedStatus, outcomes)

	case models.TransitionFail:
		execution.Status = models.ExecutionStatusFailed
		msg := transition.Err.Error()
		execution.ErrorMessage = &msg
		completedAt := now
		execution.CompletedAt = &completedAt

	default:
		return fmt.Errorf("unknown transition kind '%s'", transition.Kind)
	}

	if err := e.persistence.UpdateExecutionCAS(ctx, execution, expectedStepID, expectedStatus); err != nil {
		if persistence.IsVersionConflict(err) {
			e.logger.DebugContext(ctx, "Dropping duplicate delivery, transition already applied",
				"execution_id", execution.ID)

			return nil
		}

		return fmt.Errorf("updating execution %s: %w", execution.ID, err)
	}

	e.appendOutcomes(ctx, execution.ID, outcomes)

	switch transition.Kind {
	case models.TransitionAdvance:
		next := events.ExecutionStepAvailable{
			BaseEvent:   events.NewBaseEvent(events.ExecutionStepAvailableEvent, workflow.ID),
			ExecutionID: execution.ID,
			StepID:      *transition.NextStepID,
		}

		if err := e.publisher.Publish(ctx, execution.ID, next); err != nil {
			return fmt.Errorf("publishing next step for execution %s: %w", execution.ID, err)
		}

	case models.TransitionPauseUntil, models.TransitionPauseForTiming:
		if e.timers != nil {
			err := e.timers.Schedule(ctx, scheduler.Entry{
				ExecutionID: execution.ID,
				TenantID:    execution.TenantID,
				ResumeAt:    transition.ResumeAt,
			})
			if err != nil {
				// The storage sweep picks it up; log and move on.
				e.logger.ErrorContext(ctx, "Failed to schedule resume timer",
					"execution_id", execution.ID,
					"resume_at", transition.ResumeAt,
					"error", err)
			}
		}

	case models.TransitionFail:
		e.appendLog(ctx, execution.ID, models.LogOutcomeFailed, map[string]any{
			"error": transition.Err.Error(),
		})
	}

	return nil
}

func (e *Engine) complete(
	ctx context.Context,
	execution *models.WorkflowExecution,
	workflow *models.Workflow,
	reason models.CompletionReason,
	expectedStepID *string,
	expectedStatus models.ExecutionStatus,
	outcomes []StepOutcome,
) error {
	now := e.now()

	execution.Status = models.ExecutionStatusCompleted
	execution.CompletionReason = &reason
	execution.CompletedAt = &now
	execution.ResumeAt = nil
	execution.PauseReason = nil

	if err := e.persistence.UpdateExecutionCAS(ctx, execution, expectedStepID, expectedStatus); err != nil {
		if persistence.IsVersionConflict(err) {
			e.logger.DebugContext(ctx, "Dropping duplicate delivery, completion already applied",
				"execution_id", execution.ID)

			return nil
		}

		return fmt.Errorf("completing execution %s: %w", execution.ID, err)
	}

	e.appendOutcomes(ctx, execution.ID, outcomes)

	switch reason {
	case models.CompletionReasonCompleted:
		e.appendLog(ctx, execution.ID, models.LogOutcomeCompleted, nil)

		if err := e.persistence.IncrementWorkflowCounter(ctx, workflow.ID, models.CounterCompleted); err != nil {
			e.logger.ErrorContext(ctx, "Failed to increment completed counter",
				"workflow_id", workflow.ID,
				"error", err)
		}

	case models.CompletionReasonGoalReached:
		if err := e.persistence.IncrementWorkflowCounter(ctx, workflow.ID, models.CounterGoalReached); err != nil {
			e.logger.ErrorContext(ctx, "Failed to increment goal counter",
				"workflow_id", workflow.ID,
				"error", err)
		}
	}

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID,
		"workflow_id", workflow.ID,
		"reason", reason)

	return nil
}

func (e *Engine) appendOutcomes(ctx context.Context, executionID string, outcomes []StepOutcome) {
	for _, outcome := range outcomes {
		e.appendLog(ctx, executionID, outcome.Outcome, outcome.Detail)
	}
}

// appendLog writes one audit row. Log failures never fail the transition;
// the state change already committed.
func (e *Engine) appendLog(ctx context.Context, executionID, outcome string, detail map[string]any) {
	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		Outcome:     outcome,
		Detail:      detail,
		CreatedAt:   e.now(),
	}

	if stepID, ok := detail["step_id"].(string); ok {
		entry.StepID = stepID
	}

	if err := e.persistence.AppendExecutionLog(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "Failed to append execution log entry",
			"execution_id", executionID,
			"outcome", outcome,
			"error", err)
	}
}
