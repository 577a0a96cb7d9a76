package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/actions"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/timing"
)

// StepOutcome is one audit event produced while executing a step. The engine
// turns these into execution log rows.
type StepOutcome struct {
	Outcome string
	Detail  map[string]any
}

// Executor runs one step of one execution and returns the transition to
// apply. It never mutates the execution itself; the engine owns persistence.
type Executor struct {
	actions      *actions.Registry
	materializer *record.Materializer
	evaluator    *condition.Evaluator
	logger       *slog.Logger
	now          func() time.Time
}

func NewExecutor(
	registry *actions.Registry,
	materializer *record.Materializer,
	evaluator *condition.Evaluator,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		actions:      registry,
		materializer: materializer,
		evaluator:    evaluator,
		logger:       logger.With("module", "step_executor"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests only.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// ExecuteStep performs the step's effect and resolves what happens next.
func (e *Executor) ExecuteStep(
	ctx context.Context,
	workflow *models.Workflow,
	idx *StepIndex,
	step *models.WorkflowStep,
	execCtx actions.ExecutionContext,
) (models.Transition, []StepOutcome) {
	switch step.StepType {
	case models.StepTypeAction:
		return e.executeAction(ctx, workflow, idx, step, execCtx)
	case models.StepTypeWait:
		return e.executeWait(ctx, workflow, idx, step, execCtx)
	case models.StepTypeDeterminator:
		return e.executeDeterminator(ctx, workflow, idx, step, execCtx)
	case models.StepTypeGate:
		return e.executeGate(ctx, workflow, idx, step, execCtx)
	case models.StepTypeTerminus:
		return models.Complete(models.CompletionReasonCompleted), nil
	default:
		err := fmt.Errorf("unknown step type '%s'", step.StepType)

		return models.Fail(err), nil
	}
}

func (e *Executor) executeAction(
	ctx context.Context,
	workflow *models.Workflow,
	idx *StepIndex,
	step *models.WorkflowStep,
	execCtx actions.ExecutionContext,
) (models.Transition, []StepOutcome) {
	if cfg := workflow.Settings.Timing; cfg != nil && cfg.Enabled {
		result, err := timing.Check(cfg, e.now())
		if err != nil {
			return models.Fail(err), nil
		}

		if !result.Allowed {
			return models.PauseForTiming(result.NextAllowed), []StepOutcome{{
				Outcome: models.LogOutcomeTimingDeferred,
				Detail: map[string]any{
					"step_id":      step.ID,
					"next_allowed": result.NextAllowed,
					"reason":       result.Reason,
				},
			}}
		}
	}

	action, err := e.actions.Create(step.ActionType, step.Config)
	if err != nil {
		return models.Fail(err), nil
	}

	result, err := action.Execute(ctx, execCtx, e.logger.With("action_type", step.ActionType))
	if err != nil {
		return models.Fail(err), []StepOutcome{{
			Outcome: models.LogOutcomeActionFailed,
			Detail:  map[string]any{"step_id": step.ID, "error": err.Error()},
		}}
	}

	outcomes := []StepOutcome{{
		Outcome: models.LogOutcomeActionExecuted,
		Detail:  map[string]any{"step_id": step.ID, "action_type": step.ActionType, "result": result},
	}}

	return e.advanceWithGoalCheck(ctx, workflow, idx.After(step), execCtx, outcomes)
}

func (e *Executor) executeWait(
	ctx context.Context,
	workflow *models.Workflow,
	idx *StepIndex,
	step *models.WorkflowStep,
	execCtx actions.ExecutionContext,
) (models.Transition, []StepOutcome) {
	resumeAt, err := waitTarget(step.Config, execCtx.Snapshot, e.now())
	if err != nil {
		return models.Fail(err), nil
	}

	if !resumeAt.After(e.now()) {
		outcomes := []StepOutcome{{
			Outcome: models.LogOutcomeWaitElapsed,
			Detail:  map[string]any{"step_id": step.ID},
		}}

		return e.advanceWithGoalCheck(ctx, workflow, idx.After(step), execCtx, outcomes)
	}

	return models.PauseUntil(resumeAt), []StepOutcome{{
		Outcome: models.LogOutcomeWaitScheduled,
		Detail:  map[string]any{"step_id": step.ID, "resume_at": resumeAt},
	}}
}

func (e *Executor) executeDeterminator(
	ctx context.Context,
	workflow *models.Workflow,
	idx *StepIndex,
	step *models.WorkflowStep,
	execCtx actions.ExecutionContext,
) (models.Transition, []StepOutcome) {
	branch, err := e.chooseBranch(step, execCtx.Snapshot)
	if err != nil {
		return models.Fail(err), nil
	}

	outcomes := []StepOutcome{{
		Outcome: models.LogOutcomeBranchEvaluated,
		Detail:  map[string]any{"step_id": step.ID, "branch": branch},
	}}

	// An empty chosen branch falls through to the determinator's own
	// next-sibling resolution, same as a branch with no steps.
	next := idx.FirstChild(step.ID, &branch)
	if branch == "" || next == nil {
		next = idx.After(step)
	}

	return e.advanceWithGoalCheck(ctx, workflow, next, execCtx, outcomes)
}

func (e *Executor) executeGate(
	ctx context.Context,
	workflow *models.Workflow,
	idx *StepIndex,
	step *models.WorkflowStep,
	execCtx actions.ExecutionContext,
) (models.Transition, []StepOutcome) {
	raw, ok := step.ConditionTree()
	if !ok {
		err := fmt.Errorf("gate step %s has no conditions", step.ID)

		return models.Fail(err), nil
	}

	tree, err := condition.Normalize(raw)
	if err != nil {
		return models.Fail(err), nil
	}

	if !e.evaluator.Evaluate(tree, execCtx.Snapshot) {
		return models.Complete(models.CompletionReasonGateBlocked), []StepOutcome{{
			Outcome: models.LogOutcomeGateBlocked,
			Detail:  map[string]any{"step_id": step.ID},
		}}
	}

	outcomes := []StepOutcome{{
		Outcome: models.LogOutcomeGatePassed,
		Detail:  map[string]any{"step_id": step.ID},
	}}

	return e.advanceWithGoalCheck(ctx, workflow, idx.After(step), execCtx, outcomes)
}

// advanceWithGoalCheck re-materializes the record and re-evaluates the goal
// condition before advancing; a goal met mid-run completes the execution and
// skips every remaining step.
func (e *Executor) advanceWithGoalCheck(
	ctx context.Context,
	workflow *models.Workflow,
	next *models.WorkflowStep,
	execCtx actions.ExecutionContext,
	outcomes []StepOutcome,
) (models.Transition, []StepOutcome) {
	if reached := e.goalReached(ctx, workflow, execCtx); reached {
		outcomes = append(outcomes, StepOutcome{
			Outcome: models.LogOutcomeGoalReached,
			Detail:  map[string]any{"record_id": execCtx.RecordID},
		})

		return models.Complete(models.CompletionReasonGoalReached), outcomes
	}

	if next == nil {
		return models.Advance(nil), outcomes
	}

	return models.Advance(&next.ID), outcomes
}

func (e *Executor) goalReached(ctx context.Context, workflow *models.Workflow, execCtx actions.ExecutionContext) bool {
	if len(workflow.GoalCondition) == 0 {
		return false
	}

	goal, err := condition.Normalize(workflow.GoalCondition)
	if err != nil {
		e.logger.WarnContext(ctx, "Goal condition parse failed, skipping goal check",
			"workflow_id", workflow.ID,
			"error", err)

		return false
	}

	// Fresh snapshot: the step just run may have changed the record.
	snapshot, err := e.materializer.Materialize(ctx, execCtx.TenantID, execCtx.RecordType, execCtx.RecordID)
	if err != nil {
		e.logger.WarnContext(ctx, "Record materialization failed, skipping goal check",
			"record_id", execCtx.RecordID,
			"error", err)

		return false
	}

	return e.evaluator.Evaluate(goal, snapshot)
}

// chooseBranch evaluates the determinator's condition set and returns the
// branch tag to follow. Two config shapes exist: an ordered "branches" list
// where the first matching entry wins, and a single condition tree mapping
// true to "yes" and false to "no".
func (e *Executor) chooseBranch(step *models.WorkflowStep, snapshot map[string]any) (string, error) {
	if rawBranches, ok := step.Config["branches"].([]any); ok {
		for _, rawBranch := range rawBranches {
			branch, ok := rawBranch.(map[string]any)
			if !ok {
				continue
			}

			path, _ := branch["path"].(string)
			if path == "" {
				continue
			}

			conditions, ok := branch["conditions"]
			if !ok {
				// A branch without conditions is the default.
				return path, nil
			}

			raw, err := json.Marshal(conditions)
			if err != nil {
				return "", fmt.Errorf("marshaling branch conditions: %w", err)
			}

			tree, err := condition.Normalize(raw)
			if err != nil {
				return "", fmt.Errorf("parsing branch conditions: %w", err)
			}

			if e.evaluator.Evaluate(tree, snapshot) {
				return path, nil
			}
		}

		return "", nil
	}

	raw, ok := step.ConditionTree()
	if !ok {
		return "", fmt.Errorf("determinator step %s has no conditions", step.ID)
	}

	tree, err := condition.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("parsing determinator conditions: %w", err)
	}

	if e.evaluator.Evaluate(tree, snapshot) {
		return "yes", nil
	}

	return "no", nil
}

// waitTarget resolves the resume instant from one of the three wait policies:
// a duration offset, a fixed time of day, or a date field on the record.
func waitTarget(config map[string]any, snapshot map[string]any, now time.Time) (time.Time, error) {
	if field, ok := config["date_field"].(string); ok && field != "" {
		value, found := condition.Lookup(snapshot, field)
		if !found {
			// Missing field means nothing to wait for.
			return now, nil
		}

		target, ok := condition.ParseTime(value)
		if !ok {
			return time.Time{}, fmt.Errorf("wait date field %q holds unparseable value %v", field, value)
		}

		return target, nil
	}

	if timeOfDay, ok := config["time_of_day"].(string); ok && timeOfDay != "" {
		return timeOfDayTarget(timeOfDay, stringValue(config["timezone"]), now)
	}

	amount, ok := numberValue(config["duration"])
	if !ok {
		return time.Time{}, fmt.Errorf("wait step config has no duration, time_of_day, or date_field")
	}

	unit := stringValue(config["unit"])
	if unit == "" {
		unit = "minutes"
	}

	var per time.Duration

	switch unit {
	case "minutes", "minute":
		per = time.Minute
	case "hours", "hour":
		per = time.Hour
	case "days", "day":
		per = 24 * time.Hour
	case "weeks", "week":
		per = 7 * 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("unknown wait unit '%s'", unit)
	}

	return now.Add(time.Duration(amount * float64(per))), nil
}

// timeOfDayTarget returns today at the given wall-clock time in the zone,
// rolling to tomorrow if that instant already passed.
func timeOfDayTarget(timeOfDay, zone string, now time.Time) (time.Time, error) {
	loc := time.UTC

	if zone != "" {
		var err error

		loc, err = time.LoadLocation(zone)
		if err != nil {
			return time.Time{}, fmt.Errorf("loading wait timezone %q: %w", zone, err)
		}
	}

	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("parsing wait time of day %q: %w", timeOfDay, err)
	}

	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	if !target.After(local) {
		target = target.AddDate(0, 0, 1)
	}

	return target.UTC(), nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
