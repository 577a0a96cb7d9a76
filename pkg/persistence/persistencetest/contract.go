// Package persistencetest holds the repository contract every Persistence
// implementation must satisfy. Provider test packages construct their own
// backend and hand it to Run; identifiers are generated per subtest so the
// suite is safe against a shared database.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
)

// Run exercises the repository contract against one provider.
func Run(t *testing.T, p persistence.Persistence) {
	t.Run("WorkflowRoundTrip", func(t *testing.T) { workflowRoundTrip(t, p) })
	t.Run("ActiveWorkflowsByEvent", func(t *testing.T) { activeWorkflowsByEvent(t, p) })
	t.Run("ActiveFilterWorkflows", func(t *testing.T) { activeFilterWorkflows(t, p) })
	t.Run("IncrementWorkflowCounter", func(t *testing.T) { incrementWorkflowCounter(t, p) })
	t.Run("StepsOrderedByPosition", func(t *testing.T) { stepsOrderedByPosition(t, p) })
	t.Run("ExecutionCASLifecycle", func(t *testing.T) { executionCASLifecycle(t, p) })
	t.Run("LatestExecutionPicksNewest", func(t *testing.T) { latestExecutionPicksNewest(t, p) })
	t.Run("DueExecutions", func(t *testing.T) { dueExecutions(t, p) })
	t.Run("ExecutionLogOrdered", func(t *testing.T) { executionLogOrdered(t, p) })
	t.Run("SegmentMembership", func(t *testing.T) { segmentMembership(t, p) })
}

var enrolledAt = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func saveWorkflow(t *testing.T, p persistence.Persistence, workflow *models.Workflow) {
	t.Helper()
	require.NoError(t, p.SaveWorkflow(context.Background(), workflow))
}

// eventWorkflow builds an active event-triggered workflow in its own tenant so
// selection subtests never see rows from other runs.
func eventWorkflow(eventType string) *models.Workflow {
	return &models.Workflow{
		ID:         uuid.New().String(),
		TenantID:   "tenant-" + uuid.New().String(),
		Name:       "contract workflow",
		ObjectType: "owners",
		Status:     models.WorkflowStatusActive,
		EntryCondition: models.EntryCondition{
			TriggerType: models.TriggerTypeEvent,
			EventType:   eventType,
		},
	}
}

func createExecution(t *testing.T, p persistence.Persistence, workflowID, tenantID, stepID string) *models.WorkflowExecution {
	t.Helper()

	execution := &models.WorkflowExecution{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		TenantID:      tenantID,
		RecordID:      "owner-" + uuid.New().String(),
		RecordType:    "owners",
		Status:        models.ExecutionStatusRunning,
		CurrentStepID: &stepID,
		EnrolledAt:    enrolledAt,
	}
	require.NoError(t, p.CreateExecution(context.Background(), execution))

	return execution
}

func workflowRoundTrip(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := eventWorkflow("booking.created")
	workflow.Description = "round trip"
	workflow.GoalCondition = []byte(`[{"field": "status", "operator": "equals", "value": "booked"}]`)
	workflow.Settings = models.WorkflowSettings{AllowReenrollment: true, ReenrollmentDelayMinutes: 30}
	workflow.SuppressionSegmentIDs = []string{"seg-1", "seg-2"}

	saveWorkflow(t, p, workflow)

	got, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.TenantID, got.TenantID)
	assert.Equal(t, "round trip", got.Description)
	assert.Equal(t, models.WorkflowStatusActive, got.Status)
	assert.Equal(t, models.TriggerTypeEvent, got.EntryCondition.TriggerType)
	assert.Equal(t, "booking.created", got.EntryCondition.EventType)
	assert.JSONEq(t, string(workflow.GoalCondition), string(got.GoalCondition))
	assert.True(t, got.Settings.AllowReenrollment)
	assert.Equal(t, 30, got.Settings.ReenrollmentDelayMinutes)
	assert.Equal(t, []string{"seg-1", "seg-2"}, got.SuppressionSegmentIDs)

	_, err = p.WorkflowByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func activeWorkflowsByEvent(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	match := eventWorkflow("booking.created")
	saveWorkflow(t, p, match)

	otherEvent := eventWorkflow("booking.cancelled")
	otherEvent.TenantID = match.TenantID
	saveWorkflow(t, p, otherEvent)

	inactive := eventWorkflow("booking.created")
	inactive.TenantID = match.TenantID
	inactive.Status = models.WorkflowStatusInactive
	saveWorkflow(t, p, inactive)

	got, err := p.ActiveWorkflowsByEvent(ctx, match.TenantID, "owners", "booking.created")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, match.ID, got[0].ID)
}

func activeFilterWorkflows(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	filter := eventWorkflow("")
	filter.EntryCondition = models.EntryCondition{
		TriggerType: models.TriggerTypeFilter,
		Filter:      []byte(`[{"field": "status", "operator": "equals", "value": "lapsed"}]`),
	}
	saveWorkflow(t, p, filter)

	event := eventWorkflow("booking.created")
	saveWorkflow(t, p, event)

	got, err := p.ActiveFilterWorkflows(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, wf := range got {
		ids = append(ids, wf.ID)
	}

	assert.Contains(t, ids, filter.ID)
	assert.NotContains(t, ids, event.ID)
}

func incrementWorkflowCounter(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := eventWorkflow("booking.created")
	saveWorkflow(t, p, workflow)

	require.NoError(t, p.IncrementWorkflowCounter(ctx, workflow.ID, models.CounterEnrolled))
	require.NoError(t, p.IncrementWorkflowCounter(ctx, workflow.ID, models.CounterEnrolled))
	require.NoError(t, p.IncrementWorkflowCounter(ctx, workflow.ID, models.CounterGoalReached))

	got, err := p.WorkflowByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.EnrolledCount)
	assert.Equal(t, int64(0), got.CompletedCount)
	assert.Equal(t, int64(1), got.GoalReachedCount)

	assert.Error(t, p.IncrementWorkflowCounter(ctx, uuid.New().String(), models.CounterEnrolled))
}

func stepsOrderedByPosition(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := eventWorkflow("booking.created")
	saveWorkflow(t, p, workflow)

	parentID := uuid.New().String()
	branch := "yes"

	steps := []*models.WorkflowStep{
		{ID: uuid.New().String(), WorkflowID: workflow.ID, StepType: models.StepTypeTerminus, Position: 3},
		{ID: parentID, WorkflowID: workflow.ID, StepType: models.StepTypeDeterminator,
			Config: map[string]any{"conditions": []any{
				map[string]any{"field": "status", "operator": "equals", "value": "vip"},
			}}, Position: 2},
		{ID: uuid.New().String(), WorkflowID: workflow.ID, StepType: models.StepTypeAction,
			ActionType: models.ActionSendSMS,
			Config:     map[string]any{"to": "{{.phone}}", "body": "Hi"}, Position: 1},
		{ID: uuid.New().String(), WorkflowID: workflow.ID, StepType: models.StepTypeAction,
			ActionType:   models.ActionInternalNote,
			Config:       map[string]any{"note": "vip path"},
			ParentStepID: &parentID, BranchPath: &branch, Position: 1},
	}
	for _, step := range steps {
		require.NoError(t, p.SaveStep(ctx, step))
	}

	got, err := p.StepsByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, got, 4)

	positions := make([]int, 0, len(got))
	for _, step := range got {
		positions = append(positions, step.Position)
	}

	assert.Equal(t, []int{1, 1, 2, 3}, positions)

	for _, step := range got {
		if step.ID == parentID {
			assert.Equal(t, models.StepTypeDeterminator, step.StepType)
			assert.NotEmpty(t, step.Config["conditions"])
		}

		if step.ParentStepID != nil {
			assert.Equal(t, parentID, *step.ParentStepID)
			require.NotNil(t, step.BranchPath)
			assert.Equal(t, "yes", *step.BranchPath)
		}
	}
}

func executionCASLifecycle(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := eventWorkflow("booking.created")
	saveWorkflow(t, p, workflow)

	execution := createExecution(t, p, workflow.ID, workflow.TenantID, "s1")

	active, err := p.ActiveExecution(ctx, workflow.ID, execution.RecordID, "owners")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, execution.ID, active.ID)

	// Advance s1 -> s2.
	s1, s2 := "s1", "s2"
	execution.CurrentStepID = &s2
	require.NoError(t, p.UpdateExecutionCAS(ctx, execution, &s1, models.ExecutionStatusRunning))

	// A duplicate delivery expecting s1 must conflict and leave s2 in place.
	stale := *execution
	s3 := "s3"
	stale.CurrentStepID = &s3

	err = p.UpdateExecutionCAS(ctx, &stale, &s1, models.ExecutionStatusRunning)
	assert.True(t, persistence.IsVersionConflict(err))

	got, err := p.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentStepID)
	assert.Equal(t, "s2", *got.CurrentStepID)

	// Stale status conflicts the same way.
	err = p.UpdateExecutionCAS(ctx, execution, &s2, models.ExecutionStatusPaused)
	assert.True(t, persistence.IsVersionConflict(err))

	// Completion clears the active set.
	reason := models.CompletionReasonCompleted
	completedAt := enrolledAt.Add(time.Hour)
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletionReason = &reason
	execution.CompletedAt = &completedAt
	require.NoError(t, p.UpdateExecutionCAS(ctx, execution, &s2, models.ExecutionStatusRunning))

	active, err = p.ActiveExecution(ctx, workflow.ID, execution.RecordID, "owners")
	require.NoError(t, err)
	assert.Nil(t, active)

	got, err = p.ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletionReason)
	assert.Equal(t, models.CompletionReasonCompleted, *got.CompletionReason)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, completedAt, *got.CompletedAt, time.Second)
}

func latestExecutionPicksNewest(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := eventWorkflow("booking.created")
	saveWorkflow(t, p, workflow)

	first := createExecution(t, p, workflow.ID, workflow.TenantID, "s1")

	// Re-creating under the same execution id is rejected.
	assert.Error(t, p.CreateExecution(ctx, first))

	s1 := "s1"
	second := &models.WorkflowExecution{
		ID:            uuid.New().String(),
		WorkflowID:    workflow.ID,
		TenantID:      workflow.TenantID,
		RecordID:      first.RecordID,
		RecordType:    "owners",
		Status:        models.ExecutionStatusCompleted,
		CurrentStepID: &s1,
		EnrolledAt:    enrolledAt.Add(time.Hour),
	}
	require.NoError(t, p.CreateExecution(ctx, second))

	latest, err := p.LatestExecution(ctx, workflow.ID, first.RecordID, "owners")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	missing, err := p.LatestExecution(ctx, workflow.ID, "owner-"+uuid.New().String(), "owners")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func dueExecutions(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := eventWorkflow("booking.created")
	saveWorkflow(t, p, workflow)

	paused := createExecution(t, p, workflow.ID, workflow.TenantID, "s1")
	s1 := "s1"
	resumeAt := enrolledAt.Add(time.Hour)
	reason := models.PauseReasonWait
	paused.Status = models.ExecutionStatusPaused
	paused.ResumeAt = &resumeAt
	paused.PauseReason = &reason
	require.NoError(t, p.UpdateExecutionCAS(ctx, paused, &s1, models.ExecutionStatusRunning))

	running := createExecution(t, p, workflow.ID, workflow.TenantID, "s1")

	due, err := p.DueExecutions(ctx, resumeAt.Add(time.Minute), 100)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, ex := range due {
		ids = append(ids, ex.ID)
	}

	assert.Contains(t, ids, paused.ID)
	assert.NotContains(t, ids, running.ID)

	// Not yet elapsed.
	due, err = p.DueExecutions(ctx, resumeAt.Add(-time.Minute), 100)
	require.NoError(t, err)

	for _, ex := range due {
		assert.NotEqual(t, paused.ID, ex.ID)
	}
}

func executionLogOrdered(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := eventWorkflow("booking.created")
	saveWorkflow(t, p, workflow)

	execution := createExecution(t, p, workflow.ID, workflow.TenantID, "s1")

	outcomes := []string{models.LogOutcomeEnrolled, models.LogOutcomeActionExecuted, models.LogOutcomeCompleted}
	for i, outcome := range outcomes {
		require.NoError(t, p.AppendExecutionLog(ctx, &models.ExecutionLogEntry{
			ID:          uuid.New().String(),
			ExecutionID: execution.ID,
			StepID:      "s1",
			Outcome:     outcome,
			Detail:      map[string]any{"seq": float64(i)},
			CreatedAt:   enrolledAt.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := p.ExecutionLog(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, entries, len(outcomes))

	for i, entry := range entries {
		assert.Equal(t, outcomes[i], entry.Outcome)
		assert.Equal(t, "s1", entry.StepID)
		assert.Equal(t, float64(i), entry.Detail["seq"])
	}
}

func segmentMembership(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	segment := &models.Segment{
		ID:          uuid.New().String(),
		TenantID:    "tenant-" + uuid.New().String(),
		Name:        "do not contact",
		SegmentType: models.SegmentTypeStatic,
		ObjectType:  "owners",
	}
	require.NoError(t, p.SaveSegment(ctx, segment))

	got, err := p.SegmentByID(ctx, segment.TenantID, segment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentTypeStatic, got.SegmentType)

	_, err = p.SegmentByID(ctx, "tenant-"+uuid.New().String(), segment.ID)
	assert.ErrorIs(t, err, persistence.ErrSegmentNotFound)

	member, err := p.SegmentMember(ctx, segment.ID, "owner-1")
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, p.AddSegmentMember(ctx, segment.ID, "owner-1"))
	require.NoError(t, p.AddSegmentMember(ctx, segment.ID, "owner-1"))

	member, err = p.SegmentMember(ctx, segment.ID, "owner-1")
	require.NoError(t, err)
	assert.True(t, member)
}
