package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence/persistencetest"
)

var enrolledAt = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// The shared repository contract; the postgresql package runs the same suite
// against a real database.
func TestMemory_RepositoryContract(t *testing.T) {
	persistencetest.Run(t, NewPersistence())
}

func strPtr(s string) *string { return &s }

func runningExecution(id string) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:            id,
		WorkflowID:    "wf-1",
		TenantID:      "tenant-1",
		RecordID:      "owner-1",
		RecordType:    "owners",
		Status:        models.ExecutionStatusRunning,
		CurrentStepID: strPtr("s1"),
		EnrolledAt:    enrolledAt,
	}
}

func TestUpdateExecutionCAS_AppliesOnMatch(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	require.NoError(t, p.CreateExecution(ctx, runningExecution("exec-1")))

	updated := runningExecution("exec-1")
	updated.CurrentStepID = strPtr("s2")

	require.NoError(t, p.UpdateExecutionCAS(ctx, updated, strPtr("s1"), models.ExecutionStatusRunning))

	stored, err := p.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentStepID)
	assert.Equal(t, "s2", *stored.CurrentStepID)
}

func TestUpdateExecutionCAS_ConflictOnStaleStep(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	require.NoError(t, p.CreateExecution(ctx, runningExecution("exec-1")))

	first := runningExecution("exec-1")
	first.CurrentStepID = strPtr("s2")
	require.NoError(t, p.UpdateExecutionCAS(ctx, first, strPtr("s1"), models.ExecutionStatusRunning))

	// A second delivery carrying the same expectation loses the race.
	second := runningExecution("exec-1")
	second.CurrentStepID = strPtr("s3")
	err := p.UpdateExecutionCAS(ctx, second, strPtr("s1"), models.ExecutionStatusRunning)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))

	stored, err := p.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "s2", *stored.CurrentStepID)
}

func TestUpdateExecutionCAS_ConflictOnStaleStatus(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	require.NoError(t, p.CreateExecution(ctx, runningExecution("exec-1")))

	paused := runningExecution("exec-1")
	paused.Status = models.ExecutionStatusPaused
	require.NoError(t, p.UpdateExecutionCAS(ctx, paused, strPtr("s1"), models.ExecutionStatusRunning))

	stale := runningExecution("exec-1")
	err := p.UpdateExecutionCAS(ctx, stale, strPtr("s1"), models.ExecutionStatusRunning)
	assert.True(t, persistence.IsVersionConflict(err))
}

func TestCreateExecution_DuplicateIDRejected(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	require.NoError(t, p.CreateExecution(ctx, runningExecution("exec-1")))
	assert.Error(t, p.CreateExecution(ctx, runningExecution("exec-1")))
}

func TestActiveExecution_OnlyRunningOrPaused(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	require.NoError(t, p.CreateExecution(ctx, runningExecution("exec-1")))

	active, err := p.ActiveExecution(ctx, "wf-1", "owner-1", "owners")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "exec-1", active.ID)

	done := runningExecution("exec-1")
	done.Status = models.ExecutionStatusCompleted
	require.NoError(t, p.UpdateExecutionCAS(ctx, done, strPtr("s1"), models.ExecutionStatusRunning))

	active, err = p.ActiveExecution(ctx, "wf-1", "owner-1", "owners")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLatestExecution_PicksNewestEnrollment(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	older := runningExecution("exec-1")
	older.Status = models.ExecutionStatusCompleted
	require.NoError(t, p.CreateExecution(ctx, older))

	newer := runningExecution("exec-2")
	newer.Status = models.ExecutionStatusCompleted
	newer.EnrolledAt = enrolledAt.Add(time.Hour)
	require.NoError(t, p.CreateExecution(ctx, newer))

	latest, err := p.LatestExecution(ctx, "wf-1", "owner-1", "owners")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "exec-2", latest.ID)

	latest, err = p.LatestExecution(ctx, "wf-9", "owner-1", "owners")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestDueExecutions_PausedAndElapsedOnly(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	dueAt := enrolledAt.Add(time.Hour)
	laterAt := enrolledAt.Add(48 * time.Hour)

	due := runningExecution("exec-due")
	due.Status = models.ExecutionStatusPaused
	due.ResumeAt = &dueAt
	require.NoError(t, p.CreateExecution(ctx, due))

	notYet := runningExecution("exec-later")
	notYet.Status = models.ExecutionStatusPaused
	notYet.ResumeAt = &laterAt
	require.NoError(t, p.CreateExecution(ctx, notYet))

	require.NoError(t, p.CreateExecution(ctx, runningExecution("exec-running")))

	found, err := p.DueExecutions(ctx, enrolledAt.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "exec-due", found[0].ID)
}

func TestIncrementWorkflowCounter(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{
		ID:         "wf-1",
		TenantID:   "tenant-1",
		Name:       "welcome series",
		ObjectType: "owners",
		Status:     models.WorkflowStatusActive,
	}))

	require.NoError(t, p.IncrementWorkflowCounter(ctx, "wf-1", models.CounterEnrolled))
	require.NoError(t, p.IncrementWorkflowCounter(ctx, "wf-1", models.CounterEnrolled))
	require.NoError(t, p.IncrementWorkflowCounter(ctx, "wf-1", models.CounterGoalReached))

	wf, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), wf.EnrolledCount)
	assert.Equal(t, int64(1), wf.GoalReachedCount)
	assert.Equal(t, int64(0), wf.CompletedCount)

	assert.Error(t, p.IncrementWorkflowCounter(ctx, "wf-missing", models.CounterEnrolled))
}

func TestStepsByWorkflow_OrderedByPosition(t *testing.T) {
	p := NewPersistence()
	ctx := context.Background()

	for _, s := range []*models.WorkflowStep{
		{ID: "s3", WorkflowID: "wf-1", StepType: models.StepTypeTerminus, Position: 3},
		{ID: "s1", WorkflowID: "wf-1", StepType: models.StepTypeAction, Position: 1},
		{ID: "s2", WorkflowID: "wf-1", StepType: models.StepTypeWait, Position: 2},
	} {
		require.NoError(t, p.SaveStep(ctx, s))
	}

	steps, err := p.StepsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "s1", steps[0].ID)
	assert.Equal(t, "s2", steps[1].ID)
	assert.Equal(t, "s3", steps[2].ID)
}
