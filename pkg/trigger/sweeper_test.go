package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence/memory"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
)

type capturedPublisher struct {
	published []eventbus.Event
}

func (p *capturedPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func filterWorkflow(id, tenantID string, filter string) *models.Workflow {
	return &models.Workflow{
		ID:         id,
		TenantID:   tenantID,
		Name:       "standing filter " + id,
		ObjectType: "owners",
		Status:     models.WorkflowStatusActive,
		EntryCondition: models.EntryCondition{
			TriggerType: models.TriggerTypeFilter,
			Filter:      []byte(filter),
		},
	}
}

func TestSweep_RequestsEnrollmentForMatchingRecords(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	owners := record.NewMemorySource("owners", nil)
	owners.Put("tenant-1", "owner-1", map[string]any{"status": "lapsed"})
	owners.Put("tenant-1", "owner-2", map[string]any{"status": "active"})
	owners.Put("tenant-1", "owner-3", map[string]any{"status": "lapsed"})
	owners.Put("tenant-2", "owner-9", map[string]any{"status": "lapsed"})

	records := record.NewRegistry()
	records.Register(owners)

	p := memory.NewPersistence()
	require.NoError(t, p.SaveWorkflow(ctx,
		filterWorkflow("wf-1", "tenant-1", `[{"field": "status", "operator": "equals", "value": "lapsed"}]`)))

	publisher := &capturedPublisher{}
	materializer := record.NewMaterializer(records, logger)
	evaluator := condition.NewEvaluator(logger)
	sweeper := NewSweeper(p, records, materializer, evaluator, publisher, logger)

	require.NoError(t, sweeper.Sweep(ctx))

	// Two lapsed owners in the workflow's tenant; the active owner and the
	// other tenant's records are untouched.
	require.Len(t, publisher.published, 2)

	recordIDs := make([]string, 0, 2)
	for _, event := range publisher.published {
		req, ok := event.(events.EnrollmentRequested)
		require.True(t, ok)
		assert.Equal(t, "wf-1", req.TargetWorkflowID)
		assert.Equal(t, "tenant-1", req.TenantID)
		assert.Equal(t, "owners", req.RecordType)
		recordIDs = append(recordIDs, req.RecordID)
	}

	assert.ElementsMatch(t, []string{"owner-1", "owner-3"}, recordIDs)
}

func TestSweep_BrokenFilterSkipsWorkflowOnly(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	owners := record.NewMemorySource("owners", nil)
	owners.Put("tenant-1", "owner-1", map[string]any{"status": "lapsed"})

	records := record.NewRegistry()
	records.Register(owners)

	p := memory.NewPersistence()
	require.NoError(t, p.SaveWorkflow(ctx, filterWorkflow("wf-1", "tenant-1", `[{]`)))
	require.NoError(t, p.SaveWorkflow(ctx,
		filterWorkflow("wf-2", "tenant-1", `[{"field": "status", "operator": "equals", "value": "lapsed"}]`)))

	publisher := &capturedPublisher{}
	sweeper := NewSweeper(p, records, record.NewMaterializer(records, logger),
		condition.NewEvaluator(logger), publisher, logger)

	require.NoError(t, sweeper.Sweep(ctx))

	// The broken filter is skipped; the healthy workflow still sweeps.
	require.Len(t, publisher.published, 1)
	req, ok := publisher.published[0].(events.EnrollmentRequested)
	require.True(t, ok)
	assert.Equal(t, "wf-2", req.TargetWorkflowID)
}

// Records already enrolled in the workflow must not consume the batch: with a
// batch of one and two enrolled records sorting first, the sweep still reaches
// the record behind them.
func TestSweep_EnrolledRecordsDoNotConsumeBatch(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	owners := record.NewMemorySource("owners", nil)
	owners.Put("tenant-1", "owner-1", map[string]any{"status": "lapsed"})
	owners.Put("tenant-1", "owner-2", map[string]any{"status": "lapsed"})
	owners.Put("tenant-1", "owner-3", map[string]any{"status": "lapsed"})

	records := record.NewRegistry()
	records.Register(owners)

	p := memory.NewPersistence()
	require.NoError(t, p.SaveWorkflow(ctx,
		filterWorkflow("wf-1", "tenant-1", `[{"field": "status", "operator": "equals", "value": "lapsed"}]`)))

	for i, recordID := range []string{"owner-1", "owner-2"} {
		stepID := "s1"
		require.NoError(t, p.CreateExecution(ctx, &models.WorkflowExecution{
			ID:            "exec-" + recordID,
			WorkflowID:    "wf-1",
			TenantID:      "tenant-1",
			RecordID:      recordID,
			RecordType:    "owners",
			Status:        models.ExecutionStatusRunning,
			CurrentStepID: &stepID,
			EnrolledAt:    time.Date(2024, 6, 15, 12, i, 0, 0, time.UTC),
		}))
	}

	publisher := &capturedPublisher{}
	sweeper := NewSweeper(p, records, record.NewMaterializer(records, logger),
		condition.NewEvaluator(logger), publisher, logger)
	sweeper.BatchSize = 1

	require.NoError(t, sweeper.Sweep(ctx))

	require.Len(t, publisher.published, 1)
	req, ok := publisher.published[0].(events.EnrollmentRequested)
	require.True(t, ok)
	assert.Equal(t, "owner-3", req.RecordID)
}

func TestSweep_BatchSizeLimitsCandidates(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	owners := record.NewMemorySource("owners", nil)
	owners.Put("tenant-1", "owner-1", map[string]any{"status": "lapsed"})
	owners.Put("tenant-1", "owner-2", map[string]any{"status": "lapsed"})
	owners.Put("tenant-1", "owner-3", map[string]any{"status": "lapsed"})

	records := record.NewRegistry()
	records.Register(owners)

	p := memory.NewPersistence()
	require.NoError(t, p.SaveWorkflow(ctx,
		filterWorkflow("wf-1", "tenant-1", `[{"field": "status", "operator": "equals", "value": "lapsed"}]`)))

	publisher := &capturedPublisher{}
	sweeper := NewSweeper(p, records, record.NewMaterializer(records, logger),
		condition.NewEvaluator(logger), publisher, logger)
	sweeper.BatchSize = 2

	require.NoError(t, sweeper.Sweep(ctx))
	assert.Len(t, publisher.published, 2)
}
