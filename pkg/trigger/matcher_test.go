package trigger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func eventWorkflow(id, tenantID, objectType, eventType string) *models.Workflow {
	return &models.Workflow{
		ID:         id,
		TenantID:   tenantID,
		Name:       "on " + eventType,
		ObjectType: objectType,
		Status:     models.WorkflowStatusActive,
		EntryCondition: models.EntryCondition{
			TriggerType: models.TriggerTypeEvent,
			EventType:   eventType,
		},
	}
}

func bookingCreated(tenantID string, payload map[string]any) models.RecordEvent {
	return models.RecordEvent{
		EventType:  "booking.created",
		RecordID:   "booking-1",
		RecordType: "bookings",
		TenantID:   tenantID,
		Payload:    payload,
	}
}

func TestMatchEvent_SelectsMatchingWorkflows(t *testing.T) {
	p := memory.NewPersistence()
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, eventWorkflow("wf-1", "tenant-1", "bookings", "booking.created")))
	require.NoError(t, p.SaveWorkflow(ctx, eventWorkflow("wf-2", "tenant-1", "bookings", "booking.cancelled")))
	require.NoError(t, p.SaveWorkflow(ctx, eventWorkflow("wf-3", "tenant-1", "owners", "booking.created")))
	require.NoError(t, p.SaveWorkflow(ctx, eventWorkflow("wf-4", "tenant-2", "bookings", "booking.created")))

	matcher := NewMatcher(p, testLogger())

	matched, err := matcher.MatchEvent(ctx, bookingCreated("tenant-1", nil))
	require.NoError(t, err)

	// Same tenant, same object type, same event type. Nothing else.
	require.Len(t, matched, 1)
	assert.Equal(t, "wf-1", matched[0].ID)
}

func TestMatchEvent_IgnoresInactiveAndNonEventWorkflows(t *testing.T) {
	p := memory.NewPersistence()
	ctx := context.Background()

	inactive := eventWorkflow("wf-1", "tenant-1", "bookings", "booking.created")
	inactive.Status = models.WorkflowStatusInactive
	require.NoError(t, p.SaveWorkflow(ctx, inactive))

	manual := eventWorkflow("wf-2", "tenant-1", "bookings", "booking.created")
	manual.EntryCondition.TriggerType = models.TriggerTypeManual
	require.NoError(t, p.SaveWorkflow(ctx, manual))

	matcher := NewMatcher(p, testLogger())

	matched, err := matcher.MatchEvent(ctx, bookingCreated("tenant-1", nil))
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestMatchEvent_PayloadSchemaFilter(t *testing.T) {
	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := eventWorkflow("wf-1", "tenant-1", "bookings", "booking.created")
	workflow.EntryCondition.PayloadSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"service": map[string]any{"type": "string", "enum": []string{"boarding"}},
		},
		"required": []string{"service"},
	}
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	matcher := NewMatcher(p, testLogger())

	matched, err := matcher.MatchEvent(ctx, bookingCreated("tenant-1", map[string]any{"service": "boarding"}))
	require.NoError(t, err)
	require.Len(t, matched, 1)

	matched, err = matcher.MatchEvent(ctx, bookingCreated("tenant-1", map[string]any{"service": "grooming"}))
	require.NoError(t, err)
	assert.Empty(t, matched)

	// Missing payload fails the schema's required clause.
	matched, err = matcher.MatchEvent(ctx, bookingCreated("tenant-1", nil))
	require.NoError(t, err)
	assert.Empty(t, matched)
}
