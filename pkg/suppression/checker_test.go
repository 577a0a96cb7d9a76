package suppression

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence/memory"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
)

type checkerFixture struct {
	checker     *Checker
	persistence *memory.Persistence
	owners      *record.MemorySource
}

func newCheckerFixture(t *testing.T) *checkerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	owners := record.NewMemorySource("owners", []string{"status"})
	owners.Put("tenant-1", "owner-1", map[string]any{
		"status":  "active",
		"balance": float64(-50),
	})

	records := record.NewRegistry()
	records.Register(owners)

	p := memory.NewPersistence()
	materializer := record.NewMaterializer(records, logger)
	evaluator := condition.NewEvaluator(logger)

	return &checkerFixture{
		checker:     NewChecker(p, materializer, evaluator, logger),
		persistence: p,
		owners:      owners,
	}
}

func (f *checkerFixture) saveSegment(t *testing.T, segment *models.Segment) {
	t.Helper()
	require.NoError(t, f.persistence.SaveSegment(context.Background(), segment))
}

func TestCheck_NoSegmentsNotSuppressed(t *testing.T) {
	f := newCheckerFixture(t)

	result, err := f.checker.Check(context.Background(), "tenant-1", "owner-1", "owners", nil)
	require.NoError(t, err)
	assert.False(t, result.Suppressed)
}

func TestCheck_StaticMembership(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	f.saveSegment(t, &models.Segment{
		ID:          "seg-1",
		TenantID:    "tenant-1",
		Name:        "do not contact",
		SegmentType: models.SegmentTypeStatic,
		ObjectType:  "owners",
	})
	require.NoError(t, f.persistence.AddSegmentMember(ctx, "seg-1", "owner-1"))

	result, err := f.checker.Check(ctx, "tenant-1", "owner-1", "owners", []string{"seg-1"})
	require.NoError(t, err)
	assert.True(t, result.Suppressed)
	assert.Equal(t, "seg-1", result.SegmentID)

	result, err = f.checker.Check(ctx, "tenant-1", "owner-2", "owners", []string{"seg-1"})
	require.NoError(t, err)
	assert.False(t, result.Suppressed)
}

func TestCheck_DynamicFilter(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	f.saveSegment(t, &models.Segment{
		ID:          "seg-1",
		TenantID:    "tenant-1",
		Name:        "delinquent accounts",
		SegmentType: models.SegmentTypeDynamic,
		ObjectType:  "owners",
		Filters:     []byte(`[{"field": "balance", "operator": "lt", "value": 0}]`),
	})

	result, err := f.checker.Check(ctx, "tenant-1", "owner-1", "owners", []string{"seg-1"})
	require.NoError(t, err)
	assert.True(t, result.Suppressed)
	assert.Equal(t, "seg-1", result.SegmentID)

	f.owners.Put("tenant-1", "owner-1", map[string]any{"balance": float64(20)})

	result, err = f.checker.Check(ctx, "tenant-1", "owner-1", "owners", []string{"seg-1"})
	require.NoError(t, err)
	assert.False(t, result.Suppressed)
}

func TestCheck_FirstMatchWins(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	f.saveSegment(t, &models.Segment{
		ID: "seg-1", TenantID: "tenant-1", SegmentType: models.SegmentTypeDynamic,
		ObjectType: "owners",
		Filters:    []byte(`[{"field": "status", "operator": "equals", "value": "active"}]`),
	})
	f.saveSegment(t, &models.Segment{
		ID: "seg-2", TenantID: "tenant-1", SegmentType: models.SegmentTypeDynamic,
		ObjectType: "owners",
		Filters:    []byte(`[{"field": "balance", "operator": "lt", "value": 0}]`),
	})

	result, err := f.checker.Check(ctx, "tenant-1", "owner-1", "owners", []string{"seg-1", "seg-2"})
	require.NoError(t, err)
	assert.True(t, result.Suppressed)
	assert.Equal(t, "seg-1", result.SegmentID)
}

func TestCheck_ObjectTypeMismatchSkipped(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	f.saveSegment(t, &models.Segment{
		ID:          "seg-1",
		TenantID:    "tenant-1",
		SegmentType: models.SegmentTypeStatic,
		ObjectType:  "bookings",
	})
	require.NoError(t, f.persistence.AddSegmentMember(ctx, "seg-1", "owner-1"))

	// The segment targets bookings, so an owners candidate is never checked
	// against it.
	result, err := f.checker.Check(ctx, "tenant-1", "owner-1", "owners", []string{"seg-1"})
	require.NoError(t, err)
	assert.False(t, result.Suppressed)
}

func TestCheck_MissingSegmentFailOpen(t *testing.T) {
	f := newCheckerFixture(t)

	result, err := f.checker.Check(context.Background(), "tenant-1", "owner-1", "owners", []string{"seg-missing"})
	require.NoError(t, err)
	assert.False(t, result.Suppressed)
}

func TestCheck_MissingSegmentFailClosed(t *testing.T) {
	f := newCheckerFixture(t)
	f.checker.FailOpen = false

	_, err := f.checker.Check(context.Background(), "tenant-1", "owner-1", "owners", []string{"seg-missing"})
	assert.Error(t, err)
}

func TestCheck_MaterializationFailureFailOpen(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	f.saveSegment(t, &models.Segment{
		ID:          "seg-1",
		TenantID:    "tenant-1",
		SegmentType: models.SegmentTypeDynamic,
		ObjectType:  "owners",
		Filters:     []byte(`[{"field": "status", "operator": "equals", "value": "active"}]`),
	})

	// A record the source has never seen: materialization fails, and the
	// default policy lets enrollment proceed.
	result, err := f.checker.Check(ctx, "tenant-1", "owner-unknown", "owners", []string{"seg-1"})
	require.NoError(t, err)
	assert.False(t, result.Suppressed)

	f.checker.FailOpen = false

	_, err = f.checker.Check(ctx, "tenant-1", "owner-unknown", "owners", []string{"seg-1"})
	assert.Error(t, err)
}
