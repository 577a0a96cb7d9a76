package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func entry(executionID string, resumeAt time.Time) Entry {
	return Entry{ExecutionID: executionID, TenantID: "tenant-1", ResumeAt: resumeAt}
}

func TestMemoryStore_ClaimDueIsOneShot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Schedule(ctx, entry("exec-1", baseTime.Add(time.Minute))))
	require.NoError(t, store.Schedule(ctx, entry("exec-2", baseTime.Add(time.Hour))))

	due, err := store.ClaimDue(ctx, baseTime.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "exec-1", due[0].ExecutionID)

	// Claimed entries are gone; claiming again yields nothing.
	due, err = store.ClaimDue(ctx, baseTime.Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// The later timer is still held.
	due, err = store.ClaimDue(ctx, baseTime.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "exec-2", due[0].ExecutionID)
}

func TestMemoryStore_ClaimDueOrdersByResumeAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Schedule(ctx, entry("exec-late", baseTime.Add(3*time.Minute))))
	require.NoError(t, store.Schedule(ctx, entry("exec-early", baseTime.Add(time.Minute))))
	require.NoError(t, store.Schedule(ctx, entry("exec-mid", baseTime.Add(2*time.Minute))))

	due, err := store.ClaimDue(ctx, baseTime.Add(10*time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "exec-early", due[0].ExecutionID)
	assert.Equal(t, "exec-mid", due[1].ExecutionID)

	// The entry beyond the claim limit survives for the next pass.
	due, err = store.ClaimDue(ctx, baseTime.Add(10*time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "exec-late", due[0].ExecutionID)
}

func TestMemoryStore_RescheduleReplacesTimer(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Schedule(ctx, entry("exec-1", baseTime.Add(time.Minute))))
	require.NoError(t, store.Schedule(ctx, entry("exec-1", baseTime.Add(time.Hour))))

	// One timer per execution: the second schedule moved it out.
	due, err := store.ClaimDue(ctx, baseTime.Add(30*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.ClaimDue(ctx, baseTime.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestMemoryStore_Remove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Schedule(ctx, entry("exec-1", baseTime)))
	require.NoError(t, store.Remove(ctx, "exec-1"))

	due, err := store.ClaimDue(ctx, baseTime.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}
