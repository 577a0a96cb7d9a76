package record

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMaterializer(t *testing.T) (*Materializer, *Registry) {
	t.Helper()

	registry := NewRegistry()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewMaterializer(registry, logger), registry
}

func TestMaterialize_SnapshotShape(t *testing.T) {
	m, registry := testMaterializer(t)

	owners := NewMemorySource("owners", nil)
	owners.Put("tenant-1", "owner-1", map[string]any{"name": "Dana", "status": "active"})
	registry.Register(owners)

	snapshot, err := m.Materialize(context.Background(), "tenant-1", "owners", "owner-1")
	require.NoError(t, err)

	assert.Equal(t, "Dana", snapshot["name"])
	assert.Equal(t, "owner-1", snapshot["id"])
	assert.Equal(t, "owners", snapshot["record_type"])
	assert.Equal(t, map[string]any{"id": "tenant-1"}, snapshot["tenant"])
}

func TestMaterialize_NestsRelatedRecords(t *testing.T) {
	m, registry := testMaterializer(t)

	owners := NewMemorySource("owners", nil)
	owners.Put("tenant-1", "owner-1", map[string]any{"name": "Dana", "email": "dana@example.com"})
	registry.Register(owners)

	pets := NewMemorySource("pets", nil)
	pets.Put("tenant-1", "pet-1", map[string]any{"name": "Biscuit", "species": "dog"})
	registry.Register(pets)

	bookings := NewMemorySource("bookings", nil)
	bookings.Put("tenant-1", "booking-1", map[string]any{
		"service":  "boarding",
		"owner_id": "owner-1",
		"pet_id":   "pet-1",
	})
	registry.Register(bookings)

	snapshot, err := m.Materialize(context.Background(), "tenant-1", "bookings", "booking-1")
	require.NoError(t, err)

	assert.Equal(t, "boarding", snapshot["service"])

	owner, ok := snapshot["owner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dana@example.com", owner["email"])

	pet, ok := snapshot["pet"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Biscuit", pet["name"])
}

func TestMaterialize_MissingRelatedRecordIsBestEffort(t *testing.T) {
	m, registry := testMaterializer(t)

	owners := NewMemorySource("owners", nil)
	registry.Register(owners)

	bookings := NewMemorySource("bookings", nil)
	bookings.Put("tenant-1", "booking-1", map[string]any{
		"service":  "grooming",
		"owner_id": "owner-gone",
	})
	registry.Register(bookings)

	snapshot, err := m.Materialize(context.Background(), "tenant-1", "bookings", "booking-1")
	require.NoError(t, err)

	assert.Equal(t, "grooming", snapshot["service"])
	assert.NotContains(t, snapshot, "owner")
}

func TestMaterialize_UnknownTypeOrRecordErrors(t *testing.T) {
	m, registry := testMaterializer(t)

	_, err := m.Materialize(context.Background(), "tenant-1", "invoices", "inv-1")
	assert.Error(t, err)

	owners := NewMemorySource("owners", nil)
	registry.Register(owners)

	_, err = m.Materialize(context.Background(), "tenant-1", "owners", "owner-missing")
	assert.Error(t, err)
}
