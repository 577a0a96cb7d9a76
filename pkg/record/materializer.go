package record

import (
	"context"
	"fmt"
	"log/slog"
)

// relatedRefs maps foreign-key fields on a record to the object type they
// reference and the snapshot key the related fields nest under.
var relatedRefs = []struct {
	field      string
	objectType string
	key        string
}{
	{"owner_id", "owners", "owner"},
	{"pet_id", "pets", "pet"},
	{"booking_id", "bookings", "booking"},
}

// Materializer fetches a record plus its related owner/pet/booking context
// into one nested snapshot. Condition fields address it by dot-path: record
// fields at the top level, related records under "owner", "pet", "booking",
// and the tenant identifier under "tenant.id".
type Materializer struct {
	registry *Registry
	logger   *slog.Logger
}

func NewMaterializer(registry *Registry, logger *slog.Logger) *Materializer {
	return &Materializer{
		registry: registry,
		logger:   logger.With("module", "record_materializer"),
	}
}

// Materialize returns the snapshot for one record.
func (m *Materializer) Materialize(ctx context.Context, tenantID, recordType, recordID string) (map[string]any, error) {
	source, err := m.registry.Source(recordType)
	if err != nil {
		return nil, err
	}

	fields, err := source.Get(ctx, tenantID, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", recordType, recordID, err)
	}

	snapshot := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		snapshot[k] = v
	}

	snapshot["id"] = recordID
	snapshot["record_type"] = recordType
	snapshot["tenant"] = map[string]any{"id": tenantID}

	for _, ref := range relatedRefs {
		if ref.objectType == recordType {
			continue
		}

		refID, ok := fields[ref.field].(string)
		if !ok || refID == "" {
			continue
		}

		relatedSource, err := m.registry.Source(ref.objectType)
		if err != nil {
			continue
		}

		related, err := relatedSource.Get(ctx, tenantID, refID)
		if err != nil {
			// Related context is best effort; the record's own fields still
			// materialize.
			m.logger.WarnContext(ctx, "Failed to materialize related record",
				"record_type", recordType,
				"record_id", recordID,
				"related_type", ref.objectType,
				"related_id", refID,
				"error", err)

			continue
		}

		snapshot[ref.key] = related
	}

	return snapshot, nil
}
