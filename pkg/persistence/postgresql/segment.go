package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
)

// SegmentRepository handles segment definition and membership lookups.
type SegmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSegmentRepository(db *sql.DB, logger *slog.Logger) *SegmentRepository {
	return &SegmentRepository{db: db, logger: logger}
}

func (r *SegmentRepository) SegmentByID(ctx context.Context, tenantID, segmentID string) (*models.Segment, error) {
	query := `
		SELECT id, tenant_id, name, segment_type, object_type, filters
		FROM segments
		WHERE id = $1 AND tenant_id = $2
	`

	var (
		segment models.Segment
		filters []byte
	)

	err := r.db.QueryRowContext(ctx, query, segmentID, tenantID).Scan(
		&segment.ID,
		&segment.TenantID,
		&segment.Name,
		&segment.SegmentType,
		&segment.ObjectType,
		&filters,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSegmentNotFound
		}

		return nil, fmt.Errorf("failed to query segment: %w", err)
	}

	if len(filters) > 0 {
		segment.Filters = json.RawMessage(filters)
	}

	return &segment, nil
}

func (r *SegmentRepository) SaveSegment(ctx context.Context, segment *models.Segment) error {
	query := `
		INSERT INTO segments (id, tenant_id, name, segment_type, object_type, filters)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			segment_type = EXCLUDED.segment_type,
			object_type = EXCLUDED.object_type,
			filters = EXCLUDED.filters
	`

	_, err := r.db.ExecContext(ctx, query,
		segment.ID,
		segment.TenantID,
		segment.Name,
		string(segment.SegmentType),
		segment.ObjectType,
		nullableJSON(segment.Filters),
	)
	if err != nil {
		return fmt.Errorf("failed to save segment: %w", err)
	}

	return nil
}

func (r *SegmentRepository) SegmentMember(ctx context.Context, segmentID, recordID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM segment_members WHERE segment_id = $1 AND record_id = $2)`

	var member bool

	err := r.db.QueryRowContext(ctx, query, segmentID, recordID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("failed to query segment membership: %w", err)
	}

	return member, nil
}

func (r *SegmentRepository) AddSegmentMember(ctx context.Context, segmentID, recordID string) error {
	query := `
		INSERT INTO segment_members (segment_id, record_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, segmentID, recordID)
	if err != nil {
		return fmt.Errorf("failed to add segment member: %w", err)
	}

	return nil
}
