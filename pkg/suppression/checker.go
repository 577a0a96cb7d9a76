// Package suppression determines whether a candidate record belongs to any
// exclusion segment before enrollment.
package suppression

import (
	"context"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
)

// Result reports the suppression decision. SegmentID names the first
// matching segment when Suppressed is true.
type Result struct {
	Suppressed bool
	SegmentID  string
}

// Checker resolves segment membership. Segments are checked in list order
// and the first match wins.
//
// FailOpen controls the lookup-failure policy: when true (the default), a
// segment or record lookup error means the record is NOT suppressed, so a
// data-layer outage never silently blocks automation. Operators who prefer
// blocking on uncertainty can disable it.
type Checker struct {
	segments     persistence.SegmentRepository
	materializer *record.Materializer
	evaluator    *condition.Evaluator
	logger       *slog.Logger

	FailOpen bool
}

func NewChecker(
	segments persistence.SegmentRepository,
	materializer *record.Materializer,
	evaluator *condition.Evaluator,
	logger *slog.Logger,
) *Checker {
	return &Checker{
		segments:     segments,
		materializer: materializer,
		evaluator:    evaluator,
		logger:       logger.With("module", "suppression_checker"),
		FailOpen:     true,
	}
}

// Check evaluates the candidate against each segment in order.
func (c *Checker) Check(ctx context.Context, tenantID, recordID, recordType string, segmentIDs []string) (Result, error) {
	if len(segmentIDs) == 0 {
		return Result{}, nil
	}

	var snapshot map[string]any

	for _, segmentID := range segmentIDs {
		segment, err := c.segments.SegmentByID(ctx, tenantID, segmentID)
		if err != nil {
			if !c.FailOpen {
				return Result{}, err
			}

			c.logger.WarnContext(ctx, "Segment lookup failed, not suppressing",
				"segment_id", segmentID,
				"record_id", recordID,
				"error", err)

			continue
		}

		if !segment.AppliesTo(recordType) {
			continue
		}

		switch segment.SegmentType {
		case models.SegmentTypeStatic:
			member, err := c.segments.SegmentMember(ctx, segmentID, recordID)
			if err != nil {
				if !c.FailOpen {
					return Result{}, err
				}

				c.logger.WarnContext(ctx, "Segment membership lookup failed, not suppressing",
					"segment_id", segmentID,
					"record_id", recordID,
					"error", err)

				continue
			}

			if member {
				return Result{Suppressed: true, SegmentID: segmentID}, nil
			}

		case models.SegmentTypeDynamic:
			if snapshot == nil {
				snapshot, err = c.materializer.Materialize(ctx, tenantID, recordType, recordID)
				if err != nil {
					if !c.FailOpen {
						return Result{}, err
					}

					c.logger.WarnContext(ctx, "Record materialization failed, not suppressing",
						"segment_id", segmentID,
						"record_id", recordID,
						"error", err)

					continue
				}
			}

			tree, err := condition.Normalize(segment.Filters)
			if err != nil {
				if !c.FailOpen {
					return Result{}, err
				}

				c.logger.WarnContext(ctx, "Segment filter parse failed, not suppressing",
					"segment_id", segmentID,
					"error", err)

				continue
			}

			if c.evaluator.Evaluate(tree, snapshot) {
				return Result{Suppressed: true, SegmentID: segmentID}, nil
			}
		}
	}

	return Result{}, nil
}
