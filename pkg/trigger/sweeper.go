package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
)

// DefaultSweepBatchSize caps how many candidate records one sweep pass scans
// per workflow.
const DefaultSweepBatchSize = 100

// Sweeper periodically evaluates standing-filter workflows against their
// object type's records and requests enrollment for every record the filter
// matches. Enrollment policy (re-enrollment, suppression, active-execution
// guard) stays with the enrollment manager, so sweeping the same record twice
// is harmless.
type Sweeper struct {
	store        Store
	registry     *record.Registry
	materializer *record.Materializer
	evaluator    *condition.Evaluator
	publisher    eventbus.EventPublisher
	logger       *slog.Logger

	BatchSize int
}

// Store narrows the storage surface the sweeper needs: the workflows to
// sweep, plus the active-execution lookup that decides which records count
// toward the batch.
type Store interface {
	ActiveFilterWorkflows(ctx context.Context) ([]*models.Workflow, error)
	ActiveExecution(ctx context.Context, workflowID, recordID, recordType string) (*models.WorkflowExecution, error)
}

func NewSweeper(
	store Store,
	registry *record.Registry,
	materializer *record.Materializer,
	evaluator *condition.Evaluator,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		store:        store,
		registry:     registry,
		materializer: materializer,
		evaluator:    evaluator,
		publisher:    publisher,
		logger:       logger.With("module", "trigger_sweeper"),
		BatchSize:    DefaultSweepBatchSize,
	}
}

// Sweep runs one full pass over all standing-filter workflows. Per-workflow
// failures are logged and skipped so one broken filter never stalls the rest.
func (s *Sweeper) Sweep(ctx context.Context) error {
	workflows, err := s.store.ActiveFilterWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("selecting standing-filter workflows: %w", err)
	}

	for _, workflow := range workflows {
		if err := s.sweepWorkflow(ctx, workflow); err != nil {
			s.logger.ErrorContext(ctx, "Sweep failed for workflow",
				"workflow_id", workflow.ID,
				"tenant_id", workflow.TenantID,
				"error", err)
		}
	}

	return nil
}

func (s *Sweeper) sweepWorkflow(ctx context.Context, workflow *models.Workflow) error {
	tree, err := condition.Normalize(workflow.EntryCondition.Filter)
	if err != nil {
		return fmt.Errorf("parsing standing filter: %w", err)
	}

	source, err := s.registry.Source(workflow.ObjectType)
	if err != nil {
		return err
	}

	// The batch bound counts eligible candidates only; records already in
	// the workflow are paged past without consuming it, so a backlog of
	// enrolled records never starves the ones behind them.
	var afterID string

	eligible := 0

	for eligible < s.BatchSize {
		recordIDs, err := source.ListIDs(ctx, workflow.TenantID, afterID, s.BatchSize)
		if err != nil {
			return fmt.Errorf("listing candidate records: %w", err)
		}

		if len(recordIDs) == 0 {
			return nil
		}

		for _, recordID := range recordIDs {
			if eligible >= s.BatchSize {
				return nil
			}

			afterID = recordID

			active, err := s.store.ActiveExecution(ctx, workflow.ID, recordID, workflow.ObjectType)
			if err != nil {
				return fmt.Errorf("checking active execution for record %s: %w", recordID, err)
			}

			if active != nil {
				continue
			}

			eligible++

			snapshot, err := s.materializer.Materialize(ctx, workflow.TenantID, workflow.ObjectType, recordID)
			if err != nil {
				s.logger.WarnContext(ctx, "Record materialization failed during sweep",
					"workflow_id", workflow.ID,
					"record_id", recordID,
					"error", err)

				continue
			}

			if !s.evaluator.Evaluate(tree, snapshot) {
				continue
			}

			request := events.EnrollmentRequested{
				BaseEvent:        events.NewBaseEvent(events.EnrollmentRequestedEvent, workflow.ID),
				TargetWorkflowID: workflow.ID,
				TenantID:         workflow.TenantID,
				RecordID:         recordID,
				RecordType:       workflow.ObjectType,
			}

			if err := s.publisher.Publish(ctx, workflow.TenantID, request); err != nil {
				return fmt.Errorf("publishing enrollment request for record %s: %w", recordID, err)
			}
		}
	}

	return nil
}
