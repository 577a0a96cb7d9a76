package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/cmd"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/scheduler"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/trigger"
)

const dueSweepInterval = time.Minute
const dueSweepBatch = 100

// Activator drives everything time-based: the cron-scheduled standing-filter
// sweep, the resume-timer poller, and a storage sweep over due executions
// that backstops lost timers.
type Activator struct {
	id          string
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	timers      scheduler.Store
	sweeper     *trigger.Sweeper
	logger      *slog.Logger
}

func NewActivator(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	timers scheduler.Store,
	logger *slog.Logger,
) *Activator {
	log := logger.With("module", "activator")

	records := cmd.NewRecordRegistry()
	materializer := record.NewMaterializer(records, log)
	evaluator := condition.NewEvaluator(log)

	return &Activator{
		id:          id,
		persistence: p,
		eventBus:    eventBus,
		timers:      timers,
		sweeper:     trigger.NewSweeper(p, records, materializer, evaluator, eventBus, log),
		logger:      log,
	}
}

// Start blocks until a termination signal arrives.
func (a *Activator) Start(ctx context.Context, sweepSchedule string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduleRunner := cron.New()

	_, err := scheduleRunner.AddFunc(sweepSchedule, func() {
		if err := a.sweeper.Sweep(ctx); err != nil {
			a.logger.ErrorContext(ctx, "Standing-filter sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("registering sweep schedule %q: %w", sweepSchedule, err)
	}

	scheduleRunner.Start()
	defer scheduleRunner.Stop()

	if a.timers != nil {
		poller := scheduler.NewPoller(a.timers, a.eventBus, a.logger)

		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.ErrorContext(ctx, "Resume poller stopped", "error", err)
			}
		}()
	}

	go a.runDueSweep(ctx)

	a.logger.InfoContext(ctx, "Activator started", "sweep_schedule", sweepSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		a.logger.InfoContext(ctx, "Shutting down activator")
	case <-ctx.Done():
	}

	return nil
}

// runDueSweep periodically re-publishes resume messages for paused executions
// whose resume instant passed. Duplicates against the timer path are harmless;
// the engine's compare-and-swap drops them.
func (a *Activator) runDueSweep(ctx context.Context) {
	ticker := time.NewTicker(dueSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepDue(ctx)
		}
	}
}

func (a *Activator) sweepDue(ctx context.Context) {
	executions, err := a.persistence.DueExecutions(ctx, time.Now().UTC(), dueSweepBatch)
	if err != nil {
		a.logger.ErrorContext(ctx, "Due-execution sweep failed", "error", err)

		return
	}

	for _, execution := range executions {
		resume := events.ExecutionResume{
			BaseEvent:   events.NewBaseEvent(events.ExecutionResumeEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			TenantID:    execution.TenantID,
		}

		if err := a.eventBus.Publish(ctx, execution.ID, resume); err != nil {
			a.logger.ErrorContext(ctx, "Failed to publish resume for due execution",
				"execution_id", execution.ID,
				"error", err)

			continue
		}

		if a.timers != nil {
			if err := a.timers.Remove(ctx, execution.ID); err != nil {
				a.logger.WarnContext(ctx, "Failed to drop claimed resume timer",
					"execution_id", execution.ID,
					"error", err)
			}
		}
	}
}
