package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
)

const DefaultPollInterval = 5 * time.Second
const DefaultClaimBatch = 100

// Poller claims due resume timers on an interval and publishes a resume
// message for each. Safe to run in multiple replicas; the store's one-shot
// claim prevents duplicate wakes from the timer path, and the engine's
// compare-and-swap tolerates any that slip through the storage sweep.
type Poller struct {
	store     Store
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	Interval   time.Duration
	ClaimBatch int
}

func NewPoller(store Store, publisher eventbus.EventPublisher, logger *slog.Logger) *Poller {
	return &Poller{
		store:      store,
		publisher:  publisher,
		logger:     logger.With("module", "resume_poller"),
		Interval:   DefaultPollInterval,
		ClaimBatch: DefaultClaimBatch,
	}
}

// Run blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	entries, err := p.store.ClaimDue(ctx, time.Now().UTC(), p.ClaimBatch)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to claim due resume timers", "error", err)
		return
	}

	for _, entry := range entries {
		resume := events.ExecutionResume{
			BaseEvent:   events.NewBaseEvent(events.ExecutionResumeEvent, ""),
			ExecutionID: entry.ExecutionID,
			TenantID:    entry.TenantID,
		}

		if err := p.publisher.Publish(ctx, entry.ExecutionID, resume); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish resume message",
				"execution_id", entry.ExecutionID,
				"error", err)

			// Put the timer back so the next tick retries it.
			if rescheduleErr := p.store.Schedule(ctx, entry); rescheduleErr != nil {
				p.logger.ErrorContext(ctx, "Failed to reschedule resume timer",
					"execution_id", entry.ExecutionID,
					"error", rescheduleErr)
			}
		}
	}
}
