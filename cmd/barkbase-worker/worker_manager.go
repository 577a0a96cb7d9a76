package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/actions"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/cmd"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/condition"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/enrollment"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/otelhelper"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/protocol"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/scheduler"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/suppression"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/trigger"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/workflow"
)

// WorkerManager consumes the four message types that drive the engine:
// inbound record events, step execution, delayed resumption, and
// workflow-initiated enrollment requests. Each message is handled
// independently; a handler error nacks only its own message.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	tracer      trace.Tracer

	matcher     *trigger.Matcher
	enrollments *enrollment.Manager
	engine      *workflow.Engine
	timers      scheduler.Store
}

func NewWorkerManager(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	w := &WorkerManager{
		id:          id,
		logger:      logger.With("module", "worker_manager", "worker_id", id),
		persistence: p,
		eventBus:    eventBus,
		tracer:      noop.NewTracerProvider().Tracer("barkbase-worker"),
	}

	w.build()

	return w
}

// WithTimerStore switches delayed resumption to the redis-backed timer store.
func (w *WorkerManager) WithTimerStore(client redis.UniversalClient) *WorkerManager {
	w.timers = scheduler.NewRedisStore(client)
	w.build()

	return w
}

// build wires the engine stack. Re-run whenever a dependency changes.
func (w *WorkerManager) build() {
	records := cmd.NewRecordRegistry()
	materializer := record.NewMaterializer(records, w.logger)
	evaluator := condition.NewEvaluator(w.logger)

	registry := actions.NewRegistry()
	registry.Register(actions.NewSendSMSFactory(protocol.NewLogMessenger(w.logger)))
	registry.Register(actions.NewSendEmailFactory(protocol.NewLogMessenger(w.logger)))
	registry.Register(actions.NewCreateTaskFactory(protocol.NewLogTaskCreator(w.logger)))
	registry.Register(actions.NewUpdateFieldFactory(records))
	registry.Register(actions.NewInternalNoteFactory())
	registry.Register(actions.NewEnrollInWorkflowFactory(w.eventBus))

	checker := suppression.NewChecker(w.persistence, materializer, evaluator, w.logger)

	w.matcher = trigger.NewMatcher(w.persistence, w.logger)
	w.enrollments = enrollment.NewManager(w.persistence, checker, materializer, evaluator, w.eventBus, w.logger)

	executor := workflow.NewExecutor(registry, materializer, evaluator, w.logger)
	w.engine = workflow.NewEngine(w.persistence, executor, materializer, w.timers, w.eventBus, w.logger)
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	if tracer, err := otelhelper.NewTracer(ctx, "barkbase-worker"); err == nil {
		w.tracer = tracer
	} else {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	handlers := map[events.EventType]eventbus.EventHandler{
		events.RecordEventReceivedEvent:    w.handleRecordEvent,
		events.ExecutionStepAvailableEvent: w.handleStepAvailable,
		events.ExecutionResumeEvent:        w.handleResume,
		events.EnrollmentRequestedEvent:    w.handleEnrollmentRequested,
	}

	for eventType, handler := range handlers {
		if err := w.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.InfoContext(ctx, "Shutting down worker")
	case <-ctx.Done():
	}

	return nil
}

func (w *WorkerManager) handleRecordEvent(ctx context.Context, event any) error {
	received, ok := event.(*events.RecordEventReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RecordEventReceived")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "record_event",
		attribute.String(otelhelper.TenantIDKey, received.Event.TenantID),
		attribute.String(otelhelper.RecordIDKey, received.Event.RecordID),
		attribute.String(otelhelper.EventIDKey, received.ID),
	)
	defer span.End()

	logger := w.logger.With(
		"event_type", received.Event.EventType,
		"record_id", received.Event.RecordID,
		"tenant_id", received.Event.TenantID,
	)

	workflows, err := w.matcher.MatchEvent(ctx, received.Event)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Trigger matching failed", "error", err)

		return err
	}

	for _, wf := range workflows {
		result, err := w.enrollments.Enroll(ctx, enrollment.Request{
			Workflow:         wf,
			TenantID:         received.Event.TenantID,
			RecordID:         received.Event.RecordID,
			RecordType:       received.Event.RecordType,
			SourceWorkflowID: received.Event.SourceWorkflowID,
		})
		if err != nil {
			otelhelper.SetError(span, err)
			logger.ErrorContext(ctx, "Enrollment failed", "workflow_id", wf.ID, "error", err)

			return err
		}

		logger.InfoContext(ctx, "Enrollment decided",
			"workflow_id", wf.ID,
			"enrolled", result.Enrolled,
			"reason", result.Reason)
	}

	return nil
}

func (w *WorkerManager) handleStepAvailable(ctx context.Context, event any) error {
	msg, ok := event.(*events.ExecutionStepAvailable)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionStepAvailable")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "execute_step",
		attribute.String(otelhelper.ExecutionIDKey, msg.ExecutionID),
		attribute.String(otelhelper.StepIDKey, msg.StepID),
	)
	defer span.End()

	if err := w.engine.HandleStepAvailable(ctx, *msg); err != nil {
		otelhelper.SetError(span, err)
		w.logger.ErrorContext(ctx, "Step execution failed",
			"execution_id", msg.ExecutionID,
			"step_id", msg.StepID,
			"error", err)

		return err
	}

	return nil
}

func (w *WorkerManager) handleResume(ctx context.Context, event any) error {
	msg, ok := event.(*events.ExecutionResume)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionResume")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "resume_execution",
		attribute.String(otelhelper.ExecutionIDKey, msg.ExecutionID),
	)
	defer span.End()

	if err := w.engine.HandleResume(ctx, *msg); err != nil {
		otelhelper.SetError(span, err)
		w.logger.ErrorContext(ctx, "Resume failed",
			"execution_id", msg.ExecutionID,
			"error", err)

		return err
	}

	return nil
}

func (w *WorkerManager) handleEnrollmentRequested(ctx context.Context, event any) error {
	msg, ok := event.(*events.EnrollmentRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for EnrollmentRequested")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "enrollment_requested",
		attribute.String(otelhelper.WorkflowIDKey, msg.TargetWorkflowID),
		attribute.String(otelhelper.RecordIDKey, msg.RecordID),
	)
	defer span.End()

	wf, err := w.persistence.WorkflowByID(ctx, msg.TargetWorkflowID)
	if err != nil {
		if persistence.IsNotFound(err) {
			w.logger.WarnContext(ctx, "Enrollment target workflow not found, dropping",
				"workflow_id", msg.TargetWorkflowID)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	result, err := w.enrollments.Enroll(ctx, enrollment.Request{
		Workflow:         wf,
		TenantID:         msg.TenantID,
		RecordID:         msg.RecordID,
		RecordType:       msg.RecordType,
		SourceWorkflowID: msg.SourceWorkflowID,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	w.logger.InfoContext(ctx, "Requested enrollment decided",
		"workflow_id", wf.ID,
		"enrolled", result.Enrolled,
		"reason", result.Reason)

	return nil
}
