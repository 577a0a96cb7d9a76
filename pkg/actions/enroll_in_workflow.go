package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

type EnrollInWorkflowFactory struct {
	publisher eventbus.EventPublisher
}

func NewEnrollInWorkflowFactory(publisher eventbus.EventPublisher) *EnrollInWorkflowFactory {
	return &EnrollInWorkflowFactory{publisher: publisher}
}

func (*EnrollInWorkflowFactory) ID() models.ActionType {
	return models.ActionEnrollInWorkflow
}

func (f *EnrollInWorkflowFactory) Create(config map[string]any) (Action, error) {
	return &EnrollInWorkflowAction{
		publisher:  f.publisher,
		workflowID: stringConfig(config, "workflow_id"),
	}, nil
}

func (*EnrollInWorkflowFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workflow_id": map[string]any{
				"type":        "string",
				"description": "Target workflow to enroll the record into.",
			},
		},
		"required": []string{"workflow_id"},
	}
}

// EnrollInWorkflowAction requests enrollment of the current record into
// another workflow. The request goes through the queue so the target's full
// enrollment policy applies; the source workflow id rides along for loop
// prevention.
type EnrollInWorkflowAction struct {
	publisher  eventbus.EventPublisher
	workflowID string
}

func (a *EnrollInWorkflowAction) Execute(ctx context.Context, execCtx ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	request := events.EnrollmentRequested{
		BaseEvent:        events.NewBaseEvent(events.EnrollmentRequestedEvent, a.workflowID),
		TargetWorkflowID: a.workflowID,
		TenantID:         execCtx.TenantID,
		RecordID:         execCtx.RecordID,
		RecordType:       execCtx.RecordType,
		SourceWorkflowID: execCtx.WorkflowID,
	}

	if err := a.publisher.Publish(ctx, execCtx.TenantID, request); err != nil {
		return nil, fmt.Errorf("publishing enrollment request: %w", err)
	}

	logger.InfoContext(ctx, "Cross-workflow enrollment requested",
		"target_workflow_id", a.workflowID,
		"record_id", execCtx.RecordID)

	return map[string]any{"target_workflow_id": a.workflowID}, nil
}
