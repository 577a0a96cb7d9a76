package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/template"
)

type InternalNoteFactory struct{}

func NewInternalNoteFactory() *InternalNoteFactory {
	return &InternalNoteFactory{}
}

func (*InternalNoteFactory) ID() models.ActionType {
	return models.ActionInternalNote
}

func (f *InternalNoteFactory) Create(config map[string]any) (Action, error) {
	return &InternalNoteAction{note: stringConfig(config, "note")}, nil
}

func (*InternalNoteFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"note": map[string]any{
				"type":        "string",
				"description": "Note text, recorded on the execution log. Supports templating.",
			},
		},
		"required": []string{"note"},
	}
}

// InternalNoteAction records a staff-facing note in the execution log. It has
// no external side effect.
type InternalNoteAction struct {
	note string
}

func (a *InternalNoteAction) Execute(ctx context.Context, execCtx ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	note, err := template.Render(a.note, execCtx.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("rendering note: %w", err)
	}

	logger.InfoContext(ctx, "Internal note recorded", "record_id", execCtx.RecordID)

	return map[string]any{"note": note}, nil
}
