package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/record"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/template"
)

type UpdateFieldFactory struct {
	records *record.Registry
}

func NewUpdateFieldFactory(records *record.Registry) *UpdateFieldFactory {
	return &UpdateFieldFactory{records: records}
}

func (*UpdateFieldFactory) ID() models.ActionType {
	return models.ActionUpdateField
}

func (f *UpdateFieldFactory) Create(config map[string]any) (Action, error) {
	return &UpdateFieldAction{
		records: f.records,
		field:   stringConfig(config, "field"),
		value:   config["value"],
	}, nil
}

func (*UpdateFieldFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"description": "Field to write. Restricted to the object type's allow-list.",
			},
			"value": map[string]any{
				"description": "New value. String values support templating.",
			},
		},
		"required": []string{"field", "value"},
	}
}

// UpdateFieldAction writes one field on the enrolled record. The record source
// enforces the per-type field allow-list; writes outside it fail the step.
type UpdateFieldAction struct {
	records *record.Registry
	field   string
	value   any
}

func (a *UpdateFieldAction) Execute(ctx context.Context, execCtx ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	source, err := a.records.Source(execCtx.RecordType)
	if err != nil {
		return nil, err
	}

	value := a.value
	if s, ok := value.(string); ok {
		rendered, err := template.Render(s, execCtx.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("rendering field value: %w", err)
		}

		value = rendered
	}

	if err := source.UpdateField(ctx, execCtx.TenantID, execCtx.RecordID, a.field, value); err != nil {
		return nil, fmt.Errorf("updating field %q: %w", a.field, err)
	}

	logger.InfoContext(ctx, "Record field updated",
		"record_id", execCtx.RecordID,
		"field", a.field)

	return map[string]any{"field": a.field, "value": value}, nil
}
