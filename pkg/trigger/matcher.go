// Package trigger resolves which workflows an inbound domain event or a
// standing filter should enroll records into.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
)

// Matcher selects workflows whose entry condition matches an inbound event.
type Matcher struct {
	persistence persistence.WorkflowRepository
	logger      *slog.Logger
}

func NewMatcher(p persistence.WorkflowRepository, logger *slog.Logger) *Matcher {
	return &Matcher{
		persistence: p,
		logger:      logger.With("module", "trigger_matcher"),
	}
}

// MatchEvent returns the active workflows of the event's tenant whose entry
// condition names the event type and whose object type matches the event's
// record type. Workflows declaring a payload schema only match when the event
// payload validates against it.
func (m *Matcher) MatchEvent(ctx context.Context, event models.RecordEvent) ([]*models.Workflow, error) {
	workflows, err := m.persistence.ActiveWorkflowsByEvent(ctx, event.TenantID, event.RecordType, event.EventType)
	if err != nil {
		return nil, fmt.Errorf("selecting workflows for event %s: %w", event.EventType, err)
	}

	matched := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if len(workflow.EntryCondition.PayloadSchema) > 0 {
			ok, err := m.validatePayload(workflow.EntryCondition.PayloadSchema, event.Payload)
			if err != nil {
				m.logger.WarnContext(ctx, "Payload schema validation errored, skipping workflow",
					"workflow_id", workflow.ID,
					"event_type", event.EventType,
					"error", err)

				continue
			}

			if !ok {
				continue
			}
		}

		matched = append(matched, workflow)
	}

	return matched, nil
}

func (m *Matcher) validatePayload(schema map[string]any, payload map[string]any) (bool, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return false, fmt.Errorf("marshaling payload schema: %w", err)
	}

	if payload == nil {
		payload = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return false, fmt.Errorf("validating event payload: %w", err)
	}

	return result.Valid(), nil
}
