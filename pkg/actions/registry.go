// Package actions implements the side effects an action step can perform.
// Each action type registers a factory; the registry validates step config
// against the factory's schema before building the action.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
)

// ExecutionContext carries everything an action needs about the enrollment it
// runs inside.
type ExecutionContext struct {
	TenantID    string
	WorkflowID  string
	ExecutionID string
	RecordID    string
	RecordType  string
	// Snapshot is the materialized record, used for template interpolation.
	Snapshot map[string]any
}

// Action is one configured side effect. Execute returns a result map that is
// recorded in the execution log.
type Action interface {
	Execute(ctx context.Context, execCtx ExecutionContext, logger *slog.Logger) (map[string]any, error)
}

// Factory builds actions of one type from step config.
type Factory interface {
	ID() models.ActionType
	Create(config map[string]any) (Action, error)
	// Schema returns the JSON schema the step config must satisfy.
	Schema() map[string]any
}

type Registry struct {
	factories map[models.ActionType]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.ActionType]Factory)}
}

func (r *Registry) Register(factory Factory) {
	r.factories[factory.ID()] = factory
}

// Create validates the config against the factory schema and builds the
// action.
func (r *Registry) Create(actionType models.ActionType, config map[string]any) (Action, error) {
	factory, ok := r.factories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	if config == nil {
		config = map[string]any{}
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("invalid config for action '%s': %w", actionType, err)
	}

	return factory.Create(config)
}

// ActionTypes returns the registered types.
func (r *Registry) ActionTypes() []models.ActionType {
	types := make([]models.ActionType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	return types
}

func validateConfig(schema, config map[string]any) error {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshaling config schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}

		return fmt.Errorf("config schema violations: %s", strings.Join(details, "; "))
	}

	return nil
}

func stringConfig(config map[string]any, key string) string {
	v, ok := config[key].(string)
	if !ok {
		return ""
	}

	return v
}
