package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/models"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
)

// WorkflowRepository handles workflow and step database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , tenant_id
  , name
  , description
  , object_type
  , status
  , entry_condition
  , goal_condition
  , settings
  , suppression_segment_ids
  , enrolled_count
  , completed_count
  , goal_reached_count
  , created_at
  , updated_at
  , deleted_at
`

func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC`

	return r.queryWorkflows(ctx, query)
}

func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ActiveWorkflowsByEvent(ctx context.Context, tenantID, objectType, eventType string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		  AND status = $1
		  AND tenant_id = $2
		  AND object_type = $3
		  AND entry_condition->>'trigger_type' = 'event'
		  AND entry_condition->>'event_type' = $4
		ORDER BY created_at`

	return r.queryWorkflows(ctx, query, string(models.WorkflowStatusActive), tenantID, objectType, eventType)
}

func (r *WorkflowRepository) ActiveFilterWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		  AND status = $1
		  AND entry_condition->>'trigger_type' = 'filter'
		ORDER BY created_at`

	return r.queryWorkflows(ctx, query, string(models.WorkflowStatusActive))
}

func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	entryCondition, err := json.Marshal(workflow.EntryCondition)
	if err != nil {
		return fmt.Errorf("failed to marshal entry condition: %w", err)
	}

	settings, err := json.Marshal(workflow.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	segmentIDs, err := json.Marshal(workflow.SuppressionSegmentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal suppression segment ids: %w", err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	query := `
		INSERT INTO workflows (
			id, tenant_id, name, description, object_type, status,
			entry_condition, goal_condition, settings, suppression_segment_ids,
			enrolled_count, completed_count, goal_reached_count,
			created_at, updated_at, deleted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			object_type = EXCLUDED.object_type,
			status = EXCLUDED.status,
			entry_condition = EXCLUDED.entry_condition,
			goal_condition = EXCLUDED.goal_condition,
			settings = EXCLUDED.settings,
			suppression_segment_ids = EXCLUDED.suppression_segment_ids,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.TenantID,
		workflow.Name,
		workflow.Description,
		workflow.ObjectType,
		string(workflow.Status),
		entryCondition,
		nullableJSON(workflow.GoalCondition),
		settings,
		segmentIDs,
		workflow.EnrolledCount,
		workflow.CompletedCount,
		workflow.GoalReachedCount,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// IncrementWorkflowCounter performs the increment in SQL so concurrent
// executions never race on a read-modify-write.
func (r *WorkflowRepository) IncrementWorkflowCounter(ctx context.Context, workflowID string, counter models.WorkflowCounter) error {
	var column string

	switch counter {
	case models.CounterEnrolled:
		column = "enrolled_count"
	case models.CounterCompleted:
		column = "completed_count"
	case models.CounterGoalReached:
		column = "goal_reached_count"
	default:
		return fmt.Errorf("unknown workflow counter %q", counter)
	}

	query := fmt.Sprintf("UPDATE workflows SET %s = %s + 1 WHERE id = $1", column, column)

	result, err := r.db.ExecContext(ctx, query, workflowID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

func (r *WorkflowRepository) StepsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , step_type
		  , action_type
		  , config
		  , parent_step_id
		  , branch_path
		  , position
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer r.closeRows(ctx, rows)

	steps := make([]*models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step       models.WorkflowStep
			actionType sql.NullString
			configJSON []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.StepType,
			&actionType,
			&configJSON,
			&step.ParentStepID,
			&step.BranchPath,
			&step.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}

		if actionType.Valid {
			step.ActionType = models.ActionType(actionType.String)
		}

		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &step.Config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step config: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow steps: %w", err)
	}

	return steps, nil
}

func (r *WorkflowRepository) SaveStep(ctx context.Context, step *models.WorkflowStep) error {
	config, err := json.Marshal(step.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal step config: %w", err)
	}

	query := `
		INSERT INTO workflow_steps (
			id, workflow_id, step_type, action_type, config,
			parent_step_id, branch_path, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			step_type = EXCLUDED.step_type,
			action_type = EXCLUDED.action_type,
			config = EXCLUDED.config,
			parent_step_id = EXCLUDED.parent_step_id,
			branch_path = EXCLUDED.branch_path,
			position = EXCLUDED.position
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.WorkflowID,
		string(step.StepType),
		nullableString(string(step.ActionType)),
		config,
		step.ParentStepID,
		step.BranchPath,
		step.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow step: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer r.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow       models.Workflow
		entryCondition []byte
		goalCondition  []byte
		settings       []byte
		segmentIDs     []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.Name,
		&workflow.Description,
		&workflow.ObjectType,
		&workflow.Status,
		&entryCondition,
		&goalCondition,
		&settings,
		&segmentIDs,
		&workflow.EnrolledCount,
		&workflow.CompletedCount,
		&workflow.GoalReachedCount,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(entryCondition, &workflow.EntryCondition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry condition: %w", err)
	}

	if len(goalCondition) > 0 {
		workflow.GoalCondition = json.RawMessage(goalCondition)
	}

	if err := json.Unmarshal(settings, &workflow.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := json.Unmarshal(segmentIDs, &workflow.SuppressionSegmentIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suppression segment ids: %w", err)
	}

	return &workflow, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return []byte(raw)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
