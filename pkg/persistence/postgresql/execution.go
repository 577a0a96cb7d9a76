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

// ExecutionRepository handles execution and execution-log database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , tenant_id
  , record_id
  , record_type
  , status
  , current_step_id
  , resume_at
  , pause_reason
  , completion_reason
  , error_message
  , enrolled_at
  , completed_at
`

func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	query := `
		INSERT INTO workflow_executions (
			id, workflow_id, tenant_id, record_id, record_type, status,
			current_step_id, resume_at, pause_reason, completion_reason,
			error_message, enrolled_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.TenantID,
		execution.RecordID,
		execution.RecordType,
		string(execution.Status),
		execution.CurrentStepID,
		execution.ResumeAt,
		pauseReason(execution.PauseReason),
		completionReason(execution.CompletionReason),
		execution.ErrorMessage,
		execution.EnrolledAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ActiveExecution(ctx context.Context, workflowID, recordID, recordType string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1
		  AND record_id = $2
		  AND record_type = $3
		  AND status IN ('running', 'paused')
		LIMIT 1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, workflowID, recordID, recordType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan active execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) LatestExecution(ctx context.Context, workflowID, recordID, recordType string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1
		  AND record_id = $2
		  AND record_type = $3
		ORDER BY enrolled_at DESC
		LIMIT 1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, workflowID, recordID, recordType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan latest execution: %w", err)
	}

	return execution, nil
}

// UpdateExecutionCAS applies the mutable fields only when the stored row still
// matches the expected current step and status. Zero rows affected means a
// concurrent delivery already applied a transition.
func (r *ExecutionRepository) UpdateExecutionCAS(ctx context.Context, execution *models.WorkflowExecution, expectedStepID *string, expectedStatus models.ExecutionStatus) error {
	query := `
		UPDATE workflow_executions SET
			status = $1,
			current_step_id = $2,
			resume_at = $3,
			pause_reason = $4,
			completion_reason = $5,
			error_message = $6,
			completed_at = $7
		WHERE id = $8
		  AND status = $9
		  AND current_step_id IS NOT DISTINCT FROM $10
	`

	result, err := r.db.ExecContext(ctx, query,
		string(execution.Status),
		execution.CurrentStepID,
		execution.ResumeAt,
		pauseReason(execution.PauseReason),
		completionReason(execution.CompletionReason),
		execution.ErrorMessage,
		execution.CompletedAt,
		execution.ID,
		string(expectedStatus),
		expectedStepID,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrVersionConflict
	}

	return nil
}

func (r *ExecutionRepository) DueExecutions(ctx context.Context, now time.Time, limit int) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE status = 'paused'
		  AND resume_at IS NOT NULL
		  AND resume_at <= $1
		ORDER BY resume_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due executions: %w", err)
	}

	defer r.closeRows(ctx, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating due executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) AppendExecutionLog(ctx context.Context, entry *models.ExecutionLogEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal log detail: %w", err)
	}

	query := `
		INSERT INTO workflow_execution_logs (id, execution_id, step_id, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		nullableString(entry.StepID),
		entry.Outcome,
		detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionLog(ctx context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	query := `
		SELECT id, execution_id, step_id, outcome, detail, created_at
		FROM workflow_execution_logs
		WHERE execution_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution log: %w", err)
	}

	defer r.closeRows(ctx, rows)

	entries := make([]*models.ExecutionLogEntry, 0)

	for rows.Next() {
		var (
			entry  models.ExecutionLogEntry
			stepID sql.NullString
			detail []byte
		)

		err := rows.Scan(&entry.ID, &entry.ExecutionID, &stepID, &entry.Outcome, &detail, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		entry.StepID = stepID.String

		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log detail: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution log: %w", err)
	}

	return entries, nil
}

func (r *ExecutionRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution      models.WorkflowExecution
		pauseReasonVal sql.NullString
		completionVal  sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.TenantID,
		&execution.RecordID,
		&execution.RecordType,
		&execution.Status,
		&execution.CurrentStepID,
		&execution.ResumeAt,
		&pauseReasonVal,
		&completionVal,
		&execution.ErrorMessage,
		&execution.EnrolledAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if pauseReasonVal.Valid {
		reason := models.PauseReason(pauseReasonVal.String)
		execution.PauseReason = &reason
	}

	if completionVal.Valid {
		reason := models.CompletionReason(completionVal.String)
		execution.CompletionReason = &reason
	}

	return &execution, nil
}

func pauseReason(r *models.PauseReason) any {
	if r == nil {
		return nil
	}

	return string(*r)
}

func completionReason(r *models.CompletionReason) any {
	if r == nil {
		return nil
	}

	return string(*r)
}
