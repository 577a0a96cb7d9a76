package protocol

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogMessenger logs outbound messages instead of delivering them. Used in
// development and tests when no communication service is configured.
type LogMessenger struct {
	logger *slog.Logger
}

func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.With("module", "log_messenger")}
}

func (m *LogMessenger) SendSMS(ctx context.Context, to, body string) error {
	m.logger.InfoContext(ctx, "SMS (not delivered)", "to", to, "body", body)

	return nil
}

func (m *LogMessenger) SendEmail(ctx context.Context, to, subject, body string) error {
	m.logger.InfoContext(ctx, "Email (not delivered)", "to", to, "subject", subject, "body", body)

	return nil
}

// LogTaskCreator logs task requests instead of creating them.
type LogTaskCreator struct {
	logger *slog.Logger
}

func NewLogTaskCreator(logger *slog.Logger) *LogTaskCreator {
	return &LogTaskCreator{logger: logger.With("module", "log_task_creator")}
}

func (t *LogTaskCreator) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	id := uuid.New().String()

	t.logger.InfoContext(ctx, "Task (not created)",
		"task_id", id,
		"tenant_id", req.TenantID,
		"title", req.Title,
		"priority", req.Priority)

	return id, nil
}
