// Package protocol defines the narrow interfaces the engine calls external
// platform services through: outbound messaging and task creation. The engine
// never depends on their implementations.
package protocol

import (
	"context"
	"time"
)

// Messenger delivers outbound SMS and email. Implemented by the platform's
// communication service.
type Messenger interface {
	SendSMS(ctx context.Context, to, body string) error
	SendEmail(ctx context.Context, to, subject, body string) error
}

// TaskRequest describes a task for the platform's task board.
type TaskRequest struct {
	TenantID    string
	Title       string
	Description string
	Priority    string
	DueAt       *time.Time
	// LinkedRecordID and LinkedRecordType attach the task to the enrolled
	// business record.
	LinkedRecordID   string
	LinkedRecordType string
}

// TaskCreator creates tasks. Implemented by the platform's task service.
type TaskCreator interface {
	CreateTask(ctx context.Context, req TaskRequest) (string, error)
}
