// Package scheduler tracks delayed resumption timers for paused executions
// and wakes them once their resume instant passes. The storage-level
// DueExecutions sweep backstops it, so a lost timer delays a resume rather
// than losing it.
package scheduler

import (
	"context"
	"time"
)

// Entry is one pending resume timer.
type Entry struct {
	ExecutionID string
	TenantID    string
	ResumeAt    time.Time
}

// Store persists resume timers. Claim semantics are one-shot: a due entry is
// returned to exactly one caller even with concurrent pollers.
type Store interface {
	Schedule(ctx context.Context, entry Entry) error

	// ClaimDue atomically removes and returns up to limit entries whose
	// resume instant is at or before now.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error)

	Remove(ctx context.Context, executionID string) error
}
