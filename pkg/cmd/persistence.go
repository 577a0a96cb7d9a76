// Package cmd holds the shared wiring helpers the service binaries build
// their dependencies with.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence/memory"
	"github.com/LeviathanIsI/barkbase-sub003/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// "postgres://" (or "postgresql://") gives the production backend; "memory://"
// gives the in-process one for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case strings.HasPrefix(databaseURL, "memory://"), databaseURL == "":
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme in %q", databaseURL)
	}
}
