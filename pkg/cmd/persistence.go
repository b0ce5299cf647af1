package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/autometa/autometa/pkg/persistence"
	"github.com/autometa/autometa/pkg/persistence/file"
	"github.com/autometa/autometa/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend by the database URL scheme.
// postgres:// URLs get PostgreSQL, everything else falls back to files.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
