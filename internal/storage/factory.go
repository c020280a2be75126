// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/crowdeval/crowdeval/internal/config"
	"github.com/crowdeval/crowdeval/internal/storage/memory"
	"github.com/crowdeval/crowdeval/internal/storage/postgres"
	sqlitestorage "github.com/crowdeval/crowdeval/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(postgres.Dependencies{
			Logger:        logger,
			FlushInterval: cfg.PostgresFlushEvery,
			MaxPending:    cfg.PostgresMaxPending,
		}), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval:  cfg.SqliteDumpEvery,
			DumpPath:      cfg.SqliteDumpPath,
			FlushInterval: cfg.PostgresFlushEvery,
		}, logger)
	case "memory", "":
		return memory.New(cfg.Memory, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
