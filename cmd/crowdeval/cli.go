package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/crowdeval/crowdeval/internal/config"
	"github.com/crowdeval/crowdeval/internal/database"
	"github.com/crowdeval/crowdeval/internal/storage"
	"github.com/crowdeval/crowdeval/internal/storage/memory"
	"github.com/crowdeval/crowdeval/internal/storage/postgres"
	sqlitestorage "github.com/crowdeval/crowdeval/internal/storage/sqlite"
	"github.com/crowdeval/crowdeval/pkg/core"
)

// listSessions writes the summaries of every stored session as JSON, newest
// first.
func listSessions(w io.Writer) error {
	summarizer, closeFn, err := openSummarizer(config.GetStorageConfig())
	if err != nil {
		return err
	}
	defer closeFn()

	summaries, err := summarizer.Summaries()
	if err != nil {
		return fmt.Errorf("failed to summarize sessions: %w", err)
	}
	if summaries == nil {
		summaries = []core.SessionSummary{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

// openSummarizer opens the configured store read-side. The sqlite store is
// read from its last dump.
func openSummarizer(cfg config.StorageConfig) (storage.Summarizer, func(), error) {
	noop := func() {}

	switch cfg.Type {
	case "postgres":
		b := postgres.New(postgres.Dependencies{Logger: Logger})
		if err := b.Init(); err != nil {
			return nil, noop, err
		}
		return b, func() { _ = b.Close() }, nil

	case "sqlite":
		if _, err := os.Stat(cfg.SqliteDumpPath); err != nil {
			return nil, noop, fmt.Errorf("no sqlite dump at %s: %w", cfg.SqliteDumpPath, err)
		}
		b, err := sqlitestorage.New(sqlitestorage.Config{DSN: cfg.SqliteDumpPath}, Logger)
		if err != nil {
			return nil, noop, err
		}
		return b, noop, nil

	default:
		return memory.New(cfg.Memory, Logger), noop, nil
	}
}

// migrateBackups copies every sqlite dump next to the configured dump path
// into Postgres, renaming each migrated file to <name>.migrated.
func migrateBackups() error {
	storageCfg := config.GetStorageConfig()
	dir := filepath.Dir(storageCfg.SqliteDumpPath)

	paths, err := database.GetBackupDBPaths(dir)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %w", err)
	}
	if len(paths) == 0 {
		Logger.Info("No backups to migrate", "dir", dir)
		return nil
	}

	dbManager := database.NewManager(ZLogger)
	if err := dbManager.Connect(); err != nil {
		return err
	}
	defer dbManager.Close()
	if dbManager.ShouldSaveLocal {
		return errors.New("postgres is unreachable, nothing to migrate into")
	}
	if err := dbManager.Setup(); err != nil {
		return err
	}

	var migrated []string
	for _, path := range paths {
		sqliteDB, err := database.GetSqliteDBStandalone(path)
		if err != nil {
			return fmt.Errorf("error opening %s: %w", path, err)
		}

		count, err := database.MigrateBackup(sqliteDB, dbManager.DB, ZLogger)
		if sqlDB, dbErr := sqliteDB.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		if err != nil {
			return fmt.Errorf("error migrating %s: %w", path, err)
		}

		if err := os.Rename(path, path+".migrated"); err != nil {
			Logger.Error("Error renaming sqlite file", "path", path, "error", err)
		}
		Logger.Info("Migrated backup", "path", path, "sessions", count)
		migrated = append(migrated, path)
	}

	Logger.Info("Successfully migrated backups, it's recommended to delete these to avoid future data duplication",
		"count", len(migrated),
		"paths", migrated)
	return nil
}
