package main

import (
	"fmt"

	"github.com/crowdeval/crowdeval/internal/config"
	"github.com/crowdeval/crowdeval/internal/storage"

	"gorm.io/gorm"
)

func initStorage() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := storage.NewBackend(storageCfg, Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

// databaseOf returns the connection of a database-backed storage backend.
func databaseOf(b storage.Backend) *gorm.DB {
	if d, ok := b.(interface{ DB() *gorm.DB }); ok {
		return d.DB()
	}
	return nil
}

// pendingWritesOf returns the queued row count reporter of b, if any.
func pendingWritesOf(b storage.Backend) func() int {
	if p, ok := b.(interface{ Pending() int }); ok {
		return p.Pending
	}
	return nil
}
