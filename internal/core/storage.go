package core

import (
	"fmt"
	"io"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/internal/infra/persistence/postgres"
	"kittycore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises a backend.
type StorageConfig struct {
	Driver             StorageDriver
	SQLitePath         string
	PostgresDSN        string
	ExistentialDeposit Balance
}

// OpenPersistentStore opens the configured backend. An empty driver selects
// sqlite; a zero existential deposit keeps the store default.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	var opts []memory.Option
	if cfg.ExistentialDeposit > 0 {
		opts = append(opts, memory.WithExistentialDeposit(cfg.ExistentialDeposit))
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseStore releases backend resources when the store holds any.
func CloseStore(store PersistentStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
