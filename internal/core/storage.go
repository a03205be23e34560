package core

import (
	"fmt"
	"os"

	"sporelab/internal/persistence/memory"
	"sporelab/internal/persistence/postgres"
	"sporelab/internal/persistence/sqlite"
	"sporelab/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	SPORELAB_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	SPORELAB_SQLITE_PATH: path to sqlite file (default ./sporelab.db)
//	SPORELAB_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore() (domain.PersistentStore, error) {
	driver := os.Getenv("SPORELAB_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("SPORELAB_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("SPORELAB_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
