// Package backend builds the ledger, badge and writer stores selected by
// configuration.
package backend

import (
	"context"
	"time"

	"pennypal/internal/ledger"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Refresher re-reads a user's ledger and pushes it to live subscribers.
type Refresher interface {
	Refresh(ctx context.Context, userID string) error
}

// Result holds the stores of one backend. Writer rejects writes on read-only
// backends. Background is nil when the backend needs no loop of its own.
type Result struct {
	Type       BackendType
	Ledger     ledger.Store
	Badges     ledger.BadgeStore
	Writer     ledger.Writer
	Refresher  Refresher
	Background func(ctx context.Context) error
	Cleanup    CleanupFunc
}

// Close runs Cleanup when set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	// memory
	DataDirectory string

	// sqlite, and badge storage for sheets
	SQLiteDBPath string

	// postgres
	DatabaseURL string

	// sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleGoalsSheetName     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsPollInterval       time.Duration
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
