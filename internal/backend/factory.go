package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pennypal/internal/core"
	"pennypal/internal/ledger"
	"pennypal/internal/ledger/memory"
	"pennypal/internal/ledger/sheets"
	"pennypal/internal/log"
	"pennypal/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLBackend(storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger))
	case PostgresBackend:
		res, err = f.createSQLBackend(storage.NewPostgresRepository(config.DatabaseURL, f.logger))
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	res.Type = config.Type
	f.logger.Info("Backend ready", log.FieldBackend, config.Type.String())
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	if config.DataDirectory == "" {
		store := memory.New(f.logger)
		return &Result{Ledger: store, Badges: store, Writer: store, Refresher: store, Cleanup: store.Close}, nil
	}

	store, err := memory.NewFromDir(config.DataDirectory, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}
	return &Result{
		Ledger:     store,
		Badges:     store,
		Writer:     store,
		Refresher:  store,
		Background: store.Watch,
		Cleanup:    store.Close,
	}, nil
}

func (f *DefaultFactory) createSQLBackend(repo *storage.Repository, err error) (*Result, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQL repository: %w", err)
	}
	return &Result{Ledger: repo, Badges: repo, Writer: repo, Refresher: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	l, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		GoalsSheetName:  config.GoogleGoalsSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets ledger: %w", err)
	}

	badges, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to initialize badge store: %w", err)
	}

	interval := config.SheetsPollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Result{
		Ledger:     l,
		Badges:     badges,
		Writer:     ReadOnly{},
		Refresher:  l,
		Background: func(ctx context.Context) error { return l.Run(ctx, interval) },
		Cleanup: func() error {
			return errors.Join(l.Close(), badges.Close())
		},
	}, nil
}

// ReadOnly is the Writer of backends that cannot be written through the app.
type ReadOnly struct{}

var _ ledger.Writer = ReadOnly{}

func (ReadOnly) AddTransaction(context.Context, core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, core.ErrReadOnlyBackend
}

func (ReadOnly) SaveGoal(context.Context, string, core.Goal) error {
	return core.ErrReadOnlyBackend
}
