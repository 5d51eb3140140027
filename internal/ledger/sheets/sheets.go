// Package sheets is a read-only ledger backed by a Google Sheets spreadsheet.
// One sheet holds the transactions of every user, another their goals:
//
//	UserID | ID | Date | Kind | Amount | Category | Description
//	UserID | IncomeGoal | SpendingLimit | MinSpendingGoal
//
// The spreadsheet has no change feed, so Run polls it and pushes a snapshot
// to subscribers whenever a user's content changes.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pennypal/internal/ledger"
	"pennypal/internal/log"
)

const (
	DefaultSheetName      = "Transactions"
	DefaultGoalsSheetName = "Goals"
)

// ValuesReader returns the cell values of an A1 range.
type ValuesReader interface {
	Values(ctx context.Context, rng string) ([][]any, error)
}

type serviceReader struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (r serviceReader) Values(ctx context.Context, rng string) ([][]any, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

type Config struct {
	SpreadsheetID  string
	SheetName      string
	GoalsSheetName string
	// CredentialsJSON or CredentialsFile hold a service account key. When
	// both are empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string
}

type Ledger struct {
	reader     ValuesReader
	sheet      string
	goalsSheet string
	hub        *ledger.Hub
	logger     *log.Logger
	now        func() time.Time

	mu           sync.Mutex
	fingerprints map[string]string
}

var _ ledger.Store = (*Ledger)(nil)

// New connects to the Sheets API with service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Ledger, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithReader(serviceReader{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.SheetName, cfg.GoalsSheetName, logger), nil
}

func credentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.CredentialsJSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// NewWithReader builds a ledger on any ValuesReader. Empty sheet names fall
// back to the defaults.
func NewWithReader(reader ValuesReader, sheet, goalsSheet string, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Discard()
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheetName
	}
	if strings.TrimSpace(goalsSheet) == "" {
		goalsSheet = DefaultGoalsSheetName
	}
	l := &Ledger{
		reader:       reader,
		sheet:        sheet,
		goalsSheet:   goalsSheet,
		logger:       logger.WithComponent(log.ComponentSheets),
		now:          time.Now,
		fingerprints: make(map[string]string),
	}
	l.hub = ledger.NewHub(l.load, logger)
	return l
}

// Snapshot reads both sheets and returns the rows of userID. It leaves the
// poller's view of what subscribers have seen untouched.
func (l *Ledger) Snapshot(ctx context.Context, userID string) (ledger.Snapshot, error) {
	all, err := l.readAll(ctx)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	snap, ok := all[userID]
	if !ok {
		snap = ledger.Snapshot{UserID: userID, TakenAt: l.now()}
	}
	return snap, nil
}

// load feeds the hub: whatever it returns reaches subscribers, so it is
// recorded as seen.
func (l *Ledger) load(ctx context.Context, userID string) (ledger.Snapshot, error) {
	snap, err := l.Snapshot(ctx, userID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	l.remember(snap)
	return snap, nil
}

func (l *Ledger) Subscribe(ctx context.Context, userID string) (ledger.Subscription, error) {
	return l.hub.Subscribe(ctx, userID)
}

// Refresh re-reads the spreadsheet for userID and pushes the result.
func (l *Ledger) Refresh(ctx context.Context, userID string) error {
	return l.hub.Notify(ctx, userID)
}

func (l *Ledger) Close() error {
	l.hub.Close()
	return nil
}

// Poll reads the spreadsheet once and pushes a snapshot to every subscribed
// user whose content changed since the last read. It returns the number of
// users pushed.
func (l *Ledger) Poll(ctx context.Context) (int, error) {
	users := l.hub.Users()
	if len(users) == 0 {
		return 0, nil
	}
	all, err := l.readAll(ctx)
	if err != nil {
		return 0, err
	}
	pushed := 0
	for _, u := range users {
		snap, ok := all[u]
		if !ok {
			snap = ledger.Snapshot{UserID: u, TakenAt: l.now()}
		}
		if !l.remember(snap) {
			continue
		}
		l.hub.Publish(snap)
		pushed++
	}
	return pushed, nil
}

// Run polls every interval until ctx is done. Read failures are logged and
// retried on the next tick.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	l.logger.InfoContext(ctx, "Polling spreadsheet", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := l.Poll(ctx)
			if err != nil {
				l.logger.WarnContext(ctx, "Spreadsheet poll failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				l.logger.DebugContext(ctx, "Spreadsheet changes pushed", log.FieldCount, n)
			}
		}
	}
}

// remember stores the fingerprint of snap and reports whether it changed.
func (l *Ledger) remember(snap ledger.Snapshot) bool {
	fp := snap.Fingerprint()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fingerprints[snap.UserID] == fp {
		return false
	}
	l.fingerprints[snap.UserID] = fp
	return true
}

func (l *Ledger) readAll(ctx context.Context) (map[string]ledger.Snapshot, error) {
	txRows, err := l.reader.Values(ctx, fmt.Sprintf("%s!A:G", l.sheet))
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	goalRows, err := l.reader.Values(ctx, fmt.Sprintf("%s!A:D", l.goalsSheet))
	if err != nil {
		return nil, fmt.Errorf("read goals: %w", err)
	}

	now := l.now()
	out := make(map[string]ledger.Snapshot)
	get := func(user string) ledger.Snapshot {
		s, ok := out[user]
		if !ok {
			s = ledger.Snapshot{UserID: user, TakenAt: now}
		}
		return s
	}

	txs, bad := parseTransactions(l.sheet, txRows)
	for _, tx := range txs {
		s := get(tx.UserID)
		s.Transactions = append(s.Transactions, tx)
		out[tx.UserID] = s
	}
	goals, badGoals := parseGoals(goalRows)
	for user, g := range goals {
		s := get(user)
		s.Goal = &g
		out[user] = s
	}
	if bad+badGoals > 0 {
		l.logger.WarnContext(ctx, "Skipped malformed spreadsheet rows", log.FieldCount, bad+badGoals)
	}
	return out, nil
}
