// Package storage is the SQL ledger and badge store. The same repository runs
// on SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq); queries are written
// with ? placeholders and rebound for PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"pennypal/internal/core"
	"pennypal/internal/ledger"
	"pennypal/internal/log"
)

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Dialect selects the SQL flavour.
type Dialect string

func (d Dialect) driverName() string {
	return string(d)
}

// rebind turns ? placeholders into $1, $2, ... for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Repository struct {
	db      *sql.DB
	dialect Dialect
	hub     *ledger.Hub
	logger  *log.Logger
	now     func() time.Time
}

var (
	_ ledger.Store      = (*Repository)(nil)
	_ ledger.BadgeStore = (*Repository)(nil)
	_ ledger.Writer     = (*Repository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the database file at dbPath
// and migrates it.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	// WAL plus a busy timeout lets the HTTP server and the consumer share the file
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return open(SQLite, dsn, logger)
}

// NewPostgresRepository connects to databaseURL and migrates it.
func NewPostgresRepository(databaseURL string, logger *log.Logger) (*Repository, error) {
	return open(Postgres, databaseURL, logger)
}

func open(dialect Dialect, dsn string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, err
	}

	r := &Repository{
		db:      db,
		dialect: dialect,
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}
	r.hub = ledger.NewHub(r.Snapshot, logger)
	r.logger.Info("Database ready", "dialect", string(dialect))
	return r, nil
}

// Close ends every subscription and closes the database.
func (r *Repository) Close() error {
	r.hub.Close()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

// Snapshot loads the transactions and goal of userID.
func (r *Repository) Snapshot(ctx context.Context, userID string) (ledger.Snapshot, error) {
	snap := ledger.Snapshot{UserID: userID, TakenAt: r.now()}

	txs, err := r.listTransactions(ctx, userID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	snap.Transactions = txs

	goal, err := r.getGoal(ctx, userID)
	switch {
	case errors.Is(err, core.ErrNotFound):
	case err != nil:
		return ledger.Snapshot{}, err
	default:
		snap.Goal = &goal
	}
	return snap, nil
}

func (r *Repository) listTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, date, kind, amount, category, description
		FROM transactions
		WHERE user_id = ?
		ORDER BY date, created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx     core.Transaction
			kind   string
			amount string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Date, &kind, &amount, &tx.Category, &tx.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.Kind(kind)
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount of transaction %s: %w", tx.ID, err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) getGoal(ctx context.Context, userID string) (core.Goal, error) {
	var income, limit, minGoal string
	err := r.queryRow(ctx, `
		SELECT income_goal, spending_limit, min_spending_goal
		FROM goals WHERE user_id = ?`, userID).Scan(&income, &limit, &minGoal)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.ErrNotFound
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}

	var g core.Goal
	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{{&g.IncomeGoal, income}, {&g.SpendingLimit, limit}, {&g.MinSpendingGoal, minGoal}} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return core.Goal{}, fmt.Errorf("parse goal of %s: %w", userID, err)
		}
	}
	return g, nil
}

// Subscribe delivers userID's snapshot now and after every change seen by
// this process (writes through this repository or Refresh calls).
func (r *Repository) Subscribe(ctx context.Context, userID string) (ledger.Subscription, error) {
	return r.hub.Subscribe(ctx, userID)
}

// Refresh pushes a fresh snapshot to the subscribers of userID. Used when
// another process changed the database.
func (r *Repository) Refresh(ctx context.Context, userID string) error {
	return r.hub.Notify(ctx, userID)
}

func (r *Repository) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	_, err := r.exec(ctx, `
		INSERT INTO transactions (id, user_id, date, kind, amount, category, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Date, string(tx.Kind), tx.Amount.String(), tx.Category, tx.Description, r.timestamp())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction saved",
		log.FieldUserID, tx.UserID,
		log.FieldTransactionID, tx.ID,
		"kind", string(tx.Kind))

	_ = r.hub.Notify(ctx, tx.UserID)
	return tx, nil
}

// SaveGoal replaces the user's goal.
func (r *Repository) SaveGoal(ctx context.Context, userID string, goal core.Goal) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if err := goal.Validate(); err != nil {
		return err
	}

	_, err := r.exec(ctx, `
		INSERT INTO goals (user_id, income_goal, spending_limit, min_spending_goal, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			income_goal = excluded.income_goal,
			spending_limit = excluded.spending_limit,
			min_spending_goal = excluded.min_spending_goal,
			updated_at = excluded.updated_at`,
		userID, goal.IncomeGoal.String(), goal.SpendingLimit.String(), goal.MinSpendingGoal.String(), r.timestamp())
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}

	r.logger.InfoContext(ctx, "Goal saved", log.FieldUserID, userID)
	_ = r.hub.Notify(ctx, userID)
	return nil
}

// CreateIfAbsent inserts the badge unless (userID, badge.ID) already exists.
// The conditional insert is atomic, so concurrent evaluators create it once.
func (r *Repository) CreateIfAbsent(ctx context.Context, userID string, badge core.Badge) (bool, error) {
	res, err := r.exec(ctx, `
		INSERT INTO badges (user_id, id, type, title, description, earned_date, period_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO NOTHING`,
		userID, badge.ID, string(badge.Type), badge.Title, badge.Description, badge.EarnedDateKey, badge.PeriodKey, r.timestamp())
	if err != nil {
		return false, fmt.Errorf("insert badge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert badge: %w", err)
	}
	return n == 1, nil
}

func (r *Repository) ListBadges(ctx context.Context, userID string) ([]core.Badge, error) {
	rows, err := r.query(ctx, `
		SELECT id, type, title, description, earned_date, period_key
		FROM badges
		WHERE user_id = ?
		ORDER BY earned_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	out := []core.Badge{}
	for rows.Next() {
		var (
			b     core.Badge
			btype string
		)
		if err := rows.Scan(&b.ID, &btype, &b.Title, &b.Description, &b.EarnedDateKey, &b.PeriodKey); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		b.Type = core.BadgeType(btype)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badges: %w", err)
	}
	return out, nil
}

// Users lists every user that has transactions or a goal.
func (r *Repository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.query(ctx, `
		SELECT user_id FROM transactions
		UNION
		SELECT user_id FROM goals
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
