package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/account-strategy/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	customer_id    TEXT PRIMARY KEY,
	account_name   TEXT NOT NULL DEFAULT '',
	rep_tier       TEXT NOT NULL,
	account_status TEXT NOT NULL,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS orders (
	order_id    TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES accounts(customer_id),
	order_date  DATETIME NOT NULL,
	order_value REAL NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	sku         TEXT NOT NULL DEFAULT '',
	margin      REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	as_of      DATETIME,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL,
	accounts   INTEGER NOT NULL DEFAULT 0,
	flagged    INTEGER NOT NULL DEFAULT 0,
	report     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_accounts (
	run_id                  TEXT NOT NULL REFERENCES runs(id),
	customer_id             TEXT NOT NULL,
	phase                   TEXT NOT NULL,
	roi_speed_score         REAL NOT NULL,
	priority                TEXT NOT NULL,
	coverage_status         TEXT NOT NULL,
	coverage_flag           TEXT NOT NULL,
	leakage_flag            INTEGER NOT NULL,
	est_recoverable_revenue REAL NOT NULL,
	PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_accounts_phase ON run_accounts(run_id, phase);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveAccounts upserts accounts and their orders in one transaction.
func (s *SQLiteStore) SaveAccounts(ctx context.Context, accounts []model.Account) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, a := range accounts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (customer_id, account_name, rep_tier, account_status, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (customer_id) DO UPDATE SET
			   account_name = excluded.account_name,
			   rep_tier = excluded.rep_tier,
			   account_status = excluded.account_status,
			   updated_at = excluded.updated_at`,
			a.CustomerID, a.Name, string(a.RepTier), string(a.Status), now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert account %s", a.CustomerID)
		}
		for _, o := range a.Orders {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO orders (order_id, customer_id, order_date, order_value, category, sku, margin)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (order_id) DO UPDATE SET
				   customer_id = excluded.customer_id,
				   order_date = excluded.order_date,
				   order_value = excluded.order_value,
				   category = excluded.category,
				   sku = excluded.sku,
				   margin = excluded.margin`,
				o.OrderID, a.CustomerID, o.Date.UTC(), o.Value, o.Category, o.SKU, o.Margin,
			)
			if err != nil {
				return 0, eris.Wrapf(err, "sqlite: upsert order %s", o.OrderID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit accounts")
	}
	return len(accounts), nil
}

// LoadAccounts returns every stored account with its orders.
func (s *SQLiteStore) LoadAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, account_name, rep_tier, account_status FROM accounts ORDER BY customer_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var tier, status string
		if err := rows.Scan(&a.CustomerID, &a.Name, &tier, &status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account")
		}
		a.RepTier, a.Status = model.RepTier(tier), model.AccountStatus(status)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load accounts iterate")
	}

	orows, err := s.db.QueryContext(ctx,
		`SELECT order_id, customer_id, order_date, order_value, category, sku, margin
		 FROM orders ORDER BY customer_id, order_date, order_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load orders")
	}
	defer orows.Close()

	var orders []model.Order
	for orows.Next() {
		var o model.Order
		if err := orows.Scan(&o.OrderID, &o.CustomerID, &o.Date, &o.Value, &o.Category, &o.SKU, &o.Margin); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order")
		}
		o.Date = o.Date.UTC()
		orders = append(orders, o)
	}
	if err := orows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load orders iterate")
	}
	return groupOrders(accounts, orders)
}

// SaveRun inserts the run and its per-account rows. A run without an id is
// assigned one.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var report sql.NullString
	if run.Report != nil {
		b, err := json.Marshal(run.Report)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal report")
		}
		report = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, as_of, source, status, accounts, flagged, report, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, nullTime(run.AsOf), run.Source, string(run.Status), run.Accounts, run.Flagged,
		report, run.Error, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	for _, row := range runAccountRows(run) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_accounts (`+joinColumns(runAccountColumns)+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row...,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert run account %v", row[1])
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, as_of, source, status, accounts, flagged, report, error, created_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var status string
	var asOf sql.NullTime
	var report sql.NullString
	err := row.Scan(&r.ID, &asOf, &r.Source, &status, &r.Accounts, &r.Flagged, &report, &r.Error, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	r.Status = model.RunStatus(status)
	if asOf.Valid {
		r.AsOf = asOf.Time.UTC()
	}
	if report.Valid {
		r.Report = &model.Report{}
		if err := json.Unmarshal([]byte(report.String), r.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	return &r, nil
}

// ListRuns returns run headers, newest first. Reports are not loaded.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, as_of, source, status, accounts, flagged, error, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var asOf sql.NullTime
		if err := rows.Scan(&r.ID, &asOf, &r.Source, &status, &r.Accounts, &r.Flagged, &r.Error, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		if asOf.Valid {
			r.AsOf = asOf.Time.UTC()
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
