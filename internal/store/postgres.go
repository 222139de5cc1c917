package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/db"
	"github.com/sells-group/account-strategy/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, as_of, source, status, accounts, flagged, report, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_run":    `SELECT id, as_of, source, status, accounts, flagged, report, error, created_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	customer_id    TEXT PRIMARY KEY,
	account_name   TEXT NOT NULL DEFAULT '',
	rep_tier       TEXT NOT NULL,
	account_status TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	order_id    TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES accounts(customer_id),
	order_date  DATE NOT NULL,
	order_value NUMERIC(14,2) NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	sku         TEXT NOT NULL DEFAULT '',
	margin      DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	as_of      DATE,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL,
	accounts   INTEGER NOT NULL DEFAULT 0,
	flagged    INTEGER NOT NULL DEFAULT 0,
	report     JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_accounts (
	run_id                  TEXT NOT NULL REFERENCES runs(id),
	customer_id             TEXT NOT NULL,
	phase                   TEXT NOT NULL,
	roi_speed_score         DOUBLE PRECISION NOT NULL,
	priority                TEXT NOT NULL,
	coverage_status         TEXT NOT NULL,
	coverage_flag           TEXT NOT NULL,
	leakage_flag            BOOLEAN NOT NULL,
	est_recoverable_revenue DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_customer_date ON orders(customer_id, order_date);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_accounts_phase ON run_accounts(run_id, phase);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var (
	accountUpsert = db.UpsertConfig{
		Table:        "accounts",
		Columns:      []string{"customer_id", "account_name", "rep_tier", "account_status", "updated_at"},
		ConflictKeys: []string{"customer_id"},
	}
	orderUpsert = db.UpsertConfig{
		Table:        "orders",
		Columns:      []string{"order_id", "customer_id", "order_date", "order_value", "category", "sku", "margin"},
		ConflictKeys: []string{"order_id"},
	}
)

// SaveAccounts upserts accounts, then their orders, through temp-table COPY
// merges in a single transaction.
func (s *PostgresStore) SaveAccounts(ctx context.Context, accounts []model.Account) (int, error) {
	now := time.Now().UTC()
	accountRows := make([][]any, 0, len(accounts))
	var orderRows [][]any
	for _, a := range accounts {
		accountRows = append(accountRows, []any{a.CustomerID, a.Name, string(a.RepTier), string(a.Status), now})
		for _, o := range a.Orders {
			orderRows = append(orderRows, []any{o.OrderID, a.CustomerID, o.Date, o.Value, o.Category, o.SKU, o.Margin})
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save accounts: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Each merge runs in a savepoint of tx, so a failed order merge also
	// discards the account merge.
	n, err := db.BulkUpsert(ctx, tx, accountUpsert, accountRows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save accounts")
	}
	if _, err := db.BulkUpsert(ctx, tx, orderUpsert, orderRows); err != nil {
		return 0, eris.Wrap(err, "postgres: save orders")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: save accounts: commit tx")
	}
	return int(n), nil
}

// LoadAccounts returns every stored account with its orders.
func (s *PostgresStore) LoadAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT customer_id, account_name, rep_tier, account_status FROM accounts ORDER BY customer_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load accounts")
	}
	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var tier, status string
		if err := rows.Scan(&a.CustomerID, &a.Name, &tier, &status); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan account")
		}
		a.RepTier, a.Status = model.RepTier(tier), model.AccountStatus(status)
		accounts = append(accounts, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load accounts iterate")
	}

	orows, err := s.pool.Query(ctx,
		`SELECT order_id, customer_id, order_date, order_value::float8, category, sku, margin
		 FROM orders ORDER BY customer_id, order_date, order_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load orders")
	}
	defer orows.Close()

	var orders []model.Order
	for orows.Next() {
		var o model.Order
		if err := orows.Scan(&o.OrderID, &o.CustomerID, &o.Date, &o.Value, &o.Category, &o.SKU, &o.Margin); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order")
		}
		orders = append(orders, o)
	}
	if err := orows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load orders iterate")
	}
	return groupOrders(accounts, orders)
}

// SaveRun inserts the run and COPYs its per-account rows in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var report []byte
	if run.Report != nil {
		b, err := json.Marshal(run.Report)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal report")
		}
		report = b
	}
	var asOf *time.Time
	if !run.AsOf.IsZero() {
		asOf = &run.AsOf
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, as_of, source, status, accounts, flagged, report, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, asOf, run.Source, string(run.Status), run.Accounts, run.Flagged, report, run.Error, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	if _, err := db.CopyFrom(ctx, tx, "run_accounts", runAccountColumns, runAccountRows(run)); err != nil {
		return eris.Wrapf(err, "postgres: copy run accounts for %s", run.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var status string
	var asOf *time.Time
	var report []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, as_of, source, status, accounts, flagged, report, error, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &asOf, &r.Source, &status, &r.Accounts, &r.Flagged, &report, &r.Error, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	r.Status = model.RunStatus(status)
	if asOf != nil {
		r.AsOf = asOf.UTC()
	}
	if report != nil {
		r.Report = &model.Report{}
		if err := json.Unmarshal(report, r.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
	}
	return &r, nil
}

// ListRuns returns run headers, newest first. Reports are not loaded.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, as_of, source, status, accounts, flagged, error, created_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var asOf *time.Time
		if err := rows.Scan(&r.ID, &asOf, &r.Source, &status, &r.Accounts, &r.Flagged, &r.Error, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if asOf != nil {
			r.AsOf = asOf.UTC()
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
