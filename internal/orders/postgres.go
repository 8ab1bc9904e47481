package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id        TEXT PRIMARY KEY,
	idempotency_key TEXT NOT NULL UNIQUE,
	customer_email  TEXT NOT NULL,
	status          TEXT NOT NULL,
	total           NUMERIC(12,2) NOT NULL,
	snapshot        JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_customer_email_idx ON orders (customer_email);
`

var _ Repository = (*PostgresStore)(nil)

// PostgresStore keeps orders in Postgres. It satisfies Repository.
type PostgresStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// OpenPostgres connects to dsn and makes sure the orders table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, nowFunc: time.Now}
}

// EnsureSchema creates the orders table and its index when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create orders schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// CreateOnce inserts o unless the key or the order id already exists.
func (s *PostgresStore) CreateOnce(ctx context.Context, key string, o Order) (bool, error) {
	now := s.nowFunc().UTC()
	if o.Date.IsZero() {
		o.Date = now
	}
	snap, err := json.Marshal(snapshotOf(o))
	if err != nil {
		return false, fmt.Errorf("marshal order snapshot: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, idempotency_key, customer_email, status, total, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`,
		o.ID, key, o.CustomerEmail, string(o.Status), o.Total.StringFixed(2), string(snap), o.Date, now)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}
	return n == 1, nil
}

const selectOrder = `SELECT order_id, customer_email, status, snapshot, updated_at FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		id, email, status string
		snap              []byte
		updated           time.Time
	)
	if err := row.Scan(&id, &email, &status, &snap, &updated); err != nil {
		return Order{}, err
	}
	var sn snapshot
	if err := json.Unmarshal(snap, &sn); err != nil {
		return Order{}, fmt.Errorf("unmarshal order snapshot %s: %w", id, err)
	}
	return sn.order(id, email, Status(status), updated), nil
}

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, selectOrder+` WHERE order_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Order, error) {
	return s.query(ctx, selectOrder+` ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, email string) ([]Order, error) {
	return s.query(ctx, selectOrder+` WHERE customer_email = $1 ORDER BY created_at DESC`, email)
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// UpdateStatus moves an order from expected to next. Returns ErrStatusMismatch
// when the order is missing or in another status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, expected, next Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE order_id = $3 AND status = $4`,
		string(next), s.nowFunc().UTC(), id, string(expected))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		return ErrStatusMismatch
	}
	return nil
}
