// Package sqlite provides a Store backed by modernc.org/sqlite. The default
// DSN is an in-memory database, matching the system's ephemeral ledger.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id  TEXT PRIMARY KEY,
    name     TEXT NOT NULL,
    phone    TEXT NOT NULL UNIQUE,
    email    TEXT NOT NULL,
    balance  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
    product_id  TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    brand_id    TEXT NOT NULL DEFAULT '',
    brand_name  TEXT NOT NULL DEFAULT '',
    price       TEXT NOT NULL,
    rating      REAL NOT NULL DEFAULT 0,
    stock       INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS orders (
    order_id      TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(user_id),
    items         TEXT NOT NULL,
    total         TEXT NOT NULL,
    status        TEXT NOT NULL,
    payment_id    TEXT NOT NULL DEFAULT '',
    fail_reason   TEXT NOT NULL DEFAULT '',
    creation_time TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
    tx_id    TEXT PRIMARY KEY,
    from_id  TEXT NOT NULL,
    to_id    TEXT NOT NULL,
    amount   TEXT NOT NULL,
    order_id TEXT NOT NULL DEFAULT '',
    ts       TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS activities (
    activity_id TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    type        TEXT NOT NULL,
    details     TEXT NOT NULL,
    ts          TIMESTAMP NOT NULL
);
`

// Open opens (or creates) a SQLite database. Path ":memory:" yields a private
// in-memory database; the connection pool is pinned to one connection so the
// database is shared and writes serialize.
func Open(path string) (*sql.DB, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens the database at path and bootstraps the schema.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema bootstrap: %w", err)
	}
	return &sqlStore{db: db}, nil
}

// NewWithDB wraps an already-opened database (tests).
func NewWithDB(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("schema bootstrap: %w", err)
	}
	return &sqlStore{db: db}, nil
}

type sqlStore struct{ db *sql.DB }

func (s *sqlStore) Users() store.Users               { return &users{db: s.db} }
func (s *sqlStore) Products() store.Products         { return &products{db: s.db} }
func (s *sqlStore) Orders() store.Orders             { return &orders{db: s.db} }
func (s *sqlStore) Transactions() store.Transactions { return &transactions{db: s.db} }
func (s *sqlStore) Activities() store.Activities     { return &activities{db: s.db} }

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlStore) Close() error                   { return s.db.Close() }

// TransferFunds performs the ledger mutation as one transaction: read both
// balances, reject insufficient funds, debit and credit, append the
// transaction row. No observable intermediate state exists.
func (s *sqlStore) TransferFunds(ctx context.Context, req model.PaymentRequest) (*model.Transaction, error) {
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", model.ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	fromBal, err := balanceTx(ctx, tx, req.FromID)
	if err != nil {
		return nil, fmt.Errorf("from user: %w", err)
	}
	toBal, err := balanceTx(ctx, tx, req.ToID)
	if err != nil {
		return nil, fmt.Errorf("to user: %w", err)
	}
	if fromBal.LessThan(req.Amount) {
		return nil, model.ErrInsufficientFunds
	}

	// A self-transfer nets to zero: writing both absolute balances would let
	// the credit overwrite the debit, so only the ledger entry is recorded.
	if req.FromID != req.ToID {
		newFrom := fromBal.Sub(req.Amount)
		newTo := toBal.Add(req.Amount)
		if newFrom.Sign() < 0 {
			// Unreachable after the funds check; kept as the ledger's last
			// line of defense against a corrupting write.
			return nil, model.ErrInsufficientFunds
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET balance=? WHERE user_id=?`, newFrom.String(), req.FromID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET balance=? WHERE user_id=?`, newTo.String(), req.ToID); err != nil {
			return nil, err
		}
	}

	rec := &model.Transaction{
		TxID:      uuid.NewString(),
		FromID:    req.FromID,
		ToID:      req.ToID,
		Amount:    req.Amount,
		OrderID:   req.OrderID,
		Timestamp: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (tx_id, from_id, to_id, amount, order_id, ts) VALUES (?,?,?,?,?,?)`,
		rec.TxID, rec.FromID, rec.ToID, rec.Amount.String(), rec.OrderID, rec.Timestamp); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}
	return rec, nil
}

func balanceTx(ctx context.Context, tx *sql.Tx, userID string) (decimal.Decimal, error) {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE user_id=?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, model.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.NewString()
	}
	_, err := u.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, phone, email, balance) VALUES (?,?,?,?,?)`,
		out.UserID, out.Name, out.Phone, out.Email, out.Balance.String())
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var out model.User
	var raw string
	if err := row.Scan(&out.UserID, &out.Name, &out.Phone, &out.Email, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	bal, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	out.Balance = bal
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT user_id, name, phone, email, balance FROM users WHERE user_id=?`, userID))
}

func (u *users) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT user_id, name, phone, email, balance FROM users WHERE phone=?`, phone))
}

func (u *users) FindByNamePrefix(ctx context.Context, prefix string) (*model.User, error) {
	all, err := u.List(ctx)
	if err != nil {
		return nil, err
	}
	p := strings.ToLower(prefix)
	for _, usr := range all {
		if strings.HasPrefix(strings.ToLower(usr.Name), p) {
			return usr, nil
		}
	}
	return nil, model.ErrNotFound
}

func (u *users) List(ctx context.Context) ([]*model.User, error) {
	rows, err := u.db.QueryContext(ctx,
		`SELECT user_id, name, phone, email, balance FROM users ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, usr)
	}
	return out, rows.Err()
}

// --- Products ---

type products struct{ db *sql.DB }

func (p *products) Create(ctx context.Context, m *model.Product) (*model.Product, error) {
	out := *m
	if out.ProductID == "" {
		out.ProductID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO products (product_id, title, description, category, brand_id, brand_name, price, rating, stock)
         VALUES (?,?,?,?,?,?,?,?,?)`,
		out.ProductID, out.Title, out.Description, out.Category, out.BrandID, out.BrandName,
		out.Price.String(), out.Rating, out.Stock)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *products) List(ctx context.Context) ([]*model.Product, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT product_id, title, description, category, brand_id, brand_name, price, rating, stock
         FROM products ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Product
	for rows.Next() {
		var pr model.Product
		var raw string
		if err := rows.Scan(&pr.ProductID, &pr.Title, &pr.Description, &pr.Category,
			&pr.BrandID, &pr.BrandName, &raw, &pr.Rating, &pr.Stock); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		pr.Price = price
		out = append(out, &pr)
	}
	return out, rows.Err()
}

// --- Orders ---

type orders struct{ db *sql.DB }

func (o *orders) Create(ctx context.Context, m *model.Order) (*model.Order, error) {
	out := *m
	if out.OrderID == "" {
		out.OrderID = uuid.NewString()
	}
	if out.Status == "" {
		out.Status = model.OrderPending
	}
	if out.CreationTime.IsZero() {
		out.CreationTime = time.Now().UTC()
	}
	items, err := json.Marshal(out.Items)
	if err != nil {
		return nil, err
	}
	_, err = o.db.ExecContext(ctx,
		`INSERT INTO orders (order_id, user_id, items, total, status, payment_id, fail_reason, creation_time)
         VALUES (?,?,?,?,?,?,?,?)`,
		out.OrderID, out.UserID, string(items), out.Total.String(), out.Status,
		out.PaymentID, out.FailReason, out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *orders) Get(ctx context.Context, orderID string) (*model.Order, error) {
	var out model.Order
	var items, total string
	err := o.db.QueryRowContext(ctx,
		`SELECT order_id, user_id, items, total, status, payment_id, fail_reason, creation_time
         FROM orders WHERE order_id=?`, orderID).
		Scan(&out.OrderID, &out.UserID, &items, &total, &out.Status,
			&out.PaymentID, &out.FailReason, &out.CreationTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &out.Items); err != nil {
		return nil, err
	}
	tot, err := decimal.NewFromString(total)
	if err != nil {
		return nil, err
	}
	out.Total = tot
	return &out, nil
}

// transition moves a pending order to a terminal status; the WHERE clause on
// status makes the transition at-most-once.
func (o *orders) transition(ctx context.Context, orderID string, status model.OrderStatus, paymentID, reason string) error {
	res, err := o.db.ExecContext(ctx,
		`UPDATE orders SET status=?, payment_id=?, fail_reason=? WHERE order_id=? AND status=?`,
		status, paymentID, reason, orderID, model.OrderPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := o.Get(ctx, orderID); err != nil {
			return err
		}
		return fmt.Errorf("order %s is not pending", orderID)
	}
	return nil
}

func (o *orders) Complete(ctx context.Context, orderID, paymentID string) error {
	return o.transition(ctx, orderID, model.OrderCompleted, paymentID, "")
}

func (o *orders) Cancel(ctx context.Context, orderID, reason string) error {
	return o.transition(ctx, orderID, model.OrderCancelled, "", reason)
}

// --- Transactions ---

type transactions struct{ db *sql.DB }

func (t *transactions) ListForUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT tx_id, from_id, to_id, amount, order_id, ts FROM transactions
         WHERE from_id=? OR to_id=? ORDER BY ts DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Transaction
	for rows.Next() {
		var tr model.Transaction
		var amount string
		if err := rows.Scan(&tr.TxID, &tr.FromID, &tr.ToID, &amount, &tr.OrderID, &tr.Timestamp); err != nil {
			return nil, err
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		tr.Amount = amt
		out = append(out, &tr)
	}
	return out, rows.Err()
}

// --- Activities ---

type activities struct{ db *sql.DB }

func (a *activities) Append(ctx context.Context, m *model.Activity) error {
	out := *m
	if out.ActivityID == "" {
		out.ActivityID = uuid.NewString()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	details, err := json.Marshal(out.Details)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO activities (activity_id, user_id, type, details, ts) VALUES (?,?,?,?,?)`,
		out.ActivityID, out.UserID, out.Type, string(details), out.Timestamp)
	return err
}

func (a *activities) ListForUser(ctx context.Context, userID, activityType string) ([]*model.Activity, error) {
	q := `SELECT activity_id, user_id, type, details, ts FROM activities WHERE user_id=?`
	args := []any{userID}
	if activityType != "" {
		q += ` AND type=?`
		args = append(args, activityType)
	}
	q += ` ORDER BY ts DESC`
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Activity
	for rows.Next() {
		var act model.Activity
		var details string
		if err := rows.Scan(&act.ActivityID, &act.UserID, &act.Type, &details, &act.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(details), &act.Details); err != nil {
			return nil, err
		}
		out = append(out, &act)
	}
	return out, rows.Err()
}
