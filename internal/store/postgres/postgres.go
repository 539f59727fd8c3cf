// Package postgres provides a Store backed by PostgreSQL via the pgx stdlib
// driver. Like the sqlite driver, New bootstraps its own schema
// (schema.sql) so a fresh database is usable without separate migrations.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/store"
)

// Open opens a PostgreSQL connection and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

//go:embed schema.sql
var schema string

// New constructs a Postgres-backed store and bootstraps the schema.
func New(dsn string) (store.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema bootstrap: %w", err)
	}
	return &pgStore{db: db}, nil
}

// NewWithDB wraps an already-opened database (tests).
func NewWithDB(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("schema bootstrap: %w", err)
	}
	return &pgStore{db: db}, nil
}

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users               { return &users{db: s.db} }
func (s *pgStore) Products() store.Products         { return &products{db: s.db} }
func (s *pgStore) Orders() store.Orders             { return &orders{db: s.db} }
func (s *pgStore) Transactions() store.Transactions { return &transactions{db: s.db} }
func (s *pgStore) Activities() store.Activities     { return &activities{db: s.db} }

func (s *pgStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *pgStore) Close() error                   { return s.db.Close() }

// TransferFunds locks both account rows in user-id order to avoid deadlocks,
// checks funds, applies the debit and credit, and appends the transaction row
// in one database transaction.
func (s *pgStore) TransferFunds(ctx context.Context, req model.PaymentRequest) (*model.Transaction, error) {
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", model.ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	first, second := req.FromID, req.ToID
	if first > second {
		first, second = second, first
	}
	balances := map[string]decimal.Decimal{}
	for _, id := range []string{first, second} {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT balance::text FROM users WHERE user_id=$1 FOR UPDATE`, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		bal, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		balances[id] = bal
	}
	if balances[req.FromID].LessThan(req.Amount) {
		return nil, model.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance - $1 WHERE user_id=$2`,
		req.Amount.String(), req.FromID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + $1 WHERE user_id=$2`,
		req.Amount.String(), req.ToID); err != nil {
		return nil, err
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
		`INSERT INTO transactions (tx_id, from_id, to_id, amount, order_id, ts) VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.TxID, rec.FromID, rec.ToID, rec.Amount.String(), rec.OrderID, rec.Timestamp); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}
	return rec, nil
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.NewString()
	}
	_, err := u.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, phone, email, balance) VALUES ($1,$2,$3,$4,$5)`,
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
		`SELECT user_id, name, phone, email, balance::text FROM users WHERE user_id=$1`, userID))
}

func (u *users) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT user_id, name, phone, email, balance::text FROM users WHERE phone=$1`, phone))
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
		`SELECT user_id, name, phone, email, balance::text FROM users ORDER BY seq`)
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
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		out.ProductID, out.Title, out.Description, out.Category, out.BrandID, out.BrandName,
		out.Price.String(), out.Rating, out.Stock)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *products) List(ctx context.Context) ([]*model.Product, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT product_id, title, description, category, brand_id, brand_name, price::text, rating, stock
         FROM products ORDER BY seq`)
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
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
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
		`SELECT order_id, user_id, items, total::text, status, payment_id, fail_reason, creation_time
         FROM orders WHERE order_id=$1`, orderID).
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

func (o *orders) transition(ctx context.Context, orderID string, status model.OrderStatus, paymentID, reason string) error {
	res, err := o.db.ExecContext(ctx,
		`UPDATE orders SET status=$1, payment_id=$2, fail_reason=$3 WHERE order_id=$4 AND status=$5`,
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
		`SELECT tx_id, from_id, to_id, amount::text, order_id, ts FROM transactions
         WHERE from_id=$1 OR to_id=$1 ORDER BY ts DESC`, userID)
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
		`INSERT INTO activities (activity_id, user_id, type, details, ts) VALUES ($1,$2,$3,$4,$5)`,
		out.ActivityID, out.UserID, out.Type, string(details), out.Timestamp)
	return err
}

func (a *activities) ListForUser(ctx context.Context, userID, activityType string) ([]*model.Activity, error) {
	q := `SELECT activity_id, user_id, type, details, ts FROM activities WHERE user_id=$1`
	args := []any{userID}
	if activityType != "" {
		q += ` AND type=$2`
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
