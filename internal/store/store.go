package store

import (
	"context"

	"github.com/walletworks/concierge/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
type Store interface {
	Users() Users
	Products() Products
	Orders() Orders
	Transactions() Transactions
	Activities() Activities

	// TransferFunds atomically debits the sender, credits the recipient and
	// appends a transaction record, all inside one storage transaction.
	// It rejects transfers that would drive the sender negative with
	// model.ErrInsufficientFunds before any mutation.
	TransferFunds(ctx context.Context, req model.PaymentRequest) (*model.Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	// FindByNamePrefix resolves a case-insensitive display-name prefix to a
	// user. The first match in insertion order wins; no-match returns
	// model.ErrNotFound.
	FindByNamePrefix(ctx context.Context, prefix string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

type Products interface {
	Create(ctx context.Context, p *model.Product) (*model.Product, error)
	// List returns the catalog in insertion order, the final ranking
	// tiebreak.
	List(ctx context.Context) ([]*model.Product, error)
}

type Orders interface {
	Create(ctx context.Context, o *model.Order) (*model.Order, error)
	Get(ctx context.Context, orderID string) (*model.Order, error)
	// Complete and Cancel transition a pending order to its terminal state.
	// Both fail if the order is missing or already terminal, so a status
	// transition happens at most once.
	Complete(ctx context.Context, orderID, paymentID string) error
	Cancel(ctx context.Context, orderID, reason string) error
}

type Transactions interface {
	ListForUser(ctx context.Context, userID string) ([]*model.Transaction, error)
}

type Activities interface {
	Append(ctx context.Context, a *model.Activity) error
	// ListForUser returns newest-first activities, optionally filtered by
	// type ("" means all).
	ListForUser(ctx context.Context, userID, activityType string) ([]*model.Activity, error)
}
