package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account holder. Every user owns exactly one balance; the shop
// merchant is a regular user with its own account.
type User struct {
	UserID  string          `json:"id"`
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

// Product is a catalog entry. Immutable once listed; Rating is 0 when the
// product has never been rated.
type Product struct {
	ProductID   string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	BrandID     string          `json:"brand_id"`
	BrandName   string          `json:"brand_name"`
	Price       decimal.Decimal `json:"price"`
	Rating      float64         `json:"rating"`
	Stock       int             `json:"stock"`
}

// OrderStatus values. An order transitions exactly once from pending to a
// terminal state and never reverts.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderItem is one line of an order, capturing the price at purchase time.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
}

// Order tracks a purchase through the payment gateway. It is created pending
// before the gateway is contacted so every payment attempt stays traceable.
type Order struct {
	OrderID      string          `json:"id"`
	UserID       string          `json:"user_id"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Status       OrderStatus     `json:"status"`
	PaymentID    string          `json:"payment_id,omitempty"`
	FailReason   string          `json:"fail_reason,omitempty"`
	CreationTime time.Time       `json:"creation_time"`
}

// Transaction is an immutable ledger entry written only after a successful
// balance mutation.
type Transaction struct {
	TxID      string          `json:"id"`
	FromID    string          `json:"from"`
	ToID      string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	OrderID   string          `json:"order_id,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

// Activity is a per-user audit entry (transfer_sent, transfer_received,
// purchase). Written fire-and-forget; never part of the money path.
type Activity struct {
	ActivityID string            `json:"id"`
	UserID     string            `json:"user_id"`
	Type       string            `json:"type"`
	Details    map[string]string `json:"details"`
	Timestamp  time.Time         `json:"timestamp"`
}

// PaymentRequest is the plaintext payload encrypted for the gateway.
type PaymentRequest struct {
	FromID  string          `json:"from_id"`
	ToID    string          `json:"to_id"`
	Amount  decimal.Decimal `json:"amount"`
	OrderID string          `json:"order_id"`
}

// PaymentResult is the gateway's verdict on a submitted payment.
type PaymentResult struct {
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

// PendingKind discriminates the pending-action variants.
type PendingKind string

const (
	PendingBuy      PendingKind = "buy"
	PendingTransfer PendingKind = "transfer"
)

// PendingAction is an intent awaiting explicit confirmation. One slot per
// user; consumed on confirmation, replaced by any newer intent.
type PendingAction struct {
	Kind PendingKind

	// Buy fields
	Product  *Product
	MaxPrice *decimal.Decimal

	// Transfer fields
	ToPhone string
	Amount  decimal.Decimal
}
