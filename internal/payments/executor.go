// Package payments executes confirmed actions: peer-to-peer transfers and
// purchases. Every balance mutation goes through the encrypted gateway; this
// package never touches balances directly.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/store"
)

// ActivityLogger records per-user audit entries. Implementations must never
// block or fail the caller.
type ActivityLogger interface {
	Log(userID, activityType string, details map[string]string)
}

// GatewayError carries the gateway's failure reason verbatim. It matches
// model.ErrGateway under errors.Is.
type GatewayError struct{ Reason string }

func (e *GatewayError) Error() string        { return "gateway failure: " + e.Reason }
func (e *GatewayError) Is(target error) bool { return target == model.ErrGateway }

// Executor turns a confirmed pending action into a ledger mutation.
type Executor struct {
	store    store.Store
	gw       Gateway
	activity ActivityLogger
	shopID   string
	timeout  time.Duration
	log      zerolog.Logger
}

func NewExecutor(st store.Store, gw Gateway, activity ActivityLogger, shopID string, timeout time.Duration, log zerolog.Logger) *Executor {
	return &Executor{store: st, gw: gw, activity: activity, shopID: shopID, timeout: timeout, log: log}
}

// Execute runs the confirmed action and returns the user-facing confirmation
// text. Business failures come back as sentinel-wrapped errors; the caller
// owns the phrasing of those.
func (e *Executor) Execute(ctx context.Context, userID string, action model.PendingAction) (string, error) {
	switch action.Kind {
	case model.PendingTransfer:
		return e.executeTransfer(ctx, userID, action)
	case model.PendingBuy:
		return e.executePurchase(ctx, userID, action)
	default:
		return "", fmt.Errorf("%w: unknown action kind %q", model.ErrValidation, action.Kind)
	}
}

func (e *Executor) executeTransfer(ctx context.Context, userID string, action model.PendingAction) (string, error) {
	recipient, err := e.store.Users().GetByPhone(ctx, action.ToPhone)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", model.ErrRecipientNotFound, action.ToPhone)
		}
		return "", err
	}
	sender, err := e.store.Users().Get(ctx, userID)
	if err != nil {
		return "", err
	}
	// Rechecked here even though the proposal already checked: the balance
	// can drift between proposal and confirmation.
	if sender.Balance.LessThan(action.Amount) {
		return "", model.ErrInsufficientFunds
	}

	e.log.Info().
		Str("from", sender.Name).
		Str("to", recipient.Name).
		Str("amount", action.Amount.StringFixed(2)).
		Msg("processing transfer")

	req := model.PaymentRequest{
		FromID:  userID,
		ToID:    recipient.UserID,
		Amount:  action.Amount,
		OrderID: uuid.NewString(),
	}
	result, err := e.submit(ctx, req)
	if err != nil {
		return "", err
	}

	e.activity.Log(userID, "transfer_sent", map[string]string{
		"amount":         action.Amount.StringFixed(2),
		"to_user":        recipient.Name,
		"transaction_id": result.PaymentID,
	})
	e.activity.Log(recipient.UserID, "transfer_received", map[string]string{
		"amount":         action.Amount.StringFixed(2),
		"from_user":      sender.Name,
		"transaction_id": result.PaymentID,
	})

	return fmt.Sprintf("Successfully transferred $%s to %s (%s)",
		action.Amount.StringFixed(2), recipient.Name, recipient.Phone), nil
}

func (e *Executor) executePurchase(ctx context.Context, userID string, action model.PendingAction) (string, error) {
	product := action.Product
	if product == nil {
		return "", fmt.Errorf("%w: buy action without product", model.ErrValidation)
	}
	if action.MaxPrice != nil && product.Price.GreaterThan(*action.MaxPrice) {
		return "", model.ErrPriceExceeded
	}

	// The order is created pending before the gateway is contacted so the
	// payment attempt stays traceable even if the process dies mid-flight.
	order, err := e.store.Orders().Create(ctx, &model.Order{
		UserID: userID,
		Items: []model.OrderItem{{
			ProductID: product.ProductID,
			Title:     product.Title,
			Price:     product.Price,
		}},
		Total:  product.Price,
		Status: model.OrderPending,
	})
	if err != nil {
		return "", err
	}

	// Whatever goes wrong below, the order must not stay pending.
	finalized := false
	defer func() {
		if finalized {
			return
		}
		cancelCtx := context.WithoutCancel(ctx)
		if cErr := e.store.Orders().Cancel(cancelCtx, order.OrderID, "purchase processing failed"); cErr != nil {
			e.log.Error().Err(cErr).Str("order_id", order.OrderID).Msg("failed to cancel order")
		}
	}()

	result, err := e.submit(ctx, model.PaymentRequest{
		FromID:  userID,
		ToID:    e.shopID,
		Amount:  product.Price,
		OrderID: order.OrderID,
	})
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			if cErr := e.store.Orders().Cancel(ctx, order.OrderID, gwErr.Reason); cErr != nil {
				e.log.Error().Err(cErr).Str("order_id", order.OrderID).Msg("failed to cancel order")
			}
			finalized = true
		}
		return "", err
	}

	if err := e.store.Orders().Complete(ctx, order.OrderID, result.PaymentID); err != nil {
		return "", fmt.Errorf("order completion: %w", err)
	}
	finalized = true

	e.activity.Log(userID, "purchase", map[string]string{
		"amount":    product.Price.StringFixed(2),
		"item_name": product.Title,
		"order_id":  order.OrderID,
	})

	return fmt.Sprintf("Successfully purchased '%s' for $%s",
		product.Title, product.Price.StringFixed(2)), nil
}

// submit encrypts and sends the payload, bounding the round trip with the
// configured timeout so a stalled gateway surfaces as a reported failure
// instead of blocking the user's slot forever.
func (e *Executor) submit(ctx context.Context, req model.PaymentRequest) (model.PaymentResult, error) {
	ciphertext, err := e.gw.Encrypt(req)
	if err != nil {
		return model.PaymentResult{}, fmt.Errorf("payload encryption: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result, err := e.gw.Submit(sctx, ciphertext)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return model.PaymentResult{}, &GatewayError{Reason: "gateway timeout"}
		}
		return model.PaymentResult{}, &GatewayError{Reason: err.Error()}
	}
	if !result.OK {
		return model.PaymentResult{}, &GatewayError{Reason: result.Reason}
	}
	return result, nil
}
