package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletworks/concierge/internal/gateway"
	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/paycrypt"
	"github.com/walletworks/concierge/internal/store"
	"github.com/walletworks/concierge/internal/store/sqlite"
)

// activityRecorder captures audit calls synchronously.
type activityRecorder struct {
	mu      sync.Mutex
	entries []recordedActivity
}

type recordedActivity struct {
	userID  string
	kind    string
	details map[string]string
}

func (r *activityRecorder) Log(userID, activityType string, details map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedActivity{userID: userID, kind: activityType, details: details})
}

func (r *activityRecorder) byType(kind string) []recordedActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedActivity
	for _, e := range r.entries {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// orderSpy records every order the executor creates so tests can find them.
type orderSpy struct {
	store.Orders
	mu      sync.Mutex
	created []*model.Order
}

func (s *orderSpy) Create(ctx context.Context, o *model.Order) (*model.Order, error) {
	out, err := s.Orders.Create(ctx, o)
	if err == nil {
		s.mu.Lock()
		s.created = append(s.created, out)
		s.mu.Unlock()
	}
	return out, err
}

func (s *orderSpy) all() []*model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Order(nil), s.created...)
}

type spyStore struct {
	store.Store
	orders *orderSpy
}

func (s *spyStore) Orders() store.Orders { return s.orders }

type testEnv struct {
	store    store.Store
	orders   *orderSpy
	activity *activityRecorder
	exec     *Executor
	alice    *model.User
	bob      *model.User
	shop     *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	base, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })
	st := &spyStore{Store: base, orders: &orderSpy{Orders: base.Orders()}}

	mkUser := func(name, phone, balance string) *model.User {
		u, err := st.Users().Create(ctx, &model.User{
			Name: name, Phone: phone, Email: name + "@example.com",
			Balance: decimal.RequireFromString(balance),
		})
		require.NoError(t, err)
		return u
	}
	alice := mkUser("Alice", "+10000000001", "100")
	bob := mkUser("Bob", "+10000000002", "20")
	shop := mkUser("Shop", "+19999999999", "0")

	priv, err := paycrypt.EnsureKeys("")
	require.NoError(t, err)
	gw := NewInProcessGateway(gateway.NewService(st, priv, zerolog.Nop()))

	activity := &activityRecorder{}
	exec := NewExecutor(st, gw, activity, shop.UserID, 5*time.Second, zerolog.Nop())

	return &testEnv{store: st, orders: st.orders, activity: activity, exec: exec,
		alice: alice, bob: bob, shop: shop}
}

func (e *testEnv) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	u, err := e.store.Users().Get(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func mouse(price string) *model.Product {
	return &model.Product{
		ProductID: "p-mouse",
		Title:     "GadgetX Wireless Mouse",
		Price:     decimal.RequireFromString(price),
	}
}

func TestExecute_TransferMovesFundsAndAudits(t *testing.T) {
	env := newTestEnv(t)

	reply, err := env.exec.Execute(context.Background(), env.alice.UserID, model.PendingAction{
		Kind:    model.PendingTransfer,
		ToPhone: env.bob.Phone,
		Amount:  decimal.RequireFromString("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Successfully transferred $30.00 to Bob (+10000000002)", reply)

	assert.True(t, env.balance(t, env.alice.UserID).Equal(decimal.NewFromInt(70)))
	assert.True(t, env.balance(t, env.bob.UserID).Equal(decimal.NewFromInt(50)))

	sent := env.activity.byType("transfer_sent")
	require.Len(t, sent, 1)
	assert.Equal(t, env.alice.UserID, sent[0].userID)
	received := env.activity.byType("transfer_received")
	require.Len(t, received, 1)
	assert.Equal(t, env.bob.UserID, received[0].userID)
}

func TestExecute_TransferInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec.Execute(context.Background(), env.alice.UserID, model.PendingAction{
		Kind:    model.PendingTransfer,
		ToPhone: env.bob.Phone,
		Amount:  decimal.RequireFromString("150"),
	})
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	assert.True(t, env.balance(t, env.alice.UserID).Equal(decimal.NewFromInt(100)))
	assert.True(t, env.balance(t, env.bob.UserID).Equal(decimal.NewFromInt(20)))
	assert.Empty(t, env.activity.byType("transfer_sent"))
}

func TestExecute_TransferUnknownRecipient(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.exec.Execute(context.Background(), env.alice.UserID, model.PendingAction{
		Kind:    model.PendingTransfer,
		ToPhone: "+19999999990",
		Amount:  decimal.RequireFromString("10"),
	})
	assert.ErrorIs(t, err, model.ErrRecipientNotFound)
}

func TestExecute_PurchaseCompletesOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reply, err := env.exec.Execute(ctx, env.alice.UserID, model.PendingAction{
		Kind:    model.PendingBuy,
		Product: mouse("39.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Successfully purchased 'GadgetX Wireless Mouse' for $39.99", reply)

	assert.True(t, env.balance(t, env.alice.UserID).Equal(decimal.RequireFromString("60.01")))
	assert.True(t, env.balance(t, env.shop.UserID).Equal(decimal.RequireFromString("39.99")))

	created := env.orders.all()
	require.Len(t, created, 1)
	order, err := env.store.Orders().Get(ctx, created[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, order.Status)
	assert.NotEmpty(t, order.PaymentID)

	// The settlement transaction references the order.
	txs, err := env.store.Transactions().ListForUser(ctx, env.alice.UserID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, order.OrderID, txs[0].OrderID)
	assert.Equal(t, order.PaymentID, txs[0].TxID)

	purchases := env.activity.byType("purchase")
	require.Len(t, purchases, 1)
	assert.Equal(t, order.OrderID, purchases[0].details["order_id"])
}

func TestExecute_PurchaseGatewayRejectionCancelsOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Price above the buyer's balance: the gateway rejects the settlement.
	_, err := env.exec.Execute(ctx, env.alice.UserID, model.PendingAction{
		Kind:    model.PendingBuy,
		Product: mouse("250.00"),
	})
	require.ErrorIs(t, err, model.ErrGateway)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "insufficient funds", gwErr.Reason)

	assert.True(t, env.balance(t, env.alice.UserID).Equal(decimal.NewFromInt(100)))
	assert.True(t, env.balance(t, env.shop.UserID).IsZero())

	created := env.orders.all()
	require.Len(t, created, 1)
	order, err := env.store.Orders().Get(ctx, created[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.Status)
	assert.Equal(t, "insufficient funds", order.FailReason)
	assert.Empty(t, env.activity.byType("purchase"))
}

func TestExecute_PurchasePriceCeiling(t *testing.T) {
	env := newTestEnv(t)

	max := decimal.NewFromInt(30)
	_, err := env.exec.Execute(context.Background(), env.alice.UserID, model.PendingAction{
		Kind:     model.PendingBuy,
		Product:  mouse("39.99"),
		MaxPrice: &max,
	})
	require.ErrorIs(t, err, model.ErrPriceExceeded)

	// Rejected before any order or payment exists.
	assert.Empty(t, env.orders.all())
	assert.True(t, env.balance(t, env.alice.UserID).Equal(decimal.NewFromInt(100)))
}

func TestExecute_UnknownActionKind(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.exec.Execute(context.Background(), env.alice.UserID, model.PendingAction{Kind: "frobnicate"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

// stalledGateway never answers; Submit blocks until the context is cancelled.
type stalledGateway struct{}

func (stalledGateway) Encrypt(model.PaymentRequest) (string, error) { return "ct", nil }

func (stalledGateway) Submit(ctx context.Context, _ string) (model.PaymentResult, error) {
	<-ctx.Done()
	return model.PaymentResult{}, ctx.Err()
}

func TestExecute_GatewayTimeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exec := NewExecutor(env.store, stalledGateway{}, env.activity, env.shop.UserID, 20*time.Millisecond, zerolog.Nop())

	_, err := exec.Execute(ctx, env.alice.UserID, model.PendingAction{
		Kind:    model.PendingBuy,
		Product: mouse("39.99"),
	})
	require.ErrorIs(t, err, model.ErrGateway)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "gateway timeout", gwErr.Reason)

	// The stalled attempt leaves the order cancelled, never pending.
	created := env.orders.all()
	require.Len(t, created, 1)
	order, err := env.store.Orders().Get(ctx, created[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, order.Status)
	assert.True(t, env.balance(t, env.alice.UserID).Equal(decimal.NewFromInt(100)))
}
