package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/paycrypt"
	"github.com/walletworks/concierge/internal/store"
	"github.com/walletworks/concierge/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, store.Store, *model.User, *model.User) {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

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

	priv, err := paycrypt.EnsureKeys("")
	require.NoError(t, err)
	return NewService(st, priv, zerolog.Nop()), st, alice, bob
}

func seal(t *testing.T, svc *Service, req model.PaymentRequest) string {
	t.Helper()
	plaintext, err := json.Marshal(req)
	require.NoError(t, err)
	ciphertext, err := paycrypt.Encrypt(svc.PublicKey(), plaintext)
	require.NoError(t, err)
	return ciphertext
}

func TestPay_SettlesTransfer(t *testing.T) {
	svc, st, alice, bob := newTestService(t)
	ctx := context.Background()

	result := svc.Pay(ctx, seal(t, svc, model.PaymentRequest{
		FromID:  alice.UserID,
		ToID:    bob.UserID,
		Amount:  decimal.RequireFromString("30"),
		OrderID: "order-1",
	}))
	require.True(t, result.OK, "reason: %s", result.Reason)
	assert.NotEmpty(t, result.PaymentID)

	got, err := st.Users().Get(ctx, alice.UserID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(70)))
}

func TestPay_FailureVerdicts(t *testing.T) {
	svc, _, alice, bob := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		req    model.PaymentRequest
		reason string
	}{
		{
			name:   "insufficient funds",
			req:    model.PaymentRequest{FromID: alice.UserID, ToID: bob.UserID, Amount: decimal.NewFromInt(500)},
			reason: "insufficient funds",
		},
		{
			name:   "unknown account",
			req:    model.PaymentRequest{FromID: "nobody", ToID: bob.UserID, Amount: decimal.NewFromInt(5)},
			reason: "account not found",
		},
		{
			name:   "non-positive amount",
			req:    model.PaymentRequest{FromID: alice.UserID, ToID: bob.UserID, Amount: decimal.Zero},
			reason: "invalid amount",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := svc.Pay(ctx, seal(t, svc, tc.req))
			assert.False(t, result.OK)
			assert.Equal(t, tc.reason, result.Reason)
		})
	}
}

func TestPay_RejectsUndecryptablePayload(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	result := svc.Pay(context.Background(), "!!!not-base64!!!")
	assert.False(t, result.OK)
	assert.Equal(t, "decrypt failed", result.Reason)
}
