package intent

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletworks/concierge/internal/model"
)

// fakeDirectory resolves name prefixes against a fixed user list, first match
// wins.
type fakeDirectory struct {
	users []*model.User
}

func (d *fakeDirectory) FindByNamePrefix(_ context.Context, prefix string) (*model.User, error) {
	for _, u := range d.users {
		if len(prefix) <= len(u.Name) && strings.EqualFold(u.Name[:len(prefix)], prefix) {
			return u, nil
		}
	}
	return nil, model.ErrNotFound
}

func newTestParser() *Parser {
	return NewParser(&fakeDirectory{users: []*model.User{
		{UserID: "u-bob", Name: "Bob", Phone: "+10000000002"},
		{UserID: "u-bobby", Name: "Bobby", Phone: "+10000000007"},
		{UserID: "u-carol", Name: "Carol", Phone: "+10000000003"},
	}})
}

func TestParse_Confirm(t *testing.T) {
	p := newTestParser()
	for _, msg := range []string{"yes", "Yes, please", "confirm", "ok", "sure, do it", "go ahead"} {
		in := p.Parse(context.Background(), msg)
		assert.Equal(t, KindConfirm, in.Kind, "message %q", msg)
	}
}

func TestParse_ConfirmTokensRequireWordBoundaries(t *testing.T) {
	p := newTestParser()

	// "looking" contains "ok" and must not be read as a confirmation.
	in := p.Parse(context.Background(), "looking for a mouse")
	assert.Equal(t, KindBuy, in.Kind)
	assert.Equal(t, "a mouse", in.Item)

	in = p.Parse(context.Background(), "okay then")
	assert.NotEqual(t, KindConfirm, in.Kind)
}

func TestParse_Buy(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		msg       string
		item      string
		maxPrice  string
		minRating float64
	}{
		{msg: "buy me a mouse", item: "me a mouse"},
		{msg: "buy mouse under $40", item: "mouse under", maxPrice: "40"},
		{msg: "I want headphones for $100", item: "i headphones", maxPrice: "100"},
		{msg: "order a keyboard rated above 4", item: "a keyboard", minRating: 4},
		{msg: "purchase a webcam", item: "a webcam"},
	}
	for _, tc := range tests {
		t.Run(tc.msg, func(t *testing.T) {
			in := p.Parse(context.Background(), tc.msg)
			require.Equal(t, KindBuy, in.Kind)
			assert.Equal(t, tc.item, in.Item)
			if tc.maxPrice == "" {
				assert.Nil(t, in.MaxPrice)
			} else {
				require.NotNil(t, in.MaxPrice)
				assert.True(t, in.MaxPrice.Equal(decimal.RequireFromString(tc.maxPrice)))
			}
			if tc.minRating == 0 {
				assert.Nil(t, in.MinRating)
			} else {
				require.NotNil(t, in.MinRating)
				assert.Equal(t, tc.minRating, *in.MinRating)
			}
		})
	}
}

func TestParse_BuyWithEmptyItemFallsThrough(t *testing.T) {
	p := newTestParser()
	in := p.Parse(context.Background(), "buy")
	assert.Equal(t, KindUnknown, in.Kind)
}

func TestParse_TransferByPhone(t *testing.T) {
	p := newTestParser()
	in := p.Parse(context.Background(), "send $50 to +10000000002")
	require.Equal(t, KindTransfer, in.Kind)
	assert.Equal(t, "+10000000002", in.ToPhone)
	assert.True(t, in.Amount.Equal(decimal.NewFromInt(50)))
}

func TestParse_TransferByName(t *testing.T) {
	p := newTestParser()

	in := p.Parse(context.Background(), "transfer $30 to Bob")
	require.Equal(t, KindTransfer, in.Kind)
	assert.Equal(t, "+10000000002", in.ToPhone)
	assert.True(t, in.Amount.Equal(decimal.NewFromInt(30)))

	// Prefix resolution: first match in directory order.
	in = p.Parse(context.Background(), "send $10 to bo")
	require.Equal(t, KindTransfer, in.Kind)
	assert.Equal(t, "+10000000002", in.ToPhone)
}

func TestParse_TransferPhoneDigitsNotMistakenForAmount(t *testing.T) {
	p := newTestParser()
	in := p.Parse(context.Background(), "send $150 to +10000000002")
	require.Equal(t, KindTransfer, in.Kind)
	assert.True(t, in.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "+10000000002", in.ToPhone)
}

func TestParse_TransferUnresolvableRecipient(t *testing.T) {
	p := newTestParser()

	// A transfer keyword with an amount but no resolvable recipient is not a
	// transfer.
	in := p.Parse(context.Background(), "send $10 to zorro")
	assert.NotEqual(t, KindTransfer, in.Kind)
}

func TestParse_Balance(t *testing.T) {
	p := newTestParser()
	for _, msg := range []string{"check balance", "what's my balance", "how much money do I have", "wallet"} {
		in := p.Parse(context.Background(), msg)
		assert.Equal(t, KindBalance, in.Kind, "message %q", msg)
	}
}

func TestParse_Unknown(t *testing.T) {
	p := newTestParser()
	for _, msg := range []string{"hello there", "", "weather tomorrow?"} {
		in := p.Parse(context.Background(), msg)
		assert.Equal(t, KindUnknown, in.Kind, "message %q", msg)
	}
}

func TestParse_PriorityConfirmOverBuy(t *testing.T) {
	p := newTestParser()
	in := p.Parse(context.Background(), "yes buy it")
	assert.Equal(t, KindConfirm, in.Kind)
}
