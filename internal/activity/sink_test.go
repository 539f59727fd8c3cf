package activity

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletworks/concierge/internal/store/sqlite"
)

func TestSink_PersistsEntries(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sink := NewSink(st, 8, zerolog.Nop())
	sink.Log("alice", "purchase", map[string]string{"item_name": "Mouse"})
	sink.Log("alice", "transfer_sent", map[string]string{"amount": "10.00"})
	sink.Close()

	entries, err := st.Activities().ListForUser(context.Background(), "alice", "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	purchases, err := st.Activities().ListForUser(context.Background(), "alice", "purchase")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "Mouse", purchases[0].Details["item_name"])
}

func TestSink_CloseIsIdempotent(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sink := NewSink(st, 8, zerolog.Nop())
	sink.Close()
	sink.Close()
}
