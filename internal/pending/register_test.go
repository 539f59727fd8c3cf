package pending

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletworks/concierge/internal/model"
)

func transferAction(amount int64) model.PendingAction {
	return model.PendingAction{
		Kind:    model.PendingTransfer,
		ToPhone: "+10000000002",
		Amount:  decimal.NewFromInt(amount),
	}
}

func TestRegister_SetAndConsume(t *testing.T) {
	r := NewRegister()
	require.False(t, r.Has("alice"))

	r.Set("alice", transferAction(50))
	require.True(t, r.Has("alice"))

	action, ok := r.GetAndClear("alice")
	require.True(t, ok)
	assert.Equal(t, model.PendingTransfer, action.Kind)
	assert.True(t, action.Amount.Equal(decimal.NewFromInt(50)))

	// The slot is consumed; a second read finds nothing.
	_, ok = r.GetAndClear("alice")
	assert.False(t, ok)
	assert.False(t, r.Has("alice"))
}

func TestRegister_SetOverwrites(t *testing.T) {
	r := NewRegister()
	r.Set("alice", transferAction(50))
	r.Set("alice", transferAction(75))

	action, ok := r.GetAndClear("alice")
	require.True(t, ok)
	assert.True(t, action.Amount.Equal(decimal.NewFromInt(75)))
}

func TestRegister_Clear(t *testing.T) {
	r := NewRegister()
	r.Set("alice", transferAction(50))
	r.Clear("alice")
	assert.False(t, r.Has("alice"))

	// Clearing an empty slot is a no-op.
	r.Clear("alice")
}

func TestRegister_SlotsAreIsolatedPerUser(t *testing.T) {
	r := NewRegister()
	r.Set("alice", transferAction(50))
	assert.False(t, r.Has("bob"))

	_, ok := r.GetAndClear("bob")
	assert.False(t, ok)
	assert.True(t, r.Has("alice"))
}

func TestRegister_ConcurrentConsumeExactlyOnce(t *testing.T) {
	r := NewRegister()
	r.Set("alice", transferAction(50))

	var consumed int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.LockUser("alice")
			defer r.UnlockUser("alice")
			if _, ok := r.GetAndClear("alice"); ok {
				atomic.AddInt64(&consumed, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), consumed)
}
