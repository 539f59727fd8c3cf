// Package pending holds the per-user single-slot pending-action state and
// the per-user locks that serialize message handling. Both live in memory
// only; a process restart clears every slot.
package pending

import (
	"sync"

	"github.com/walletworks/concierge/internal/model"
)

// Register keeps at most one pending action per user. Set overwrites
// silently; GetAndClear consumes the slot so a confirmation executes at most
// once.
type Register struct {
	mu    sync.Mutex
	slots map[string]model.PendingAction
	locks map[string]*sync.Mutex
}

func NewRegister() *Register {
	return &Register{
		slots: make(map[string]model.PendingAction),
		locks: make(map[string]*sync.Mutex),
	}
}

// Set stores the action as the user's pending slot, replacing any previous
// one.
func (r *Register) Set(userID string, action model.PendingAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[userID] = action
}

// GetAndClear removes and returns the user's pending action. The second
// return is false when no action was pending.
func (r *Register) GetAndClear(userID string) (model.PendingAction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	action, ok := r.slots[userID]
	if ok {
		delete(r.slots, userID)
	}
	return action, ok
}

// Has reports whether the user has a pending action.
func (r *Register) Has(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[userID]
	return ok
}

// Clear drops the user's pending action, if any.
func (r *Register) Clear(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, userID)
}

// LockUser acquires the user's serialization lock. Two concurrent messages
// from the same user must not interleave their check-pending/execute/clear
// sequences; messages from different users never contend.
func (r *Register) LockUser(userID string) {
	r.userMutex(userID).Lock()
}

// UnlockUser releases the user's serialization lock.
func (r *Register) UnlockUser(userID string) {
	r.userMutex(userID).Unlock()
}

func (r *Register) userMutex(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		r.locks[userID] = m
	}
	return m
}
