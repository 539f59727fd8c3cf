package api

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Sessions is an in-memory token -> user map. Tokens are opaque UUIDs issued
// at login; nothing here survives a restart.
type Sessions struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]string)}
}

// Issue creates a fresh token for the user.
func (s *Sessions) Issue(userID string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.m[token] = userID
	s.mu.Unlock()
	return token
}

// Resolve maps a token to its user id.
func (s *Sessions) Resolve(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.m[token]
	return userID, ok
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
