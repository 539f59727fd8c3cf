// Package activity is a fire-and-forget audit sink. Writes are queued on a
// buffered channel and persisted by a background worker; a full buffer drops
// the entry with a warning rather than blocking the money path.
package activity

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/store"
)

// Sink buffers activity entries and writes them asynchronously.
type Sink struct {
	ch    chan model.Activity
	store store.Store
	log   zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewSink starts the background writer.
func NewSink(st store.Store, buffer int, log zerolog.Logger) *Sink {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Sink{
		ch:    make(chan model.Activity, buffer),
		store: st,
		log:   log,
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Log enqueues an entry without blocking. Failures never propagate to the
// caller.
func (s *Sink) Log(userID, activityType string, details map[string]string) {
	entry := model.Activity{UserID: userID, Type: activityType, Details: details}
	select {
	case s.ch <- entry:
	default:
		s.log.Warn().Str("user_id", userID).Str("type", activityType).
			Msg("activity buffer full, entry dropped")
	}
}

// Close stops accepting entries and waits for the queue to drain.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
		<-s.done
	})
}

func (s *Sink) run() {
	defer close(s.done)
	for entry := range s.ch {
		if err := s.store.Activities().Append(context.Background(), &entry); err != nil {
			s.log.Warn().Err(err).Str("user_id", entry.UserID).Msg("activity write failed")
		}
	}
}
