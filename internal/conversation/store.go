// Package conversation holds the observable, in-memory chat history.
package conversation

import (
	"errors"
	"sync"

	"github.com/diogo/localchat/internal/models"
)

// ErrBusy is returned when an exchange is already in flight
var ErrBusy = errors.New("a request is already in flight")

// ErrNoTrailingAssistant is returned by ReplaceLast when the newest message
// is not an assistant message
var ErrNoTrailingAssistant = errors.New("last message is not an assistant message")

// Snapshot is an immutable view of the store delivered to subscribers
type Snapshot struct {
	Messages []models.Message
	Busy     bool
}

// Last returns the newest message and whether one exists
func (s Snapshot) Last() (models.Message, bool) {
	if len(s.Messages) == 0 {
		return models.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Listener receives a snapshot after every change
type Listener func(Snapshot)

// Store is an ordered, append-only conversation plus the request-in-flight
// flag. Only the trailing assistant message may be rewritten.
//
// Listeners run synchronously on the mutating goroutine, outside the lock,
// in the order mutations happen. A listener must not mutate the store.
type Store struct {
	mu        sync.RWMutex
	messages  []models.Message
	busy      bool
	listeners map[int]Listener
	nextID    int

	// serializes notification so listeners observe mutations in order
	notifyMu sync.Mutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Append adds msg at the end of the conversation
func (s *Store) Append(msg models.Message) {
	s.mutate(func() error {
		s.messages = append(s.messages, msg)
		return nil
	})
}

// ReplaceLast rewrites the content of the trailing assistant message
func (s *Store) ReplaceLast(content string) error {
	return s.mutate(func() error {
		n := len(s.messages)
		if n == 0 || s.messages[n-1].Role != models.RoleAssistant {
			return ErrNoTrailingAssistant
		}
		s.messages[n-1].Content = content
		return nil
	})
}

// TryBegin sets the busy flag. It returns ErrBusy if the flag is already set.
func (s *Store) TryBegin() error {
	return s.mutate(func() error {
		if s.busy {
			return ErrBusy
		}
		s.busy = true
		return nil
	})
}

// End clears the busy flag
func (s *Store) End() {
	s.mutate(func() error {
		s.busy = false
		return nil
	})
}

// Clear drops every message. It returns ErrBusy while a request is in flight.
func (s *Store) Clear() error {
	return s.mutate(func() error {
		if s.busy {
			return ErrBusy
		}
		s.messages = nil
		return nil
	})
}

// Busy reports whether a request is in flight
func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Len returns the number of messages
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Messages returns a copy of the conversation
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMessages(s.messages)
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Messages: copyMessages(s.messages), Busy: s.busy}
}

// mutate applies fn under the write lock and, if it succeeded, notifies
// listeners with the resulting snapshot
func (s *Store) mutate(fn func() error) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := Snapshot{Messages: copyMessages(s.messages), Busy: s.busy}
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return nil
}

func copyMessages(m []models.Message) []models.Message {
	if m == nil {
		return nil
	}
	out := make([]models.Message, len(m))
	copy(out, m)
	return out
}
