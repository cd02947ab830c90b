package maps

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrTokenUnavailable marks a details lookup made without a live session
// token. It is only ever logged: the lookup still goes ahead, billed on its own.
var ErrTokenUnavailable = errors.New("autocomplete session token missing")

// SessionToken groups a run of autocomplete requests and the details lookup
// that ends it. Tokens are compared by identity.
type SessionToken struct {
	id string
}

func (t *SessionToken) String() string {
	if t == nil {
		return ""
	}
	return t.id
}

// Sessions holds at most one live SessionToken.
type Sessions struct {
	mu      sync.Mutex
	current *SessionToken
	newID   func() string
}

func NewSessions() *Sessions {
	return &Sessions{newID: uuid.NewString}
}

// GetOrCreate returns the live token, creating one if none is live.
func (s *Sessions) GetOrCreate() *SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.current = &SessionToken{id: s.newID()}
	}
	return s.current
}

// Current returns the live token or nil.
func (s *Sessions) Current() *SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// RetireIfCurrent clears the live token only if it is t. It reports whether
// t was retired; a token that has already been replaced is left alone.
func (s *Sessions) RetireIfCurrent(t *SessionToken) bool {
	if t == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != t {
		return false
	}
	s.current = nil
	return true
}

// Invalidate clears the live token unconditionally.
func (s *Sessions) Invalidate() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}
