// Package session holds the per-user conversation state. The store is
// a pure state container: no I/O, all access behind one mutex. A user
// has at most one live session at a time.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"transitlab-bot/internal/survey"
)

// Session is the full state of one user's in-progress dialogue. Flow
// fields start empty and are populated monotonically; only an explicit
// cancel (which removes the whole session) rolls anything back.
type Session struct {
	ID       string // opaque token, stable for the flow's duration
	UserID   int64
	Username string

	Step     Step
	LastStep Step // saved on cancel-prompt entry, restored on deny

	VehicleType string
	Source      string
	Destination string
	Fare        string
	Condition   string
	Track       *survey.TrackData // present only after ingestion

	UpdatedAt time.Time
}

type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Get returns a snapshot of the user's live session. Mutations must go
// through Update so they happen under the store lock.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// CreateOrReset starts a brand-new session for the user, replacing any
// live one. A fresh session id is generated each time.
func (s *Store) CreateOrReset(userID int64, username string, step Step) Session {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Step:      step,
		UpdatedAt: s.now(),
	}
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
	return *sess
}

// Update applies fn to the user's live session under the store lock.
// Returns false (fn not called) when the user has no session.
func (s *Store) Update(userID int64, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return false
	}
	fn(sess)
	sess.UpdatedAt = s.now()
	return true
}

// Remove destroys the user's session. Subsequent Gets return absent
// until a new CreateOrReset.
func (s *Store) Remove(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than ttl and reports how many
// were dropped. A ttl of zero disables sweeping.
func (s *Store) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
