// Package store keeps audit sessions available for polling after the
// initial request returns. Sessions are held in memory with a bounded
// count and a retention window for finished work.
package store

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pardeepdhingra/urllens/models"
)

// ErrStoreFull is returned by Create when the store is at capacity and
// every held session is still running.
var ErrStoreFull = errors.New("store: session capacity reached")

// SessionStore persists audit sessions across the request/poll boundary.
type SessionStore interface {
	// Create registers a new session under session.ID.
	Create(session *models.AuditSession) error
	// Get returns a snapshot of the session. Nested slices and pointers
	// are shared with the live session and must be treated as read-only.
	Get(id string) (*models.AuditSession, bool)
	// Update applies fn to the live session while holding the store
	// lock. It reports whether the session exists.
	Update(id string, fn func(*models.AuditSession)) bool
	// Stats reports held and active session counts.
	Stats() models.SessionStats
}

const sweepInterval = 5 * time.Minute

// MemoryStore is an in-memory SessionStore. Finished sessions are
// swept once their retention window passes; when the store is full,
// Create evicts the oldest finished session to make room.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*models.AuditSession
	ttl         time.Duration
	maxSessions int

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a MemoryStore retaining finished sessions for
// ttl and holding at most maxSessions entries. Non-positive arguments
// fall back to 1 hour and 500. The background sweeper runs until Close.
func NewMemoryStore(ttl time.Duration, maxSessions int) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxSessions <= 0 {
		maxSessions = 500
	}
	s := &MemoryStore{
		sessions:    make(map[string]*models.AuditSession),
		ttl:         ttl,
		maxSessions: maxSessions,
		done:        make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close stops the background sweeper. Held sessions remain readable.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *MemoryStore) Create(session *models.AuditSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.maxSessions && !s.evictOldestFinished() {
		return ErrStoreFull
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) Get(id string) (*models.AuditSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *session
	return &snapshot, true
}

func (s *MemoryStore) Update(id string, fn func(*models.AuditSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(session)
	return true
}

func (s *MemoryStore) Stats() models.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.SessionStats{Total: len(s.sessions), Max: s.maxSessions}
	for _, session := range s.sessions {
		if !session.Status.Terminal() {
			stats.Active++
		}
	}
	return stats
}

// evictOldestFinished removes the finished session with the earliest
// creation time. Caller must hold the write lock.
func (s *MemoryStore) evictOldestFinished() bool {
	var oldestID string
	var oldest time.Time
	for id, session := range s.sessions {
		if !session.Status.Terminal() {
			continue
		}
		if oldestID == "" || session.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = session.CreatedAt
		}
	}
	if oldestID == "" {
		return false
	}
	delete(s.sessions, oldestID)
	slog.Debug("evicted finished session to make room", "session_id", oldestID)
	return true
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now().Add(-s.ttl))
		case <-s.done:
			return
		}
	}
}

// sweep removes finished sessions that completed before cutoff and
// returns how many were removed.
func (s *MemoryStore) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if !session.Status.Terminal() || session.CompletedAt == nil {
			continue
		}
		if session.CompletedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("swept expired sessions", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}
