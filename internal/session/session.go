package session

import (
	"sync"
	"time"
)

// Status represents the lifecycle state of a recording session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the session has reached a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Session represents one recording-to-completion unit being processed.
type Session struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Title     string    `json:"title,omitempty"`
	Attendees []string  `json:"attendees,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	mu sync.RWMutex
}

// New creates a session in the idle state.
func New(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus transitions the session to the given state. Transitions out of a
// terminal state are ignored so a late failure cannot overwrite completion.
func (s *Session) SetStatus(status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status.Terminal() {
		return false
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return true
}

// GetStatus returns the current lifecycle state.
func (s *Session) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// SetTitle updates the session title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Title = title
	s.UpdatedAt = time.Now()
}

// SetAttendees replaces the attendee list.
func (s *Session) SetAttendees(attendees []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attendees = append([]string(nil), attendees...)
	s.UpdatedAt = time.Now()
}

// Snapshot returns a copy safe to serialize without holding the lock.
func (s *Session) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Session{
		ID:        s.ID,
		Status:    s.Status,
		Title:     s.Title,
		Attendees: append([]string(nil), s.Attendees...),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
