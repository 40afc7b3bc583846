package store

import (
	"context"
	"sync"

	"github.com/skypro1111/live-summary-service/internal/session"
	"github.com/skypro1111/live-summary-service/internal/summary"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

// Memory is an in-process Store used in tests and as a fallback when no
// database path is configured.
type Memory struct {
	mu        sync.RWMutex
	sessions  map[string]session.Session
	segments  map[string][]transcript.Segment
	summaries map[string]summary.State
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]session.Session),
		segments:  make(map[string][]transcript.Segment),
		summaries: make(map[string]summary.State),
	}
}

func (m *Memory) SaveSession(_ context.Context, sess session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *Memory) SaveSegments(_ context.Context, sessionID string, segments []transcript.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.segments[sessionID]
	for _, seg := range segments {
		for len(existing) <= seg.Index {
			existing = append(existing, transcript.Segment{})
		}
		existing[seg.Index] = seg
	}
	m.segments[sessionID] = existing
	return nil
}

func (m *Memory) SaveSummary(_ context.Context, sessionID string, state summary.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[sessionID] = state
	return nil
}

func (m *Memory) LoadSession(_ context.Context, sessionID string) (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return session.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *Memory) LoadSegments(_ context.Context, sessionID string) ([]transcript.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]transcript.Segment, len(m.segments[sessionID]))
	copy(out, m.segments[sessionID])
	return out, nil
}

func (m *Memory) LoadSummary(_ context.Context, sessionID string) (summary.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.summaries[sessionID]
	if !ok {
		return summary.State{}, ErrNotFound
	}
	return state, nil
}

func (m *Memory) Close() error {
	return nil
}
