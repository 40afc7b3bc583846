package store

import (
	"context"
	"errors"

	"github.com/skypro1111/live-summary-service/internal/session"
	"github.com/skypro1111/live-summary-service/internal/summary"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

// ErrNotFound is returned when no snapshot exists for a session id.
var ErrNotFound = errors.New("store: session not found")

// Store provides durable snapshot reads and writes. Writes replace the
// stored snapshot for the session; readers always see a committed one.
type Store interface {
	SaveSession(ctx context.Context, sess session.Session) error
	SaveSegments(ctx context.Context, sessionID string, segments []transcript.Segment) error
	SaveSummary(ctx context.Context, sessionID string, state summary.State) error

	LoadSession(ctx context.Context, sessionID string) (session.Session, error)
	LoadSegments(ctx context.Context, sessionID string) ([]transcript.Segment, error)
	LoadSummary(ctx context.Context, sessionID string) (summary.State, error)

	Close() error
}
