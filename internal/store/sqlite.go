package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skypro1111/live-summary-service/internal/session"
	"github.com/skypro1111/live-summary-service/internal/summary"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

// SQLite is a Store backed by a local SQLite database in WAL mode.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	attendees  TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS segments (
	session_id TEXT NOT NULL,
	idx        INTEGER NOT NULL,
	start_ms   INTEGER NOT NULL,
	end_ms     INTEGER NOT NULL,
	text       TEXT NOT NULL,
	speaker    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (session_id, idx)
);

CREATE TABLE IF NOT EXISTS summaries (
	session_id  TEXT PRIMARY KEY,
	streaming   TEXT NOT NULL DEFAULT '',
	draft       TEXT NOT NULL DEFAULT '',
	done        TEXT NOT NULL DEFAULT '',
	interim     TEXT NOT NULL DEFAULT '',
	summarized  TEXT NOT NULL DEFAULT '',
	last_index  INTEGER NOT NULL DEFAULT -1,
	updated_at  INTEGER NOT NULL
);
`

// OpenSQLite opens (creating if necessary) the snapshot database at path.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveSession upserts the session row.
func (s *SQLite) SaveSession(ctx context.Context, sess session.Session) error {
	attendees, err := json.Marshal(sess.Attendees)
	if err != nil {
		return fmt.Errorf("marshal attendees: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, title, attendees, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			title = excluded.title,
			attendees = excluded.attendees,
			updated_at = excluded.updated_at
	`, sess.ID, string(sess.Status), sess.Title, string(attendees),
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveSegments upserts the given segments in one transaction.
func (s *SQLite) SaveSegments(ctx context.Context, sessionID string, segments []transcript.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO segments (session_id, idx, start_ms, end_ms, text, speaker)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.ExecContext(ctx, sessionID, seg.Index,
			seg.Start.Milliseconds(), seg.End.Milliseconds(), seg.Text, seg.Speaker); err != nil {
			return fmt.Errorf("insert segment %d: %w", seg.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segments: %w", err)
	}
	return nil
}

// SaveSummary upserts the summary state snapshot.
func (s *SQLite) SaveSummary(ctx context.Context, sessionID string, state summary.State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (session_id, streaming, draft, done, interim, summarized, last_index, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			streaming = excluded.streaming,
			draft = excluded.draft,
			done = excluded.done,
			interim = excluded.interim,
			summarized = excluded.summarized,
			last_index = excluded.last_index,
			updated_at = excluded.updated_at
	`, sessionID, state.Streaming, state.Draft, state.Done, state.Interim,
		state.Summarized, state.LastProcessedSegmentIndex, state.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// LoadSession reads the session row, returning ErrNotFound when absent.
func (s *SQLite) LoadSession(ctx context.Context, sessionID string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, title, attendees, created_at, updated_at
		FROM sessions WHERE id = ?
	`, sessionID)

	var sess session.Session
	var status, attendees string
	var createdAt, updatedAt int64

	if err := row.Scan(&sess.ID, &status, &sess.Title, &attendees, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, ErrNotFound
		}
		return session.Session{}, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = session.Status(status)
	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.UpdatedAt = time.UnixMilli(updatedAt)
	if err := json.Unmarshal([]byte(attendees), &sess.Attendees); err != nil {
		return session.Session{}, fmt.Errorf("unmarshal attendees: %w", err)
	}
	return sess, nil
}

// LoadSegments reads all segments for a session in index order.
func (s *SQLite) LoadSegments(ctx context.Context, sessionID string) ([]transcript.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, start_ms, end_ms, text, speaker
		FROM segments WHERE session_id = ?
		ORDER BY idx ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []transcript.Segment
	for rows.Next() {
		var seg transcript.Segment
		var startMS, endMS int64
		if err := rows.Scan(&seg.Index, &startMS, &endMS, &seg.Text, &seg.Speaker); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.Start = time.Duration(startMS) * time.Millisecond
		seg.End = time.Duration(endMS) * time.Millisecond
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// LoadSummary reads the summary snapshot, returning ErrNotFound when absent.
func (s *SQLite) LoadSummary(ctx context.Context, sessionID string) (summary.State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT streaming, draft, done, interim, summarized, last_index, updated_at
		FROM summaries WHERE session_id = ?
	`, sessionID)

	var state summary.State
	var updatedAt int64
	if err := row.Scan(&state.Streaming, &state.Draft, &state.Done, &state.Interim,
		&state.Summarized, &state.LastProcessedSegmentIndex, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return summary.State{}, ErrNotFound
		}
		return summary.State{}, fmt.Errorf("scan summary: %w", err)
	}
	state.UpdatedAt = time.UnixMilli(updatedAt)
	return state, nil
}
