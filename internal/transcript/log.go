package transcript

import (
	"sync"
	"time"
)

// Segment represents one transcribed span of the session audio.
// Segments are immutable once appended to the log.
type Segment struct {
	Index   int           `json:"index"`
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
	Text    string        `json:"text"`
	Speaker string        `json:"speaker,omitempty"`
}

// Log is an append-only segment log for a single session. One writer (the
// transcription driver) appends; any number of readers take snapshots.
type Log struct {
	segments []Segment
	mu       sync.RWMutex
}

// NewLog creates an empty segment log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a segment to the log and returns its assigned index.
// The caller-provided Index field is overwritten; indices are assigned
// strictly in arrival order.
func (l *Log) Append(seg Segment) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	seg.Index = len(l.segments)
	l.segments = append(l.segments, seg)
	return seg.Index
}

// Since returns copies of all segments with index strictly greater than after.
func (l *Log) Since(after int) []Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if after >= len(l.segments)-1 {
		return nil
	}
	start := after + 1
	if start < 0 {
		start = 0
	}
	out := make([]Segment, len(l.segments)-start)
	copy(out, l.segments[start:])
	return out
}

// Snapshot returns a copy of the full log.
func (l *Log) Snapshot() []Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}

// Len returns the number of appended segments.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.segments)
}

// LastIndex returns the index of the most recently appended segment,
// or -1 when the log is empty.
func (l *Log) LastIndex() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.segments) - 1
}
