package source

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Replay serves a pre-recorded sequence of chunks, pacing delivery to
// simulate real-time capture. Stop cancels a pacing delay immediately, so
// ReadChunk returns end-of-stream well inside one second regardless of how
// much simulated duration remains.
type Replay struct {
	chunks   []Chunk
	metadata Metadata
	pace     bool

	next     atomic.Int64
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewReplay creates a replay source over pre-recorded chunks. When pace is
// true, each ReadChunk waits out the chunk's duration before returning it.
func NewReplay(chunks []Chunk, metadata Metadata, pace bool) *Replay {
	copied := make([]Chunk, len(chunks))
	copy(copied, chunks)
	for i := range copied {
		copied[i].Sequence = uint64(i)
	}

	return &Replay{
		chunks:   copied,
		metadata: metadata,
		pace:     pace,
		stopped:  make(chan struct{}),
	}
}

// ReadChunk returns the next recorded chunk after its simulated delay, or
// ErrEndOfStream once the recording is exhausted or the source stopped.
func (r *Replay) ReadChunk(ctx context.Context) (*Chunk, error) {
	select {
	case <-r.stopped:
		return nil, ErrEndOfStream
	default:
	}

	idx := r.next.Load()
	if idx >= int64(len(r.chunks)) {
		return nil, ErrEndOfStream
	}
	chunk := r.chunks[idx]

	if r.pace && chunk.Duration > 0 {
		timer := time.NewTimer(chunk.Duration)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-r.stopped:
			return nil, ErrEndOfStream
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.next.Store(idx + 1)
	return &chunk, nil
}

// Metadata returns the recorded audio format descriptors.
func (r *Replay) Metadata() Metadata {
	return r.metadata
}

// Complete reports whether the recording is exhausted or stopped.
func (r *Replay) Complete() bool {
	select {
	case <-r.stopped:
		return true
	default:
	}
	return r.next.Load() >= int64(len(r.chunks))
}

// Stop cancels playback. It is idempotent and unblocks any in-flight
// pacing delay.
func (r *Replay) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopped)
	})
}
