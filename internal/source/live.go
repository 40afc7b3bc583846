package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// CaptureDevice is the acquisition collaborator wrapped by a live source.
// Read blocks until a block of captured content is available or the context
// is cancelled. Close releases the device and is called exactly once.
type CaptureDevice interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Live wraps a capture device as a Source. Stopping the source cancels any
// in-flight Read and releases the device.
type Live struct {
	device   CaptureDevice
	metadata Metadata

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	complete atomic.Bool
	sequence atomic.Uint64
	chunkDur time.Duration
}

// NewLive creates a live source over the given capture device.
// chunkDuration is the nominal playback duration of one device read.
func NewLive(device CaptureDevice, metadata Metadata, chunkDuration time.Duration) (*Live, error) {
	if device == nil {
		return nil, fmt.Errorf("capture device cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Live{
		device:   device,
		metadata: metadata,
		ctx:      ctx,
		cancel:   cancel,
		chunkDur: chunkDuration,
	}, nil
}

// ReadChunk returns the next captured block, or ErrEndOfStream once the
// source has been stopped or the device reports exhaustion.
func (l *Live) ReadChunk(ctx context.Context) (*Chunk, error) {
	if l.complete.Load() {
		return nil, ErrEndOfStream
	}

	// Reads observe both the caller's context and the source's own
	// lifetime, so Stop unblocks a waiting read.
	readCtx, cancel := mergeCancel(ctx, l.ctx)
	defer cancel()

	data, err := l.device.Read(readCtx)
	if err != nil {
		if l.complete.Load() || errors.Is(err, context.Canceled) && l.ctx.Err() != nil {
			return nil, ErrEndOfStream
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrEndOfStream) {
			l.Stop()
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("capture read: %w", err)
	}

	return &Chunk{
		Sequence: l.sequence.Add(1) - 1,
		Data:     data,
		Duration: l.chunkDur,
	}, nil
}

// Metadata returns the audio format descriptors for the capture device.
func (l *Live) Metadata() Metadata {
	return l.metadata
}

// Complete reports whether the source has ended.
func (l *Live) Complete() bool {
	return l.complete.Load()
}

// Stop releases the capture device. It is idempotent; after it returns,
// ReadChunk yields ErrEndOfStream.
func (l *Live) Stop() {
	l.stopOnce.Do(func() {
		l.complete.Store(true)
		l.cancel()
		_ = l.device.Close()
	})
}

// mergeCancel returns a context cancelled when either parent is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
