package source

import (
	"context"
	"errors"
	"time"
)

// ErrEndOfStream is returned by ReadChunk when the source has no further
// content, either because it drained naturally or because it was stopped.
var ErrEndOfStream = errors.New("source: end of stream")

// Chunk is one block of raw session content.
type Chunk struct {
	Sequence uint64
	Data     []byte
	Duration time.Duration
}

// Metadata describes the audio format of a source. It deliberately carries
// no information about which variant produced it.
type Metadata struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Format     string `json:"format"`
}

// Source is the uniform capability contract over any content origin.
//
// ReadChunk suspends until a chunk is available, the source is stopped, or
// the context is cancelled. After Stop, Complete reports true and ReadChunk
// returns ErrEndOfStream within bounded latency.
type Source interface {
	ReadChunk(ctx context.Context) (*Chunk, error)
	Metadata() Metadata
	Complete() bool
	Stop()
}
