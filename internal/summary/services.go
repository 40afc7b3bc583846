package summary

import "context"

// Cleaner is the transcript cleanup collaborator. Clean normalizes raw
// transcript text (punctuation, casing, filler removal) and may fail on
// timeout or a malformed response; a failed call aborts the current tick.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// Segmenter is the topic segmentation collaborator. Segment splits the
// full draft into an ordered list of topics whose spans cover the draft in
// order. All topics are complete except, at most, a trailing in-progress
// one. Prior topics are passed along so the service keeps topic boundaries
// stable between ticks.
type Segmenter interface {
	Segment(ctx context.Context, draft string, prior []Topic) ([]Topic, error)
}

// Persister writes committed summary state to durable storage. The
// in-memory state stays authoritative when a write fails; the pipeline
// surfaces the failure as a finalization_status event and retries on the
// next committed tick.
type Persister interface {
	SaveSummary(ctx context.Context, sessionID string, state State) error
}
