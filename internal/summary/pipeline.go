package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skypro1111/live-summary-service/internal/bus"
	"github.com/skypro1111/live-summary-service/internal/metrics"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

const (
	defaultServiceTimeout = 30 * time.Second
)

// Config contains the collaborators and tuning for one session pipeline.
type Config struct {
	SessionID string
	Log       *transcript.Log
	Bus       *bus.Bus
	Cleaner   Cleaner
	Segmenter Segmenter
	Tokenizer SentenceTokenizer // defaults to TerminalPunctuationTokenizer
	Persister Persister         // optional
	Metrics   *metrics.Metrics  // optional
	Logger    *slog.Logger

	CleanupTimeout      time.Duration // defaults to 30s
	SegmentationTimeout time.Duration // defaults to 30s
}

// Pipeline runs the summary state machine for a single session. All five
// buffers are owned by the pipeline; buffer transitions are committed under
// one lock so observers never see a partial move.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger

	// tickMu serializes ticks. Periodic ticks use TryLock and are skipped
	// when one is in flight; the mandatory final tick waits.
	tickMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	prior   []Topic
}

// NewPipeline creates the summary pipeline for a session.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("transcript log cannot be nil")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("event bus cannot be nil")
	}
	if cfg.Cleaner == nil || cfg.Segmenter == nil {
		return nil, fmt.Errorf("cleaner and segmenter are required")
	}
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = TerminalPunctuationTokenizer{}
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = defaultServiceTimeout
	}
	if cfg.SegmentationTimeout <= 0 {
		cfg.SegmentationTimeout = defaultServiceTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		state:  NewState(),
	}, nil
}

// Snapshot returns a copy of the current summary state.
func (p *Pipeline) Snapshot() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// RestoreState seeds the pipeline with previously persisted state. Intended
// for cold starts, before any tick has run.
func (p *Pipeline) RestoreState(state State) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.state = state
}

// Tick runs one pass of the summarization algorithm. If another tick for
// this session is still running the request is skipped entirely, never
// queued; the summary may lag one cycle but is never built from
// interleaved state.
func (p *Pipeline) Tick(ctx context.Context) error {
	if !p.tickMu.TryLock() {
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.TicksSkipped.Inc()
		}
		p.logger.Debug("Tick skipped, previous tick still running",
			slog.String("session_id", p.cfg.SessionID),
		)
		return nil
	}
	defer p.tickMu.Unlock()

	return p.runTick(ctx)
}

// FinalTick runs the mandatory tick triggered by the transition to
// completed. Unlike Tick it waits for an in-flight tick to finish rather
// than skipping.
func (p *Pipeline) FinalTick(ctx context.Context) error {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	return p.runTick(ctx)
}

func (p *Pipeline) runTick(ctx context.Context) error {
	started := time.Now()

	// Step 1: absorb new segments into streaming. This commits regardless
	// of later failures; the watermark only ever advances.
	p.stateMu.Lock()
	if segs := p.cfg.Log.Since(p.state.LastProcessedSegmentIndex); len(segs) > 0 {
		p.state.Streaming = joinText(p.state.Streaming, segmentText(segs))
		p.state.LastProcessedSegmentIndex = segs[len(segs)-1].Index
		p.state.UpdatedAt = time.Now()
	}
	streaming := p.state.Streaming
	p.stateMu.Unlock()

	// Step 2: take the maximal whole-sentence prefix. The split stays
	// local until cleanup succeeds, so an aborted tick retries the same
	// prefix next time.
	extracted, remainder := p.cfg.Tokenizer.Extract(streaming)
	if extracted == "" {
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.TicksNoop.Inc()
		}
		return nil
	}

	// Step 3: cleanup.
	cleanCtx, cancel := context.WithTimeout(ctx, p.cfg.CleanupTimeout)
	cleaned, err := p.cfg.Cleaner.Clean(cleanCtx, extracted)
	cancel()
	if err != nil {
		p.abortTick("cleanup", err)
		return fmt.Errorf("cleanup failed: %w", err)
	}

	// Step 4: commit the extraction and the cleaned append. This part of
	// the tick is retained even if segmentation fails below.
	p.stateMu.Lock()
	p.state.Streaming = remainder
	p.state.Draft = joinText(p.state.Draft, cleaned)
	p.state.UpdatedAt = time.Now()
	draft := p.state.Draft
	p.stateMu.Unlock()

	// Step 5: topic segmentation over the full draft.
	p.cfg.Bus.Publish(bus.EventSummaryStart, nil)

	segCtx, cancel := context.WithTimeout(ctx, p.cfg.SegmentationTimeout)
	topics, err := p.cfg.Segmenter.Segment(segCtx, draft, p.priorTopics())
	cancel()
	if err != nil {
		p.abortTick("segmentation", err)
		return fmt.Errorf("segmentation failed: %w", err)
	}

	// Steps 6 and 7 are computed on locals and committed in one critical
	// section: the draft→done and interim→summarized moves land together
	// or not at all.
	newDraft := draft
	var doneAppend, summarizedAppend []string
	interim := ""

	for i, topic := range topics {
		if !topic.Complete {
			if i != len(topics)-1 {
				err := fmt.Errorf("incomplete topic at position %d of %d", i, len(topics))
				p.abortTick("segmentation", err)
				return err
			}
			interim = topic.Summary
			break
		}

		rest, ok := stripSpan(newDraft, topic.Span)
		if !ok {
			err := fmt.Errorf("topic span is not a prefix of the draft")
			p.abortTick("segmentation", err)
			return err
		}
		newDraft = rest
		doneAppend = append(doneAppend, topic.Span)
		summarizedAppend = append(summarizedAppend, topic.Summary)
	}

	p.stateMu.Lock()
	p.state.Draft = newDraft
	for _, span := range doneAppend {
		p.state.Done = joinText(p.state.Done, span)
	}
	for _, sum := range summarizedAppend {
		p.state.Summarized = joinText(p.state.Summarized, sum)
	}
	p.state.Interim = interim
	p.state.UpdatedAt = time.Now()
	p.prior = append([]Topic(nil), topics...)
	committed := p.state
	p.stateMu.Unlock()

	p.publishCommitted(committed, len(summarizedAppend) > 0)
	p.persist(ctx, committed)

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordTick(time.Since(started).Seconds())
	}
	p.logger.Debug("Summary tick committed",
		slog.String("session_id", p.cfg.SessionID),
		slog.Int("topics", len(topics)),
		slog.Int("finalized_topics", len(summarizedAppend)),
		slog.Int("last_segment_index", committed.LastProcessedSegmentIndex),
		slog.Duration("duration", time.Since(started)),
	)
	return nil
}

func (p *Pipeline) abortTick(stage string, err error) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.TicksAborted.Inc()
	}
	p.logger.Warn("Summary tick aborted, buffers unchanged for this stage",
		slog.String("session_id", p.cfg.SessionID),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

func (p *Pipeline) priorTopics() []Topic {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return append([]Topic(nil), p.prior...)
}

func (p *Pipeline) publishCommitted(state State, finalizedGrew bool) {
	if state.Interim != "" {
		p.cfg.Bus.Publish(bus.EventSummaryToken, bus.SummaryTokenPayload{
			AccumulatedText: state.Interim,
		})
	}
	if finalizedGrew {
		p.cfg.Bus.Publish(bus.EventSummaryComplete, bus.SummaryCompletePayload{
			FinalText: state.Summarized,
		})
	}
	p.cfg.Bus.Publish(bus.EventMeetingUpdated, nil)
}

func (p *Pipeline) persist(ctx context.Context, state State) {
	if p.cfg.Persister == nil {
		return
	}

	err := p.cfg.Persister.SaveSummary(ctx, p.cfg.SessionID, state)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordStoreWrite(err)
	}
	if err != nil {
		// In-memory state stays authoritative; the next committed tick
		// writes the newer snapshot anyway.
		p.logger.Warn("Summary snapshot write failed",
			slog.String("session_id", p.cfg.SessionID),
			slog.String("error", err.Error()),
		)
		p.cfg.Bus.PublishError(bus.EventFinalizationStatus,
			fmt.Sprintf("summary snapshot write failed: %v", err))
	}
}

// segmentText joins segment texts in arrival order.
func segmentText(segs []transcript.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// joinText appends b to a with a single separating space.
func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// stripSpan removes span from the front of text, tolerating surrounding
// whitespace. Returns false when span is not a prefix.
func stripSpan(text, span string) (string, bool) {
	trimmedText := strings.TrimSpace(text)
	trimmedSpan := strings.TrimSpace(span)
	if trimmedSpan == "" {
		return trimmedText, true
	}
	if !strings.HasPrefix(trimmedText, trimmedSpan) {
		return "", false
	}
	return strings.TrimLeft(trimmedText[len(trimmedSpan):], " \t\n"), true
}
