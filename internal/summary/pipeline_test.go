package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypro1111/live-summary-service/internal/bus"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

// fakeCleaner returns its input unchanged unless told to fail or block.
type fakeCleaner struct {
	calls   atomic.Int32
	fail    atomic.Bool
	release chan struct{} // when non-nil, Clean blocks until closed
}

func (c *fakeCleaner) Clean(ctx context.Context, text string) (string, error) {
	c.calls.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.fail.Load() {
		return "", errors.New("cleanup service unavailable")
	}
	return text, nil
}

// fakeSegmenter replays a scripted response per call.
type fakeSegmenter struct {
	calls  atomic.Int32
	fail   atomic.Bool
	script func(draft string, prior []Topic) []Topic
}

func (s *fakeSegmenter) Segment(ctx context.Context, draft string, prior []Topic) ([]Topic, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return nil, errors.New("segmentation service unavailable")
	}
	if s.script == nil {
		// Default: one trailing in-progress topic covering the whole draft.
		return []Topic{{Span: draft, Summary: "summary of: " + draft, Complete: false}}, nil
	}
	return s.script(draft, prior), nil
}

type testFixture struct {
	log       *transcript.Log
	bus       *bus.Bus
	cleaner   *fakeCleaner
	segmenter *fakeSegmenter
	pipeline  *Pipeline
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	f := &testFixture{
		log:       transcript.NewLog(),
		bus:       bus.New("sess-1", logger),
		cleaner:   &fakeCleaner{},
		segmenter: &fakeSegmenter{},
	}

	pipeline, err := NewPipeline(Config{
		SessionID: "sess-1",
		Log:       f.log,
		Bus:       f.bus,
		Cleaner:   f.cleaner,
		Segmenter: f.segmenter,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	f.pipeline = pipeline

	t.Cleanup(f.bus.Close)
	return f
}

func (f *testFixture) appendText(texts ...string) {
	for _, text := range texts {
		f.log.Append(transcript.Segment{Text: text})
	}
}

func TestTickNoopWithoutCompleteSentence(t *testing.T) {
	f := newFixture(t)
	f.appendText("and then we decided to")

	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if f.cleaner.calls.Load() != 0 || f.segmenter.calls.Load() != 0 {
		t.Errorf("Expected zero external calls, got cleaner=%d segmenter=%d",
			f.cleaner.calls.Load(), f.segmenter.calls.Load())
	}

	state := f.pipeline.Snapshot()
	if state.Streaming != "and then we decided to" {
		t.Errorf("Expected partial tail absorbed into streaming, got %q", state.Streaming)
	}
	if state.Draft != "" || state.Done != "" || state.Interim != "" || state.Summarized != "" {
		t.Errorf("Expected other buffers empty, got %+v", state)
	}
	if state.LastProcessedSegmentIndex != 0 {
		t.Errorf("Expected watermark 0, got %d", state.LastProcessedSegmentIndex)
	}
}

func TestTickEmptyLogIsNoop(t *testing.T) {
	f := newFixture(t)

	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if f.cleaner.calls.Load() != 0 || f.segmenter.calls.Load() != 0 {
		t.Error("Expected zero external calls on empty log")
	}
	if state := f.pipeline.Snapshot(); state.LastProcessedSegmentIndex != -1 {
		t.Errorf("Expected watermark -1, got %d", state.LastProcessedSegmentIndex)
	}
}

func TestTickExtractsWholeSentencePrefix(t *testing.T) {
	f := newFixture(t)
	f.appendText("We talked about budget.", "And timeline is")

	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	state := f.pipeline.Snapshot()
	if state.Streaming != "And timeline is" {
		t.Errorf("Expected partial sentence left in streaming, got %q", state.Streaming)
	}
	if state.Draft != "We talked about budget." {
		t.Errorf("Expected cleaned sentence in draft, got %q", state.Draft)
	}
	if state.Interim != "summary of: We talked about budget." {
		t.Errorf("Unexpected interim summary: %q", state.Interim)
	}
}

func TestTickCleanupFailureLeavesBuffersUntouched(t *testing.T) {
	f := newFixture(t)
	f.appendText("First sentence. Partial tail")
	f.cleaner.fail.Store(true)

	if err := f.pipeline.Tick(context.Background()); err == nil {
		t.Fatal("Expected tick error on cleanup failure")
	}

	state := f.pipeline.Snapshot()
	if state.Streaming != "First sentence. Partial tail" {
		t.Errorf("Expected streaming unchanged after abort, got %q", state.Streaming)
	}
	if state.Draft != "" {
		t.Errorf("Expected draft unchanged after abort, got %q", state.Draft)
	}
	if f.segmenter.calls.Load() != 0 {
		t.Error("Segmenter must not be called when cleanup fails")
	}

	// The extracted prefix is retried next tick.
	f.cleaner.fail.Store(false)
	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("Retry tick failed: %v", err)
	}
	state = f.pipeline.Snapshot()
	if state.Draft != "First sentence." || state.Streaming != "Partial tail" {
		t.Errorf("Retry did not process extracted prefix: draft=%q streaming=%q",
			state.Draft, state.Streaming)
	}
}

func TestTickSegmentationFailureRetainsCleanedDraft(t *testing.T) {
	f := newFixture(t)
	f.appendText("First sentence.")
	f.segmenter.fail.Store(true)

	if err := f.pipeline.Tick(context.Background()); err == nil {
		t.Fatal("Expected tick error on segmentation failure")
	}

	state := f.pipeline.Snapshot()
	if state.Draft != "First sentence." {
		t.Errorf("Expected cleaned append retained, got draft=%q", state.Draft)
	}
	if state.Streaming != "" {
		t.Errorf("Expected streaming drained, got %q", state.Streaming)
	}
	if state.Done != "" || state.Interim != "" || state.Summarized != "" {
		t.Errorf("Expected topic buffers unchanged, got %+v", state)
	}
}

func TestTickCompleteTopicMovesPairwise(t *testing.T) {
	f := newFixture(t)
	f.appendText("Budget is fine. Timeline slips one week.")
	f.segmenter.script = func(draft string, prior []Topic) []Topic {
		return []Topic{
			{Span: "Budget is fine.", Summary: "Budget approved.", Complete: true},
			{Span: "Timeline slips one week.", Summary: "Timeline delayed.", Complete: false},
		}
	}

	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	state := f.pipeline.Snapshot()
	if state.Done != "Budget is fine." {
		t.Errorf("Expected finalized span in done, got %q", state.Done)
	}
	if strings.Contains(state.Draft, "Budget is fine.") {
		t.Errorf("Finalized span still present in draft: %q", state.Draft)
	}
	if state.Draft != "Timeline slips one week." {
		t.Errorf("Expected trailing span left in draft, got %q", state.Draft)
	}
	if state.Summarized != "Budget approved." {
		t.Errorf("Expected finalized summary in summarized, got %q", state.Summarized)
	}
	if state.Interim != "Timeline delayed." {
		t.Errorf("Expected only trailing summary in interim, got %q", state.Interim)
	}
}

func TestInterimReplacedNotAppended(t *testing.T) {
	f := newFixture(t)

	f.appendText("We started with introductions.")
	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("First tick failed: %v", err)
	}
	first := f.pipeline.Snapshot().Interim

	f.appendText("Then we reviewed the roadmap.")
	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("Second tick failed: %v", err)
	}
	second := f.pipeline.Snapshot().Interim

	if first == "" {
		t.Fatal("Expected non-empty interim after first tick")
	}
	want := "summary of: We started with introductions. Then we reviewed the roadmap."
	if second != want {
		t.Errorf("Expected interim %q, got %q", want, second)
	}
}

func TestTranscriptReconstruction(t *testing.T) {
	// With an identity cleaner, done + draft + streaming reconstructs the
	// full received transcript with nothing duplicated or dropped.
	f := newFixture(t)
	f.segmenter.script = func(draft string, prior []Topic) []Topic {
		// Finalize everything up to the first sentence boundary; the rest
		// stays as the trailing in-progress topic.
		idx := strings.Index(draft, ". ")
		if idx < 0 {
			return []Topic{{Span: draft, Summary: "s", Complete: false}}
		}
		return []Topic{
			{Span: draft[:idx+1], Summary: "s1", Complete: true},
			{Span: draft[idx+2:], Summary: "s2", Complete: false},
		}
	}

	texts := []string{
		"Alpha point one.",
		"Beta point two.",
		"Gamma point",
	}
	for i, text := range texts {
		f.appendText(text)
		if err := f.pipeline.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d failed: %v", i, err)
		}
	}

	state := f.pipeline.Snapshot()
	got := strings.Join([]string{state.Done, state.Draft, state.Streaming}, " ")
	got = strings.Join(strings.Fields(got), " ")
	want := strings.Join(texts, " ")
	if got != want {
		t.Errorf("Reconstruction mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestConcurrentTickSkipped(t *testing.T) {
	f := newFixture(t)
	f.appendText("First sentence. tail")
	f.cleaner.release = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.pipeline.Tick(context.Background()); err != nil {
			t.Errorf("Blocked tick failed: %v", err)
		}
	}()

	// Wait until the first tick is inside the cleanup call.
	deadline := time.Now().Add(time.Second)
	for f.cleaner.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("First tick never reached cleanup")
		}
		time.Sleep(time.Millisecond)
	}

	// The second tick must be skipped entirely, not queued.
	if err := f.pipeline.Tick(context.Background()); err != nil {
		t.Errorf("Skipped tick returned error: %v", err)
	}
	if calls := f.cleaner.calls.Load(); calls != 1 {
		t.Errorf("Expected exactly one cleanup call, got %d", calls)
	}

	close(f.cleaner.release)
	wg.Wait()

	if f.segmenter.calls.Load() != 1 {
		t.Errorf("Expected exactly one segmentation call, got %d", f.segmenter.calls.Load())
	}
}

func TestFinalTickWaitsForInFlight(t *testing.T) {
	f := newFixture(t)
	f.appendText("First sentence. tail")
	f.cleaner.release = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.pipeline.Tick(context.Background())
	}()

	deadline := time.Now().Add(time.Second)
	for f.cleaner.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("First tick never reached cleanup")
		}
		time.Sleep(time.Millisecond)
	}

	finalDone := make(chan error, 1)
	go func() {
		finalDone <- f.pipeline.FinalTick(context.Background())
	}()

	select {
	case <-finalDone:
		t.Fatal("FinalTick returned while a tick was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.cleaner.release)
	wg.Wait()

	select {
	case err := <-finalDone:
		if err != nil {
			t.Errorf("FinalTick failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("FinalTick never ran after in-flight tick finished")
	}
}

func TestWatermarkMonotonic(t *testing.T) {
	f := newFixture(t)

	last := -1
	for i := 0; i < 5; i++ {
		f.appendText(fmt.Sprintf("Sentence number %d.", i))
		if err := f.pipeline.Tick(context.Background()); err != nil {
			t.Fatalf("Tick %d failed: %v", i, err)
		}
		idx := f.pipeline.Snapshot().LastProcessedSegmentIndex
		if idx < last {
			t.Errorf("Watermark decreased: %d -> %d", last, idx)
		}
		last = idx
	}
	if last != 4 {
		t.Errorf("Expected final watermark 4, got %d", last)
	}
}

type failingPersister struct{}

func (failingPersister) SaveSummary(ctx context.Context, sessionID string, state State) error {
	return errors.New("disk full")
}

func TestPersistFailurePublishesFinalizationStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	log := transcript.NewLog()
	b := bus.New("sess-1", logger)
	defer b.Close()

	pipeline, err := NewPipeline(Config{
		SessionID: "sess-1",
		Log:       log,
		Bus:       b,
		Cleaner:   &fakeCleaner{},
		Segmenter: &fakeSegmenter{},
		Persister: failingPersister{},
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	sub := b.Subscribe(16)
	defer sub.Cancel()

	log.Append(transcript.Segment{Text: "Something decided."})
	if err := pipeline.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == bus.EventFinalizationStatus {
				if ev.Error == "" {
					t.Error("Expected error text on finalization_status event")
				}
				// In-memory state stays authoritative.
				if pipeline.Snapshot().Draft == "" && pipeline.Snapshot().Interim == "" {
					t.Error("Expected in-memory state retained after failed write")
				}
				return
			}
		case <-deadline:
			t.Fatal("No finalization_status event after failed store write")
		}
	}
}
