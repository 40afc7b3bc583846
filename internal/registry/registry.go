package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/live-summary-service/internal/bus"
	"github.com/skypro1111/live-summary-service/internal/metrics"
	"github.com/skypro1111/live-summary-service/internal/session"
	"github.com/skypro1111/live-summary-service/internal/source"
	"github.com/skypro1111/live-summary-service/internal/store"
	"github.com/skypro1111/live-summary-service/internal/summary"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

// ErrSessionNotFound is returned for operations on an unknown session id.
var ErrSessionNotFound = errors.New("registry: session not found")

// Transcriber is the transcription/diarization backend collaborator.
// A call may fail; the driver drops that chunk's segments and continues.
type Transcriber interface {
	Transcribe(ctx context.Context, sessionID string, chunk *source.Chunk, md source.Metadata) ([]transcript.Segment, error)
}

// StartResult reports the outcome of a start request.
type StartResult int

const (
	// Started means a new job record was created and its loops launched.
	Started StartResult = iota
	// AlreadyRunning means a record exists for the id; the request was
	// declined without side effects. This is a result, not an error.
	AlreadyRunning
)

// Config contains registry tuning.
type Config struct {
	// TickInterval is the summary tick period. Defaults to 30s.
	TickInterval time.Duration
	// FailureThreshold is the run of consecutive transcription failures
	// treated as fatal. Defaults to 5.
	FailureThreshold int
	// TranscribeTimeout bounds one backend call. Defaults to 30s.
	TranscribeTimeout time.Duration
	// CleanupTimeout and SegmentationTimeout bound the summary service
	// calls. Zero means the pipeline default.
	CleanupTimeout      time.Duration
	SegmentationTimeout time.Duration
	// SubscriberBuffer is the per-subscriber event buffer size.
	SubscriberBuffer int
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = summary.DefaultTickInterval
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 30 * time.Second
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = bus.DefaultSubscriberBuffer
	}
}

// JobRecord is the per-session unit of ownership: exactly one exists per
// active session id, and every buffer inside it belongs to that session
// until the driver loop deregisters.
type JobRecord struct {
	Session  *session.Session
	Source   source.Source
	Log      *transcript.Log
	Bus      *bus.Bus
	Pipeline *summary.Pipeline

	scheduler *summary.Scheduler
	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// SessionSnapshot is the state a late subscriber reads before relying on
// the event bus for deltas.
type SessionSnapshot struct {
	Session  session.Session      `json:"session"`
	Segments []transcript.Segment `json:"segments"`
	Summary  summary.State        `json:"summary"`
}

// Registry manages all active session jobs.
type Registry struct {
	records map[string]*JobRecord
	mu      sync.RWMutex

	logger      *slog.Logger
	cfg         Config
	transcriber Transcriber
	cleaner     summary.Cleaner
	segmenter   summary.Segmenter
	store       store.Store // optional
	metrics     *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a session registry. The store and metrics may be nil.
func New(logger *slog.Logger, cfg Config, transcriber Transcriber,
	cleaner summary.Cleaner, segmenter summary.Segmenter,
	st store.Store, m *metrics.Metrics) (*Registry, error) {

	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if cleaner == nil || segmenter == nil {
		return nil, fmt.Errorf("cleaner and segmenter are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		records:     make(map[string]*JobRecord),
		logger:      logger,
		cfg:         cfg,
		transcriber: transcriber,
		cleaner:     cleaner,
		segmenter:   segmenter,
		store:       st,
		metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins processing a session from the given source. When a record
// already exists for the id the request is declined with AlreadyRunning
// and no duplicate is created.
func (r *Registry) Start(sessionID string, src source.Source) (StartResult, error) {
	if sessionID == "" {
		return Started, fmt.Errorf("session id cannot be empty")
	}
	if src == nil {
		return Started, fmt.Errorf("source cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[sessionID]; exists {
		if r.metrics != nil {
			r.metrics.StartsDeclined.Inc()
		}
		r.logger.Warn("Start declined, session already running",
			slog.String("session_id", sessionID),
		)
		return AlreadyRunning, nil
	}

	sess := session.New(sessionID)
	log := transcript.NewLog()
	eventBus := bus.New(sessionID, r.logger)
	if r.metrics != nil {
		m := r.metrics
		eventBus.SetHooks(bus.Hooks{
			OnPublish:     m.EventsPublished.Inc,
			OnDrop:        m.EventsDropped.Inc,
			OnSubscribe:   m.Subscribers.Inc,
			OnUnsubscribe: m.Subscribers.Dec,
		})
	}

	var persister summary.Persister
	if r.store != nil {
		persister = r.store
	}

	pipeline, err := summary.NewPipeline(summary.Config{
		SessionID:           sessionID,
		Log:                 log,
		Bus:                 eventBus,
		Cleaner:             r.cleaner,
		Segmenter:           r.segmenter,
		Persister:           persister,
		Metrics:             r.metrics,
		Logger:              r.logger,
		CleanupTimeout:      r.cfg.CleanupTimeout,
		SegmentationTimeout: r.cfg.SegmentationTimeout,
	})
	if err != nil {
		eventBus.Close()
		return Started, fmt.Errorf("create summary pipeline: %w", err)
	}

	recCtx, recCancel := context.WithCancel(r.ctx)
	rec := &JobRecord{
		Session:   sess,
		Source:    src,
		Log:       log,
		Bus:       eventBus,
		Pipeline:  pipeline,
		scheduler: summary.NewScheduler(pipeline, r.cfg.TickInterval, r.logger),
		startTime: time.Now(),
		ctx:       recCtx,
		cancel:    recCancel,
	}
	r.records[sessionID] = rec

	r.transition(rec, session.StatusInProgress)
	rec.scheduler.Start()

	r.wg.Add(1)
	go r.runDriver(rec)

	if r.metrics != nil {
		r.metrics.RecordSessionStarted()
	}
	r.logger.Info("Session started",
		slog.String("session_id", sessionID),
		slog.Int("sample_rate", src.Metadata().SampleRate),
		slog.String("format", src.Metadata().Format),
	)
	return Started, nil
}

// Stop requests the end of a session. It stops the source only; the job
// record stays registered until the driver loop observes completion and
// deregisters itself.
func (r *Registry) Stop(sessionID string) error {
	r.mu.RLock()
	rec, ok := r.records[sessionID]
	r.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	r.logger.Info("Stop requested", slog.String("session_id", sessionID))
	rec.Source.Stop()
	return nil
}

// Subscribe attaches an event subscriber to a running session.
func (r *Registry) Subscribe(sessionID string) (*bus.Subscription, error) {
	r.mu.RLock()
	rec, ok := r.records[sessionID]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec.Bus.Subscribe(r.cfg.SubscriberBuffer), nil
}

// Snapshot returns the current state of a session. Running sessions are
// served from memory; finished ones fall back to the snapshot store.
func (r *Registry) Snapshot(ctx context.Context, sessionID string) (SessionSnapshot, error) {
	r.mu.RLock()
	rec, ok := r.records[sessionID]
	r.mu.RUnlock()

	if ok {
		return SessionSnapshot{
			Session:  rec.Session.Snapshot(),
			Segments: rec.Log.Snapshot(),
			Summary:  rec.Pipeline.Snapshot(),
		}, nil
	}

	if r.store == nil {
		return SessionSnapshot{}, ErrSessionNotFound
	}

	sess, err := r.store.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SessionSnapshot{}, ErrSessionNotFound
		}
		return SessionSnapshot{}, fmt.Errorf("load session: %w", err)
	}
	segments, err := r.store.LoadSegments(ctx, sessionID)
	if err != nil {
		return SessionSnapshot{}, fmt.Errorf("load segments: %w", err)
	}
	state, err := r.store.LoadSummary(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return SessionSnapshot{}, fmt.Errorf("load summary: %w", err)
	}

	return SessionSnapshot{Session: sess, Segments: segments, Summary: state}, nil
}

// SetTitle updates a running session's title and broadcasts the change.
func (r *Registry) SetTitle(sessionID, title, titleSource string) error {
	r.mu.RLock()
	rec, ok := r.records[sessionID]
	r.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	rec.Session.SetTitle(title)
	r.persistSession(rec)
	rec.Bus.Publish(bus.EventTitleUpdated, bus.TitleUpdatedPayload{
		Title:  title,
		Source: titleSource,
	})
	return nil
}

// SetAttendees replaces a running session's attendee list and broadcasts
// the change.
func (r *Registry) SetAttendees(sessionID string, attendees []string) error {
	r.mu.RLock()
	rec, ok := r.records[sessionID]
	r.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	rec.Session.SetAttendees(attendees)
	r.persistSession(rec)
	rec.Bus.Publish(bus.EventAttendeesUpdated, bus.AttendeesUpdatedPayload{
		Attendees: attendees,
	})
	return nil
}

// ActiveCount returns the number of registered session jobs.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// ActiveSessions returns snapshots of all registered sessions.
func (r *Registry) ActiveSessions() []session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]session.Session, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Session.Snapshot())
	}
	return out
}

// Shutdown stops every session source and waits for all driver loops to
// deregister.
func (r *Registry) Shutdown() {
	r.logger.Info("Stopping session registry...")

	r.mu.RLock()
	for _, rec := range r.records {
		rec.Source.Stop()
	}
	r.mu.RUnlock()

	r.wg.Wait()
	r.cancel()

	r.logger.Info("Session registry stopped",
		slog.Int("remaining_sessions", r.ActiveCount()),
	)
}

// transition applies a status change, persists it, and broadcasts it.
// Callers hold no record locks.
func (r *Registry) transition(rec *JobRecord, status session.Status) {
	if !rec.Session.SetStatus(status) {
		return
	}
	r.persistSession(rec)
	rec.Bus.Publish(bus.EventStatusUpdated, bus.StatusUpdatedPayload{Status: status})
}

func (r *Registry) persistSession(rec *JobRecord) {
	if r.store == nil {
		return
	}

	err := r.store.SaveSession(r.ctx, rec.Session.Snapshot())
	if r.metrics != nil {
		r.metrics.RecordStoreWrite(err)
	}
	if err != nil {
		r.logger.Warn("Session snapshot write failed",
			slog.String("session_id", rec.Session.ID),
			slog.String("error", err.Error()),
		)
		rec.Bus.PublishError(bus.EventFinalizationStatus,
			fmt.Sprintf("session snapshot write failed: %v", err))
	}
}

// deregister removes the record. Only the driver loop calls this, after it
// has observed source completion, so ownership release is unambiguous.
func (r *Registry) deregister(rec *JobRecord) {
	r.mu.Lock()
	delete(r.records, rec.Session.ID)
	r.mu.Unlock()

	rec.cancel()
	rec.Bus.Close()

	if r.metrics != nil {
		r.metrics.RecordSessionEnded(
			rec.Session.GetStatus() == session.StatusFailed,
			time.Since(rec.startTime).Seconds(),
		)
	}
	r.logger.Info("Session deregistered",
		slog.String("session_id", rec.Session.ID),
		slog.String("status", string(rec.Session.GetStatus())),
		slog.Duration("duration", time.Since(rec.startTime)),
		slog.Int("segments", rec.Log.Len()),
	)
}
