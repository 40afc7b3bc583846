package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/skypro1111/live-summary-service/internal/bus"
	"github.com/skypro1111/live-summary-service/internal/session"
	"github.com/skypro1111/live-summary-service/internal/source"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

// runDriver is the session's transcription loop: pull a chunk, transcribe
// it, append the segments, repeat until the source reports end of stream.
// The loop is the only writer of the transcript log and the only caller of
// deregister, so record teardown happens exactly once.
func (r *Registry) runDriver(rec *JobRecord) {
	defer r.wg.Done()

	sessionID := rec.Session.ID
	consecutiveFailures := 0
	failed := false

	for {
		chunk, err := rec.Source.ReadChunk(rec.ctx)
		if err != nil {
			if errors.Is(err, source.ErrEndOfStream) {
				break
			}
			if rec.ctx.Err() != nil {
				// Shutdown cancelled the record context mid-read. The
				// session did not complete; mark it failed rather than
				// publishing a completed summary for a truncated stream.
				failed = true
				break
			}
			r.logger.Error("Source read failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
			failed = true
			rec.Source.Stop()
			break
		}
		if r.metrics != nil {
			r.metrics.ChunksRead.Inc()
		}

		segments, err := r.transcribeChunk(rec, chunk)
		if err != nil {
			consecutiveFailures++
			r.logger.Warn("Chunk transcription failed",
				slog.String("session_id", sessionID),
				slog.Uint64("sequence", chunk.Sequence),
				slog.Int("consecutive_failures", consecutiveFailures),
				slog.String("error", err.Error()),
			)
			rec.Bus.PublishError(bus.EventTranscriptSegment, err.Error())

			if consecutiveFailures >= r.cfg.FailureThreshold {
				r.logger.Error("Transcription failure threshold reached",
					slog.String("session_id", sessionID),
					slog.Int("threshold", r.cfg.FailureThreshold),
				)
				failed = true
				rec.Source.Stop()
				break
			}
			continue
		}
		consecutiveFailures = 0

		if len(segments) == 0 {
			continue
		}
		for _, seg := range segments {
			idx := rec.Log.Append(seg)
			seg.Index = idx
			rec.Bus.Publish(bus.EventTranscriptSegment, bus.TranscriptSegmentPayload{
				Segment: seg,
			})
		}
		rec.Bus.Publish(bus.EventTranscriptUpdated, bus.TranscriptUpdatedPayload{
			Segments: rec.Log.Snapshot(),
		})
		r.persistSegments(rec)
	}

	r.finishDriver(rec, failed)
}

// transcribeChunk runs one bounded backend call and records its outcome.
func (r *Registry) transcribeChunk(rec *JobRecord, chunk *source.Chunk) ([]transcript.Segment, error) {
	ctx, cancel := context.WithTimeout(rec.ctx, r.cfg.TranscribeTimeout)
	defer cancel()

	start := time.Now()
	segments, err := r.transcriber.Transcribe(ctx, rec.Session.ID, chunk, rec.Source.Metadata())
	if r.metrics != nil {
		r.metrics.RecordTranscription(err == nil, time.Since(start).Seconds(), len(segments))
	}
	return segments, err
}

// finishDriver runs the completion sequence: final status, mandatory final
// tick on normal completion, then deregistration.
func (r *Registry) finishDriver(rec *JobRecord, failed bool) {
	sessionID := rec.Session.ID

	// No more periodic ticks may start once the status flips; a tick that
	// is already in flight finishes, and FinalTick waits behind it.
	rec.scheduler.Stop()

	if failed {
		r.transition(rec, session.StatusFailed)
	} else {
		r.transition(rec, session.StatusCompleted)

		rec.Bus.Publish(bus.EventFinalizationStatus, bus.FinalizationStatusPayload{
			StatusText: "finalizing summary",
			Progress:   0.5,
		})
		if err := rec.Pipeline.FinalTick(rec.ctx); err != nil {
			r.logger.Error("Final summary tick failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
			rec.Bus.PublishError(bus.EventFinalizationStatus, err.Error())
		} else {
			rec.Bus.Publish(bus.EventFinalizationStatus, bus.FinalizationStatusPayload{
				StatusText: "completed",
				Progress:   1.0,
			})
		}
		r.persistSegments(rec)
	}

	r.deregister(rec)
}

func (r *Registry) persistSegments(rec *JobRecord) {
	if r.store == nil {
		return
	}

	err := r.store.SaveSegments(r.ctx, rec.Session.ID, rec.Log.Snapshot())
	if r.metrics != nil {
		r.metrics.RecordStoreWrite(err)
	}
	if err != nil {
		r.logger.Warn("Segment snapshot write failed",
			slog.String("session_id", rec.Session.ID),
			slog.String("error", err.Error()),
		)
	}
}
