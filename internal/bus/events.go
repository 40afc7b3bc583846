package bus

import (
	"time"

	"github.com/skypro1111/live-summary-service/internal/session"
	"github.com/skypro1111/live-summary-service/internal/transcript"
)

// EventType identifies the kind of a session event.
type EventType string

const (
	EventSummaryStart       EventType = "summary_start"
	EventSummaryToken       EventType = "summary_token"
	EventSummaryComplete    EventType = "summary_complete"
	EventTranscriptSegment  EventType = "transcript_segment"
	EventTranscriptUpdated  EventType = "transcript_updated"
	EventStatusUpdated      EventType = "status_updated"
	EventTitleUpdated       EventType = "title_updated"
	EventAttendeesUpdated   EventType = "attendees_updated"
	EventFinalizationStatus EventType = "finalization_status"
	EventMeetingUpdated     EventType = "meeting_updated"
)

// Event is one broadcast state change. Events are ephemeral; they are not
// persisted and carry everything an observer needs in the payload. The
// Error field is set on error-carrying events such as a dropped segment.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SummaryTokenPayload carries the accumulated in-progress summary text.
type SummaryTokenPayload struct {
	AccumulatedText string `json:"accumulated_text"`
}

// SummaryCompletePayload carries the finalized summary text.
type SummaryCompletePayload struct {
	FinalText string `json:"final_text"`
}

// TranscriptSegmentPayload carries one newly transcribed segment.
type TranscriptSegmentPayload struct {
	Segment transcript.Segment `json:"segment"`
}

// TranscriptUpdatedPayload carries the full segment list.
type TranscriptUpdatedPayload struct {
	Segments []transcript.Segment `json:"segments"`
}

// StatusUpdatedPayload carries a session lifecycle transition.
type StatusUpdatedPayload struct {
	Status session.Status `json:"status"`
}

// TitleUpdatedPayload carries a title change and where it came from.
type TitleUpdatedPayload struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

// AttendeesUpdatedPayload carries the current attendee list.
type AttendeesUpdatedPayload struct {
	Attendees []string `json:"attendees"`
}

// FinalizationStatusPayload reports finalization progress or a persistence
// problem the observer should surface.
type FinalizationStatusPayload struct {
	StatusText string  `json:"status_text"`
	Progress   float64 `json:"progress"`
}
