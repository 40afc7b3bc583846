package summary

import "time"

// State holds the five text buffers of the summarization machine plus the
// watermark of the last transcript segment absorbed into streaming.
//
// Buffer roles:
//   - Streaming: unprocessed transcript tail, may end mid-sentence
//   - Draft: cleaned text not yet assigned to a finished topic
//   - Done: finalized topic transcript
//   - Interim: summary of the single in-progress trailing topic
//   - Summarized: finalized topic summaries
type State struct {
	Streaming  string `json:"streaming"`
	Draft      string `json:"draft"`
	Done       string `json:"done"`
	Interim    string `json:"interim"`
	Summarized string `json:"summarized"`

	// LastProcessedSegmentIndex is the highest segment index absorbed into
	// Streaming. Monotonic, never decreases. -1 before the first absorb.
	LastProcessedSegmentIndex int `json:"last_processed_segment_index"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns an empty state with the watermark before the first segment.
func NewState() State {
	return State{LastProcessedSegmentIndex: -1}
}

// Topic is one segmentation unit returned by the segmentation service.
// Span is the draft text covered by the topic; Summary is its summary. At
// most one topic per response may be incomplete, and it must be the last.
type Topic struct {
	Span     string `json:"span"`
	Summary  string `json:"summary"`
	Complete bool   `json:"complete"`
}
