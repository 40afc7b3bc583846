package summary

import (
	"context"
	"strings"
	"testing"
)

func TestPassthroughCleaner(t *testing.T) {
	got, err := PassthroughCleaner{}.Clean(context.Background(), "um, so, hello.")
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if got != "um, so, hello." {
		t.Errorf("Expected input unchanged, got %q", got)
	}
}

func TestHeadlineSegmenterShortDraft(t *testing.T) {
	draft := "We agreed on the budget. Next is hiring."
	topics, err := HeadlineSegmenter{}.Segment(context.Background(), draft, nil)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}

	if len(topics) != 1 {
		t.Fatalf("Expected 1 trailing topic for a short draft, got %d", len(topics))
	}
	if topics[0].Complete {
		t.Error("Short draft should yield an incomplete trailing topic")
	}
	if topics[0].Span != draft {
		t.Errorf("Expected span to cover the whole draft, got %q", topics[0].Span)
	}
	if topics[0].Summary != "We agreed on the budget." {
		t.Errorf("Expected first sentence as summary, got %q", topics[0].Summary)
	}
}

func TestHeadlineSegmenterClosesTopics(t *testing.T) {
	sentence := "This sentence pads the draft with enough text to cross the limit."
	draft := strings.TrimSpace(strings.Repeat(sentence+" ", 4)) + " And a tail"

	topics, err := HeadlineSegmenter{MaxTopicLength: 100}.Segment(context.Background(), draft, nil)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(topics) < 2 {
		t.Fatalf("Expected at least one closed topic plus a trailing one, got %d", len(topics))
	}

	for i, topic := range topics[:len(topics)-1] {
		if !topic.Complete {
			t.Errorf("Topic %d should be complete", i)
		}
	}
	last := topics[len(topics)-1]
	if last.Complete {
		t.Error("Trailing topic should be incomplete")
	}

	// Spans must strip off the draft front to front, the way the pipeline
	// consumes them.
	rest := draft
	for i, topic := range topics {
		if !topic.Complete {
			break
		}
		stripped, ok := stripSpan(rest, topic.Span)
		if !ok {
			t.Fatalf("Topic %d span is not a prefix of the remaining draft", i)
		}
		rest = stripped
	}
	if !strings.HasSuffix(rest, "And a tail") {
		t.Errorf("Expected the tail to remain in the draft, got %q", rest)
	}
}

func TestHeadlineSegmenterEmptyDraft(t *testing.T) {
	topics, err := HeadlineSegmenter{}.Segment(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(topics) != 0 {
		t.Errorf("Expected no topics for empty draft, got %d", len(topics))
	}
}
