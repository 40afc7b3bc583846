package summary

import (
	"context"
	"strings"
)

// PassthroughCleaner returns extracted text unchanged. It stands in where
// no cleanup backend is configured.
type PassthroughCleaner struct{}

// Clean implements Cleaner.
func (PassthroughCleaner) Clean(_ context.Context, text string) (string, error) {
	return text, nil
}

// DefaultMaxTopicLength is the draft length, in runes, at which the
// headline segmenter closes a topic.
const DefaultMaxTopicLength = 600

// HeadlineSegmenter is a deterministic segmenter used where no topic
// modeling backend is configured. It closes a topic once the draft
// accumulates MaxTopicLength runes of whole sentences and uses the topic's
// first sentence as its summary; whatever remains becomes the trailing
// in-progress topic. Spans are contiguous substrings of the draft, so they
// always line up with the draft's own spacing.
type HeadlineSegmenter struct {
	MaxTopicLength int // runes per finalized topic, default 600
}

// Segment implements Segmenter.
func (s HeadlineSegmenter) Segment(_ context.Context, draft string, _ []Topic) ([]Topic, error) {
	maxLen := s.MaxTopicLength
	if maxLen <= 0 {
		maxLen = DefaultMaxTopicLength
	}

	if strings.TrimSpace(draft) == "" {
		return nil, nil
	}
	runes := []rune(draft)
	bounds := sentenceBounds(runes)

	var topics []Topic
	groupStart := 0

	flush := func(end int, complete bool) {
		span := strings.TrimSpace(string(runes[groupStart:end]))
		if span == "" {
			return
		}
		topics = append(topics, Topic{
			Span:     span,
			Summary:  firstSentence(span),
			Complete: complete,
		})
		groupStart = end
	}

	for _, end := range bounds {
		if end-groupStart >= maxLen {
			flush(end, true)
		}
	}
	flush(len(runes), false)

	return topics, nil
}

// sentenceBounds returns the rune offsets just past each terminal-punctuated
// sentence, using the same boundary rules as the default tokenizer.
func sentenceBounds(runes []rune) []int {
	var bounds []int
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isClosing(runes[end]) {
			end++
		}
		for end < len(runes) && isTerminal(runes[end]) {
			end++
		}
		bounds = append(bounds, end)
		i = end - 1
	}
	return bounds
}

// firstSentence returns the leading sentence of text, or the whole text if
// it has no terminal punctuation.
func firstSentence(text string) string {
	runes := []rune(text)
	bounds := sentenceBounds(runes)
	if len(bounds) == 0 {
		return text
	}
	return strings.TrimSpace(string(runes[:bounds[0]]))
}
