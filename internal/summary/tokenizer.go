package summary

import "strings"

// SentenceTokenizer finds the maximal whole-sentence prefix of a text.
// Sentence-boundary rules vary across languages and abbreviation
// conventions, so the pipeline takes the tokenizer as a contract rather
// than fixing a locale rule.
type SentenceTokenizer interface {
	// Extract splits text into a prefix of whole sentences and the
	// remaining partial tail. A partial sentence is never split: when the
	// text contains no complete sentence, complete is empty and remainder
	// is the input unchanged.
	Extract(text string) (complete, remainder string)
}

// TerminalPunctuationTokenizer treats '.', '!' and '?' (optionally followed
// by closing quotes or brackets) as sentence boundaries.
type TerminalPunctuationTokenizer struct{}

// Extract implements SentenceTokenizer.
func (TerminalPunctuationTokenizer) Extract(text string) (string, string) {
	boundary := -1
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(runes) && isClosing(runes[end]) {
				end++
			}
			// Consecutive terminals ("..", "?!") extend the same boundary.
			for end < len(runes) && isTerminal(runes[end]) {
				end++
			}
			boundary = end
			i = end - 1
		}
	}

	if boundary < 0 {
		return "", text
	}

	complete := strings.TrimRight(string(runes[:boundary]), " \t\n")
	remainder := strings.TrimLeft(string(runes[boundary:]), " \t\n")
	return complete, remainder
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}
