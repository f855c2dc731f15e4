package text

import (
	"strings"
	"unicode/utf8"
)

// ChunkBySentence splits text into chunks at sentence boundaries
// (。！？ . ! ? and line breaks), grouping consecutive sentences together while
// staying within maxChars bytes per chunk.
// If maxChars is 0, no splitting is performed.
// Sentences that individually exceed maxChars are kept intact as a single chunk.
func ChunkBySentence(text string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	for _, s := range sentences {
		if current.Len() == 0 {
			current.WriteString(s)
			continue
		}
		sep := separator(current.String())
		if current.Len()+len(sep)+len(s) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(s)
		} else {
			current.WriteString(sep)
			current.WriteString(s)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?', '\n':
		return true
	}
	return false
}

// separator returns the text placed between two grouped sentences: a space
// after ASCII punctuation, nothing after Japanese punctuation.
func separator(prev string) string {
	r, _ := utf8.DecodeLastRuneInString(prev)
	if r < utf8.RuneSelf {
		return " "
	}
	return ""
}

// splitSentences splits text on sentence-ending punctuation, keeping the
// terminator attached to its sentence. Line breaks end a sentence and are
// dropped. Empty segments are dropped.
func splitSentences(text string) []string {
	var sentences []string
	start := 0

	for i, r := range text {
		if !isTerminator(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		s := strings.TrimSpace(text[start:end])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	// Trailing text after the last terminator (if any).
	if start < len(text) {
		s := strings.TrimSpace(text[start:])
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}
