package turn

import "strings"

// SentenceSegmenter is C5: stateful sentence boundary detection over a
// token stream (§4.5). A sentence terminates when the running buffer
// contains '.', '?' or '!' followed by whitespace, or when Flush is
// called at stream close. It never emits an empty sentence or one made
// only of punctuation.
type SentenceSegmenter struct {
	buf strings.Builder
}

// NewSentenceSegmenter returns an empty segmenter.
func NewSentenceSegmenter() *SentenceSegmenter {
	return &SentenceSegmenter{}
}

const boundaryChars = ".?!"

// Push feeds one token (or arbitrary text fragment) into the segmenter.
// It returns any sentences completed as a result, in order — usually
// zero or one, but a single token can in principle close out more than
// one sentence (e.g. "Yes. No.").
func (s *SentenceSegmenter) Push(token string) []string {
	var out []string
	s.buf.WriteString(token)

	for {
		text := s.buf.String()
		cut := findBoundary(text)
		if cut < 0 {
			break
		}
		candidate := strings.TrimSpace(text[:cut+1])
		rest := text[cut+1:]
		s.buf.Reset()
		s.buf.WriteString(rest)

		if sentence := cleanSentence(candidate); sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}

// Flush returns any remaining tail as a final sentence (stream close),
// or nil if nothing meaningful remains.
func (s *SentenceSegmenter) Flush() []string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if sentence := cleanSentence(text); sentence != "" {
		return []string{sentence}
	}
	return nil
}

// findBoundary returns the index of the first boundary character in text
// that is followed by whitespace (or end of string), or -1 if none.
func findBoundary(text string) int {
	for i, r := range text {
		if strings.ContainsRune(boundaryChars, r) {
			next := i + len(string(r))
			if next >= len(text) {
				continue // only a true boundary if followed by whitespace, OR stream close (handled by Flush)
			}
			if text[next] == ' ' || text[next] == '\n' || text[next] == '\t' {
				return i
			}
		}
	}
	return -1
}

// cleanSentence rejects sentences that are empty or punctuation-only.
func cleanSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Trim(s, boundaryChars+" \t\n") == "" {
		return ""
	}
	return s
}
