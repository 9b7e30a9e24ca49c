package turn

import (
	"reflect"
	"testing"
)

func TestSentenceSegmenter_SplitsOnBoundaryFollowedByWhitespace(t *testing.T) {
	s := NewSentenceSegmenter()
	var got []string
	got = append(got, s.Push("Hi there. ")...)
	got = append(got, s.Push("How are you?")...)
	got = append(got, s.Flush()...)

	want := []string{"Hi there.", "How are you?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSentenceSegmenter_NoBoundaryWithoutTrailingWhitespace(t *testing.T) {
	s := NewSentenceSegmenter()
	got := s.Push("3.14 is pi")
	if len(got) != 0 {
		t.Errorf("expected no sentence yet, got %v", got)
	}
}

func TestSentenceSegmenter_FlushEmitsTailOnStreamClose(t *testing.T) {
	s := NewSentenceSegmenter()
	s.Push("no trailing punctuation")
	got := s.Flush()
	want := []string{"no trailing punctuation"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSentenceSegmenter_FlushOfEmptyBufferYieldsNothing(t *testing.T) {
	s := NewSentenceSegmenter()
	if got := s.Flush(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSentenceSegmenter_NeverEmitsPunctuationOnlySentence(t *testing.T) {
	s := NewSentenceSegmenter()
	got := s.Push("... ")
	if len(got) != 0 {
		t.Errorf("expected punctuation-only fragment suppressed, got %v", got)
	}
	if got := s.Flush(); got != nil {
		t.Errorf("expected nothing on flush either, got %v", got)
	}
}

func TestSentenceSegmenter_SingleTokenClosesMultipleSentences(t *testing.T) {
	s := NewSentenceSegmenter()
	got := s.Push("Yes. No. ")
	want := []string{"Yes.", "No."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSentenceSegmenter_TokenByTokenStreaming(t *testing.T) {
	s := NewSentenceSegmenter()
	tokens := []string{"Hel", "lo ", "there", ".", " How", " are", " you", "?"}
	var got []string
	for _, tok := range tokens {
		got = append(got, s.Push(tok)...)
	}
	got = append(got, s.Flush()...)
	want := []string{"Hello there.", "How are you?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
