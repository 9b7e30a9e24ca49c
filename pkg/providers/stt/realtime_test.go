package stt

import (
	"context"
	"testing"
	"time"

	"github.com/turnframe/turnframe/pkg/turn"
)

func staleTime() time.Time { return time.Now().Add(-2 * realtimeAudioBudget) }

func TestFixedBackoffFollowsSpecSequence(t *testing.T) {
	b := &fixedBackoff{}
	want := reconnectDelays
	for i, d := range want {
		got := b.NextBackOff()
		if got != d {
			t.Fatalf("attempt %d: got %v, want %v", i, got, d)
		}
	}
	if got := b.NextBackOff(); got != -1 {
		t.Fatalf("expected backoff.Stop after %d attempts, got %v", len(want), got)
	}
}

func TestFixedBackoffResetReplaysSequence(t *testing.T) {
	b := &fixedBackoff{}
	for range reconnectDelays {
		b.NextBackOff()
	}
	b.Reset()
	if got := b.NextBackOff(); got != reconnectDelays[0] {
		t.Fatalf("expected first delay %v after reset, got %v", reconnectDelays[0], got)
	}
}

func TestDeepgramStreamingSTTName(t *testing.T) {
	d := NewDeepgramStreamingSTT("key")
	if d.Name() != "deepgram-streaming-stt" {
		t.Fatalf("unexpected name: %s", d.Name())
	}
}

func newTestSession() *realtimeSession {
	return &realtimeSession{
		ctx:    context.Background(),
		events: make(chan turn.STTEvent, 4),
	}
}

func TestHandleMessageEmitsPartialAndFinal(t *testing.T) {
	s := newTestSession()

	s.handleMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel","confidence":0.5}]}}`))
	ev := <-s.events
	if ev.Type != turn.STTPartial || ev.Text != "hel" {
		t.Fatalf("expected partial 'hel', got %+v", ev)
	}

	s.handleMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello","confidence":0.9}]}}`))
	ev = <-s.events
	if ev.Type != turn.STTFinal || ev.Text != "hello" {
		t.Fatalf("expected final 'hello', got %+v", ev)
	}
}

func TestHandleMessageEmitsEndpointOnUtteranceEnd(t *testing.T) {
	s := newTestSession()
	s.handleMessage([]byte(`{"type":"UtteranceEnd"}`))
	ev := <-s.events
	if ev.Type != turn.STTEndpoint {
		t.Fatalf("expected endpoint event, got %+v", ev)
	}
}

func TestHandleMessageIgnoresEmptyTranscript(t *testing.T) {
	s := newTestSession()
	s.handleMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`))
	select {
	case ev := <-s.events:
		t.Fatalf("expected no event for an empty transcript, got %+v", ev)
	default:
	}
}

func TestBufferTrimsStaleFrames(t *testing.T) {
	s := newTestSession()
	s.pending = []bufferedFrame{{data: []byte{1}, at: staleTime()}}
	s.pendingSz = 1
	s.buffer([]byte{2, 3})

	if len(s.pending) != 1 {
		t.Fatalf("expected stale frame to be trimmed, got %d pending frames", len(s.pending))
	}
	if string(s.pending[0].data) != "\x02\x03" {
		t.Fatalf("expected the fresh frame to remain, got %v", s.pending[0].data)
	}
}
