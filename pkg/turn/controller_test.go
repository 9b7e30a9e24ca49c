package turn_test

import (
	"testing"
	"time"

	"github.com/turnframe/turnframe/pkg/turn"
	"github.com/turnframe/turnframe/pkg/turntest"
)

func testConfig() turn.Config {
	cfg := turn.DefaultConfig()
	cfg.SilenceDebounceMS = 30 // below the floor; the controller clamps it to 400ms
	cfg.AdaptiveDebounceOn = true
	return cfg
}

func newTestController(t *testing.T, stt *turntest.STT, llm *turntest.LLM, tts *turntest.TTS) *turn.Controller {
	t.Helper()
	ctrl := turn.NewController("sess-1", testConfig(), turn.Adapters{STT: stt, LLM: llm, TTS: tts}, nil, nil)
	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(ctrl.Close)
	return ctrl
}

func drainUntil(t *testing.T, ctrl *turn.Controller, want turn.ServerMessageType, timeout time.Duration) turn.ServerMessage {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-ctrl.Events():
			if msg.Type == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message type %s", want)
		}
	}
}

// S1 — happy path, no RAG: final transcript -> SPECULATIVE -> COMMITTED
// -> audio chunks -> SPEAKING -> playback_complete -> IDLE.
func TestController_S1_HappyPath(t *testing.T) {
	stt := turntest.NewSTT()
	llm := turntest.NewLLM()
	tts := turntest.NewTTS()
	llm.ScriptResponse([]string{"Hi!"}, nil)

	ctrl := newTestController(t, stt, llm, tts)
	drainUntil(t, ctrl, turn.ServerSessionReady, time.Second)
	ctrl.OnAudioFrame(make([]byte, 160))                     // first frame wakes the session
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // IDLE -> LISTENING

	ctrl.OnFinal("Hello there", 0.9)
	drainUntil(t, ctrl, turn.ServerTranscriptFinal, time.Second)
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // LISTENING -> SPECULATIVE

	sc := drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // SPECULATIVE -> COMMITTED
	if sc.StateChange.To != turn.StateCommitted {
		t.Fatalf("expected COMMITTED, got %s", sc.StateChange.To)
	}

	audio := drainUntil(t, ctrl, turn.ServerAgentAudioChunk, time.Second)
	if audio.AgentAudioChunk.ChunkIndex != 0 {
		t.Errorf("first chunk_index = %d, want 0", audio.AgentAudioChunk.ChunkIndex)
	}
	if !audio.AgentAudioChunk.IsFinal {
		t.Error("single-sentence turn's only chunk must be is_final")
	}

	speaking := drainUntil(t, ctrl, turn.ServerStateChange, time.Second)
	if speaking.StateChange.To != turn.StateSpeaking {
		t.Fatalf("expected SPEAKING, got %s", speaking.StateChange.To)
	}

	ctrl.OnPlaybackComplete()
	idle := drainUntil(t, ctrl, turn.ServerStateChange, time.Second)
	if idle.StateChange.To != turn.StateIdle {
		t.Fatalf("expected IDLE, got %s", idle.StateChange.To)
	}

	// turn_complete is the last per-turn message (§5's ordering guarantee).
	complete := drainUntil(t, ctrl, turn.ServerTurnComplete, time.Second)
	if complete.TurnComplete.WasInterrupted {
		t.Error("expected was_interrupted=false")
	}
	if complete.TurnComplete.AgentText == "" {
		t.Error("expected non-empty agent_text")
	}
}

// S2 — speculative cancel: a new partial arrives before the silence
// timer fires; no audio or agent_text is ever surfaced.
func TestController_S2_SpeculativeCancel(t *testing.T) {
	stt := turntest.NewSTT()
	llm := turntest.NewLLM()
	tts := turntest.NewTTS()
	llm.ScriptResponse([]string{"Sure, I can help with that."}, nil)

	cfg := testConfig()
	cfg.SilenceDebounceMS = 300 // long enough that a partial arrives first
	ctrl := turn.NewController("sess-2", cfg, turn.Adapters{STT: stt, LLM: llm, TTS: tts}, nil, nil)
	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Close()
	drainUntil(t, ctrl, turn.ServerSessionReady, time.Second)
	ctrl.OnAudioFrame(make([]byte, 160))                     // first frame wakes the session
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // IDLE -> LISTENING

	ctrl.OnFinal("I want to book", 0.9)
	drainUntil(t, ctrl, turn.ServerTranscriptFinal, time.Second)
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // -> SPECULATIVE

	time.Sleep(30 * time.Millisecond)
	ctrl.OnPartial("I want to book a flight", 0.8)

	sc := drainUntil(t, ctrl, turn.ServerStateChange, time.Second)
	if sc.StateChange.To != turn.StateListening {
		t.Fatalf("expected silent cancel back to LISTENING, got %s", sc.StateChange.To)
	}

	select {
	case msg := <-ctrl.Events():
		if msg.Type == turn.ServerAgentAudioChunk {
			t.Fatal("speculatively canceled turn must never emit agent_audio_chunk")
		}
		if msg.Type == turn.ServerTurnComplete && msg.TurnComplete.AgentText != "" {
			t.Fatal("speculatively canceled turn must never surface agent_text")
		}
	case <-time.After(150 * time.Millisecond):
	}
}

// S3 — barge-in during SPEAKING cancels both signals, forces STT
// finalize, and closes the turn as interrupted.
func TestController_S3_BargeInDuringSpeaking(t *testing.T) {
	stt := turntest.NewSTT()
	llm := turntest.NewLLM()
	tts := turntest.NewTTS()
	llm.ScriptResponse([]string{"Sure, booking now."}, nil)

	ctrl := newTestController(t, stt, llm, tts)
	drainUntil(t, ctrl, turn.ServerSessionReady, time.Second)
	ctrl.OnAudioFrame(make([]byte, 160))                     // first frame wakes the session
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // IDLE -> LISTENING

	ctrl.OnFinal("Book me a flight", 0.9)
	drainUntil(t, ctrl, turn.ServerTranscriptFinal, time.Second)
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // -> SPECULATIVE
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // -> COMMITTED
	drainUntil(t, ctrl, turn.ServerAgentAudioChunk, time.Second)
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // -> SPEAKING

	ctrl.OnAudioFrame(make([]byte, 160)) // barge-in

	sc := drainUntil(t, ctrl, turn.ServerStateChange, time.Second)
	if sc.StateChange.To != turn.StateListening {
		t.Fatalf("expected barge-in to LISTENING, got %s", sc.StateChange.To)
	}

	complete := drainUntil(t, ctrl, turn.ServerTurnComplete, time.Second)
	if !complete.TurnComplete.WasInterrupted {
		t.Error("expected was_interrupted=true after barge-in")
	}

	if got := stt.Session().FinalizedCount(); got != 1 {
		t.Errorf("expected STT Finalize called once, got %d", got)
	}
	if got := tts.AbortedCount(); got != 1 {
		t.Errorf("expected TTS Abort called once, got %d", got)
	}
}

// S4 — correction marker in a final arriving during SPECULATIVE forces
// an immediate silent cancel regardless of remaining debounce.
func TestController_S4_CorrectionMarker(t *testing.T) {
	stt := turntest.NewSTT()
	llm := turntest.NewLLM()
	tts := turntest.NewTTS()
	llm.ScriptResponse([]string{"Booking your flight."}, nil)

	cfg := testConfig()
	cfg.SilenceDebounceMS = 1000
	ctrl := turn.NewController("sess-4", cfg, turn.Adapters{STT: stt, LLM: llm, TTS: tts}, nil, nil)
	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Close()
	drainUntil(t, ctrl, turn.ServerSessionReady, time.Second)
	ctrl.OnAudioFrame(make([]byte, 160))                     // first frame wakes the session
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // IDLE -> LISTENING

	ctrl.OnFinal("Book a flight to Denver", 0.9)
	drainUntil(t, ctrl, turn.ServerTranscriptFinal, time.Second)
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // -> SPECULATIVE

	ctrl.OnFinal("Actually, cancel that", 0.9)
	drainUntil(t, ctrl, turn.ServerTranscriptFinal, time.Second)

	sc := drainUntil(t, ctrl, turn.ServerStateChange, 500*time.Millisecond)
	if sc.StateChange.To != turn.StateListening {
		t.Fatalf("expected correction marker to force LISTENING, got %s", sc.StateChange.To)
	}
}

// S5 — permanent TTS failure falls back to agent_text_fallback with no
// audio chunks, and the turn still closes normally.
func TestController_S5_TTSFailureFallback(t *testing.T) {
	stt := turntest.NewSTT()
	llm := turntest.NewLLM()
	tts := turntest.NewTTS()
	llm.ScriptResponse([]string{"Sure, booking now."}, nil)
	tts.FailNextCall()

	ctrl := newTestController(t, stt, llm, tts)
	drainUntil(t, ctrl, turn.ServerSessionReady, time.Second)
	ctrl.OnAudioFrame(make([]byte, 160))                     // first frame wakes the session
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // IDLE -> LISTENING

	ctrl.OnFinal("Book a flight", 0.9)
	drainUntil(t, ctrl, turn.ServerTranscriptFinal, time.Second)
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // -> SPECULATIVE
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // -> COMMITTED

	fallback := drainUntil(t, ctrl, turn.ServerAgentTextFallback, time.Second)
	if fallback.AgentTextFallback.Reason != "tts_failed" {
		t.Errorf("reason = %q, want tts_failed", fallback.AgentTextFallback.Reason)
	}
	if fallback.AgentTextFallback.Text == "" {
		t.Error("expected fallback text to carry the LLM's full response")
	}

	idle := drainUntil(t, ctrl, turn.ServerStateChange, time.Second)
	if idle.StateChange.To != turn.StateIdle {
		t.Fatalf("expected IDLE after TTS failure, got %s", idle.StateChange.To)
	}

	complete := drainUntil(t, ctrl, turn.ServerTurnComplete, time.Second)
	if complete.TurnComplete.AgentText == "" {
		t.Error("expected agent_text still populated in turn_complete")
	}
}

// Chunk indices within one turn must be strictly increasing from 0 with
// is_final only on the last chunk (§8's quantified invariant).
func TestController_ChunkIndexOrdering(t *testing.T) {
	stt := turntest.NewSTT()
	llm := turntest.NewLLM()
	tts := turntest.NewTTS()
	llm.ScriptResponse([]string{"First sentence.", "Second sentence.", "Third sentence."}, nil)

	ctrl := newTestController(t, stt, llm, tts)
	drainUntil(t, ctrl, turn.ServerSessionReady, time.Second)
	ctrl.OnAudioFrame(make([]byte, 160))                     // first frame wakes the session
	drainUntil(t, ctrl, turn.ServerStateChange, time.Second) // IDLE -> LISTENING

	ctrl.OnFinal("Tell me a story", 0.9)
	drainUntil(t, ctrl, turn.ServerTranscriptFinal, time.Second)

	var chunks []turn.AgentAudioChunkPayload
	deadline := time.After(2 * time.Second)
	for len(chunks) < 3 {
		select {
		case msg := <-ctrl.Events():
			if msg.Type == turn.ServerAgentAudioChunk {
				chunks = append(chunks, *msg.AgentAudioChunk)
			}
		case <-deadline:
			t.Fatalf("timed out, got %d of 3 expected chunks", len(chunks))
		}
	}

	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has ChunkIndex %d, want %d", i, c.ChunkIndex, i)
		}
		if i < len(chunks)-1 && c.IsFinal {
			t.Errorf("chunk %d marked is_final but is not the last chunk", i)
		}
	}
	if !chunks[len(chunks)-1].IsFinal {
		t.Error("last chunk must be is_final")
	}
}
