// Package turntest collects the small mock adapters reused across
// pkg/turn's component tests (STT, LLM, TTS, RAG and Store),
// consolidated into one place since every turn controller test needs
// the same handful of seams.
package turntest

import (
	"context"
	"sync"

	"github.com/turnframe/turnframe/pkg/turn"
)

// STT is a scriptable turn.STTAdapter: tests push events through the
// opened session's Emit and assert on frames observed via SentFrames.
type STT struct {
	mu      sync.Mutex
	session *sttSession
}

func NewSTT() *STT { return &STT{} }

func (s *STT) Name() string { return "mock-stt" }

func (s *STT) Open(ctx context.Context, cfg turn.STTConfig) (turn.STTSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sttSession{events: make(chan turn.STTEvent, 32)}
	return s.session, nil
}

// Session returns the most recently opened session, or nil.
func (s *STT) Session() *sttSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

type sttSession struct {
	mu        sync.Mutex
	events    chan turn.STTEvent
	sent      [][]byte
	finalized int
	closed    bool
}

func (s *sttSession) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, frame)
	return nil
}

func (s *sttSession) Events() <-chan turn.STTEvent { return s.events }

func (s *sttSession) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized++
	return nil
}

func (s *sttSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Emit pushes a synthetic STT event to the controller under test.
func (s *sttSession) Emit(ev turn.STTEvent) { s.events <- ev }

// FinalizedCount reports how many times Finalize was called (barge-in assertions).
func (s *sttSession) FinalizedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// SentFrames returns a copy of every frame handed to Send.
func (s *sttSession) SentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// LLM is a scriptable turn.LLMAdapter: each call to StreamSentences pulls
// the next scripted response (sentences + optional trailing error); a
// call beyond the scripted ones yields nothing.
type LLM struct {
	mu    sync.Mutex
	calls int
	// responses[i] is what the i-th StreamSentences call yields, in order,
	// one sentence at a time, stopping early once abort is set.
	responses [][]string
	errs      []error
}

func NewLLM() *LLM { return &LLM{} }

// ScriptResponse queues one StreamSentences call's worth of sentences
// and a trailing error (nil for success).
func (l *LLM) ScriptResponse(sentences []string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responses = append(l.responses, sentences)
	l.errs = append(l.errs, err)
}

func (l *LLM) Name() string { return "mock-llm" }

func (l *LLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *LLM) StreamSentences(ctx context.Context, messages []turn.Message, abort *turn.CancellationSignal) (<-chan string, <-chan error) {
	l.mu.Lock()
	idx := l.calls
	l.calls++
	var sentences []string
	var err error
	if idx < len(l.responses) {
		sentences = l.responses[idx]
		err = l.errs[idx]
	}
	l.mu.Unlock()

	sentCh := make(chan string, len(sentences))
	errCh := make(chan error, 1)
	go func() {
		defer close(sentCh)
		defer close(errCh)
		for _, s := range sentences {
			if abort.IsSet() {
				return
			}
			select {
			case sentCh <- s:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
		}
	}()
	return sentCh, errCh
}

// TTS is a scriptable turn.TTSAdapter.
type TTS struct {
	mu       sync.Mutex
	warmed   bool
	aborted  int
	failNext bool
}

func NewTTS() *TTS { return &TTS{} }

func (t *TTS) Name() string { return "mock-tts" }

func (t *TTS) Warm(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warmed = true
	return nil
}

func (t *TTS) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aborted++
	return nil
}

// FailNextCall makes the next StreamAudio call return a permanent error
// with no chunks, for exercising the TTS-failure fallback path.
func (t *TTS) FailNextCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = true
}

func (t *TTS) AbortedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

func (t *TTS) StreamAudio(ctx context.Context, text string, voice string, abort *turn.CancellationSignal) (<-chan turn.AudioChunk, <-chan error) {
	t.mu.Lock()
	fail := t.failNext
	t.failNext = false
	t.mu.Unlock()

	chunkCh := make(chan turn.AudioChunk, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)
		if fail {
			errCh <- turn.ErrTTSUnavailable
			return
		}
		if abort.IsSet() {
			return
		}
		select {
		case chunkCh <- turn.AudioChunk{Data: []byte(text), IsFinal: true}:
		case <-ctx.Done():
			return
		}
	}()
	return chunkCh, errCh
}

// RAG is a scriptable turn.RAGRetriever.
type RAG struct {
	Snippets []turn.RAGSnippet
	Err      error
}

func (r *RAG) Retrieve(ctx context.Context, query string, topK int) ([]turn.RAGSnippet, error) {
	return r.Snippets, r.Err
}

// Store records every TurnRecord handed to it.
type Store struct {
	mu      sync.Mutex
	records []turn.TurnRecord
}

func (s *Store) SaveTurn(ctx context.Context, rec turn.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) Records() []turn.TurnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]turn.TurnRecord, len(s.records))
	copy(out, s.records)
	return out
}
