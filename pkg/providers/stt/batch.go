// Package stt provides STTAdapter implementations: a real-time
// streaming adapter for production use, and a family of batch
// HTTP-transcription adapters (Groq, OpenAI Whisper, Deepgram,
// AssemblyAI) adapted to the same duplex session contract by buffering
// audio and transcribing once on Finalize.
package stt

import (
	"context"
	"sync"

	"github.com/turnframe/turnframe/pkg/audio"
	"github.com/turnframe/turnframe/pkg/turn"
)

// transcribeFunc is the shared shape of every batch provider's HTTP
// call: WAV-wrapped PCM in, transcript text out.
type transcribeFunc func(ctx context.Context, wav []byte, language string) (string, error)

// batchAdapter turns a one-shot transcribeFunc into a turn.STTAdapter:
// audio frames accumulate in a buffer and are transcribed as a single
// call when Finalize is invoked. There is no partial/interim support,
// matching what these providers' REST APIs actually offer.
type batchAdapter struct {
	name       string
	sampleRate int
	transcribe transcribeFunc
}

func newBatchAdapter(name string, sampleRate int, fn transcribeFunc) *batchAdapter {
	return &batchAdapter{name: name, sampleRate: sampleRate, transcribe: fn}
}

func (a *batchAdapter) Name() string { return a.name }

func (a *batchAdapter) Open(ctx context.Context, cfg turn.STTConfig) (turn.STTSession, error) {
	sampleRate := a.sampleRate
	if cfg.SampleRate > 0 {
		sampleRate = cfg.SampleRate
	}
	return &batchSession{
		adapter:    a,
		sampleRate: sampleRate,
		language:   cfg.Language,
		ctx:        ctx,
		events:     make(chan turn.STTEvent, 2),
	}, nil
}

type batchSession struct {
	adapter    *batchAdapter
	sampleRate int
	language   string
	ctx        context.Context

	mu     sync.Mutex
	pcm    []byte
	closed bool

	events chan turn.STTEvent
}

func (s *batchSession) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.pcm = append(s.pcm, frame...)
	return nil
}

func (s *batchSession) Events() <-chan turn.STTEvent { return s.events }

// Finalize runs the batch transcription call over everything buffered
// since the last Finalize and emits at most one STTFinal (or STTError);
// it emits nothing when no audio is buffered or the transcript is empty.
func (s *batchSession) Finalize() error {
	s.mu.Lock()
	pcm := s.pcm
	s.pcm = nil
	closed := s.closed
	s.mu.Unlock()
	if closed || len(pcm) == 0 {
		return nil
	}

	wav := audio.NewWavBuffer(pcm, s.sampleRate)
	text, err := s.adapter.transcribe(s.ctx, wav, s.language)
	if err != nil {
		s.send(turn.STTEvent{Type: turn.STTError, Recoverable: true, Err: err})
		return err
	}
	if text == "" {
		return nil
	}
	s.send(turn.STTEvent{Type: turn.STTFinal, Text: text, Confidence: 1})
	return nil
}

func (s *batchSession) send(ev turn.STTEvent) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *batchSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	close(s.events)
	return nil
}
