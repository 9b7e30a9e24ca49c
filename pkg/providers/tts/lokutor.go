// Package tts adapts streaming text-to-speech providers to turn.TTSAdapter.
package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/turnframe/turnframe/pkg/turn"
)

// LokutorTTS is a turn.TTSAdapter over Lokutor's websocket synthesis
// protocol, built around the duplex chunk-streaming shape §4.6
// requires. It holds one persistent, pre-warmed connection per session
// (§4.6, §5) and retries once on a transient failure before surfacing
// TTSUnavailable.
type LokutorTTS struct {
	apiKey string
	host   string
	scheme string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewLokutorTTS constructs the adapter; the connection is opened lazily
// by Warm or the first StreamAudio call.
func NewLokutorTTS(apiKey string) *LokutorTTS {
	return &LokutorTTS{apiKey: apiKey, host: "api.lokutor.com", scheme: "wss"}
}

func (t *LokutorTTS) Name() string { return "lokutor-tts" }

// Warm opens the pooled connection ahead of the first turn, minimizing
// first-chunk latency (§4.6's "pre-warm on session start").
func (t *LokutorTTS) Warm(ctx context.Context) error {
	_, err := t.getConn(ctx)
	return err
}

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("tts: dial lokutor: %w", err)
	}
	t.conn = conn
	return conn, nil
}

func (t *LokutorTTS) dropConn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close(websocket.StatusAbnormalClosure, "reconnecting")
		t.conn = nil
	}
}

// Abort forcibly tears down the connection, used for a fast hard-stop on
// barge-in (§4.6) beyond cooperative cancellation signal checks.
func (t *LokutorTTS) Abort() error {
	t.dropConn()
	return nil
}

// StreamAudio implements turn.TTSAdapter. It yields opaque audio chunks
// over the pooled connection, checking abort at every read (§4.4's
// "every yield boundary"), and retries the request once on a transient
// connection failure before giving up (§4.6).
func (t *LokutorTTS) StreamAudio(ctx context.Context, text string, voice string, abort *turn.CancellationSignal) (<-chan turn.AudioChunk, <-chan error) {
	chunkCh := make(chan turn.AudioChunk, 8)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		var lastErr error
		for attempt := 0; attempt < 2; attempt++ {
			if abort.IsSet() {
				return
			}
			if attempt > 0 {
				t.dropConn()
			}
			done, err := t.synthesizeOnce(ctx, text, voice, abort, chunkCh)
			if done {
				return
			}
			lastErr = err
		}
		errCh <- turn.NewTTSUnavailableError(lastErr)
	}()

	return chunkCh, errCh
}

// synthesizeOnce runs one attempt at the request/response exchange.
// Returns done=true when the stream completed normally (even if it
// produced zero chunks because abort fired mid-stream).
func (t *LokutorTTS) synthesizeOnce(ctx context.Context, text, voice string, abort *turn.CancellationSignal, chunkCh chan<- turn.AudioChunk) (done bool, err error) {
	conn, err := t.getConn(ctx)
	if err != nil {
		return false, err
	}

	req := map[string]interface{}{
		"text":    text,
		"voice":   voice,
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.dropConn()
		return false, fmt.Errorf("tts: write request: %w", err)
	}

	var pending []byte
	for {
		if abort.IsSet() {
			return true, nil
		}
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.dropConn()
			return false, fmt.Errorf("tts: read response: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if pending != nil {
				flush(chunkCh, pending, false)
			}
			pending = payload
		case websocket.MessageText:
			msg := string(payload)
			switch {
			case msg == "EOS":
				if pending != nil {
					flush(chunkCh, pending, true)
				}
				return true, nil
			case len(msg) >= 4 && msg[:4] == "ERR:":
				return false, fmt.Errorf("tts: provider error: %s", msg)
			}
		}
	}
}

func flush(ch chan<- turn.AudioChunk, data []byte, isFinal bool) {
	ch <- turn.AudioChunk{Data: data, IsFinal: isFinal}
}

// Close releases the pooled connection, for process shutdown.
func (t *LokutorTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
