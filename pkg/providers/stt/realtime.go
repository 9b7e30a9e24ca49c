package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/turnframe/turnframe/pkg/turn"
)

// realtimeAudioBudget and realtimeStalenessLimit implement §4.6's
// reconnect policy: up to 5s of audio is buffered during an outage and
// replayed only if its staleness is under 3s once the connection is
// restored; anything older is discarded.
const (
	realtimeAudioBudget    = 5 * time.Second
	realtimeStalenessLimit = 3 * time.Second
)

// reconnectDelays is the fixed exponential backoff sequence §4.6
// requires: {0, 1, 2, 4, 8} seconds, 5 attempts total.
var reconnectDelays = []time.Duration{0, 1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}

// fixedBackoff replays reconnectDelays exactly once per Reset, adapting
// cenkalti/backoff/v4's BackOff interface to §4.6's literal delay
// sequence rather than a formula-driven exponential curve.
type fixedBackoff struct {
	idx int
}

func (b *fixedBackoff) NextBackOff() time.Duration {
	if b.idx >= len(reconnectDelays) {
		return backoff.Stop
	}
	d := reconnectDelays[b.idx]
	b.idx++
	return d
}

func (b *fixedBackoff) Reset() { b.idx = 0 }

// DeepgramStreamingSTT is a turn.STTAdapter over Deepgram's real-time
// websocket transcription API, built with gorilla/websocket around the
// STTSession contract, reconnect-with-replay policy, and
// Finalize-on-barge-in requirement.
type DeepgramStreamingSTT struct {
	apiKey string
	url    string
}

// NewDeepgramStreamingSTT builds the real-time adapter. Use this instead
// of the batch DeepgramSTT (deepgram.go) when low-latency interim
// results are required (§4.6's "interim results on").
func NewDeepgramStreamingSTT(apiKey string) *DeepgramStreamingSTT {
	return &DeepgramStreamingSTT{apiKey: apiKey, url: "wss://api.deepgram.com/v1/listen"}
}

func (d *DeepgramStreamingSTT) Name() string { return "deepgram-streaming-stt" }

func (d *DeepgramStreamingSTT) Open(ctx context.Context, cfg turn.STTConfig) (turn.STTSession, error) {
	sess := &realtimeSession{
		adapter: d,
		cfg:     cfg,
		ctx:     ctx,
		events:  make(chan turn.STTEvent, 32),
	}
	conn, err := sess.dial(ctx)
	if err != nil {
		return nil, turn.NewSTTUnavailableError(err)
	}
	sess.setConn(conn)
	go sess.run()
	return sess, nil
}

type bufferedFrame struct {
	data []byte
	at   time.Time
}

type realtimeSession struct {
	adapter *DeepgramStreamingSTT
	cfg     turn.STTConfig
	ctx     context.Context

	mu            sync.Mutex
	conn          *websocket.Conn
	closed        bool
	finalized     bool
	reconnecting  bool
	pending       []bufferedFrame
	pendingSz     int

	events chan turn.STTEvent
}

func (s *realtimeSession) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.adapter.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", s.cfg.SampleRate))
	q.Set("channels", fmt.Sprintf("%d", s.cfg.Channels))
	q.Set("interim_results", fmt.Sprintf("%t", s.cfg.Interim))
	q.Set("punctuate", fmt.Sprintf("%t", s.cfg.Punctuation))
	if s.cfg.Language != "" {
		q.Set("language", s.cfg.Language)
	}
	if s.cfg.EndpointingHint != "" {
		q.Set("endpointing", s.cfg.EndpointingHint)
	}
	u.RawQuery = q.Encode()

	headers := map[string][]string{"Authorization": {"Token " + s.adapter.apiKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("stt: dial deepgram streaming: %w", err)
	}
	return conn, nil
}

func (s *realtimeSession) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// Send pushes one audio frame (§4.7.1/§6.1's ≤100KB chunk). If the
// connection is currently down, the frame is buffered (bounded to
// realtimeAudioBudget) for replay on reconnect rather than dropped
// outright.
func (s *realtimeSession) Send(frame []byte) error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	if conn == nil {
		s.buffer(frame)
		return nil
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		s.buffer(frame)
		go s.reconnect()
		return nil
	}
	return nil
}

func (s *realtimeSession) buffer(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, bufferedFrame{data: frame, at: time.Now()})
	s.pendingSz += len(frame)
	// Trim from the front until the buffered window fits realtimeAudioBudget.
	for len(s.pending) > 0 && time.Since(s.pending[0].at) > realtimeAudioBudget {
		s.pendingSz -= len(s.pending[0].data)
		s.pending = s.pending[1:]
	}
}

// reconnect runs the §4.6 backoff sequence until a new connection opens
// or the attempts are exhausted, then replays whatever buffered audio is
// still fresh enough.
func (s *realtimeSession) reconnect() {
	s.mu.Lock()
	if s.reconnecting || s.closed {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.conn = nil
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	b := backoff.WithContext(&fixedBackoff{}, s.ctx)
	var conn *websocket.Conn
	err := s.ctx.Err()
	for delay := b.NextBackOff(); delay != backoff.Stop; delay = b.NextBackOff() {
		time.Sleep(delay)
		if conn, err = s.dial(s.ctx); err == nil {
			break
		}
	}
	if err != nil {
		s.emit(turn.STTEvent{Type: turn.STTError, Recoverable: false, Err: turn.NewSTTUnavailableError(err)})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	fresh := make([]bufferedFrame, 0, len(s.pending))
	for _, f := range s.pending {
		if time.Since(f.at) < realtimeStalenessLimit {
			fresh = append(fresh, f)
		}
	}
	s.pending = nil
	s.pendingSz = 0
	s.mu.Unlock()

	for _, f := range fresh {
		conn.WriteMessage(websocket.BinaryMessage, f.data)
	}
	go s.run()
}

func (s *realtimeSession) Events() <-chan turn.STTEvent { return s.events }

// Finalize forces the current utterance to close, used on barge-in so a
// post-interrupt LISTENING state doesn't wait on a natural endpoint
// (§4.6).
func (s *realtimeSession) Finalize() error {
	s.mu.Lock()
	conn := s.conn
	s.finalized = true
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.WriteJSON(map[string]string{"type": "Finalize"})
}

func (s *realtimeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.WriteJSON(map[string]string{"type": "CloseStream"})
		return conn.Close()
	}
	return nil
}

func (s *realtimeSession) emit(ev turn.STTEvent) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// run reads the websocket until it errors or the session closes,
// translating Deepgram's response frames into STTEvents.
func (s *realtimeSession) run() {
	for {
		s.mu.Lock()
		conn := s.conn
		closed := s.closed
		s.mu.Unlock()
		if closed || conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			already := s.closed
			s.mu.Unlock()
			if already {
				return
			}
			go s.reconnect()
			return
		}
		s.handleMessage(message)
	}
}

type deepgramStreamResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *realtimeSession) handleMessage(raw []byte) {
	var resp deepgramStreamResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return
	}
	switch resp.Type {
	case "Results":
		if len(resp.Channel.Alternatives) == 0 {
			return
		}
		alt := resp.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}
		if resp.IsFinal {
			s.emit(turn.STTEvent{Type: turn.STTFinal, Text: alt.Transcript, Confidence: alt.Confidence})
		} else {
			s.emit(turn.STTEvent{Type: turn.STTPartial, Text: alt.Transcript, Confidence: alt.Confidence})
		}
	case "UtteranceEnd", "SpeechFinal":
		s.emit(turn.STTEvent{Type: turn.STTEndpoint})
	}
}

var _ turn.STTAdapter = (*DeepgramStreamingSTT)(nil)
