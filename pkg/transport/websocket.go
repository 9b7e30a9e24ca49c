// Package transport is the out-of-core collaborator §1 and §6.1
// describe only at its interface: a duplex, framed-JSON message channel
// between one client and its Controller, built over
// github.com/coder/websocket the way pkg/providers/tts's Lokutor
// adapter already uses it for the TTS leg. It owns nothing the core
// cares about — decoding the wire envelope, running the heartbeat, and
// draining Controller.Events() onto the socket — so pkg/turn stays
// transport-agnostic.
package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/turnframe/turnframe/pkg/config"
	"github.com/turnframe/turnframe/pkg/turn"
)

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

// clientEnvelope is the wire shape of every client->server message
// (§6.1). Exactly the fields relevant to Type are populated.
type clientEnvelope struct {
	Type string `json:"type"`

	// audio_chunk
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`

	// update_settings
	SilenceDebounceMS     *int     `json:"silence_debounce_ms,omitempty"`
	CancellationThreshold *float64 `json:"cancellation_threshold,omitempty"`
	AdaptiveDebounceOn    *bool    `json:"adaptive_debounce_enabled,omitempty"`
	VoiceID               *string  `json:"voice_id,omitempty"`
	LLMModel              *string  `json:"llm_model,omitempty"`
}

// Session drives one client connection's read/write pumps against a
// turn.Controller.
type Session struct {
	conn *websocket.Conn
	ctrl *turn.Controller
}

// Serve opens a turn.Controller for sessionID on engine, then blocks
// running the duplex pump until the connection closes or ctx is
// canceled. Closing the websocket tears the Controller down (§4.7.1's
// on_disconnect).
func Serve(ctx context.Context, conn *websocket.Conn, engine *turn.Engine, sessionID string) error {
	ctrl, err := engine.NewSession(sessionID)
	if err != nil {
		return fmt.Errorf("transport: new session: %w", err)
	}
	s := &Session{conn: conn, ctrl: ctrl}
	defer engine.CloseSession(sessionID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- s.writePump(ctx) }()
	go func() { errCh <- s.readPump(ctx) }()
	go s.heartbeat(ctx)

	err = <-errCh
	cancel()
	return err
}

// writePump drains ctrl.Events() onto the socket, preserving the
// per-session ordering guarantees of §5 (state_change order,
// chunk_index order, transcript_final-before-audio, turn_complete-last)
// by writing one message at a time off the single Events() channel.
func (s *Session) writePump(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-s.ctrl.Events():
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, s.conn, msg); err != nil {
				return fmt.Errorf("transport: write: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) readPump(ctx context.Context) error {
	for {
		var env clientEnvelope
		if err := wsjson.Read(ctx, s.conn, &env); err != nil {
			return fmt.Errorf("transport: read: %w", err)
		}
		s.dispatch(env)
		if turn.ClientMessageType(env.Type) == turn.ClientDisconnect {
			return nil
		}
	}
}

func (s *Session) dispatch(env clientEnvelope) {
	switch turn.ClientMessageType(env.Type) {
	case turn.ClientAudioChunk:
		s.handleAudioChunk(env)
	case turn.ClientInterrupt:
		s.ctrl.OnInterruptMessage()
	case turn.ClientPlaybackComplete:
		s.ctrl.OnPlaybackComplete()
	case turn.ClientUpdateSettings:
		s.handleSettingsUpdate(env)
	case turn.ClientDisconnect:
		s.ctrl.OnDisconnect()
	case turn.ClientPong, turn.ClientConnect:
		// pong is consumed by the websocket control-frame heartbeat;
		// connect is implicit in accepting the socket.
	}
}

// handleAudioChunk decodes a base64 PCM frame and routes it to the
// Controller. Only pcm is decoded (§6.1); wav/webm are rejected with a
// recoverable WS_UNSUPPORTED_FORMAT error rather than attempted, since
// codec work is an explicit Non-goal (§1).
func (s *Session) handleAudioChunk(env clientEnvelope) {
	frame, rejectMsg := decodeAudioChunk(env)
	if rejectMsg != "" {
		s.emitError(turn.CodeWSUnsupportedFormat, rejectMsg, true)
		return
	}
	s.ctrl.OnAudioFrame(frame)
}

// decodeAudioChunk applies the format/decode checks in isolation from
// the socket, returning a non-empty rejection message instead of a
// decoded frame when the envelope can't be accepted.
func decodeAudioChunk(env clientEnvelope) (frame []byte, rejectMsg string) {
	if env.Format != "" && env.Format != "pcm" {
		return nil, "only pcm audio_chunk frames are supported"
	}
	frame, err := base64.StdEncoding.DecodeString(env.Audio)
	if err != nil {
		return nil, "invalid base64 audio payload"
	}
	return frame, ""
}

func (s *Session) handleSettingsUpdate(env clientEnvelope) {
	update := turn.SettingsUpdate{
		SilenceDebounceMS:     env.SilenceDebounceMS,
		CancellationThreshold: env.CancellationThreshold,
		AdaptiveDebounceOn:    env.AdaptiveDebounceOn,
		Voice:                 env.VoiceID,
		LLMModel:              env.LLMModel,
	}
	if err := config.ValidateSettingsUpdate(update); err != nil {
		s.emitError(turn.CodeWSUnsupportedFormat, err.Error(), true)
		return
	}
	s.ctrl.OnSettingsUpdate(update)
}

func (s *Session) emitError(code, message string, recoverable bool) {
	_ = wsjson.Write(context.Background(), s.conn, turn.ServerMessage{
		Type: turn.ServerError,
		Error: &turn.ErrorPayload{
			Code: code, Message: message, Recoverable: recoverable, Timestamp: time.Now(),
		},
	})
}

// heartbeat implements §5: a ping every 30s, closing the connection if
// no pong arrives within 60s. coder/websocket's own Ping already
// round-trips a control frame, which doubles as the wire `ping`/`pong`
// liveness check §6.1 describes at the application level.
func (s *Session) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pongTimeout)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
