package turn

import "time"

// ClientMessageType enumerates client→server wire message types (§6.1).
type ClientMessageType string

const (
	ClientConnect          ClientMessageType = "connect"
	ClientAudioChunk       ClientMessageType = "audio_chunk"
	ClientInterrupt        ClientMessageType = "interrupt"
	ClientPlaybackComplete ClientMessageType = "playback_complete"
	ClientUpdateSettings   ClientMessageType = "update_settings"
	ClientDisconnect       ClientMessageType = "disconnect"
	ClientPong             ClientMessageType = "pong"
)

// AudioFormat is the client_audio_chunk codec hint (§6.1). Only pcm is
// decoded by this module; wav/webm are accepted on the wire contract but
// codec work is a Non-goal, so those formats are rejected at the
// transport boundary with a recoverable WS_ error.
type AudioFormat string

const (
	AudioFormatPCM  AudioFormat = "pcm"
	AudioFormatWAV  AudioFormat = "wav"
	AudioFormatWebM AudioFormat = "webm"
)

// SettingsUpdate is the recognized update_settings payload (§6.1).
type SettingsUpdate struct {
	SilenceDebounceMS     *int     `json:"silence_debounce_ms,omitempty" validate:"omitempty,min=400,max=1200"`
	CancellationThreshold *float64 `json:"cancellation_threshold,omitempty" validate:"omitempty,min=0.10,max=0.50"`
	AdaptiveDebounceOn    *bool    `json:"adaptive_debounce_enabled,omitempty"`
	Voice                 *string  `json:"voice_id,omitempty"`
	LLMModel              *string  `json:"llm_model,omitempty"`
}

// ServerMessageType enumerates server→client wire message types (§6.1).
type ServerMessageType string

const (
	ServerSessionReady      ServerMessageType = "session_ready"
	ServerStateChange       ServerMessageType = "state_change"
	ServerTranscriptPartial ServerMessageType = "transcript_partial"
	ServerTranscriptFinal   ServerMessageType = "transcript_final"
	ServerAgentAudioChunk   ServerMessageType = "agent_audio_chunk"
	ServerAgentTextFallback ServerMessageType = "agent_text_fallback"
	ServerTurnComplete      ServerMessageType = "turn_complete"
	ServerTelemetry         ServerMessageType = "telemetry"
	ServerError             ServerMessageType = "error"
	ServerPing              ServerMessageType = "ping"
)

// ServerMessage is the single envelope emitted onto the client channel.
// Exactly one payload field is populated per Type, typed per-field so
// transport encoders don't need a type switch on an interface{} payload.
type ServerMessage struct {
	Type ServerMessageType `json:"type"`

	SessionReady      *SessionReadyPayload      `json:"session_ready,omitempty"`
	StateChange       *StateChangePayload       `json:"state_change,omitempty"`
	TranscriptPartial *TranscriptPayload        `json:"transcript_partial,omitempty"`
	TranscriptFinal   *TranscriptPayload        `json:"transcript_final,omitempty"`
	AgentAudioChunk   *AgentAudioChunkPayload   `json:"agent_audio_chunk,omitempty"`
	AgentTextFallback *AgentTextFallbackPayload `json:"agent_text_fallback,omitempty"`
	TurnComplete      *TurnCompletePayload      `json:"turn_complete,omitempty"`
	Telemetry         *TelemetryPayload         `json:"telemetry,omitempty"`
	Error             *ErrorPayload             `json:"error,omitempty"`
}

type SessionReadyPayload struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

type StateChangePayload struct {
	From      State     `json:"from_state"`
	To        State     `json:"to_state"`
	Timestamp time.Time `json:"timestamp"`
}

type TranscriptPayload struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type AgentAudioChunkPayload struct {
	Audio      []byte `json:"audio"`
	ChunkIndex int    `json:"chunk_index"`
	IsFinal    bool   `json:"is_final"`
}

type AgentTextFallbackPayload struct {
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

type TurnCompletePayload struct {
	TurnID          string    `json:"turn_id"`
	UserText        string    `json:"user_text"`
	AgentText       string    `json:"agent_text"`
	DurationMS      int64     `json:"duration_ms"`
	WasInterrupted  bool      `json:"was_interrupted"`
	Timestamp       time.Time `json:"timestamp"`
}

type TelemetryPayload struct {
	CancellationRate  float64 `json:"cancellation_rate"`
	AvgDebounceMS     int     `json:"avg_debounce_ms"`
	TurnLatencyMS     int64   `json:"turn_latency_ms"`
	TotalTurns        int     `json:"total_turns"`
	TokensWasted      int     `json:"tokens_wasted"`
	InterruptionCount int     `json:"interruption_count"`
}

type ErrorPayload struct {
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}
