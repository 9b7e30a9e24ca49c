package turn

import "context"

// Logger is the narrow structured-logging interface every component in
// this package takes. Implementations log key/value pairs the way
// log/slog and charmbracelet/log both do; turnlog.New wraps the latter.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Used when callers don't supply a Logger.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// STTEventType distinguishes the events a streaming STT adapter yields.
type STTEventType string

const (
	STTPartial  STTEventType = "partial"
	STTFinal    STTEventType = "final"
	STTEndpoint STTEventType = "endpoint"
	STTError    STTEventType = "error"
)

// STTEvent is one item from STTAdapter.Events(). Exactly one of Text (for
// partial/final) or Err (for error) is meaningful per Type.
type STTEvent struct {
	Type        STTEventType
	Text        string
	Confidence  float64
	Recoverable bool
	Err         error
}

// STTConfig configures an STT session per §4.6.
type STTConfig struct {
	SampleRate      int
	Channels        int
	Punctuation     bool
	Interim         bool
	EndpointingHint string
	Language        string
}

// STTAdapter is the duplex streaming boundary to the speech-to-text
// service: audio frames in, {partial, final, endpoint, error} events out.
type STTAdapter interface {
	// Open starts a session and returns a handle good for Send/Events/
	// Finalize/Close. The context governs the session's lifetime.
	Open(ctx context.Context, cfg STTConfig) (STTSession, error)
	Name() string
}

// STTSession is one open STT connection (§4.6). Send may be called
// concurrently with reading Events(); Finalize and Close are not.
type STTSession interface {
	// Send pushes a bounded audio frame (≤100KB per §6.1).
	Send(frame []byte) error
	// Events yields STTEvent until the session closes.
	Events() <-chan STTEvent
	// Finalize forces the current utterance to be finalized, used on
	// barge-in so a post-interrupt LISTENING state doesn't deadlock
	// waiting for a natural endpoint.
	Finalize() error
	Close() error
}

// LLMAdapter streams sentence-segmented model output. A sentence boundary
// may be decided by the adapter (e.g. provider-side) or, as in this
// module's default implementations, by wrapping a raw token stream with
// SentenceSegmenter.
type LLMAdapter interface {
	// StreamSentences yields full sentences computed from messages. The
	// returned channel closes when the stream ends or abort fires;
	// the error channel carries at most one error.
	StreamSentences(ctx context.Context, messages []Message, abort *CancellationSignal) (<-chan string, <-chan error)
	Name() string
}

// TTSAdapter streams opaque audio chunks for text, honoring abort at
// every yield point (§4.6). Implementations are expected to hold one
// pooled, pre-warmed connection per session.
type TTSAdapter interface {
	StreamAudio(ctx context.Context, text string, voice string, abort *CancellationSignal) (<-chan AudioChunk, <-chan error)
	// Abort forcibly tears down any in-flight synthesis call, used for a
	// fast hard-stop on barge-in beyond cooperative cancellation.
	Abort() error
	Warm(ctx context.Context) error
	Name() string
}

// AudioChunk is one unit of synthesized audio plus the final-chunk marker
// required by §4.7.3.
type AudioChunk struct {
	Data    []byte
	IsFinal bool
}

// RAGSnippet is one retrieved passage.
type RAGSnippet struct {
	Text      string
	SourceID  string
	Relevance float64
}

// RAGRetriever is the out-of-core collaborator: query in, ranked
// snippets out, bounded by ragTimeout at the call site.
type RAGRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]RAGSnippet, error)
}

// Message is one chat-style turn fed to the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store persists TurnRecords best-effort (§6.4); the pipeline must never
// block on it.
type Store interface {
	SaveTurn(ctx context.Context, rec TurnRecord) error
}

// BargeInGate optionally screens inbound audio frames that arrive while
// the agent is speaking or committed, before they are treated as a
// barge-in (§4.7.4). It lets the Controller distinguish genuine user
// speech from TTS echo bleeding back into the microphone or ambient
// noise. A nil gate (the default) means every such frame is a barge-in,
// matching the literal "any new audio frame" rule.
type BargeInGate interface {
	ShouldBargeIn(frame []byte) bool
	RecordPlayedAudio(chunk []byte)
	Reset()
}

// Config is the per-session tunable surface (§6.1's update_settings plus
// process-wide defaults). The same bounds are enforced by pkg/config on
// the process configuration and on each update_settings payload before
// Controller.OnSettingsUpdate runs; a Config value itself is not validated.
type Config struct {
	SampleRate            int     `validate:"required"`
	Channels              int     `validate:"required"`
	MaxContextMessages    int     `validate:"required,min=1"`
	Voice                 string  `validate:"required"`
	Language              string  `validate:"required"`
	SilenceDebounceMS     int     `validate:"min=400,max=1200"`
	CancellationThreshold float64 `validate:"min=0.10,max=0.50"`
	AdaptiveDebounceOn    bool
	MinWordsToInterrupt   int `validate:"min=1"`
	RAGEnabled            bool
}

// DefaultConfig matches §4.3 and §6.1 bounds.
func DefaultConfig() Config {
	return Config{
		SampleRate:            16000,
		Channels:              1,
		MaxContextMessages:    20,
		Voice:                 "F1",
		Language:              "en",
		SilenceDebounceMS:     MinDebounceMS,
		CancellationThreshold: 0.30,
		AdaptiveDebounceOn:    true,
		MinWordsToInterrupt:   1,
		RAGEnabled:            false,
	}
}
