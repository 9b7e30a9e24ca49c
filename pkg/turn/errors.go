package turn

import (
	"errors"
	"fmt"
)

// Sentinel errors, kept errors.Is-compatible for callers that want to
// branch on a specific failure without string-matching.
var (
	ErrEmptyTranscription     = errors.New("transcription returned empty text")
	ErrBufferLocked           = errors.New("transcript buffer is locked")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSTTUnavailable         = errors.New("speech-to-text service unavailable")
	ErrLLMUnavailable         = errors.New("language model service unavailable")
	ErrTTSUnavailable         = errors.New("text-to-speech service unavailable")
	ErrSessionExpired         = errors.New("session expired")
	ErrNilProvider            = errors.New("required provider is nil")
)

// Wire error codes (§6.2). Each is prefixed by the subsystem it belongs
// to; AUDIO_BUFFER_OVERFLOW, INVALID_STATE_TRANSITION, SESSION_EXPIRED
// and UNKNOWN_ERROR are cross-cutting.
const (
	CodeWSClosed               = "WS_CLOSED"
	CodeWSUnsupportedFormat    = "WS_UNSUPPORTED_FORMAT"
	CodeSTTUnavailable         = "STT_UNAVAILABLE"
	CodeSTTRecoverable         = "STT_RECOVERABLE"
	CodeLLMUnavailable         = "LLM_UNAVAILABLE"
	CodeLLMContextLength       = "LLM_CONTEXT_LENGTH"
	CodeTTSUnavailable         = "TTS_UNAVAILABLE"
	CodeTTSQuota               = "TTS_QUOTA"
	CodeDBWriteFailed          = "DB_WRITE_FAILED"
	CodeAudioBufferOverflow    = "AUDIO_BUFFER_OVERFLOW"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeSessionExpired         = "SESSION_EXPIRED"
	CodeUnknown                = "UNKNOWN_ERROR"
)

// Error is the structured form surfaced on the wire as an `error` message
// (§6.2). It wraps an underlying cause with fmt.Errorf("%w: %v", ...),
// but carries the extra fields the wire taxonomy requires.
type Error struct {
	Code        string
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, recoverable bool, err error) *Error {
	return &Error{Code: code, Recoverable: recoverable, Err: err}
}

// NewSTTUnavailableError wraps err as the wire STT_UNAVAILABLE code
// (§6.2), for adapters outside this package that exhaust their retry
// budget (§4.6).
func NewSTTUnavailableError(err error) error {
	return newError(CodeSTTUnavailable, false, fmt.Errorf("%w: %v", ErrSTTUnavailable, err))
}

// NewLLMUnavailableError wraps err as the wire LLM_UNAVAILABLE code.
func NewLLMUnavailableError(err error) error {
	return newError(CodeLLMUnavailable, false, fmt.Errorf("%w: %v", ErrLLMUnavailable, err))
}

// NewTTSUnavailableError wraps err as the wire TTS_UNAVAILABLE code.
func NewTTSUnavailableError(err error) error {
	return newError(CodeTTSUnavailable, false, fmt.Errorf("%w: %v", ErrTTSUnavailable, err))
}
