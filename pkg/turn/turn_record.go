package turn

import "time"

// Outcome is the terminal classification of a Turn (§3).
type Outcome string

const (
	OutcomeCompleted             Outcome = "completed"
	OutcomeSpeculativelyCanceled Outcome = "speculatively_canceled"
	OutcomeInterrupted           Outcome = "interrupted"
	OutcomeLLMFailed             Outcome = "llm_failed"
	OutcomeTTSFailed             Outcome = "tts_failed"
)

// TurnRecord is the persisted shape of a closed turn (§6.4), emitted
// best-effort and non-blocking to a Store.
type TurnRecord struct {
	TurnID         string
	SessionID      string
	StartedAt      time.Time
	FinishedAt     time.Time
	UserText       string
	AgentText      string
	Outcome        Outcome
	Transitions    []StateChange
	WasInterrupted bool
	TokensPrompt   int
	TokensWasted   int
	LatencyMS      int64
}
