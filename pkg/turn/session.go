package turn

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is one user utterance plus its response (§3). Fields mutate only
// through TurnController; Session owns exactly one active Turn at a time
// (§3's invariant).
type Turn struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	UserText       string
	AgentText      string
	WasInterrupted bool
	Outcome        Outcome
	TokensPrompt   int
	TokensWasted   int
	Transitions    []StateChange
}

// Session is the per-connection lifetime object (§3): it owns the
// current Turn and the message history fed to the LLM; the adaptive
// debounce value and rolling stats live on the Controller (debounceCtl,
// telemetry). One Session backs exactly one
// client connection and is exclusively owned by its TurnController,
// holding chat history plus voice/language prefs behind a RWMutex.
type Session struct {
	mu sync.RWMutex

	ID        string
	CreatedAt time.Time

	history     []Message
	maxMessages int

	voice    string
	language string

	current *Turn
}

// NewSession creates a session with the given caller-supplied id and
// config-derived defaults.
func NewSession(id string, cfg Config) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		maxMessages: cfg.MaxContextMessages,
		voice:       cfg.Voice,
		language:    cfg.Language,
	}
}

// Voice returns the session's current voice selection.
func (s *Session) Voice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice
}

// SetVoice applies a voice_id update from on_settings_update.
func (s *Session) SetVoice(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = v
}

// Language returns the session's current language.
func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage applies a language override.
func (s *Session) SetLanguage(l string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = l
}

// AddMessage appends to the bounded rolling history, trimming the oldest
// messages once MaxMessages is exceeded.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: role, Content: content})
	if s.maxMessages > 0 && len(s.history) > s.maxMessages {
		s.history = s.history[len(s.history)-s.maxMessages:]
	}
}

// HistoryCopy returns a defensive copy of the message history, safe to
// hand to an LLMAdapter call that may run outside the session's lock.
func (s *Session) HistoryCopy() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// SetSystemPrompt prepends/replaces the system message in history.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.history[:0:0]
	for _, m := range s.history {
		if m.Role != "system" {
			filtered = append(filtered, m)
		}
	}
	s.history = append([]Message{{Role: "system", Content: prompt}}, filtered...)
}

// ClearHistory drops all conversational turns, keeping the system prompt.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.history[:0:0]
	for _, m := range s.history {
		if m.Role == "system" {
			kept = append(kept, m)
		}
	}
	s.history = kept
}

// StartTurn creates a new current Turn (§3's lifecycle: "created on
// first final transcript of an IDLE/LISTENING-rooted sequence"). It
// panics if a turn is already active, since Session's invariant is at
// most one active turn — a caller bug, not a recoverable condition.
func (s *Session) StartTurn() *Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		panic("turn: StartTurn called while a turn is already active")
	}
	t := &Turn{ID: uuid.NewString(), StartedAt: time.Now()}
	s.current = t
	return t
}

// CurrentTurn returns the active turn, or nil.
func (s *Session) CurrentTurn() *Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CloseTurn clears the active turn (turn boundary, §3).
func (s *Session) CloseTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
