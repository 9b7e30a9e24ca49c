package turn

import (
	"strings"
	"sync"
)

// TranscriptBuffer is C2: merges partials/finals for one active turn
// (§4.2). It is session-private; the lock it exposes is the "locked"
// invariant §4.2 names, not a general-purpose mutex (general mutual
// exclusion for the containing turn is the caller's StateMachine/actor).
type TranscriptBuffer struct {
	mu            sync.Mutex
	partial       string
	finalSegments []string
	locked        bool
}

// NewTranscriptBuffer returns an empty, unlocked buffer.
func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{}
}

// SetPartial overwrites partial_text; fails silently if locked (§4.2).
func (b *TranscriptBuffer) SetPartial(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return
	}
	b.partial = text
}

// AppendFinal clears partial_text and appends to final_segments, or
// returns ErrBufferLocked if locked.
func (b *TranscriptBuffer) AppendFinal(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return ErrBufferLocked
	}
	b.partial = ""
	b.finalSegments = append(b.finalSegments, text)
	return nil
}

// Lock is idempotent; call on entering COMMITTED.
func (b *TranscriptBuffer) Lock() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locked = true
}

// Unlock is idempotent; call on returning to IDLE/LISTENING at turn end.
func (b *TranscriptBuffer) Unlock() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locked = false
}

// IsLocked reports the lock state.
func (b *TranscriptBuffer) IsLocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Partial returns the latest partial text (display-only; never fed to
// the LLM per §3's invariant).
func (b *TranscriptBuffer) Partial() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.partial
}

// CompleteText joins final_segments with single spaces (§3, §4.2).
func (b *TranscriptBuffer) CompleteText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.finalSegments, " ")
}

// Reset clears all state, for the turn boundary.
func (b *TranscriptBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partial = ""
	b.finalSegments = nil
	b.locked = false
}
