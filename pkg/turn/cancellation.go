package turn

import "sync/atomic"

// CancellationSignal is C4: a one-shot abort token (§3, §4.4). Once set,
// it stays set for the life of the turn. Set is O(1) and idempotent;
// observers check IsSet at every yield boundary, the same way a
// streaming adapter checks ctx.Done() inside its read loop.
type CancellationSignal struct {
	flag atomic.Bool
}

// NewCancellationSignal returns an unset signal.
func NewCancellationSignal() *CancellationSignal {
	return &CancellationSignal{}
}

// Set marks the signal observed-as-true forever. Calling it twice has the
// same observable effect as calling it once (§8).
func (c *CancellationSignal) Set() {
	c.flag.Store(true)
}

// IsSet reports whether the signal has been set.
func (c *CancellationSignal) IsSet() bool {
	return c.flag.Load()
}

// TurnCancellation bundles the two per-turn signals §3/§4.4 requires:
// independent abort handles for the LLM and TTS streams so cancelling
// one never silently cancels the other.
type TurnCancellation struct {
	LLM *CancellationSignal
	TTS *CancellationSignal
}

// NewTurnCancellation returns a fresh pair of unset signals.
func NewTurnCancellation() *TurnCancellation {
	return &TurnCancellation{LLM: NewCancellationSignal(), TTS: NewCancellationSignal()}
}

// SetBoth sets both signals, the barge-in/silent-cancel idiom used
// throughout TurnController (§4.7.4, §4.7.2.5).
func (c *TurnCancellation) SetBoth() {
	c.LLM.Set()
	c.TTS.Set()
}
