package turn

import "testing"

func TestCancellationSignal_SetIsIdempotent(t *testing.T) {
	sig := NewCancellationSignal()
	sig.Set()
	sig.Set()
	if !sig.IsSet() {
		t.Fatal("expected signal set")
	}
}

func TestCancellationSignal_DefaultUnset(t *testing.T) {
	sig := NewCancellationSignal()
	if sig.IsSet() {
		t.Fatal("expected signal unset by default")
	}
}

func TestTurnCancellation_SetBothSetsIndependentSignals(t *testing.T) {
	tc := NewTurnCancellation()
	tc.SetBoth()
	if !tc.LLM.IsSet() || !tc.TTS.IsSet() {
		t.Fatal("SetBoth must set both signals")
	}
}

func TestTurnCancellation_SignalsAreIndependent(t *testing.T) {
	tc := NewTurnCancellation()
	tc.LLM.Set()
	if tc.TTS.IsSet() {
		t.Fatal("setting LLM signal must not affect TTS signal")
	}
}
