package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func tone(amplitude int16, samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

func TestVADConfirmsAfterConsecutiveFrames(t *testing.T) {
	v := NewVAD(0.1, 300*time.Millisecond)
	loud := tone(20000, 160)
	silent := tone(0, 160)

	var confirmed bool
	for i := 0; i < 6; i++ {
		if v.Observe(loud) {
			t.Fatalf("confirmed speech too early on frame %d", i)
		}
	}
	confirmed = v.Observe(loud)
	if !confirmed {
		t.Fatal("expected speech confirmed on the 7th consecutive loud frame")
	}
	if !v.Speaking() {
		t.Fatal("expected Speaking() true after confirmation")
	}

	v.Observe(silent)
	if !v.Speaking() {
		t.Fatal("expected Speaking() to stay true until silenceLimit elapses")
	}
}

func TestVADResetClearsState(t *testing.T) {
	v := NewVAD(0.1, 300*time.Millisecond)
	loud := tone(20000, 160)
	for i := 0; i < 7; i++ {
		v.Observe(loud)
	}
	if !v.Speaking() {
		t.Fatal("expected speaking before reset")
	}
	v.Reset()
	if v.Speaking() {
		t.Fatal("expected Speaking() false after Reset")
	}
}

func TestRmsOfSilence(t *testing.T) {
	if rms := rmsOf(tone(0, 100)); rms != 0 {
		t.Fatalf("expected 0 rms for silence, got %f", rms)
	}
}
