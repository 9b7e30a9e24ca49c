package audio

import "testing"

func TestBargeInGateAllowsSpeechWithoutPlayback(t *testing.T) {
	g := NewBargeInGate()
	loud := tone(20000, 160)
	var allowed bool
	for i := 0; i < 7; i++ {
		allowed = g.ShouldBargeIn(loud)
	}
	if !allowed {
		t.Fatal("expected confirmed speech with no played audio to trigger a barge-in")
	}
}

func TestBargeInGateRejectsEcho(t *testing.T) {
	g := NewBargeInGate()
	played := tone(20000, 1600)
	g.RecordPlayedAudio(played)

	echoFrame := played[:320]
	var allowed bool
	for i := 0; i < 7; i++ {
		allowed = g.ShouldBargeIn(echoFrame)
	}
	if allowed {
		t.Fatal("expected a frame correlated with recently played audio to be rejected as echo")
	}
}

func TestBargeInGateResetClearsPlayedBuffer(t *testing.T) {
	g := NewBargeInGate()
	g.RecordPlayedAudio(tone(20000, 1600))
	g.Reset()

	echoFrame := tone(20000, 320)
	var allowed bool
	for i := 0; i < 7; i++ {
		allowed = g.ShouldBargeIn(echoFrame)
	}
	if !allowed {
		t.Fatal("expected Reset to drop the played buffer so identical audio is no longer treated as echo")
	}
}

func TestCorrelateIdenticalSignal(t *testing.T) {
	s := tone(15000, 200)
	if c := correlate(s, s); c < 0.99 {
		t.Fatalf("expected near-1.0 correlation for identical signal, got %f", c)
	}
}

func TestCorrelateSilenceIsZero(t *testing.T) {
	silence := tone(0, 200)
	if c := correlate(silence, silence); c != 0 {
		t.Fatalf("expected 0 correlation for zero-energy signal, got %f", c)
	}
}
