package audio

import (
	"bytes"
	"math"
	"sync"
	"time"
)

// BargeInGate screens inbound audio frames that arrive while the agent
// is speaking, deciding whether a frame is genuine user speech (a real
// barge-in, §4.7.4) or an artifact of the agent's own TTS output
// leaking back into the microphone. It combines confirmed-speech-onset
// detection (VAD) with correlation against recently played audio into
// one reusable gate the Controller can consult at its single
// audio-frame suspension point.
//
// A nil *BargeInGate receiver is not supported; callers that
// don't want screening simply omit the gate from turn.Adapters.
type BargeInGate struct {
	vad *VAD

	mu            sync.Mutex
	played        bytes.Buffer
	maxPlayedBuf  int
	echoThreshold float64
	echoSilence   time.Duration
	lastPlayedAt  time.Time
}

// NewBargeInGate builds a gate tuned for 16kHz mono PCM, the sample rate
// §4.6 assumes.
func NewBargeInGate() *BargeInGate {
	return &BargeInGate{
		vad:           NewVAD(0.02, 300*time.Millisecond),
		maxPlayedBuf:  64_000, // ~2s at 16kHz/16-bit mono
		echoThreshold: 0.55,
		echoSilence:   1200 * time.Millisecond,
	}
}

// RecordPlayedAudio records one chunk the Controller just emitted to the
// client as agent_audio_chunk, so later inbound frames can be checked
// for correlation against it.
func (g *BargeInGate) RecordPlayedAudio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.played.Write(chunk)
	g.lastPlayedAt = time.Now()
	if g.played.Len() > g.maxPlayedBuf {
		data := g.played.Bytes()
		trimmed := data[len(data)-g.maxPlayedBuf:]
		g.played.Reset()
		g.played.Write(trimmed)
	}
}

// ShouldBargeIn reports whether frame represents genuine user speech
// that should trigger §4.7.4's barge-in path. A frame is rejected when
// it doesn't clear the VAD's confirmed-speech threshold, or when it
// correlates strongly with recently played TTS audio.
func (g *BargeInGate) ShouldBargeIn(frame []byte) bool {
	if !g.vad.Observe(frame) {
		return false
	}
	return !g.isEcho(frame)
}

func (g *BargeInGate) isEcho(input []byte) bool {
	g.mu.Lock()
	if time.Since(g.lastPlayedAt) > g.echoSilence {
		g.mu.Unlock()
		return false
	}
	ref := make([]byte, g.played.Len())
	copy(ref, g.played.Bytes())
	threshold := g.echoThreshold
	g.mu.Unlock()

	if len(ref) == 0 {
		return false
	}
	return correlate(input, ref) > threshold
}

// correlate computes the normalized cross-correlation between input and
// the tail of reference (accounting for playback-to-mic latency),
// returning a value in [0, 1].
func correlate(input, reference []byte) float64 {
	in := samplesOf(input)
	ref := samplesOf(reference)
	if len(in) == 0 || len(ref) == 0 {
		return 0
	}

	n := len(in)
	if n > len(ref) {
		n = len(ref)
	}
	in = in[:n]
	ref = ref[len(ref)-n:]

	inEnergy := energyOf(in)
	refEnergy := energyOf(ref)
	if inEnergy == 0 || refEnergy == 0 {
		return 0
	}

	dot := 0.0
	for i := range in {
		dot += in[i] * ref[i]
	}
	corr := dot / math.Sqrt(inEnergy*refEnergy)
	if corr < 0 {
		return 0
	}
	if corr > 1 {
		return 1
	}
	return corr
}

func samplesOf(data []byte) []float64 {
	samples := make([]float64, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		samples = append(samples, float64(sample)/32768.0)
	}
	return samples
}

func energyOf(samples []float64) float64 {
	e := 0.0
	for _, s := range samples {
		e += s * s
	}
	return e
}

// Reset clears both the VAD and the played-audio buffer, used at turn
// boundaries (new turn start, barge-in handled, playback complete).
func (g *BargeInGate) Reset() {
	g.vad.Reset()
	g.mu.Lock()
	g.played.Reset()
	g.lastPlayedAt = time.Time{}
	g.mu.Unlock()
}
