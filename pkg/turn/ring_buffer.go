package turn

// audioRingBuffer is the bounded inbound audio buffer of §5: up to
// maxBytes of raw frames (≈10s @16kHz mono ≈ 320KB by default). On
// overflow the oldest frames are dropped, never the newest.
type audioRingBuffer struct {
	frames   [][]byte
	size     int
	maxBytes int
}

func newAudioRingBuffer(maxBytes int) *audioRingBuffer {
	if maxBytes <= 0 {
		maxBytes = 320_000
	}
	return &audioRingBuffer{maxBytes: maxBytes}
}

// Push appends frame, dropping the oldest buffered frames if needed to
// stay within maxBytes. It returns the number of frames dropped.
func (r *audioRingBuffer) Push(frame []byte) (dropped int) {
	r.frames = append(r.frames, frame)
	r.size += len(frame)
	for r.size > r.maxBytes && len(r.frames) > 0 {
		r.size -= len(r.frames[0])
		r.frames = r.frames[1:]
		dropped++
	}
	return dropped
}

// Drain returns and clears all buffered frames, oldest first.
func (r *audioRingBuffer) Drain() [][]byte {
	out := r.frames
	r.frames = nil
	r.size = 0
	return out
}

func (r *audioRingBuffer) Len() int { return len(r.frames) }
