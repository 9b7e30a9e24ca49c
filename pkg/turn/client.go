package turn

import "time"

// QuickClient is a convenience wrapper around a single Controller for
// simple integrations and tests that don't need a full transport: a
// small surface (SendAudio, Interrupt, PlaybackComplete, UpdateSettings,
// Next, Close) over the lower-level Controller.
type QuickClient struct {
	ctrl *Controller
}

// NewQuickClient opens a session directly against a set of adapters,
// bypassing Engine's multi-session bookkeeping.
func NewQuickClient(sessionID string, cfg Config, adapters Adapters) (*QuickClient, error) {
	ctrl := NewController(sessionID, cfg, adapters, nil, nil)
	if err := ctrl.Start(); err != nil {
		return nil, err
	}
	return &QuickClient{ctrl: ctrl}, nil
}

// SendAudio feeds one inbound audio frame.
func (q *QuickClient) SendAudio(frame []byte) {
	q.ctrl.OnAudioFrame(frame)
}

// Interrupt forces a barge-in (§4.7.4).
func (q *QuickClient) Interrupt() {
	q.ctrl.OnInterruptMessage()
}

// PlaybackComplete signals the client finished playing the current
// turn's audio (§4.7.1).
func (q *QuickClient) PlaybackComplete() {
	q.ctrl.OnPlaybackComplete()
}

// UpdateSettings applies a settings patch immediately (§6.1).
func (q *QuickClient) UpdateSettings(update SettingsUpdate) {
	q.ctrl.OnSettingsUpdate(update)
}

// Next blocks for up to timeout for the next server message, returning
// ok=false on timeout.
func (q *QuickClient) Next(timeout time.Duration) (ServerMessage, bool) {
	select {
	case msg := <-q.ctrl.Events():
		return msg, true
	case <-time.After(timeout):
		return ServerMessage{}, false
	}
}

// Close tears down the underlying session.
func (q *QuickClient) Close() {
	q.ctrl.Close()
}
