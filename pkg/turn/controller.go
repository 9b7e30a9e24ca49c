package turn

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ragTimeout bounds RAG retrieval (§4.7.2, §5): tight enough to never
	// exceed the minimum debounce value.
	ragTimeout = 350 * time.Millisecond
	// playbackWatchdogDuration bounds how long SPEAKING waits for a
	// playback_complete before the turn is force-closed (§4.7.3).
	playbackWatchdogDuration = 15 * time.Second
	// outboundQueueSize is the bounded client-channel backpressure queue
	// (§5 recommends 64).
	outboundQueueSize = 64
	// inboundAudioBufferBytes bounds the ring buffer to roughly 10s of
	// 16kHz mono PCM (§5).
	inboundAudioBufferBytes = 320_000
	// ttsQueueCapacity bounds the per-turn sentence queue the TTS pump
	// drains from. Comfortably larger than any realistic sentence count
	// per turn so enqueueing it never blocks the controller's lock.
	ttsQueueCapacity = 256
)

// Adapters bundles the external collaborators a Controller drives. STT,
// LLM and TTS are required; RAG and Store are optional (nil disables
// them, matching §4.6/§6.4's "optional collaborator" framing).
type Adapters struct {
	STT     STTAdapter
	LLM     LLMAdapter
	TTS     TTSAdapter
	RAG     RAGRetriever
	Store   Store
	BargeIn BargeInGate // optional; nil treats every frame as a barge-in
}

// Controller is C11: the per-session orchestrator (§4.7). It owns the
// state machine, transcript buffer, silence timer, cancellation signals,
// adaptive debounce controller, telemetry, and the session's turn
// history, and drives them from STT adapter events and client messages.
// All mutable state is guarded by mu: acquire, mutate the minimum,
// release before calling out to an adapter or emitting to the client.
type Controller struct {
	mu sync.Mutex

	id      string
	session *Session
	sm      *StateMachine
	buf     *TranscriptBuffer
	timer   *SilenceTimer

	debounceCtl *AdaptiveDebounceController
	telemetry   *Telemetry
	logger      Logger

	cfg      Config
	adapters Adapters

	cancel *TurnCancellation // current turn's signals; nil outside a turn

	sttSession STTSession
	audioRing  *audioRingBuffer

	holdBuffer       []string
	ttsQueue         chan ttsItem // per-turn; nil until the turn commits
	chunkIndex       int
	pendingSentences int
	llmDone          bool
	turnStartedAt    time.Time
	playbackWatchdog *time.Timer

	out chan ServerMessage

	ctx       context.Context
	cancelCtx context.CancelFunc

	closeOnce sync.Once
}

// NewController builds a Controller for one client connection. reg may
// be nil (Telemetry then skips Prometheus registration); logger may be
// nil (defaults to NoOpLogger).
func NewController(sessionID string, cfg Config, adapters Adapters, reg prometheus.Registerer, logger Logger) *Controller {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:          sessionID,
		session:     NewSession(sessionID, cfg),
		sm:          NewStateMachine(),
		buf:         NewTranscriptBuffer(),
		timer:       NewSilenceTimer(),
		debounceCtl: NewAdaptiveDebounceController(),
		telemetry:   NewTelemetry(sessionID, reg),
		logger:      logger,
		cfg:         cfg,
		adapters:    adapters,
		audioRing:   newAudioRingBuffer(inboundAudioBufferBytes),
		out:         make(chan ServerMessage, outboundQueueSize),
		ctx:         ctx,
		cancelCtx:   cancel,
	}
	c.debounceCtl.SetDebounce(cfg.SilenceDebounceMS)
	return c
}

// Events returns the outbound message channel a transport should drain.
func (c *Controller) Events() <-chan ServerMessage {
	return c.out
}

// SessionID returns the controller's session id.
func (c *Controller) SessionID() string {
	return c.id
}

// Start opens the STT session, begins dispatching its events, warms the
// TTS connection, and emits session_ready (§6.1's `connect` effect).
func (c *Controller) Start() error {
	sttCfg := STTConfig{
		SampleRate:  c.cfg.SampleRate,
		Channels:    c.cfg.Channels,
		Punctuation: true,
		Interim:     true,
		Language:    c.cfg.Language,
	}
	sess, err := c.adapters.STT.Open(c.ctx, sttCfg)
	if err != nil {
		return newError(CodeSTTUnavailable, true, err)
	}

	c.mu.Lock()
	c.sttSession = sess
	c.mu.Unlock()

	go c.dispatchSTTEvents(sess)

	if c.adapters.TTS != nil {
		go func() {
			if werr := c.adapters.TTS.Warm(c.ctx); werr != nil {
				c.logger.Warn("tts warm failed", "err", werr)
			}
		}()
	}

	c.emit(ServerMessage{
		Type:         ServerSessionReady,
		SessionReady: &SessionReadyPayload{SessionID: c.id, Timestamp: time.Now()},
	})
	return nil
}

func (c *Controller) dispatchSTTEvents(sess STTSession) {
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			c.handleSTTEvent(ev)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) handleSTTEvent(ev STTEvent) {
	switch ev.Type {
	case STTPartial:
		c.OnPartial(ev.Text, ev.Confidence)
	case STTFinal:
		c.OnFinal(ev.Text, ev.Confidence)
	case STTEndpoint:
		// endpointing is internal to the STT adapter; the controller acts
		// only on partial/final transcript events.
	case STTError:
		c.handleAdapterError(CodeSTTUnavailable, ev.Recoverable, ev.Err)
	}
}

// OnAudioFrame routes one inbound audio frame to the STT session
// (§4.7.1). It wakes an IDLE session into LISTENING. A frame that
// arrives during SPEAKING or COMMITTED is a barge-in when the optional
// BargeIn gate accepts it, or always when no gate is configured
// (§4.7.1, §4.7.4).
func (c *Controller) OnAudioFrame(frame []byte) {
	c.mu.Lock()
	state := c.sm.Current()
	var wake *StateChange
	if state == StateIdle {
		if sc, err := c.sm.Transition(StateListening); err == nil {
			wake = &sc
			state = StateListening
		}
	}
	sess := c.sttSession
	ring := c.audioRing
	c.mu.Unlock()

	if wake != nil {
		c.emitStateChange(*wake)
	}

	if state == StateSpeaking || state == StateCommitted {
		if c.adapters.BargeIn == nil || c.adapters.BargeIn.ShouldBargeIn(frame) {
			c.bargeIn("audio frame received during playback")
		}
	}

	if sess == nil {
		return
	}
	if err := sess.Send(frame); err != nil {
		if dropped := ring.Push(frame); dropped > 0 {
			c.telemetry.RecordBufferOverflow(dropped)
			c.emit(ServerMessage{
				Type: ServerError,
				Error: &ErrorPayload{
					Code: CodeAudioBufferOverflow, Message: "inbound audio buffer overflow",
					Recoverable: true, Timestamp: time.Now(),
				},
			})
		}
	}
}

// OnPartial handles an STT partial transcript (§4.7.1): it updates the
// display-only buffer, emits transcript_partial, and — if a speculative
// turn is in flight — cancels it, since new partial activity or a
// correction marker both mean the user kept talking.
func (c *Controller) OnPartial(text string, conf float64) {
	c.mu.Lock()
	c.buf.SetPartial(text)
	state := c.sm.Current()
	c.mu.Unlock()

	c.emit(ServerMessage{
		Type:              ServerTranscriptPartial,
		TranscriptPartial: &TranscriptPayload{Text: text, Confidence: conf, Timestamp: time.Now()},
	})

	if state == StateSpeculative {
		reason := "new partial activity"
		if HasCorrectionMarker(text) {
			reason = "correction marker"
		}
		c.cancelSpeculative(reason)
	}
}

// OnFinal handles an STT final transcript (§4.7.1). In LISTENING it
// starts a new turn and kicks off speculative execution (§4.7.2); a
// final arriving while the buffer is locked (COMMITTED/SPEAKING) is
// dropped, since an STT adapter shouldn't emit one while muted.
func (c *Controller) OnFinal(text string, conf float64) {
	c.mu.Lock()
	if c.buf.IsLocked() {
		c.mu.Unlock()
		c.logger.Warn("final transcript dropped: buffer locked")
		return
	}
	if err := c.buf.AppendFinal(text); err != nil {
		c.mu.Unlock()
		return
	}
	state := c.sm.Current()
	c.mu.Unlock()

	c.emit(ServerMessage{
		Type:            ServerTranscriptFinal,
		TranscriptFinal: &TranscriptPayload{Text: text, Confidence: conf, Timestamp: time.Now()},
	})

	if state == StateSpeculative {
		reason := "new final activity"
		if HasCorrectionMarker(text) {
			reason = "correction marker"
		}
		c.cancelSpeculative(reason)
		return
	}

	if state != StateListening {
		return
	}

	if c.adapters.BargeIn != nil {
		c.adapters.BargeIn.Reset()
	}

	c.mu.Lock()
	turn := c.session.StartTurn()
	turn.UserText = c.buf.CompleteText()
	c.turnStartedAt = time.Now()
	c.cancel = NewTurnCancellation()
	c.holdBuffer = nil
	c.ttsQueue = nil
	c.pendingSentences = 0
	c.chunkIndex = 0
	c.llmDone = false
	debounceMS := c.debounceCtl.Debounce()
	sc, err := c.sm.Transition(StateSpeculative)
	if err == nil {
		turn.Transitions = append(turn.Transitions, sc)
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("transition to SPECULATIVE failed", "err", err)
		return
	}
	c.emitStateChange(sc)

	turnID := turn.ID
	c.timer.Start(debounceMS, func() {
		c.OnSilenceTimeout(turnID)
	})

	go c.runSpeculativeTurn(turnID)
}

// emit performs a bounded, blocking send to the client channel: §5
// requires that the outbound queue apply backpressure rather than drop
// messages, since every message type carries ordering guarantees §5
// must preserve. It gives up only if the controller itself is shutting
// down.
func (c *Controller) emit(msg ServerMessage) {
	select {
	case c.out <- msg:
	case <-c.ctx.Done():
	}
}

func (c *Controller) emitStateChange(sc StateChange) {
	c.emit(ServerMessage{
		Type:        ServerStateChange,
		StateChange: &StateChangePayload{From: sc.From, To: sc.To, Timestamp: sc.Timestamp},
	})
}

func (c *Controller) handleAdapterError(code string, recoverable bool, err error) {
	c.logger.Error("adapter error", "code", code, "recoverable", recoverable, "err", err)
	c.emit(ServerMessage{
		Type: ServerError,
		Error: &ErrorPayload{
			Code: code, Message: errString(err), Recoverable: recoverable, Timestamp: time.Now(),
		},
	})
	if !recoverable {
		c.forceIdle("fatal adapter error")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// forceIdle is the §7 "fatal" path: close out any active turn and force
// the state machine to IDLE via the always-allowed "any -> IDLE" row.
func (c *Controller) forceIdle(reason string) {
	c.mu.Lock()
	turn := c.session.CurrentTurn()
	c.buf.Unlock()
	c.buf.Reset()
	c.timer.Cancel()
	if c.cancel != nil {
		c.cancel.SetBoth()
	}
	sc := c.sm.MustIdle()
	c.session.CloseTurn()
	c.stopTTSPumpLocked()
	c.mu.Unlock()

	c.stopPlaybackWatchdog()
	c.emitStateChange(sc)
	if turn != nil {
		turn.FinishedAt = time.Now()
		c.persistTurnRecord(turn, OutcomeLLMFailed)
	}
	c.logger.Warn("forced to IDLE", "reason", reason)
}

// persistTurnRecord writes a TurnRecord best-effort and non-blocking
// (§6.4, §7's never-block rule): the write runs on its own goroutine and
// its failure only increments a counter, never stalls the pipeline.
func (c *Controller) persistTurnRecord(turn *Turn, outcome Outcome) {
	if c.adapters.Store == nil || turn == nil {
		return
	}
	rec := TurnRecord{
		TurnID:         turn.ID,
		SessionID:      c.id,
		StartedAt:      turn.StartedAt,
		FinishedAt:     turn.FinishedAt,
		UserText:       turn.UserText,
		AgentText:      turn.AgentText,
		Outcome:        outcome,
		Transitions:    turn.Transitions,
		WasInterrupted: turn.WasInterrupted,
		TokensPrompt:   turn.TokensPrompt,
		TokensWasted:   turn.TokensWasted,
		LatencyMS:      turn.FinishedAt.Sub(turn.StartedAt).Milliseconds(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.adapters.Store.SaveTurn(ctx, rec); err != nil {
			c.logger.Warn("turn record write failed", "turn_id", rec.TurnID, "err", err)
		}
	}()
}
