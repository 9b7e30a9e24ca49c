package turn

import (
	"context"
	"strings"
	"time"
)

// cancelSpeculative implements §4.7.2 step 5: the silent cancel path. It
// discards the hold buffer, marks the turn speculatively_canceled, and
// returns to LISTENING without ever surfacing audio or agent text.
func (c *Controller) cancelSpeculative(reason string) {
	c.mu.Lock()
	if c.sm.Current() != StateSpeculative {
		c.mu.Unlock()
		return
	}
	c.timer.Cancel()
	if c.cancel != nil {
		c.cancel.SetBoth()
	}
	turn := c.session.CurrentTurn()
	wasted := len(c.holdBuffer)
	c.holdBuffer = nil
	sc, err := c.sm.Transition(StateListening)
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("transition out of SPECULATIVE failed", "err", err)
		return
	}
	c.emitStateChange(sc)

	if turn == nil {
		return
	}
	turn.Transitions = append(turn.Transitions, sc)
	turn.Outcome = OutcomeSpeculativelyCanceled
	turn.FinishedAt = time.Now()
	c.session.CloseTurn()

	c.telemetry.RecordSpeculativelyCanceled()
	c.telemetry.RecordTokensWasted(wasted)

	c.mu.Lock()
	debounce, _ := c.debounceCtl.RecordTurn(true, c.cfg.AdaptiveDebounceOn)
	c.mu.Unlock()
	c.telemetry.RecordDebounce(debounce)

	// Persisted best-effort for audit purposes, but no turn_complete is
	// emitted to the client: §4.7.2 requires this path to be silent.
	c.persistTurnRecord(turn, OutcomeSpeculativelyCanceled)

	c.logger.Info("speculative turn canceled", "reason", reason, "turn_id", turn.ID)
}

// runSpeculativeTurn drives §4.7.2's parallel RAG + LLM start for one
// turn. RAG and the first LLM stream start together; if RAG returns
// before any LLM token has been produced, the system prompt is spliced
// with retrieved context and the LLM stream is re-issued once. Once
// tokens have begun, RAG context is discarded for this turn — the
// documented choice for §9's left-open policy (see DESIGN.md).
func (c *Controller) runSpeculativeTurn(turnID string) {
	c.mu.Lock()
	cancel := c.cancel
	history := c.session.HistoryCopy()
	query := c.buf.CompleteText()
	ragEnabled := c.cfg.RAGEnabled && c.adapters.RAG != nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	messages := append(append([]Message{}, history...), Message{Role: "user", Content: query})

	ragDone := make(chan []RAGSnippet, 1)
	if ragEnabled {
		go func() {
			ctx, cancelRAG := context.WithTimeout(c.ctx, ragTimeout)
			defer cancelRAG()
			snippets, err := c.adapters.RAG.Retrieve(ctx, query, 3)
			if err != nil {
				c.logger.Warn("rag retrieval failed or timed out", "err", err)
				snippets = nil
			}
			ragDone <- snippets
		}()
	} else {
		ragDone <- nil
	}

	sentenceCh, errCh := c.adapters.LLM.StreamSentences(c.ctx, messages, cancel.LLM)

	firstTokenSeen := false
	ragConsumed := !ragEnabled

	for sentenceCh != nil || errCh != nil {
		select {
		case snippets := <-ragDone:
			ragDone = nil
			ragConsumed = true
			if !firstTokenSeen && len(snippets) > 0 {
				messages = spliceRAGContext(messages, snippets)
				sentenceCh, errCh = c.adapters.LLM.StreamSentences(c.ctx, messages, cancel.LLM)
			}
		case sentence, ok := <-sentenceCh:
			if !ok {
				sentenceCh = nil
				continue
			}
			firstTokenSeen = true
			if cancel.LLM.IsSet() {
				continue
			}
			c.deliverSentence(turnID, sentence)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.handleLLMFailure(turnID, err)
				return
			}
		case <-c.ctx.Done():
			return
		}
		_ = ragConsumed
	}

	c.markLLMDone(turnID)
}

// spliceRAGContext prepends retrieved snippets to the system message (or
// inserts one) so the re-issued LLM call sees them as grounding context.
func spliceRAGContext(messages []Message, snippets []RAGSnippet) []Message {
	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for _, s := range snippets {
		b.WriteString("- ")
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	out := make([]Message, 0, len(messages)+1)
	if len(messages) > 0 && messages[0].Role == "system" {
		out = append(out, Message{Role: "system", Content: messages[0].Content + "\n\n" + b.String()})
		out = append(out, messages[1:]...)
	} else {
		out = append(out, Message{Role: "system", Content: b.String()})
		out = append(out, messages...)
	}
	return out
}

// ttsItem is one entry on a turn's sentence queue (see runTTSPump):
// either a sentence to speak, or the end marker that tells the pump no
// further sentence will ever arrive for this turn.
type ttsItem struct {
	sentence string
	end      bool
}

// deliverSentence routes one LLM-segmented sentence: held in the buffer
// before COMMITTED, enqueued onto the turn's TTS pump afterward, with no
// buffering once the turn has committed (§4.7.2 step 6, §4.7.3). Once
// COMMITTED, c.ttsQueue already exists — OnSilenceTimeout creates it in
// the same critical section that flips the state — so every sentence
// enqueued here is strictly ordered after the hold buffer's.
func (c *Controller) deliverSentence(turnID, sentence string) {
	c.mu.Lock()
	turn := c.session.CurrentTurn()
	if turn == nil || turn.ID != turnID {
		c.mu.Unlock()
		return
	}
	state := c.sm.Current()
	if state != StateCommitted && state != StateSpeaking {
		c.holdBuffer = append(c.holdBuffer, sentence)
		c.mu.Unlock()
		return
	}
	queue := c.ttsQueue
	if queue != nil {
		c.pendingSentences++
	}
	c.mu.Unlock()
	if queue != nil {
		queue <- ttsItem{sentence: sentence}
	}
}

// markLLMDone records that the LLM stream has ended and, if the turn has
// already committed, enqueues the end marker so the TTS pump stops once
// it drains whatever is still queued. If the turn hasn't committed yet,
// OnSilenceTimeout enqueues the end marker itself once it sees llmDone.
func (c *Controller) markLLMDone(turnID string) {
	c.mu.Lock()
	turn := c.session.CurrentTurn()
	if turn == nil || turn.ID != turnID {
		c.mu.Unlock()
		return
	}
	c.llmDone = true
	queue := c.ttsQueue
	c.mu.Unlock()
	if queue != nil {
		queue <- ttsItem{end: true}
	}
}

func (c *Controller) handleLLMFailure(turnID string, err error) {
	c.mu.Lock()
	turn := c.session.CurrentTurn()
	if turn == nil || turn.ID != turnID {
		c.mu.Unlock()
		return
	}
	state := c.sm.Current()
	c.mu.Unlock()

	c.logger.Error("llm stream failed", "turn_id", turnID, "err", err)
	c.handleAdapterError(CodeLLMUnavailable, true, err)

	if state == StateSpeculative {
		c.cancelSpeculative("llm failure")
		return
	}

	c.mu.Lock()
	turn.Outcome = OutcomeLLMFailed
	turn.FinishedAt = time.Now()
	sc, _ := c.sm.Transition(StateIdle)
	turn.Transitions = append(turn.Transitions, sc)
	c.session.CloseTurn()
	c.stopTTSPumpLocked()
	c.mu.Unlock()
	c.emitStateChange(sc)
	c.finishTurn(turn, OutcomeLLMFailed, true)
}

// OnSilenceTimeout implements §4.7.1/§4.7.2 step 6: commit the turn,
// lock the transcript buffer, create the turn's TTS sentence queue, and
// hand the held sentences plus the still-running LLM stream's future
// output to a single pump goroutine (runTTSPump) so they reach TTS
// strictly in production order — never interleaved with each other.
func (c *Controller) OnSilenceTimeout(turnID string) {
	c.mu.Lock()
	if c.sm.Current() != StateSpeculative {
		c.mu.Unlock()
		return
	}
	turn := c.session.CurrentTurn()
	if turn == nil || turn.ID != turnID {
		c.mu.Unlock()
		return
	}
	c.buf.Lock()
	c.session.AddMessage("user", turn.UserText)
	sc, err := c.sm.Transition(StateCommitted)
	if err == nil {
		turn.Transitions = append(turn.Transitions, sc)
	}
	hold := c.holdBuffer
	c.holdBuffer = nil
	queue := make(chan ttsItem, ttsQueueCapacity)
	c.ttsQueue = queue
	for _, sentence := range hold {
		queue <- ttsItem{sentence: sentence}
	}
	c.pendingSentences += len(hold)
	if c.llmDone {
		queue <- ttsItem{end: true}
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("transition to COMMITTED failed", "err", err)
		return
	}
	c.emitStateChange(sc)

	go c.runTTSPump(turnID, queue)
}

// runTTSPump is the single consumer that serializes one turn's sentence
// delivery to TTS (§4.7.3): it drains held-then-live sentences in the
// order OnSilenceTimeout and deliverSentence enqueued them, one
// sendToTTS call at a time, so two sentences from the same turn can
// never interleave their audio chunks. It stops on the end marker, on
// session shutdown, or once signaled by stopTTSPumpLocked.
func (c *Controller) runTTSPump(turnID string, queue <-chan ttsItem) {
	for {
		select {
		case item := <-queue:
			if item.end {
				return
			}
			c.sendToTTS(turnID, item.sentence)
		case <-c.ctx.Done():
			return
		}
	}
}

// stopTTSPumpLocked signals the current turn's pump (if any) to stop
// once it drains whatever is already queued, so it never blocks forever
// on a turn that closed through a path other than the LLM stream
// finishing naturally (barge-in, TTS/LLM failure, watchdog, disconnect).
// Must be called with c.mu held.
func (c *Controller) stopTTSPumpLocked() {
	if c.ttsQueue == nil {
		return
	}
	select {
	case c.ttsQueue <- ttsItem{end: true}:
	default:
	}
}

// sendToTTS streams one sentence's audio to the client (§4.7.3). The
// first chunk of the turn flips COMMITTED -> SPEAKING and starts the
// playback watchdog; the final chunk of the final sentence is the only
// one marked is_final on the wire.
func (c *Controller) sendToTTS(turnID, sentence string) {
	c.mu.Lock()
	turn := c.session.CurrentTurn()
	if turn == nil || turn.ID != turnID {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	if cancel == nil || cancel.TTS.IsSet() {
		c.mu.Unlock()
		return
	}
	voice := c.session.Voice()
	turn.AgentText = strings.TrimSpace(turn.AgentText + " " + sentence)
	c.mu.Unlock()

	audioCh, errCh := c.adapters.TTS.StreamAudio(c.ctx, sentence, voice, cancel.TTS)
	for {
		select {
		case chunk, ok := <-audioCh:
			if !ok {
				return
			}
			c.deliverAudioChunk(turnID, chunk)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.handleTTSFailure(turnID, err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) deliverAudioChunk(turnID string, chunk AudioChunk) {
	c.mu.Lock()
	turn := c.session.CurrentTurn()
	if turn == nil || turn.ID != turnID {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil && c.cancel.TTS.IsSet() {
		c.mu.Unlock()
		return
	}
	state := c.sm.Current()
	var sc StateChange
	transitioned := false
	if state == StateCommitted {
		var err error
		sc, err = c.sm.Transition(StateSpeaking)
		if err == nil {
			transitioned = true
			turn.Transitions = append(turn.Transitions, sc)
			c.telemetry.RecordLatency(time.Since(c.turnStartedAt))
		}
	}
	idx := c.chunkIndex
	c.chunkIndex++
	trueFinal := false
	if chunk.IsFinal {
		c.pendingSentences--
		if c.llmDone && c.pendingSentences <= 0 {
			trueFinal = true
		}
	}
	c.mu.Unlock()

	if c.adapters.BargeIn != nil {
		c.adapters.BargeIn.RecordPlayedAudio(chunk.Data)
	}

	c.emit(ServerMessage{
		Type: ServerAgentAudioChunk,
		AgentAudioChunk: &AgentAudioChunkPayload{
			Audio: chunk.Data, ChunkIndex: idx, IsFinal: trueFinal,
		},
	})

	if transitioned {
		c.emitStateChange(sc)
		c.startPlaybackWatchdog(turnID)
	}
}

// handleTTSFailure implements §7's "degraded" policy: permanent TTS
// failure for the turn falls back to agent_text_fallback and closes the
// turn normally, with no further audio chunks.
func (c *Controller) handleTTSFailure(turnID string, err error) {
	c.mu.Lock()
	turn := c.session.CurrentTurn()
	c.mu.Unlock()
	if turn == nil || turn.ID != turnID {
		return
	}
	c.logger.Warn("tts failed, falling back to text", "turn_id", turnID, "err", err)

	c.emit(ServerMessage{
		Type:              ServerAgentTextFallback,
		AgentTextFallback: &AgentTextFallbackPayload{Text: turn.AgentText, Reason: "tts_failed"},
	})

	c.mu.Lock()
	turn.Outcome = OutcomeTTSFailed
	turn.FinishedAt = time.Now()
	sc, _ := c.sm.Transition(StateIdle)
	turn.Transitions = append(turn.Transitions, sc)
	c.buf.Unlock()
	c.buf.Reset()
	c.session.CloseTurn()
	c.stopTTSPumpLocked()
	c.mu.Unlock()

	c.stopPlaybackWatchdog()
	c.emitStateChange(sc)
	c.finishTurn(turn, OutcomeTTSFailed, true)
}

// finishTurn runs the shared turn-closure bookkeeping: debounce update,
// telemetry counters, turn_complete/telemetry emission, and best-effort
// persistence (§4.7.1's on_playback_complete effects, generalized to
// every terminal outcome that should notify the client).
func (c *Controller) finishTurn(turn *Turn, outcome Outcome, emitComplete bool) {
	if turn == nil {
		return
	}
	if outcome == OutcomeCompleted {
		c.telemetry.RecordCompleted()
	}
	if turn.AgentText != "" {
		c.session.AddMessage("assistant", turn.AgentText)
	}

	c.mu.Lock()
	debounce, rate := c.debounceCtl.RecordTurn(false, c.cfg.AdaptiveDebounceOn)
	c.mu.Unlock()
	c.telemetry.RecordDebounce(debounce)

	if emitComplete {
		c.emit(ServerMessage{
			Type: ServerTurnComplete,
			TurnComplete: &TurnCompletePayload{
				TurnID: turn.ID, UserText: turn.UserText, AgentText: turn.AgentText,
				DurationMS:     turn.FinishedAt.Sub(turn.StartedAt).Milliseconds(),
				WasInterrupted: turn.WasInterrupted, Timestamp: turn.FinishedAt,
			},
		})
	}
	if c.telemetry.ShouldReport() {
		payload := c.telemetry.Snapshot(debounce, rate)
		c.emit(ServerMessage{Type: ServerTelemetry, Telemetry: &payload})
	}
	c.persistTurnRecord(turn, outcome)
}
