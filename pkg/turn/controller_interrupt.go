package turn

import "time"

// bargeIn implements §4.7.4: during SPEAKING or COMMITTED, any trigger
// (audio frame or explicit interrupt) cancels both in-flight signals,
// finalizes the STT utterance, resets the transcript buffer for the next
// one, transitions back to LISTENING, and closes the outgoing turn as
// interrupted. It is a no-op in any other state.
func (c *Controller) bargeIn(reason string) {
	c.mu.Lock()
	state := c.sm.Current()
	if state != StateSpeaking && state != StateCommitted {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel.SetBoth()
	}
	sess := c.sttSession
	turn := c.session.CurrentTurn()
	c.buf.Unlock()
	c.buf.Reset()
	sc, err := c.sm.Transition(StateListening)
	if err == nil && turn != nil {
		turn.Transitions = append(turn.Transitions, sc)
	}
	c.session.CloseTurn()
	c.stopTTSPumpLocked()
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("barge-in transition failed", "err", err, "from_state", state)
		return
	}

	if sess != nil {
		if ferr := sess.Finalize(); ferr != nil {
			c.logger.Warn("stt finalize failed during barge-in", "err", ferr)
		}
	}
	if c.adapters.TTS != nil {
		if aerr := c.adapters.TTS.Abort(); aerr != nil {
			c.logger.Warn("tts abort failed during barge-in", "err", aerr)
		}
	}
	c.stopPlaybackWatchdog()
	c.emitStateChange(sc)

	if turn != nil {
		turn.WasInterrupted = true
		turn.Outcome = OutcomeInterrupted
		turn.FinishedAt = time.Now()
		c.telemetry.RecordInterruption()
		c.finishTurn(turn, OutcomeInterrupted, true)
	}
	c.logger.Info("barge-in", "reason", reason, "from_state", state)
}

// OnInterruptMessage is the explicit client counterpart to an
// audio-frame barge-in (§4.7.1): identical effect, different trigger.
func (c *Controller) OnInterruptMessage() {
	c.bargeIn("explicit interrupt message")
}

// OnPlaybackComplete implements §4.7.1: SPEAKING -> IDLE, turn closure,
// adaptive debounce update, and turn_complete/telemetry emission. The
// session returns to LISTENING only once the next audio frame arrives
// (OnAudioFrame's IDLE wake-up), not here.
func (c *Controller) OnPlaybackComplete() {
	c.mu.Lock()
	if c.sm.Current() != StateSpeaking {
		c.mu.Unlock()
		return
	}
	turn := c.session.CurrentTurn()
	sc, err := c.sm.Transition(StateIdle)
	if err == nil && turn != nil {
		turn.Transitions = append(turn.Transitions, sc)
	}
	c.buf.Unlock()
	c.buf.Reset()
	c.session.CloseTurn()
	c.stopTTSPumpLocked()
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("transition to IDLE failed", "err", err)
		return
	}
	c.stopPlaybackWatchdog()
	c.emitStateChange(sc)

	if turn != nil {
		turn.FinishedAt = time.Now()
		turn.Outcome = OutcomeCompleted
		c.finishTurn(turn, OutcomeCompleted, true)
	}
}

// startPlaybackWatchdog arms the 15s timer of §4.7.3: if no
// playback_complete arrives in time, the turn is force-completed with a
// logged warning rather than left hanging in SPEAKING forever.
func (c *Controller) startPlaybackWatchdog(turnID string) {
	c.mu.Lock()
	if c.playbackWatchdog != nil {
		c.playbackWatchdog.Stop()
	}
	c.playbackWatchdog = time.AfterFunc(playbackWatchdogDuration, func() {
		c.onPlaybackWatchdogExpired(turnID)
	})
	c.mu.Unlock()
}

func (c *Controller) stopPlaybackWatchdog() {
	c.mu.Lock()
	if c.playbackWatchdog != nil {
		c.playbackWatchdog.Stop()
		c.playbackWatchdog = nil
	}
	c.mu.Unlock()
}

func (c *Controller) onPlaybackWatchdogExpired(turnID string) {
	c.mu.Lock()
	if c.sm.Current() != StateSpeaking {
		c.mu.Unlock()
		return
	}
	turn := c.session.CurrentTurn()
	if turn == nil || turn.ID != turnID {
		c.mu.Unlock()
		return
	}
	sc, err := c.sm.Transition(StateIdle)
	if err == nil {
		turn.Transitions = append(turn.Transitions, sc)
	}
	c.buf.Unlock()
	c.buf.Reset()
	c.session.CloseTurn()
	c.stopTTSPumpLocked()
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("playback watchdog transition failed", "err", err)
		return
	}
	c.logger.Warn("playback watchdog expired without playback_complete", "turn_id", turnID)
	c.emitStateChange(sc)

	turn.FinishedAt = time.Now()
	turn.Outcome = OutcomeCompleted
	c.finishTurn(turn, OutcomeCompleted, true)
}

// OnSettingsUpdate applies a subset of tunables immediately (§6.1).
// llm_model is accepted on the wire but not applied: no Config field,
// message or LLM adapter call receives it.
func (c *Controller) OnSettingsUpdate(update SettingsUpdate) {
	c.mu.Lock()
	if update.SilenceDebounceMS != nil {
		c.cfg.SilenceDebounceMS = *update.SilenceDebounceMS
		c.debounceCtl.SetDebounce(*update.SilenceDebounceMS)
	}
	if update.CancellationThreshold != nil {
		c.cfg.CancellationThreshold = *update.CancellationThreshold
	}
	if update.AdaptiveDebounceOn != nil {
		c.cfg.AdaptiveDebounceOn = *update.AdaptiveDebounceOn
	}
	c.mu.Unlock()

	if update.Voice != nil {
		c.session.SetVoice(*update.Voice)
	}
}

// OnDisconnect implements §4.7.1: cancel all in-flight work, flush
// pending writes, and tear the session down. It is idempotent.
func (c *Controller) OnDisconnect() {
	c.Close()
}

// Close cancels the controller's context (unblocking every adapter call
// and suspension point), closes the STT session, and stops background
// work. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		turn := c.session.CurrentTurn()
		if c.cancel != nil {
			c.cancel.SetBoth()
		}
		c.timer.Cancel()
		sess := c.sttSession
		c.session.CloseTurn()
		c.stopTTSPumpLocked()
		c.mu.Unlock()

		c.stopPlaybackWatchdog()
		c.cancelCtx()

		if sess != nil {
			if err := sess.Close(); err != nil {
				c.logger.Warn("stt session close failed", "err", err)
			}
		}
		if turn != nil && turn.FinishedAt.IsZero() {
			turn.FinishedAt = time.Now()
			turn.Outcome = OutcomeInterrupted
			c.persistTurnRecord(turn, OutcomeInterrupted)
		}
	})
}
