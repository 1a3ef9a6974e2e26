package engine

import (
	"time"
)

// dispatch is the work order the scheduler hands off for one trigger:
// everything startTrigger needs without re-reading engine state.
type dispatch struct {
	key       deckKey
	uri       string
	volume    float64
	remaining time.Duration
}

// startLoopsLocked launches the scheduler and progress goroutines for
// the current session. The caller holds the engine mutex.
func (e *Engine) startLoopsLocked() {
	done := make(chan struct{})
	e.stopLoops = done
	gen := e.gen
	go e.runScheduler(done, gen)
	go e.runProgress(done, gen)
}

// stopLoopsLocked signals both loops to exit. A tick already in flight
// re-checks the generation under the mutex and becomes a no-op, so the
// loops never act on a session that ended after the signal. The caller
// holds the engine mutex.
func (e *Engine) stopLoopsLocked() {
	if e.stopLoops == nil {
		return
	}
	close(e.stopLoops)
	e.stopLoops = nil
}

func (e *Engine) runScheduler(done <-chan struct{}, gen uint64) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.tick(gen)
		}
	}
}

func (e *Engine) runProgress(done <-chan struct{}, gen uint64) {
	ticker := time.NewTicker(e.progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.gen != gen || !e.playing {
				e.mu.Unlock()
				return
			}
			fn := e.onProgress
			pos := e.positionLocked()
			e.mu.Unlock()
			if fn != nil {
				fn(pos)
			}
		}
	}
}

// tick runs one scheduler pass: detect end of the main recording,
// collect the triggers whose windows cover the current position, and
// start them. Trigger opening happens outside the mutex; generation and
// pass counters guard against the session moving underneath.
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	if e.gen != gen || !e.playing {
		e.mu.Unlock()
		return
	}
	now := e.positionLocked()

	if e.mainDuration > 0 && now >= e.mainDuration-endThreshold {
		fn := e.onEnded
		end := e.mainDuration
		e.mu.Unlock()
		// Listener first, while the session still looks live, then park
		// exactly at the end.
		if fn != nil {
			fn()
		}
		if err := e.Pause(); err != nil {
			e.log.Debug("pause at end failed", "error", err)
		}
		if err := e.Seek(end); err != nil {
			e.log.Debug("seek to end failed", "error", err)
		}
		e.log.Info("playback finished", "duration", end)
		return
	}

	due := e.collectDueLocked(now)
	pass := e.pass
	e.mu.Unlock()

	for _, d := range due {
		e.startTrigger(gen, pass, d)
	}
}

// collectDueLocked marks every trigger whose window covers now as
// started and returns dispatch orders for those allowed to sound.
// Marking happens even when a solo or mute denies the deck: a trigger
// fires at most once per pass, it does not retry when the mix changes
// mid-window. The caller holds the engine mutex.
func (e *Engine) collectDueLocked(now time.Duration) []dispatch {
	var due []dispatch
	for i := range e.cfg.Triggers {
		tr := &e.cfg.Triggers[i]
		if _, ok := e.started[tr.ID]; ok {
			continue
		}
		if tr.At > now+triggerTolerance || now > tr.At+tr.Duration {
			continue
		}
		e.started[tr.ID] = struct{}{}

		if !e.cfg.deckAllowed(tr.Deck) {
			e.log.Debug("trigger denied by mix state", "trigger", tr.ID, "deck", tr.Deck)
			continue
		}
		elapsed := now - tr.At
		if elapsed < 0 {
			elapsed = 0
		}
		remaining := tr.Duration - elapsed
		if remaining <= 0 {
			continue
		}
		due = append(due, dispatch{
			key:       deckKey{Deck: tr.Deck, Trigger: tr.ID},
			uri:       tr.URI,
			volume:    deckVolume(&e.cfg, tr.Deck),
			remaining: remaining,
		})
	}
	return due
}

// startTrigger opens the clip for one dispatch order and registers the
// deck. A failed open is logged and dropped; the trigger stays marked
// started so the scheduler does not retry it every tick.
func (e *Engine) startTrigger(gen, pass uint64, d dispatch) {
	p, err := e.opener.Open(d.uri, OpenOptions{Autoplay: true, InitialVolume: d.volume})
	if err != nil {
		triggerFailures.Inc()
		e.log.Warn("trigger start failed",
			"trigger", d.key.Trigger,
			"deck", d.key.Deck,
			"uri", d.uri,
			"error", err)
		return
	}

	e.mu.Lock()
	if e.gen != gen || e.pass != pass || !e.playing {
		e.mu.Unlock()
		_ = p.Unload()
		e.log.Debug("trigger superseded", "trigger", d.key.Trigger)
		return
	}
	e.removeDeckLocked(d.key)
	key := d.key
	nd := &deck{player: p, gen: gen, pass: pass}
	nd.cutoff = e.clock.AfterFunc(d.remaining, func() {
		e.cutoffDeck(gen, pass, key)
	})
	e.decks[key] = nd
	activeDecks.Set(float64(len(e.decks)))
	e.applyMainVolumeLocked()
	e.mu.Unlock()

	triggersStarted.Inc()
	e.log.Debug("trigger started",
		"trigger", d.key.Trigger,
		"deck", d.key.Deck,
		"remaining", d.remaining)
}

// cutoffDeck fires when a trigger's nominal window closes. The deck is
// stopped even if the clip itself has not finished decoding; a deck that
// was already cleared by a seek or stop is left alone.
func (e *Engine) cutoffDeck(gen, pass uint64, key deckKey) {
	e.mu.Lock()
	d, ok := e.decks[key]
	if !ok || d.gen != gen || d.pass != pass {
		e.mu.Unlock()
		return
	}
	e.removeDeckLocked(key)
	e.applyMainVolumeLocked()
	e.mu.Unlock()

	e.log.Debug("trigger finished", "trigger", key.Trigger, "deck", key.Deck)
}
