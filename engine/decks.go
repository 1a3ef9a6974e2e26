package engine

// deckKey identifies an active overlay: which deck is playing which
// trigger. Typed on purpose, so two triggers can never collide the way
// concatenated string keys can.
type deckKey struct {
	Deck    DeckNumber
	Trigger string
}

// deck is one live overlay clip: the opened player plus the cutoff
// timer that stops it at the trigger's nominal duration. gen and pass
// pin it to the session and playback pass that started it, so stale
// cutoffs after a load or seek are no-ops.
type deck struct {
	player Player
	cutoff Timer
	gen    uint64
	pass   uint64
}

// removeDeckLocked stops, unloads, and forgets one overlay. The caller
// holds the engine mutex.
func (e *Engine) removeDeckLocked(key deckKey) {
	d, ok := e.decks[key]
	if !ok {
		return
	}
	delete(e.decks, key)
	activeDecks.Set(float64(len(e.decks)))
	if d.cutoff != nil {
		d.cutoff.Stop()
	}
	if err := d.player.Stop(); err != nil {
		e.log.Debug("deck stop failed", "deck", key.Deck, "trigger", key.Trigger, "error", err)
	}
	if err := d.player.Unload(); err != nil {
		e.log.Debug("deck unload failed", "deck", key.Deck, "trigger", key.Trigger, "error", err)
	}
}

// clearDecksLocked removes every active overlay. The caller holds the
// engine mutex.
func (e *Engine) clearDecksLocked() {
	for key := range e.decks {
		e.removeDeckLocked(key)
	}
}

// deckActiveLocked reports whether any overlay is currently playing.
func (e *Engine) deckActiveLocked() bool {
	return len(e.decks) > 0
}

// applyDeckVolumesLocked re-applies the resolved volume to every active
// overlay on the given deck. Used by the track setters so gain, mute,
// and solo changes land on clips that are already playing.
func (e *Engine) applyDeckVolumesLocked(d DeckNumber) {
	vol := deckVolume(&e.cfg, d)
	for key, dk := range e.decks {
		if key.Deck != d {
			continue
		}
		if err := dk.player.SetVolume(vol); err != nil {
			e.log.Debug("deck volume failed", "deck", key.Deck, "trigger", key.Trigger, "error", err)
		}
	}
}
