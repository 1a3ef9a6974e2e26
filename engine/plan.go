package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mixdeck/mixplan"
)

// deckTrackID names the mixdown track a deck renders to. The first
// three decks map to the canonical clip/bed/sfx tracks.
func deckTrackID(d DeckNumber) string {
	switch d {
	case 1:
		return mixplan.TrackClip
	case 2:
		return mixplan.TrackBed
	case 3:
		return mixplan.TrackSFX
	}
	return fmt.Sprintf("deck%d", d)
}

// PlanFromConfig flattens a live mix configuration into a mixdown plan.
// Pure: it never touches an Engine. Trigger gains pass through to the
// segments; deck gains become the canonical track gains.
func PlanFromConfig(cfg Config, fx mixplan.FX, outExt string) mixplan.Plan {
	p := mixplan.Plan{
		BaseURI: cfg.MainURI,
		TrackGains: mixplan.TrackGains{
			Clip: cfg.deckGain(1),
			Bed:  cfg.deckGain(2),
			SFX:  cfg.deckGain(3),
		},
		FX:     fx,
		OutExt: outExt,
	}
	for _, tr := range cfg.Triggers {
		p.Segments = append(p.Segments, mixplan.Segment{
			URI:     tr.URI,
			StartMs: tr.At.Milliseconds(),
			EndMs:   (tr.At + tr.Duration).Milliseconds(),
			TrackID: deckTrackID(tr.Deck),
			Gain:    tr.Gain,
		})
	}
	if cfg.Ducking != nil {
		p.Ducking = &mixplan.Ducking{
			Enabled:   cfg.Ducking.Enabled,
			AmountDB:  cfg.Ducking.AmountDB,
			AttackMs:  cfg.Ducking.Attack.Milliseconds(),
			ReleaseMs: cfg.Ducking.Release.Milliseconds(),
		}
	}
	p.Sort()
	return p
}

// Plan flattens the currently loaded session into a mixdown plan.
func (e *Engine) Plan(fx mixplan.FX, outExt string) (mixplan.Plan, error) {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return mixplan.Plan{}, ErrNotLoaded
	}
	cfg := e.cfg.clone()
	e.mu.Unlock()
	return PlanFromConfig(cfg, fx, outExt), nil
}

// ConfigFromPlan builds an engine configuration from mixdown plan
// parts. Canonical tracks pin to fixed decks (clip 1, bed 2, sfx 3);
// other track IDs take the remaining decks in first appearance order.
// More distinct tracks than decks is an error.
func ConfigFromPlan(baseURI string, segments []mixplan.Segment, gains mixplan.TrackGains, ducking *mixplan.Ducking) (Config, error) {
	ids := mixplan.TrackIDs(segments)

	assigned := make(map[string]DeckNumber, len(ids))
	used := make(map[DeckNumber]bool, NumDecks)
	for _, id := range ids {
		var d DeckNumber
		switch id {
		case mixplan.TrackClip:
			d = 1
		case mixplan.TrackBed:
			d = 2
		case mixplan.TrackSFX:
			d = 3
		default:
			continue
		}
		assigned[id] = d
		used[d] = true
	}
	for _, id := range ids {
		if _, ok := assigned[id]; ok {
			continue
		}
		placed := false
		for d := DeckNumber(1); d <= NumDecks; d++ {
			if !used[d] {
				assigned[id] = d
				used[d] = true
				placed = true
				break
			}
		}
		if !placed {
			return Config{}, fmt.Errorf("engine: plan has %d distinct tracks, more than %d decks", len(ids), NumDecks)
		}
	}

	cfg := Config{
		MainURI:   baseURI,
		MainGain:  1,
		DeckGains: make(map[DeckNumber]float64, len(assigned)),
	}
	for id, d := range assigned {
		cfg.DeckGains[d] = gains.For(id)
	}
	for i := range segments {
		s := &segments[i]
		cfg.Triggers = append(cfg.Triggers, Trigger{
			ID:       uuid.NewString(),
			URI:      s.URI,
			Deck:     assigned[s.TrackID],
			At:       time.Duration(s.StartMs) * time.Millisecond,
			Duration: time.Duration(s.EndMs-s.StartMs) * time.Millisecond,
			Gain:     s.Gain,
		})
	}
	if ducking != nil {
		cfg.Ducking = &Ducking{
			Enabled:  ducking.Enabled,
			AmountDB: ducking.AmountDB,
			Attack:   time.Duration(ducking.AttackMs) * time.Millisecond,
			Release:  time.Duration(ducking.ReleaseMs) * time.Millisecond,
		}
	}
	return cfg, nil
}

// LoadFromPlan replaces the current session with one seeded from
// mixdown plan parts, keeping the loaded base recording and its gain.
// Requires a loaded session to supply the base URI.
func (e *Engine) LoadFromPlan(segments []mixplan.Segment, gains mixplan.TrackGains, ducking *mixplan.Ducking) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	baseURI := e.cfg.MainURI
	mainGain := e.cfg.MainGain
	e.mu.Unlock()

	cfg, err := ConfigFromPlan(baseURI, segments, gains, ducking)
	if err != nil {
		return err
	}
	cfg.MainGain = mainGain
	return e.Load(cfg)
}
