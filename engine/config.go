package engine

import (
	"fmt"
	"time"
)

// NumDecks is the number of independent overlay playback slots.
const NumDecks = 4

// DeckNumber identifies one of the overlay decks, 1..NumDecks.
type DeckNumber uint8

// Valid reports whether d is within the deck range.
func (d DeckNumber) Valid() bool { return d >= 1 && d <= NumDecks }

// Track addresses a channel for gain/mute/solo control: the main
// channel or one of the decks.
type Track uint8

// TrackMain addresses the primary recording channel.
const TrackMain Track = 0

// DeckTrack returns the Track addressing the given deck.
func DeckTrack(d DeckNumber) Track { return Track(d) }

// IsMain reports whether the track is the main channel.
func (t Track) IsMain() bool { return t == TrackMain }

// Deck returns the deck a track addresses, if any.
func (t Track) Deck() (DeckNumber, bool) {
	d := DeckNumber(t)
	return d, d.Valid()
}

func (t Track) String() string {
	if t.IsMain() {
		return "main"
	}
	return fmt.Sprintf("deck%d", uint8(t))
}

// Trigger schedules a clip on a deck within a time window relative to
// main playback position. Triggers on the same deck may overlap; overlap
// is last-applied-wins.
type Trigger struct {
	ID       string
	URI      string
	Deck     DeckNumber
	At       time.Duration
	Duration time.Duration
	// Gain is carried into mixdown plan segments; live deck volume
	// comes from the per-deck gain map.
	Gain float64
}

// Ducking configures automatic attenuation of the main channel while an
// overlay deck is active. Attack and Release are stored for the mixdown
// plan but do not shape a ramp during preview: the switch is
// instantaneous.
type Ducking struct {
	Enabled  bool
	AmountDB float64
	Attack   time.Duration
	Release  time.Duration
}

// Config describes one loaded mix: the primary recording plus the
// scheduled overlays and channel settings. Load copies it; the setter
// methods on Engine mutate the engine's copy in place.
type Config struct {
	MainURI   string
	MainGain  float64
	MainMuted bool
	MainSolo  bool

	// Sparse per-deck settings; a deck without a gain entry plays at
	// unity.
	DeckGains map[DeckNumber]float64
	DeckMutes map[DeckNumber]bool
	DeckSolos map[DeckNumber]bool

	Triggers []Trigger

	Ducking *Ducking
}

// Validate checks the config invariants prior to Load.
func (c *Config) Validate() error {
	if c.MainURI == "" {
		return fmt.Errorf("config: main URI is required")
	}
	for d := range c.DeckGains {
		if !d.Valid() {
			return fmt.Errorf("config: deck gain for invalid deck %d", d)
		}
	}
	for d := range c.DeckMutes {
		if !d.Valid() {
			return fmt.Errorf("config: deck mute for invalid deck %d", d)
		}
	}
	for d := range c.DeckSolos {
		if !d.Valid() {
			return fmt.Errorf("config: deck solo for invalid deck %d", d)
		}
	}
	seen := make(map[string]struct{}, len(c.Triggers))
	for i, tr := range c.Triggers {
		if tr.ID == "" {
			return fmt.Errorf("config: trigger %d has no id", i)
		}
		if _, dup := seen[tr.ID]; dup {
			return fmt.Errorf("config: duplicate trigger id %q", tr.ID)
		}
		seen[tr.ID] = struct{}{}
		if tr.URI == "" {
			return fmt.Errorf("config: trigger %q has no uri", tr.ID)
		}
		if !tr.Deck.Valid() {
			return fmt.Errorf("config: trigger %q targets invalid deck %d", tr.ID, tr.Deck)
		}
		if tr.At < 0 {
			return fmt.Errorf("config: trigger %q starts before zero", tr.ID)
		}
		if tr.Duration < 0 {
			return fmt.Errorf("config: trigger %q has negative duration", tr.ID)
		}
	}
	return nil
}

// clone deep-copies the config so the engine owns its session state.
func (c Config) clone() Config {
	out := c
	out.DeckGains = cloneMap(c.DeckGains)
	out.DeckMutes = cloneMap(c.DeckMutes)
	out.DeckSolos = cloneMap(c.DeckSolos)
	out.Triggers = append([]Trigger(nil), c.Triggers...)
	if c.Ducking != nil {
		d := *c.Ducking
		out.Ducking = &d
	}
	return out
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// deckGain returns the configured gain for a deck, defaulting to unity
// for decks without an entry.
func (c *Config) deckGain(d DeckNumber) float64 {
	if g, ok := c.DeckGains[d]; ok {
		return g
	}
	return 1
}

// anySolo reports whether any track (main or deck) is soloed.
func (c *Config) anySolo() bool {
	if c.MainSolo {
		return true
	}
	for _, s := range c.DeckSolos {
		if s {
			return true
		}
	}
	return false
}

// deckAllowed resolves solo/mute for a deck. Main solo takes absolute
// priority: while the main channel is soloed no deck plays, regardless
// of deck-level solo flags. Otherwise, when any solo is active only
// soloed decks play; with no solo anywhere a deck plays unless muted.
func (c *Config) deckAllowed(d DeckNumber) bool {
	if c.anySolo() {
		if c.MainSolo {
			return false
		}
		return c.DeckSolos[d]
	}
	return !c.DeckMutes[d]
}
