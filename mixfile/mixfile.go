// Package mixfile loads mix definitions from YAML: the main recording,
// deck settings, timed triggers, ducking, and the render options the
// CLI turns into a mixdown plan.
package mixfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mixdeck/engine"
	"mixdeck/mixplan"
)

// DefaultOutExt is the render output container when the file names
// none.
const DefaultOutExt = "m4a"

// File is one parsed mix definition. Relative asset paths resolve
// against the file's directory.
type File struct {
	Title    string       `yaml:"title"`
	Main     Main         `yaml:"main"`
	Decks    map[int]Deck `yaml:"decks"`
	Triggers []Trigger    `yaml:"triggers"`
	Ducking  *Ducking     `yaml:"ducking"`
	FX       FX           `yaml:"fx"`
	OutExt   string       `yaml:"out_ext"`

	dir string
}

// Main describes the primary recording.
type Main struct {
	URI  string   `yaml:"uri"`
	Gain *float64 `yaml:"gain"`
	Mute bool     `yaml:"mute"`
	Solo bool     `yaml:"solo"`
}

// Deck carries per-deck mix settings; gain defaults to unity.
type Deck struct {
	Gain *float64 `yaml:"gain"`
	Mute bool     `yaml:"mute"`
	Solo bool     `yaml:"solo"`
}

// Trigger is one timed overlay. An omitted id gets a positional one.
type Trigger struct {
	ID         string   `yaml:"id"`
	URI        string   `yaml:"uri"`
	Deck       int      `yaml:"deck"`
	AtMs       int64    `yaml:"at_ms"`
	DurationMs int64    `yaml:"duration_ms"`
	Gain       *float64 `yaml:"gain"`
}

// Ducking mirrors the engine's ducking block in milliseconds.
type Ducking struct {
	Enabled   bool    `yaml:"enabled"`
	AmountDB  float64 `yaml:"amount_db"`
	AttackMs  int64   `yaml:"attack_ms"`
	ReleaseMs int64   `yaml:"release_ms"`
}

// FX is the master effects block for rendering.
type FX struct {
	NormalizeGainDB float64 `yaml:"normalize_gain_db"`
	FadeInMs        int64   `yaml:"fade_in_ms"`
	FadeOutMs       int64   `yaml:"fade_out_ms"`
}

// Load reads and parses a mix definition. Unknown YAML keys are
// rejected so typos surface instead of silently dropping settings.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mix file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	f.dir = filepath.Dir(abs)
	return &f, nil
}

// EngineConfig converts the file into a validated engine configuration.
func (f *File) EngineConfig() (engine.Config, error) {
	cfg := engine.Config{
		MainURI:   f.resolve(f.Main.URI),
		MainGain:  gainOrUnity(f.Main.Gain),
		MainMuted: f.Main.Mute,
		MainSolo:  f.Main.Solo,
	}

	for n, dk := range f.Decks {
		d := engine.DeckNumber(n)
		if !d.Valid() {
			return engine.Config{}, fmt.Errorf("mixfile: deck %d outside 1..%d", n, engine.NumDecks)
		}
		if dk.Gain != nil {
			if cfg.DeckGains == nil {
				cfg.DeckGains = make(map[engine.DeckNumber]float64)
			}
			cfg.DeckGains[d] = *dk.Gain
		}
		if dk.Mute {
			if cfg.DeckMutes == nil {
				cfg.DeckMutes = make(map[engine.DeckNumber]bool)
			}
			cfg.DeckMutes[d] = true
		}
		if dk.Solo {
			if cfg.DeckSolos == nil {
				cfg.DeckSolos = make(map[engine.DeckNumber]bool)
			}
			cfg.DeckSolos[d] = true
		}
	}

	for i, t := range f.Triggers {
		id := t.ID
		if id == "" {
			id = fmt.Sprintf("t%d", i+1)
		}
		cfg.Triggers = append(cfg.Triggers, engine.Trigger{
			ID:       id,
			URI:      f.resolve(t.URI),
			Deck:     engine.DeckNumber(t.Deck),
			At:       time.Duration(t.AtMs) * time.Millisecond,
			Duration: time.Duration(t.DurationMs) * time.Millisecond,
			Gain:     gainOrUnity(t.Gain),
		})
	}

	if f.Ducking != nil {
		cfg.Ducking = &engine.Ducking{
			Enabled:  f.Ducking.Enabled,
			AmountDB: f.Ducking.AmountDB,
			Attack:   time.Duration(f.Ducking.AttackMs) * time.Millisecond,
			Release:  time.Duration(f.Ducking.ReleaseMs) * time.Millisecond,
		}
	}

	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// PlanFX converts the file's effects block to the plan wire shape.
func (f *File) PlanFX() mixplan.FX {
	return mixplan.FX{
		NormalizeGainDB: f.FX.NormalizeGainDB,
		FadeInMs:        f.FX.FadeInMs,
		FadeOutMs:       f.FX.FadeOutMs,
	}
}

// PlanOutExt returns the render container extension.
func (f *File) PlanOutExt() string {
	if f.OutExt == "" {
		return DefaultOutExt
	}
	return strings.TrimPrefix(f.OutExt, ".")
}

func (f *File) resolve(uri string) string {
	if uri == "" || filepath.IsAbs(uri) || strings.Contains(uri, "://") {
		return uri
	}
	return filepath.Join(f.dir, uri)
}

func gainOrUnity(g *float64) float64 {
	if g == nil {
		return 1
	}
	return *g
}
