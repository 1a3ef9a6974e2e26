package engine

import (
	"errors"
	"testing"
	"time"

	"mixdeck/mixplan"
)

func TestPlanFromConfig(t *testing.T) {
	cfg := Config{
		MainURI: "takes/main.wav",
		DeckGains: map[DeckNumber]float64{
			1: 0.9,
			3: 0.4,
		},
		Triggers: []Trigger{
			{ID: "late", URI: "c.mp3", Deck: 4, At: 5 * time.Second, Duration: time.Second, Gain: 0.5},
			{ID: "early", URI: "a.mp3", Deck: 1, At: time.Second, Duration: 2 * time.Second, Gain: 1},
			{ID: "mid", URI: "b.mp3", Deck: 2, At: 3 * time.Second, Duration: 1500 * time.Millisecond, Gain: 0.8},
		},
		Ducking: &Ducking{
			Enabled:  true,
			AmountDB: 6,
			Attack:   80 * time.Millisecond,
			Release:  240 * time.Millisecond,
		},
	}
	fx := mixplan.FX{NormalizeGainDB: -1, FadeOutMs: 500}

	p := PlanFromConfig(cfg, fx, "m4a")

	if p.BaseURI != "takes/main.wav" {
		t.Errorf("BaseURI = %q, want %q", p.BaseURI, "takes/main.wav")
	}
	if p.OutExt != "m4a" {
		t.Errorf("OutExt = %q, want %q", p.OutExt, "m4a")
	}
	if p.FX != fx {
		t.Errorf("FX = %+v, want %+v", p.FX, fx)
	}
	if got, want := p.TrackGains, (mixplan.TrackGains{Clip: 0.9, Bed: 1, SFX: 0.4}); got != want {
		t.Errorf("TrackGains = %+v, want %+v", got, want)
	}
	if p.Ducking == nil {
		t.Fatal("Ducking = nil, want converted block")
	}
	if got, want := *p.Ducking, (mixplan.Ducking{Enabled: true, AmountDB: 6, AttackMs: 80, ReleaseMs: 240}); got != want {
		t.Errorf("Ducking = %+v, want %+v", got, want)
	}

	if len(p.Segments) != 3 {
		t.Fatalf("len(Segments) = %d, want 3", len(p.Segments))
	}
	want := []mixplan.Segment{
		{URI: "a.mp3", StartMs: 1000, EndMs: 3000, TrackID: mixplan.TrackClip, Gain: 1},
		{URI: "b.mp3", StartMs: 3000, EndMs: 4500, TrackID: mixplan.TrackBed, Gain: 0.8},
		{URI: "c.mp3", StartMs: 5000, EndMs: 6000, TrackID: "deck4", Gain: 0.5},
	}
	for i := range want {
		if p.Segments[i] != want[i] {
			t.Errorf("Segments[%d] = %+v, want %+v", i, p.Segments[i], want[i])
		}
	}
}

func TestEnginePlanRequiresLoad(t *testing.T) {
	eng := newTestEngine(t, newFakeOpener(), NewMockClock(time.Unix(1000, 0)))
	defer eng.Dispose()

	if _, err := eng.Plan(mixplan.FX{}, "m4a"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Plan() error = %v, want ErrNotLoaded", err)
	}
}

func TestEnginePlanReflectsLiveSetters(t *testing.T) {
	eng := newTestEngine(t, newFakeOpener(), NewMockClock(time.Unix(1000, 0)))
	defer eng.Dispose()

	if err := eng.Load(overlayConfig()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	eng.SetTrackGain(DeckTrack(1), 0.6)
	eng.SetDucking(&Ducking{Enabled: true, AmountDB: 9})

	p, err := eng.Plan(mixplan.FX{}, "wav")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if p.TrackGains.Clip != 0.6 {
		t.Errorf("Clip gain = %v, want live value 0.6", p.TrackGains.Clip)
	}
	if p.Ducking == nil || p.Ducking.AmountDB != 9 {
		t.Errorf("Ducking = %+v, want live 9dB block", p.Ducking)
	}
}

func TestConfigFromPlanPinsCanonicalTracks(t *testing.T) {
	segments := []mixplan.Segment{
		{URI: "s.mp3", StartMs: 0, EndMs: 1000, TrackID: mixplan.TrackSFX},
		{URI: "c.mp3", StartMs: 500, EndMs: 1500, TrackID: mixplan.TrackClip},
		{URI: "b.mp3", StartMs: 2000, EndMs: 9000, TrackID: mixplan.TrackBed},
	}
	gains := mixplan.TrackGains{Clip: 0.9, Bed: 0.5, SFX: 0.7}

	cfg, err := ConfigFromPlan("main.wav", segments, gains, nil)
	if err != nil {
		t.Fatalf("ConfigFromPlan() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("derived config invalid: %v", err)
	}
	if cfg.MainURI != "main.wav" {
		t.Errorf("MainURI = %q, want %q", cfg.MainURI, "main.wav")
	}

	wantDecks := map[string]DeckNumber{"s.mp3": 3, "c.mp3": 1, "b.mp3": 2}
	ids := make(map[string]struct{}, len(cfg.Triggers))
	for _, tr := range cfg.Triggers {
		if tr.ID == "" {
			t.Error("trigger assigned empty id")
		}
		if _, dup := ids[tr.ID]; dup {
			t.Errorf("trigger id %q assigned twice", tr.ID)
		}
		ids[tr.ID] = struct{}{}
		if want := wantDecks[tr.URI]; tr.Deck != want {
			t.Errorf("trigger %q deck = %d, want %d", tr.URI, tr.Deck, want)
		}
	}

	if got := cfg.DeckGains[1]; got != 0.9 {
		t.Errorf("DeckGains[1] = %v, want 0.9", got)
	}
	if got := cfg.DeckGains[2]; got != 0.5 {
		t.Errorf("DeckGains[2] = %v, want 0.5", got)
	}
	if got := cfg.DeckGains[3]; got != 0.7 {
		t.Errorf("DeckGains[3] = %v, want 0.7", got)
	}
}

func TestConfigFromPlanPlacesCustomTracks(t *testing.T) {
	segments := []mixplan.Segment{
		{URI: "c.mp3", StartMs: 0, EndMs: 1000, TrackID: mixplan.TrackClip},
		{URI: "v.mp3", StartMs: 0, EndMs: 1000, TrackID: "voiceover"},
		{URI: "b.mp3", StartMs: 0, EndMs: 1000, TrackID: mixplan.TrackBed},
		{URI: "j.mp3", StartMs: 0, EndMs: 1000, TrackID: "jingle"},
	}

	cfg, err := ConfigFromPlan("main.wav", segments, mixplan.TrackGains{Clip: 1, Bed: 1, SFX: 1}, nil)
	if err != nil {
		t.Fatalf("ConfigFromPlan() error = %v", err)
	}

	byURI := make(map[string]Trigger, len(cfg.Triggers))
	for _, tr := range cfg.Triggers {
		byURI[tr.URI] = tr
	}
	// Canonical tracks keep their decks; the custom tracks fill the
	// free slots in first appearance order.
	if got := byURI["c.mp3"].Deck; got != 1 {
		t.Errorf("clip deck = %d, want 1", got)
	}
	if got := byURI["b.mp3"].Deck; got != 2 {
		t.Errorf("bed deck = %d, want 2", got)
	}
	if got := byURI["v.mp3"].Deck; got != 3 {
		t.Errorf("voiceover deck = %d, want 3", got)
	}
	if got := byURI["j.mp3"].Deck; got != 4 {
		t.Errorf("jingle deck = %d, want 4", got)
	}

	// Custom tracks default to unity gain.
	if got := cfg.DeckGains[3]; got != 1 {
		t.Errorf("DeckGains[3] = %v, want 1", got)
	}
}

func TestConfigFromPlanRejectsTooManyTracks(t *testing.T) {
	segments := []mixplan.Segment{
		{URI: "1.mp3", StartMs: 0, EndMs: 1, TrackID: mixplan.TrackClip},
		{URI: "2.mp3", StartMs: 0, EndMs: 1, TrackID: mixplan.TrackBed},
		{URI: "3.mp3", StartMs: 0, EndMs: 1, TrackID: mixplan.TrackSFX},
		{URI: "4.mp3", StartMs: 0, EndMs: 1, TrackID: "narration"},
		{URI: "5.mp3", StartMs: 0, EndMs: 1, TrackID: "stinger"},
	}

	if _, err := ConfigFromPlan("main.wav", segments, mixplan.TrackGains{}, nil); err == nil {
		t.Error("ConfigFromPlan() error = nil, want too-many-tracks error")
	}
}

func TestConfigFromPlanConvertsTimesAndDucking(t *testing.T) {
	segments := []mixplan.Segment{
		{URI: "a.mp3", StartMs: 1500, EndMs: 4250, TrackID: mixplan.TrackClip, Gain: 0.8},
	}
	ducking := &mixplan.Ducking{Enabled: true, AmountDB: 12, AttackMs: 50, ReleaseMs: 300}

	cfg, err := ConfigFromPlan("main.wav", segments, mixplan.TrackGains{Clip: 1}, ducking)
	if err != nil {
		t.Fatalf("ConfigFromPlan() error = %v", err)
	}

	tr := cfg.Triggers[0]
	if got, want := tr.At, 1500*time.Millisecond; got != want {
		t.Errorf("At = %v, want %v", got, want)
	}
	if got, want := tr.Duration, 2750*time.Millisecond; got != want {
		t.Errorf("Duration = %v, want %v", got, want)
	}
	if tr.Gain != 0.8 {
		t.Errorf("Gain = %v, want 0.8", tr.Gain)
	}

	if cfg.Ducking == nil {
		t.Fatal("Ducking = nil, want converted block")
	}
	want := Ducking{Enabled: true, AmountDB: 12, Attack: 50 * time.Millisecond, Release: 300 * time.Millisecond}
	if *cfg.Ducking != want {
		t.Errorf("Ducking = %+v, want %+v", *cfg.Ducking, want)
	}
}

func TestLoadFromPlanKeepsBaseRecording(t *testing.T) {
	opener := newFakeOpener()
	opener.durations["main.wav"] = 30 * time.Second
	eng := newTestEngine(t, opener, NewMockClock(time.Unix(1000, 0)))
	defer eng.Dispose()

	cfg := overlayConfig()
	cfg.MainGain = 0.7
	if err := eng.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	segments := []mixplan.Segment{
		{URI: "new.mp3", StartMs: 2000, EndMs: 5000, TrackID: mixplan.TrackClip},
	}
	if err := eng.LoadFromPlan(segments, mixplan.TrackGains{Clip: 0.5, Bed: 1, SFX: 1}, nil); err != nil {
		t.Fatalf("LoadFromPlan() error = %v", err)
	}

	// The base recording reloads under the same URI and gain.
	if got := opener.openCount("main.wav"); got != 2 {
		t.Errorf("main recording opened %d times, want 2", got)
	}
	p, err := eng.Plan(mixplan.FX{}, "m4a")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if p.BaseURI != "main.wav" {
		t.Errorf("BaseURI = %q, want %q", p.BaseURI, "main.wav")
	}
	if len(p.Segments) != 1 || p.Segments[0].URI != "new.mp3" {
		t.Fatalf("Segments = %+v, want the single plan segment", p.Segments)
	}
	if p.TrackGains.Clip != 0.5 {
		t.Errorf("Clip gain = %v, want 0.5", p.TrackGains.Clip)
	}

	mains := opener.opened("main.wav")
	if got := mains[1].initialVolume(); got != 0.7 {
		t.Errorf("reloaded main initial volume = %v, want preserved gain 0.7", got)
	}
}

func TestLoadFromPlanRequiresSession(t *testing.T) {
	eng := newTestEngine(t, newFakeOpener(), NewMockClock(time.Unix(1000, 0)))
	defer eng.Dispose()

	err := eng.LoadFromPlan(nil, mixplan.TrackGains{}, nil)
	if !errors.Is(err, ErrNotLoaded) {
		t.Errorf("LoadFromPlan() error = %v, want ErrNotLoaded", err)
	}
}
