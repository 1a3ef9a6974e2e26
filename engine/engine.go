package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultTickInterval     = 50 * time.Millisecond
	defaultProgressInterval = 100 * time.Millisecond
	defaultDuckFraction     = 0.25

	// triggerTolerance lets a trigger fire slightly ahead of its window
	// so tick granularity cannot skip it.
	triggerTolerance = 30 * time.Millisecond
	// endThreshold is how close to the end of the main recording a tick
	// must land before playback is considered finished.
	endThreshold = 50 * time.Millisecond
)

// Options configure a new Engine. Zero values select defaults.
type Options struct {
	// TickInterval is the scheduler period (default 50ms).
	TickInterval time.Duration
	// ProgressInterval is the progress reporter period (default 100ms).
	ProgressInterval time.Duration
	// AmbientDuckFraction is the volume fraction the ambient stream is
	// reduced to while the engine plays (default 0.25).
	AmbientDuckFraction float64
	// Ambient coordinates an external audio stream (default none).
	Ambient Ambient
	// Clock supplies time (default system clock).
	Clock Clock
	// Logger receives engine logs (default slog with an engine component).
	Logger *slog.Logger
}

// Engine is the real-time preview mixer: it plays one primary recording,
// dispatches timed overlay clips onto up to four decks, applies gain,
// mute, solo, and ducking, and reports playback position.
//
// One Engine serves one screen or caller at a time: construct it when the
// mix editor appears, Dispose it when the editor goes away. All methods
// are safe for concurrent use; a single mutex serializes every state
// mutation, including the scheduler and progress callbacks.
type Engine struct {
	opener  Opener
	ambient Ambient
	clock   Clock
	log     *slog.Logger

	tickInterval     time.Duration
	progressInterval time.Duration
	duckFraction     float64

	mu sync.Mutex

	// gen increments on every Load/Dispose; pass increments on every
	// seek/stop within a session. In-flight work carries the values it
	// started under and becomes a no-op when either has moved on.
	gen  uint64
	pass uint64

	cfg     Config
	loaded  bool
	playing bool

	main         Player
	mainDuration time.Duration

	startEpoch time.Time
	seekOffset time.Duration

	started map[string]struct{}
	decks   map[deckKey]*deck

	onProgress func(time.Duration)
	onEnded    func()

	ambientDucked bool
	ambientVolume float64

	stopLoops chan struct{}
}

// New creates an Engine that opens playback primitives through opener.
func New(opener Opener, opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	if opts.AmbientDuckFraction <= 0 {
		opts.AmbientDuckFraction = defaultDuckFraction
	}
	if opts.Ambient == nil {
		opts.Ambient = NopAmbient{}
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.With("component", "engine")
	}
	return &Engine{
		opener:           opener,
		ambient:          opts.Ambient,
		clock:            opts.Clock,
		log:              opts.Logger,
		tickInterval:     opts.TickInterval,
		progressInterval: opts.ProgressInterval,
		duckFraction:     opts.AmbientDuckFraction,
		started:          make(map[string]struct{}),
		decks:            make(map[deckKey]*deck),
	}
}

// Load tears down any previous session and opens a new one from cfg. The
// session starts loaded but paused at position zero. Safe to call while
// a previous load or playback is in flight: once a newer Load has
// started, the older one's completion is a no-op.
func (e *Engine) Load(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.clone()

	e.mu.Lock()
	e.teardownSessionLocked()
	e.gen++
	gen := e.gen
	initialVolume := mainVolume(&cfg, false)
	e.mu.Unlock()

	// Opening the asset can block on IO; never hold the mutex across it.
	main, err := e.opener.Open(cfg.MainURI, OpenOptions{InitialVolume: initialVolume})
	if err != nil {
		return &LoadError{URI: cfg.MainURI, Err: err}
	}
	st, err := main.Status()
	if err != nil {
		_ = main.Unload()
		return &LoadError{URI: cfg.MainURI, Err: err}
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		// A newer Load superseded this one while the asset was opening.
		_ = main.Unload()
		e.log.Debug("load superseded", "uri", cfg.MainURI)
		return nil
	}
	e.cfg = cfg
	e.main = main
	e.mainDuration = st.Duration
	e.loaded = true
	e.playing = false
	e.seekOffset = 0
	e.started = make(map[string]struct{})
	e.mu.Unlock()

	loadsTotal.Inc()
	e.log.Info("session loaded",
		"uri", cfg.MainURI,
		"duration", st.Duration,
		"triggers", len(cfg.Triggers))
	return nil
}

// Play resumes playback from the current offset and starts the scheduler
// and progress loops. No-op when already playing. While the engine
// plays, a concurrently active ambient stream is attenuated; Pause and
// Stop restore it.
func (e *Engine) Play() error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	if e.playing {
		e.mu.Unlock()
		return nil
	}
	if err := e.main.Play(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: start main channel: %w", err)
	}
	e.playing = true
	e.startEpoch = e.clock.Now()
	e.duckAmbientLocked()
	e.startLoopsLocked()
	offset := e.seekOffset
	e.mu.Unlock()

	e.log.Info("playback started", "offset", offset)
	return nil
}

// Pause captures the current position from the main channel's own
// report (not the wall-clock estimate, which drifts), pauses the
// channel, stops both loops, and restores the ambient stream. Active
// overlay decks are not interrupted; their cutoff timers still fire at
// the nominal trigger end.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if !e.loaded || !e.playing {
		e.mu.Unlock()
		return nil
	}
	if st, err := e.main.Status(); err == nil {
		e.seekOffset = st.Position
	} else {
		e.seekOffset = e.positionLocked()
		e.log.Debug("main status failed, keeping estimate", "error", err)
	}
	e.playing = false
	if err := e.main.Pause(); err != nil {
		e.log.Warn("main pause failed", "error", err)
	}
	e.stopLoopsLocked()
	e.restoreAmbientLocked()
	offset := e.seekOffset
	e.mu.Unlock()

	e.log.Info("playback paused", "position", offset)
	return nil
}

// Stop pauses, rewinds to zero, clears all active decks, and forgets
// which triggers have fired. Safe to call before any Load.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return nil
	}
	if e.playing {
		e.playing = false
		if err := e.main.Pause(); err != nil {
			e.log.Warn("main pause failed", "error", err)
		}
		e.stopLoopsLocked()
		e.restoreAmbientLocked()
	}
	if err := e.main.Seek(0); err != nil {
		e.log.Warn("main rewind failed", "error", err)
	}
	e.seekOffset = 0
	e.clearDecksLocked()
	e.started = make(map[string]struct{})
	e.pass++
	e.applyMainVolumeLocked()
	e.mu.Unlock()

	e.log.Info("playback stopped")
	return nil
}

// Seek moves playback to pos, clamped to [0, Duration]. Every active
// deck is cleared before Seek returns and dispatched triggers are
// forgotten, so a trigger whose window contains the new position may
// fire again.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	if pos < 0 {
		pos = 0
	}
	if pos > e.mainDuration {
		pos = e.mainDuration
	}
	if err := e.main.Seek(pos); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: seek main channel: %w", err)
	}
	e.seekOffset = pos
	e.started = make(map[string]struct{})
	e.clearDecksLocked()
	e.pass++
	if e.playing {
		e.startEpoch = e.clock.Now()
	}
	e.applyMainVolumeLocked()
	e.mu.Unlock()

	e.log.Debug("seek", "position", pos)
	return nil
}

// Position returns the current playback position: a wall-clock estimate
// while playing, monotonic between scheduler ticks; the captured offset
// while paused or stopped.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

// Duration returns the length of the loaded main recording.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mainDuration
}

// IsLoaded reports whether a session is loaded.
func (e *Engine) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// IsPlaying reports whether playback is running.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// State is a snapshot of the engine for status displays.
type State struct {
	Loaded      bool          `json:"loaded"`
	Playing     bool          `json:"playing"`
	Position    time.Duration `json:"position"`
	Duration    time.Duration `json:"duration"`
	ActiveDecks int           `json:"active_decks"`
}

// State returns a consistent snapshot of the session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Loaded:      e.loaded,
		Playing:     e.playing,
		Position:    e.positionLocked(),
		Duration:    e.mainDuration,
		ActiveDecks: len(e.decks),
	}
}

// SetTrackGain updates a track's gain and immediately re-applies channel
// volumes. Gains above unity are clamped at application, not amplified.
func (e *Engine) SetTrackGain(t Track, gain float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return
	}
	if t.IsMain() {
		e.cfg.MainGain = gain
		e.applyMainVolumeLocked()
		return
	}
	d, ok := t.Deck()
	if !ok {
		return
	}
	if e.cfg.DeckGains == nil {
		e.cfg.DeckGains = make(map[DeckNumber]float64)
	}
	e.cfg.DeckGains[d] = gain
	e.applyDeckVolumesLocked(d)
}

// SetMute mutes or unmutes a track and immediately re-applies volumes to
// the main channel and to active decks on that track.
func (e *Engine) SetMute(t Track, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return
	}
	if t.IsMain() {
		e.cfg.MainMuted = muted
		e.applyMainVolumeLocked()
		return
	}
	d, ok := t.Deck()
	if !ok {
		return
	}
	if e.cfg.DeckMutes == nil {
		e.cfg.DeckMutes = make(map[DeckNumber]bool)
	}
	e.cfg.DeckMutes[d] = muted
	e.applyDeckVolumesLocked(d)
}

// SetSolo flags a track as soloed. Solo resolution happens at trigger
// dispatch and in the main-volume computation; active decks on the
// touched track are re-applied immediately.
func (e *Engine) SetSolo(t Track, solo bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return
	}
	if t.IsMain() {
		e.cfg.MainSolo = solo
		e.applyMainVolumeLocked()
		return
	}
	d, ok := t.Deck()
	if !ok {
		return
	}
	if e.cfg.DeckSolos == nil {
		e.cfg.DeckSolos = make(map[DeckNumber]bool)
	}
	e.cfg.DeckSolos[d] = solo
	e.applyMainVolumeLocked()
	e.applyDeckVolumesLocked(d)
}

// SetDucking replaces the ducking configuration and immediately
// recomputes the main channel volume.
func (e *Engine) SetDucking(d *Ducking) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return
	}
	if d == nil {
		e.cfg.Ducking = nil
	} else {
		dd := *d
		e.cfg.Ducking = &dd
	}
	e.applyMainVolumeLocked()
}

// OnProgress registers the listener that receives the playback position
// at the progress reporter's rate. Pass nil to unregister.
func (e *Engine) OnProgress(fn func(time.Duration)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProgress = fn
}

// OnEnded registers the listener invoked when playback reaches the end
// of the main recording. Pass nil to unregister.
func (e *Engine) OnEnded(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnded = fn
}

// Dispose cancels all timers, unloads the main channel and every deck,
// and resets the session. Idempotent and safe in any state; callbacks
// are unregistered so no torn-down screen is retained.
func (e *Engine) Dispose() {
	e.mu.Lock()
	e.teardownSessionLocked()
	e.gen++
	e.onProgress = nil
	e.onEnded = nil
	e.mu.Unlock()

	e.log.Debug("engine disposed")
}

// positionLocked computes the current position. The caller holds the
// engine mutex.
func (e *Engine) positionLocked() time.Duration {
	if e.playing {
		return e.clock.Now().Sub(e.startEpoch) + e.seekOffset
	}
	return e.seekOffset
}

// applyMainVolumeLocked pushes the resolved main-channel volume to the
// playback primitive. The caller holds the engine mutex.
func (e *Engine) applyMainVolumeLocked() {
	if e.main == nil {
		return
	}
	v := mainVolume(&e.cfg, e.deckActiveLocked())
	if err := e.main.SetVolume(v); err != nil {
		e.log.Debug("main volume failed", "volume", v, "error", err)
	}
}

// teardownSessionLocked releases everything the session owns. Idempotent;
// the caller holds the engine mutex.
func (e *Engine) teardownSessionLocked() {
	e.stopLoopsLocked()
	e.clearDecksLocked()
	if e.main != nil {
		if e.playing {
			if err := e.main.Pause(); err != nil {
				e.log.Debug("main pause failed during teardown", "error", err)
			}
		}
		if err := e.main.Unload(); err != nil {
			e.log.Debug("main unload failed", "error", err)
		}
		e.main = nil
	}
	e.restoreAmbientLocked()
	e.loaded = false
	e.playing = false
	e.seekOffset = 0
	e.mainDuration = 0
	e.started = make(map[string]struct{})
}

// duckAmbientLocked attenuates a concurrently playing external stream.
// Best effort: the external session may not exist.
func (e *Engine) duckAmbientLocked() {
	if e.ambientDucked || !e.ambient.IsPlaying() {
		return
	}
	v, err := e.ambient.Volume()
	if err != nil {
		e.log.Debug("ambient volume read failed", "error", err)
		return
	}
	if err := e.ambient.SetVolume(v * e.duckFraction); err != nil {
		e.log.Debug("ambient duck failed", "error", err)
		return
	}
	e.ambientVolume = v
	e.ambientDucked = true
}

// restoreAmbientLocked undoes duckAmbientLocked. Best effort.
func (e *Engine) restoreAmbientLocked() {
	if !e.ambientDucked {
		return
	}
	if err := e.ambient.SetVolume(e.ambientVolume); err != nil {
		e.log.Debug("ambient restore failed", "error", err)
	}
	e.ambientDucked = false
}
