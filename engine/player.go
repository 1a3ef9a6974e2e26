package engine

import "time"

// Player is a handle to one loaded audio asset: the playback primitive
// the engine drives. Implementations must be safe for concurrent use.
//
// The engine owns every Player it opens and is solely responsible for
// calling Unload. Operations on an unloaded handle should fail rather
// than panic.
type Player interface {
	Play() error
	Pause() error
	// Stop pauses and rewinds to the start.
	Stop() error
	Seek(pos time.Duration) error
	// SetVolume sets linear volume in [0, 1].
	SetVolume(v float64) error
	Status() (Status, error)
	Unload() error
}

// Status is a snapshot of a player's state.
type Status struct {
	Loaded   bool
	Playing  bool
	Position time.Duration
	Duration time.Duration
}

// OpenOptions configure a newly opened player.
type OpenOptions struct {
	// Autoplay starts playback immediately instead of opening paused.
	Autoplay bool
	// InitialVolume is the linear volume applied before the first frame.
	InitialVolume float64
}

// Opener opens playback primitives by URI. The engine treats it as an
// opaque capability; the playback package provides the speaker-backed
// implementation.
type Opener interface {
	Open(uri string, opts OpenOptions) (Player, error)
}
