package engine

// Ambient coordinates with an external audio stream (e.g. a live radio
// feed) that may be playing alongside the engine. The engine attenuates
// it while previewing and restores it on pause/stop. All calls are best
// effort: the external session may not exist at all.
type Ambient interface {
	Volume() (float64, error)
	SetVolume(v float64) error
	IsPlaying() bool
}

// NopAmbient is an Ambient with no external stream behind it.
type NopAmbient struct{}

func (NopAmbient) Volume() (float64, error) { return 0, nil }
func (NopAmbient) SetVolume(float64) error  { return nil }
func (NopAmbient) IsPlaying() bool          { return false }
