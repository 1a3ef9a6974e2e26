package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"mixdeck/engine"
)

// ErrUnloaded is returned by handle operations after Unload.
var ErrUnloaded = errors.New("playback: handle unloaded")

// Handle is one open asset on the mixer. All mutations of the beep
// streamer chain happen under the speaker lock; the handle's own mutex
// only guards the unloaded flag.
type Handle struct {
	driver *Driver
	src    beep.StreamSeekCloser
	format beep.Format
	vol    *effects.Volume
	ctrl   *beep.Ctrl

	mu       sync.Mutex
	unloaded bool
}

func (h *Handle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return ErrUnloaded
	}
	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (h *Handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return ErrUnloaded
	}
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// Stop pauses and rewinds to the beginning.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return ErrUnloaded
	}
	speaker.Lock()
	h.ctrl.Paused = true
	err := h.src.Seek(0)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("rewind: %w", err)
	}
	return nil
}

// Seek moves to pos, clamped to the asset length. Positions are in the
// asset's native sample rate regardless of the speaker rate.
func (h *Handle) Seek(pos time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return ErrUnloaded
	}
	n := h.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if l := h.src.Len(); n > l {
		n = l
	}
	speaker.Lock()
	err := h.src.Seek(n)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// SetVolume applies a linear gain: 1 is unity, 0 is silence.
func (h *Handle) SetVolume(v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return ErrUnloaded
	}
	speaker.Lock()
	h.setVolume(v)
	speaker.Unlock()
	return nil
}

// setVolume maps a linear gain onto the exponential volume effect. The
// caller holds the speaker lock when the handle is audible.
func (h *Handle) setVolume(v float64) {
	if v <= 0 {
		h.vol.Silent = true
		return
	}
	h.vol.Silent = false
	h.vol.Volume = math.Log2(v)
}

func (h *Handle) Status() (engine.Status, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return engine.Status{}, ErrUnloaded
	}
	speaker.Lock()
	pos := h.src.Position()
	length := h.src.Len()
	paused := h.ctrl.Paused
	speaker.Unlock()
	return engine.Status{
		Loaded:   true,
		Playing:  !paused,
		Position: h.format.SampleRate.D(pos),
		Duration: h.format.SampleRate.D(length),
	}, nil
}

// Unload detaches the handle from the mixer and closes the decoder.
// Idempotent.
func (h *Handle) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return nil
	}
	h.unloaded = true

	speaker.Lock()
	h.ctrl.Streamer = nil
	speaker.Unlock()

	if err := h.src.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}
