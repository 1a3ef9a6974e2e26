// Package playback implements the engine's playback primitive on top of
// beep: one speaker, one persistent mixer, one independently seekable
// and volume-controlled handle per open asset.
package playback

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"mixdeck/engine"
)

const resampleQuality = 4

// DefaultSampleRate is the speaker rate handles are resampled to.
const DefaultSampleRate = beep.SampleRate(44100)

// Driver owns the speaker and the mixer every handle plays into. One
// Driver per process; construct it once and Close it on shutdown.
type Driver struct {
	sampleRate beep.SampleRate
	mixer      *beep.Mixer
	cache      *clipCache
	log        *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewDriver initializes the speaker at the given sample rate and starts
// the mixer. Assets whose native rate differs are resampled on open.
func NewDriver(sampleRate beep.SampleRate) (*Driver, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("initialize speaker: %w", err)
	}

	mixer := &beep.Mixer{}
	speaker.Play(mixer)

	return &Driver{
		sampleRate: sampleRate,
		mixer:      mixer,
		cache:      newClipCache(),
		log:        slog.With("component", "playback"),
	}, nil
}

// Open decodes the asset at uri and attaches it to the mixer, paused
// unless opts.Autoplay is set. The caller owns the returned handle and
// must Unload it.
func (d *Driver) Open(uri string, opts engine.OpenOptions) (engine.Player, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("playback: driver closed")
	}
	d.mu.Unlock()

	path := localPath(uri)
	src, format, err := d.open(path)
	if err != nil {
		return nil, err
	}

	var streamer beep.Streamer = src
	if format.SampleRate != d.sampleRate {
		streamer = beep.Resample(resampleQuality, format.SampleRate, d.sampleRate, src)
	}

	h := &Handle{
		driver: d,
		src:    src,
		format: format,
		vol:    &effects.Volume{Streamer: streamer, Base: 2},
	}
	h.setVolume(opts.InitialVolume)
	h.ctrl = &beep.Ctrl{Streamer: &sustain{s: h.vol}, Paused: !opts.Autoplay}

	speaker.Lock()
	d.mixer.Add(h.ctrl)
	speaker.Unlock()

	d.log.Debug("asset opened",
		"uri", path,
		"rate", format.SampleRate,
		"autoplay", opts.Autoplay)
	return h, nil
}

// Close silences the mixer and shuts the speaker down.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	speaker.Lock()
	d.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	return nil
}

// open returns a seekable stream for an asset, serving short clips from
// the predecoded cache and filling the cache on first decode.
func (d *Driver) open(path string) (beep.StreamSeekCloser, beep.Format, error) {
	if a, ok := d.cache.get(path); ok {
		return a.source(), a.format, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open %s: %w", path, err)
	}
	src, format, err := decode(path, f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}

	if format.SampleRate.D(src.Len()) <= maxCachedClip {
		buffer := beep.NewBuffer(format)
		buffer.Append(src)
		src.Close()

		a := &cachedAudio{buffer: buffer, format: format}
		d.cache.put(path, a)
		d.log.Debug("clip predecoded", "uri", path, "samples", buffer.Len())
		return a.source(), format, nil
	}
	return src, format, nil
}

func decode(path string, f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".wav":
		return wav.Decode(f)
	case ".flac":
		return flac.Decode(f)
	case ".ogg", ".oga":
		return vorbis.Decode(f)
	}
	return nil, beep.Format{}, fmt.Errorf("playback: unsupported audio format %q", filepath.Ext(path))
}

// localPath maps a file URI to a filesystem path; bare paths pass
// through.
func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// sustain keeps a drained streamer resident, filling silence, so a
// handle stays in the mixer and can be seeked back and replayed until
// it is explicitly unloaded.
type sustain struct {
	s beep.Streamer
}

func (k *sustain) Stream(samples [][2]float64) (int, bool) {
	n, _ := k.s.Stream(samples)
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (k *sustain) Err() error {
	return k.s.Err()
}
