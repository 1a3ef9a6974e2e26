package playback

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// maxCachedClip bounds what gets predecoded: overlay stings and effects
// are short, full recordings stream from disk.
const maxCachedClip = 30 * time.Second

// cachedAudio holds a fully decoded asset and its native format.
type cachedAudio struct {
	buffer *beep.Buffer
	format beep.Format
}

// clipCache keeps short assets decoded in memory so a trigger that
// fires again, or refires after a seek, opens without touching disk.
type clipCache struct {
	mu      sync.RWMutex
	entries map[string]*cachedAudio
}

func newClipCache() *clipCache {
	return &clipCache{entries: make(map[string]*cachedAudio)}
}

func (c *clipCache) get(path string) (*cachedAudio, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.entries[path]
	return a, ok
}

func (c *clipCache) put(path string, a *cachedAudio) {
	c.mu.Lock()
	c.entries[path] = a
	c.mu.Unlock()
}

// bufferSource adapts a buffer streamer to the seekable closer the
// handle expects; closing a memory buffer is a no-op.
type bufferSource struct {
	beep.StreamSeeker
}

func (bufferSource) Close() error { return nil }

func (a *cachedAudio) source() beep.StreamSeekCloser {
	return bufferSource{a.buffer.Streamer(0, a.buffer.Len())}
}
