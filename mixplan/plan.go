// Package mixplan defines the serializable mixdown plan: the offline
// render job a live mix session is flattened into. The engine builds
// plans and can be seeded from one; the render service consumes them.
// All durations on this wire format are integer milliseconds.
package mixplan

import (
	"fmt"
	"sort"
)

// Canonical track identifiers. Plans may carry additional custom track
// IDs; these three are the ones the track gain block addresses.
const (
	TrackClip = "clip"
	TrackBed  = "bed"
	TrackSFX  = "sfx"
)

// Segment is one overlay clip placed on the timeline of the base
// recording.
type Segment struct {
	URI       string  `json:"uri"`
	StartMs   int64   `json:"startMs"`
	EndMs     int64   `json:"endMs"`
	TrackID   string  `json:"trackId"`
	Gain      float64 `json:"gain"`
	Pan       float64 `json:"pan"`
	FadeInMs  int64   `json:"fadeInMs"`
	FadeOutMs int64   `json:"fadeOutMs"`
}

// TrackGains carries the per-track gain staging for the canonical
// tracks.
type TrackGains struct {
	Clip float64 `json:"clip"`
	Bed  float64 `json:"bed"`
	SFX  float64 `json:"sfx"`
}

// For returns the gain for a track ID, defaulting to unity for track
// IDs outside the canonical set.
func (g TrackGains) For(trackID string) float64 {
	switch trackID {
	case TrackClip:
		return g.Clip
	case TrackBed:
		return g.Bed
	case TrackSFX:
		return g.SFX
	}
	return 1
}

// Ducking mirrors the live ducking configuration on the wire.
type Ducking struct {
	Enabled   bool    `json:"enabled"`
	AmountDB  float64 `json:"amountDb"`
	AttackMs  int64   `json:"attackMs"`
	ReleaseMs int64   `json:"releaseMs"`
}

// FX is the master effects block applied to the rendered output.
type FX struct {
	NormalizeGainDB float64 `json:"normalizeGainDb"`
	FadeInMs        int64   `json:"fadeInMs"`
	FadeOutMs       int64   `json:"fadeOutMs"`
}

// Plan is a complete mixdown job description.
type Plan struct {
	BaseURI    string     `json:"baseUri"`
	Segments   []Segment  `json:"segments"`
	TrackGains TrackGains `json:"trackGains"`
	Ducking    *Ducking   `json:"ducking,omitempty"`
	FX         FX         `json:"fx"`
	OutExt     string     `json:"outExt"`
}

// Validate checks the plan is renderable.
func (p *Plan) Validate() error {
	if p.BaseURI == "" {
		return fmt.Errorf("mixplan: baseUri is required")
	}
	if p.OutExt == "" {
		return fmt.Errorf("mixplan: outExt is required")
	}
	for i := range p.Segments {
		s := &p.Segments[i]
		if s.URI == "" {
			return fmt.Errorf("mixplan: segment %d: uri is required", i)
		}
		if s.TrackID == "" {
			return fmt.Errorf("mixplan: segment %d: trackId is required", i)
		}
		if s.StartMs < 0 {
			return fmt.Errorf("mixplan: segment %d: startMs must not be negative", i)
		}
		if s.EndMs < s.StartMs {
			return fmt.Errorf("mixplan: segment %d: endMs precedes startMs", i)
		}
		if s.Pan < -1 || s.Pan > 1 {
			return fmt.Errorf("mixplan: segment %d: pan outside [-1, 1]", i)
		}
	}
	return nil
}

// Sort orders segments by start time, then track, then URI, so equal
// mixes serialize identically.
func (p *Plan) Sort() {
	sort.SliceStable(p.Segments, func(i, j int) bool {
		a, b := &p.Segments[i], &p.Segments[j]
		if a.StartMs != b.StartMs {
			return a.StartMs < b.StartMs
		}
		if a.TrackID != b.TrackID {
			return a.TrackID < b.TrackID
		}
		return a.URI < b.URI
	})
}

// TrackIDs returns the distinct track IDs of segments in first
// appearance order.
func TrackIDs(segments []Segment) []string {
	seen := make(map[string]struct{}, 4)
	var ids []string
	for i := range segments {
		id := segments[i].TrackID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
