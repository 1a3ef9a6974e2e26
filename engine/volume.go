package engine

import "math"

// DBToLinear converts a decibel value to a linear volume factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// clamp01 limits v to [0, 1]. Gains above unity are capped, not
// amplified: every volume application path clamps.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// mainVolume resolves the main channel volume from channel settings,
// ducking configuration, and whether any overlay deck is active.
//
// Resolution order: mute zeroes the base; any active solo reduces the
// decision to "is the main channel soloed"; otherwise ducking attenuates
// the base by -AmountDB while a deck is active.
func mainVolume(c *Config, deckActive bool) float64 {
	base := clamp01(c.MainGain)
	if c.MainMuted {
		base = 0
	}
	if c.anySolo() {
		if c.MainSolo {
			return base
		}
		return 0
	}
	if c.Ducking != nil && c.Ducking.Enabled && deckActive {
		return clamp01(base * DBToLinear(-c.Ducking.AmountDB))
	}
	return base
}

// deckVolume resolves the applied volume for an overlay deck: zero when
// the deck fails the solo/mute check, the clamped deck gain otherwise.
func deckVolume(c *Config, d DeckNumber) float64 {
	if !c.deckAllowed(d) {
		return 0
	}
	return clamp01(c.deckGain(d))
}
