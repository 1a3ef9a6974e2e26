package engine

import (
	"math"
	"testing"
)

func TestDBToLinear(t *testing.T) {
	tests := []struct {
		db   float64
		want float64
	}{
		{0, 1},
		{-6, 0.501187},
		{-20, 0.1},
		{6, 1.995262},
	}
	for _, tt := range tests {
		if got := DBToLinear(tt.db); math.Abs(got-tt.want) > 1e-5 {
			t.Errorf("DBToLinear(%v) = %v, want %v", tt.db, got, tt.want)
		}
	}
}

func TestMainVolume(t *testing.T) {
	duck := &Ducking{Enabled: true, AmountDB: 6}
	tests := []struct {
		name       string
		cfg        Config
		deckActive bool
		want       float64
	}{
		{
			name: "plain gain",
			cfg:  Config{MainGain: 0.8},
			want: 0.8,
		},
		{
			name: "gain above unity clamps",
			cfg:  Config{MainGain: 1.6},
			want: 1,
		},
		{
			name: "negative gain clamps to silence",
			cfg:  Config{MainGain: -0.2},
			want: 0,
		},
		{
			name: "mute wins over gain",
			cfg:  Config{MainGain: 0.8, MainMuted: true},
			want: 0,
		},
		{
			name: "main solo keeps base",
			cfg:  Config{MainGain: 0.8, MainSolo: true},
			want: 0.8,
		},
		{
			name: "deck solo silences main",
			cfg:  Config{MainGain: 0.8, DeckSolos: map[DeckNumber]bool{2: true}},
			want: 0,
		},
		{
			name: "main solo beats mute ordering",
			cfg:  Config{MainGain: 0.8, MainMuted: true, MainSolo: true},
			want: 0,
		},
		{
			name:       "ducking attenuates while deck active",
			cfg:        Config{MainGain: 1, Ducking: duck},
			deckActive: true,
			want:       0.501187,
		},
		{
			name:       "ducking idle without active deck",
			cfg:        Config{MainGain: 1, Ducking: duck},
			deckActive: false,
			want:       1,
		},
		{
			name:       "disabled ducking never attenuates",
			cfg:        Config{MainGain: 1, Ducking: &Ducking{Enabled: false, AmountDB: 6}},
			deckActive: true,
			want:       1,
		},
		{
			name:       "solo suppresses ducking",
			cfg:        Config{MainGain: 1, MainSolo: true, Ducking: duck},
			deckActive: true,
			want:       1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mainVolume(&tt.cfg, tt.deckActive); math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("mainVolume() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeckVolume(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		deck DeckNumber
		want float64
	}{
		{
			name: "defaults to unity",
			cfg:  Config{},
			deck: 1,
			want: 1,
		},
		{
			name: "configured gain",
			cfg:  Config{DeckGains: map[DeckNumber]float64{1: 0.4}},
			deck: 1,
			want: 0.4,
		},
		{
			name: "gain above unity clamps",
			cfg:  Config{DeckGains: map[DeckNumber]float64{1: 2.5}},
			deck: 1,
			want: 1,
		},
		{
			name: "muted deck is silent",
			cfg:  Config{DeckMutes: map[DeckNumber]bool{1: true}},
			deck: 1,
			want: 0,
		},
		{
			name: "other deck soloed",
			cfg:  Config{DeckSolos: map[DeckNumber]bool{2: true}},
			deck: 1,
			want: 0,
		},
		{
			name: "soloed deck plays",
			cfg:  Config{DeckSolos: map[DeckNumber]bool{1: true}},
			deck: 1,
			want: 1,
		},
		{
			name: "main solo silences every deck",
			cfg:  Config{MainSolo: true, DeckSolos: map[DeckNumber]bool{1: true}},
			deck: 1,
			want: 0,
		},
		{
			name: "soloed deck ignores its own mute",
			cfg: Config{
				DeckSolos: map[DeckNumber]bool{1: true},
				DeckMutes: map[DeckNumber]bool{1: true},
			},
			deck: 1,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deckVolume(&tt.cfg, tt.deck); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("deckVolume(deck %d) = %v, want %v", tt.deck, got, tt.want)
			}
		})
	}
}
