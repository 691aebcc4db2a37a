// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"testing"
)

func TestBuildBinTable(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		pcmLength  int
		wantLen    int
		checks     map[int]float64
	}{
		{"Default", 48000, 8192, 4097, map[int]float64{0: 0, 1: 5.859375, 4096: 24000}},
		{"CD", 44100, 1024, 513, map[int]float64{1: 43.06640625, 512: 22050}},
		{"Tiny", 8000, 2, 2, map[int]float64{0: 0, 1: 4000}},
		{"Odd", 48000, 5, 3, map[int]float64{1: 9600, 2: 19200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bins, err := BuildBinTable(tt.sampleRate, tt.pcmLength)
			if err != nil {
				t.Fatalf("BuildBinTable() error = %v", err)
			}
			if len(bins) != tt.wantLen {
				t.Fatalf("BuildBinTable() length = %d, want %d", len(bins), tt.wantLen)
			}
			for i, want := range tt.checks {
				if bins[i] != want {
					t.Errorf("bin[%d] = %g, want %g", i, bins[i], want)
				}
			}
			for i := 1; i < len(bins); i++ {
				if bins[i] <= bins[i-1] {
					t.Fatalf("bins not ascending at %d: %g <= %g", i, bins[i], bins[i-1])
				}
			}
		})
	}
}

func TestBuildBinTableInvalid(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		pcmLength  int
	}{
		{"ZeroLength", 48000, 0},
		{"NegativeLength", 48000, -8},
		{"ZeroRate", 0, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildBinTable(tt.sampleRate, tt.pcmLength)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("BuildBinTable() error = %v, want %v", err, ErrInvalidConfig)
			}
		})
	}
}

func TestSpectrumLength(t *testing.T) {
	for pcm, want := range map[int]int{2: 2, 3: 2, 1024: 513, 8192: 4097} {
		if got := SpectrumLength(pcm); got != want {
			t.Errorf("SpectrumLength(%d) = %d, want %d", pcm, got, want)
		}
	}
}
