// SPDX-License-Identifier: MIT

// Package utils holds signal generators and sinks shared by tests.
package utils

import (
	"math"
	"sync"
)

// RecordingSink keeps a copy of every spectrum it is given. It is safe for
// use from the analysis worker while a test reads it.
type RecordingSink struct {
	mu      sync.Mutex
	Freqs   []float64
	Spectra [][]float64
	Err     error // Returned from every Publish when set.
}

// Publish stores copies of freqs and magnitudesDB instead of transmitting.
func (r *RecordingSink) Publish(freqs, magnitudesDB []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	if r.Freqs == nil {
		r.Freqs = append([]float64(nil), freqs...)
	}
	r.Spectra = append(r.Spectra, append([]float64(nil), magnitudesDB...))
	return nil
}

// Count returns the number of spectra received.
func (r *RecordingSink) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Spectra)
}

// Last returns the most recent spectrum, or nil.
func (r *RecordingSink) Last() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Spectra) == 0 {
		return nil
	}
	return r.Spectra[len(r.Spectra)-1]
}

// GenerateComplexWave returns a 440 Hz tone with its second and third
// harmonics, peaking below full scale.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency Hz with
// amplitude 0.9.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
