// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// SpectrumLength is the number of one-sided coefficients produced by a real
// transform of pcmLength samples.
func SpectrumLength(pcmLength int) int {
	return pcmLength/2 + 1
}

// BuildBinTable returns the centre frequency in Hz of every one-sided
// transform bin, bin[i] = i * sampleRate / pcmLength. The last entry is the
// Nyquist frequency when pcmLength is even.
func BuildBinTable(sampleRate, pcmLength int) ([]float64, error) {
	if pcmLength <= 0 {
		return nil, fmt.Errorf("%w: pcm length %d", ErrInvalidConfig, pcmLength)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}

	rate, n := float64(sampleRate), float64(pcmLength)
	bins := make([]float64, SpectrumLength(pcmLength))
	for i := range bins {
		bins[i] = float64(i) * rate / n
	}
	return bins, nil
}
