// SPDX-License-Identifier: MIT
package analysis

import "gonum.org/v1/gonum/dsp/window"

// ApplyHann tapers samples in place with the symmetric Hann window
//
//	w[i] = 0.5 * (1 - cos(2*pi*i/(N-1)))
//
// so both end points are scaled to zero. Windows shorter than two samples
// divide by zero in the formula and are rejected untouched.
func ApplyHann(samples []float64) error {
	if len(samples) < 2 {
		return ErrInvalidWindowLength
	}
	window.Hann(samples)
	return nil
}
