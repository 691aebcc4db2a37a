// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"math/cmplx"
)

// MagnitudeFloor is the smallest linear magnitude converted to decibels.
// Silent bins clamp to it instead of producing -Inf.
const MagnitudeFloor = 1e-12

// FloorDB is the decibel value of MagnitudeFloor (-240 dB).
var FloorDB = 20 * math.Log10(MagnitudeFloor)

// ToMagnitudeDB writes 20*log10(|c|) for each coefficient into dst. It
// converts min(len(dst), len(coeffs)) values and never allocates.
func ToMagnitudeDB(dst []float64, coeffs []complex128) {
	n := min(len(dst), len(coeffs))
	for i := range n {
		mag := cmplx.Abs(coeffs[i])
		if !(mag > MagnitudeFloor) { // also catches NaN
			mag = MagnitudeFloor
		}
		dst[i] = 20 * math.Log10(mag)
	}
}
