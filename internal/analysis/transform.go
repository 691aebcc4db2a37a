// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform computes the one-sided spectrum of a real sequence. dst must have
// length len(seq)/2+1; the filled dst is returned. *fourier.FFT satisfies it
// directly.
type Transform interface {
	Coefficients(dst []complex128, seq []float64) []complex128
}

// Names accepted by NewTransform.
const (
	TransformGonum = "gonum" // gonum fourier.FFT, allocation free after creation
	TransformGoDSP = "godsp" // mjibson/go-dsp, allocates per call
)

// NewTransform builds a transform sized for n samples. Both backends accept
// any positive n.
func NewTransform(name string, n int) (Transform, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: transform length %d", ErrInvalidConfig, n)
	}
	switch strings.ToLower(name) {
	case "", TransformGonum:
		return fourier.NewFFT(n), nil
	case TransformGoDSP:
		return &goDSPTransform{n: n}, nil
	default:
		return nil, fmt.Errorf("%w: unknown transform %q", ErrInvalidConfig, name)
	}
}

// allocatesPerCall reports whether t is known to allocate on every call and
// therefore must not run on the audio callback.
func allocatesPerCall(t Transform) bool {
	_, ok := t.(*goDSPTransform)
	return ok
}

// goDSPTransform adapts fft.FFTReal, which returns the full two-sided
// spectrum in a fresh slice, to the one-sided Transform contract.
type goDSPTransform struct {
	n int
}

func (t *goDSPTransform) Coefficients(dst []complex128, seq []float64) []complex128 {
	if len(seq) != t.n {
		panic("analysis: sequence length mismatch")
	}
	full := fft.FFTReal(seq)
	if dst == nil {
		dst = make([]complex128, SpectrumLength(t.n))
	}
	copy(dst, full[:len(dst)])
	return dst
}
