// SPDX-License-Identifier: MIT
package analysis

// Accumulator gathers incoming frames of arbitrary length into fixed-size
// analysis windows. Each input sample is copied to the output (passthrough)
// and to the next free slot of the window. When the window becomes full the
// completion function runs and the fill count returns to zero, so exactly one
// completion happens per len(window) samples however frames are sized.
//
// Push never allocates. It is not safe for concurrent use; the audio callback
// is its only caller.
type Accumulator struct {
	pcm  []float64
	fill int

	// onFull consumes a full window and returns the buffer to fill next, which
	// may be the same slice (synchronous analysis) or the other half of a
	// double buffer (asynchronous analysis).
	onFull func(window []float64) []float64
}

// NewAccumulator starts filling pcm, which must not be empty. onFull must
// return a slice of the same length as pcm.
func NewAccumulator(pcm []float64, onFull func(window []float64) []float64) *Accumulator {
	if len(pcm) == 0 {
		panic("analysis: empty accumulator window")
	}
	return &Accumulator{
		pcm:    pcm,
		onFull: onFull,
	}
}

// Push copies in to out sample by sample while accumulating, and returns the
// number of windows completed during the call. out must be at least as long
// as in; in and out may share storage.
func (a *Accumulator) Push(in, out []float32) int {
	completed := 0
	for len(in) > 0 {
		// Fill up to the end of the window, then check for completion. This is
		// the per-sample rule applied to runs of samples.
		k := min(len(a.pcm)-a.fill, len(in))
		dst := a.pcm[a.fill : a.fill+k]
		for i, v := range in[:k] {
			out[i] = v
			dst[i] = float64(v)
		}
		a.fill += k
		in, out = in[k:], out[k:]

		if a.fill == len(a.pcm) {
			a.pcm = a.onFull(a.pcm)
			a.fill = 0
			completed++
		}
	}
	return completed
}

// Fill returns how many samples of the current window are valid.
func (a *Accumulator) Fill() int { return a.fill }

// Pending returns the valid samples of the current, incomplete window. The
// slice aliases the accumulator's buffer.
func (a *Accumulator) Pending() []float64 { return a.pcm[:a.fill] }

// Len returns the window length.
func (a *Accumulator) Len() int { return len(a.pcm) }
