// SPDX-License-Identifier: MIT
package analysis

// Sink receives one spectrum per completed analysis window. freqs and
// magnitudesDB have equal length, freqs ascending in Hz. Both slices are
// reused by the engine after Publish returns, so implementations must copy
// anything they keep. Publish runs on the audio callback in synchronous mode
// and must not block there.
type Sink interface {
	Publish(freqs, magnitudesDB []float64) error
}

// SpectrumProvider exposes the latest published spectrum to consumers that
// run on their own schedule (UDP publisher, terminal view). Implementations
// are safe for concurrent use.
type SpectrumProvider interface {
	MagnitudesInto(dst []float64) (seq uint64, err error) // Copies the latest dB spectrum into dst.
	FrequencyForBin(binIndex int) float64                 // Centre frequency (Hz) of a bin.
	Sequence() uint64                                     // Number of spectra published so far.
	Bins() int                                            // Spectrum length (pcmLength/2 + 1).
	SampleRate() int
}

// PCMObserver sees each completed raw window before it is tapered. Used for
// recording the analysed audio.
type PCMObserver interface {
	ObservePCM(window []float64) error
}

// Fanout publishes to each sink in order. Every sink is called even when an
// earlier one fails; the first error is returned.
type Fanout []Sink

func (f Fanout) Publish(freqs, magnitudesDB []float64) error {
	var first error
	for _, s := range f {
		if err := s.Publish(freqs, magnitudesDB); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(freqs, magnitudesDB []float64) error

func (f SinkFunc) Publish(freqs, magnitudesDB []float64) error {
	return f(freqs, magnitudesDB)
}

// Compile-time checks for interface implementations.
var _ Sink = Fanout(nil)
var _ Sink = SinkFunc(nil)
var _ Sink = (*Snapshot)(nil)
var _ SpectrumProvider = (*Snapshot)(nil)
