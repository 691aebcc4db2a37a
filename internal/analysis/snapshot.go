// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// frameFresh marks the shared frame index as holding a spectrum readers have
// not taken yet.
const frameFresh = 1 << 2

type snapshotFrame struct {
	seq       uint64
	magnitude []float64
}

// Snapshot is a Sink that keeps the most recent spectrum for readers polling
// at their own rate.
//
// It is a triple buffer: Publish fills its back frame and swaps it with the
// shared frame in one atomic operation, so the writer never waits for a
// reader and never allocates. Readers swap a fresh shared frame for their
// front frame under a mutex the writer never takes. Publish must be called
// from one goroutine at a time, which the engine guarantees.
type Snapshot struct {
	sampleRate int
	pcmLength  int

	frames [3]snapshotFrame
	back   int           // Owned by Publish.
	shared atomic.Uint32 // Frame index between writer and readers, plus frameFresh.
	seq    atomic.Uint64 // Spectra published.

	readMu sync.Mutex // Serialises readers.
	front  int        // Owned by the reader holding readMu.
}

// NewSnapshot pre-allocates storage for spectra of a pcmLength window.
func NewSnapshot(sampleRate, pcmLength int) *Snapshot {
	n := SpectrumLength(pcmLength)
	s := &Snapshot{
		sampleRate: sampleRate,
		pcmLength:  pcmLength,
		back:       0,
		front:      2,
	}
	for i := range s.frames {
		s.frames[i] = snapshotFrame{magnitude: make([]float64, n)}
	}
	s.shared.Store(1)
	return s
}

// Publish implements Sink. The bin frequencies are fixed by the window and
// are not stored; FrequencyForBin derives them.
func (s *Snapshot) Publish(freqs, magnitudesDB []float64) error {
	f := &s.frames[s.back]
	if len(magnitudesDB) != len(f.magnitude) || len(freqs) != len(f.magnitude) {
		return errSnapshotLength
	}
	copy(f.magnitude, magnitudesDB)
	f.seq = s.seq.Load() + 1

	prev := s.shared.Swap(uint32(s.back) | frameFresh)
	s.back = int(prev &^ frameFresh)
	s.seq.Store(f.seq)
	return nil
}

var errSnapshotLength = errors.New("analysis: snapshot spectrum length mismatch")

// latest returns the newest frame. The caller must hold readMu.
func (s *Snapshot) latest() *snapshotFrame {
	if s.shared.Load()&frameFresh != 0 {
		s.front = int(s.shared.Swap(uint32(s.front)) &^ frameFresh)
	}
	return &s.frames[s.front]
}

// Magnitudes returns a copy of the latest spectrum. It allocates; pollers
// should prefer MagnitudesInto.
func (s *Snapshot) Magnitudes() []float64 {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	f := s.latest()
	out := make([]float64, len(f.magnitude))
	copy(out, f.magnitude)
	return out
}

// MagnitudesInto copies the latest spectrum into dst, which must have length
// Bins(), and returns the sequence number of that spectrum (0 before the first
// Publish).
func (s *Snapshot) MagnitudesInto(dst []float64) (uint64, error) {
	if len(dst) != s.Bins() {
		return 0, fmt.Errorf("destination slice length %d does not match required length %d", len(dst), s.Bins())
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	f := s.latest()
	copy(dst, f.magnitude)
	return f.seq, nil
}

// FrequencyForBin returns the centre frequency in Hz of binIndex, or 0 when
// the index is out of range. The bin layout is fixed at construction.
func (s *Snapshot) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= s.Bins() {
		return 0
	}
	return float64(binIndex) * float64(s.sampleRate) / float64(s.pcmLength)
}

// Sequence returns how many spectra have been published.
func (s *Snapshot) Sequence() uint64 { return s.seq.Load() }

// Bins returns the spectrum length.
func (s *Snapshot) Bins() int { return len(s.frames[0].magnitude) }

// SampleRate returns the sample rate the bins were computed for.
func (s *Snapshot) SampleRate() int { return s.sampleRate }
