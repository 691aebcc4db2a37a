// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSnapshotPublish(t *testing.T) {
	s := NewSnapshot(48000, 8)
	if s.Bins() != 5 {
		t.Fatalf("Bins() = %d, want 5", s.Bins())
	}
	if s.Sequence() != 0 {
		t.Errorf("Sequence() = %d before Publish, want 0", s.Sequence())
	}

	freqs, _ := BuildBinTable(48000, 8)
	mags := []float64{-10, -20, -30, -40, -50}
	if err := s.Publish(freqs, mags); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	mags[0] = 0 // The snapshot must hold its own copy.

	dst := make([]float64, s.Bins())
	seq, err := s.MagnitudesInto(dst)
	if err != nil {
		t.Fatalf("MagnitudesInto() error = %v", err)
	}
	if seq != 1 {
		t.Errorf("MagnitudesInto() seq = %d, want 1", seq)
	}
	if dst[0] != -10 || dst[4] != -50 {
		t.Errorf("MagnitudesInto() = %v", dst)
	}
	if got := s.Magnitudes(); got[2] != -30 {
		t.Errorf("Magnitudes()[2] = %g, want -30", got[2])
	}
}

func TestSnapshotLengthMismatch(t *testing.T) {
	s := NewSnapshot(48000, 8)

	if err := s.Publish(make([]float64, 4), make([]float64, 4)); err == nil {
		t.Error("Publish() with short spectrum returned nil error")
	}
	if s.Sequence() != 0 {
		t.Errorf("rejected Publish advanced Sequence() to %d", s.Sequence())
	}
	if _, err := s.MagnitudesInto(make([]float64, 3)); err == nil {
		t.Error("MagnitudesInto() with short destination returned nil error")
	}
}

func TestSnapshotFrequencyForBin(t *testing.T) {
	s := NewSnapshot(48000, 8192)
	tests := []struct {
		bin  int
		want float64
	}{
		{0, 0},
		{1, 5.859375},
		{4096, 24000},
		{-1, 0},
		{4097, 0},
	}
	for _, tt := range tests {
		if got := s.FrequencyForBin(tt.bin); got != tt.want {
			t.Errorf("FrequencyForBin(%d) = %g, want %g", tt.bin, got, tt.want)
		}
	}
	if s.SampleRate() != 48000 {
		t.Errorf("SampleRate() = %d, want 48000", s.SampleRate())
	}
}

func TestSnapshotConcurrentReaders(t *testing.T) {
	s := NewSnapshot(8000, 64)
	freqs, _ := BuildBinTable(8000, 64)
	mags := make([]float64, s.Bins())

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := make([]float64, s.Bins())
			for range 200 {
				if _, err := s.MagnitudesInto(dst); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for i := range 200 {
		mags[0] = float64(i)
		_ = s.Publish(freqs, mags)
	}
	wg.Wait()

	if s.Sequence() != 200 {
		t.Errorf("Sequence() = %d, want 200", s.Sequence())
	}
}

func TestSnapshotReadersSeeWholeSpectra(t *testing.T) {
	s := NewSnapshot(8000, 256)
	freqs, _ := BuildBinTable(8000, 256)
	mags := make([]float64, s.Bins())
	const publishes = 2000

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := make([]float64, s.Bins())
			var last uint64
			for last < publishes {
				seq, err := s.MagnitudesInto(dst)
				if err != nil {
					t.Error(err)
					return
				}
				if seq < last {
					t.Errorf("sequence went backwards: %d after %d", seq, last)
					return
				}
				for i, v := range dst {
					if v != float64(seq) {
						t.Errorf("spectrum %d: bin %d = %g, want %d", seq, i, v, seq)
						return
					}
				}
				last = seq
			}
		}()
	}

	for n := 1; n <= publishes; n++ {
		for i := range mags {
			mags[i] = float64(n)
		}
		if err := s.Publish(freqs, mags); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}

func TestSnapshotPublishIgnoresReaders(t *testing.T) {
	s := NewSnapshot(8000, 16)
	freqs, _ := BuildBinTable(8000, 16)
	mags := make([]float64, s.Bins())

	// A reader in the middle of a copy must not hold up the writer.
	s.readMu.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 5 {
			_ = s.Publish(freqs, mags)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked while a reader held the snapshot")
	}
	s.readMu.Unlock()

	mags[3] = -7
	_ = s.Publish(freqs, mags)
	dst := make([]float64, s.Bins())
	seq, err := s.MagnitudesInto(dst)
	if err != nil || seq != 6 || dst[3] != -7 {
		t.Errorf("MagnitudesInto() = %d, %v, %v; want the sixth spectrum", seq, dst, err)
	}
}

func TestSnapshotPublishAllocations(t *testing.T) {
	s := NewSnapshot(48000, 1024)
	freqs, _ := BuildBinTable(48000, 1024)
	mags := make([]float64, s.Bins())
	allocs := testing.AllocsPerRun(100, func() {
		_ = s.Publish(freqs, mags)
	})
	if allocs > 0 {
		t.Errorf("Snapshot.Publish allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestFanout(t *testing.T) {
	var calls []string
	errFirst := errors.New("first")
	errSecond := errors.New("second")

	f := Fanout{
		SinkFunc(func(_, _ []float64) error { calls = append(calls, "a"); return nil }),
		SinkFunc(func(_, _ []float64) error { calls = append(calls, "b"); return errFirst }),
		SinkFunc(func(_, _ []float64) error { calls = append(calls, "c"); return errSecond }),
	}

	err := f.Publish(nil, nil)
	if !errors.Is(err, errFirst) {
		t.Errorf("Fanout.Publish() error = %v, want %v", err, errFirst)
	}
	if len(calls) != 3 || calls[0] != "a" || calls[2] != "c" {
		t.Errorf("Fanout called %v, want [a b c]", calls)
	}

	if err := (Fanout{}).Publish(nil, nil); err != nil {
		t.Errorf("empty Fanout.Publish() error = %v", err)
	}
}
