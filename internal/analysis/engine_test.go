// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"testing"

	"fftplot/pkg/utils"
)

const (
	testRate   = 48000
	testPCM    = 1024
	testFrames = 256
)

// feed pushes signal through e in frames of the given size.
func feed(t *testing.T, e *Engine, signal []float32, frames int) {
	t.Helper()
	out := make([]float32, frames)
	for off := 0; off < len(signal); off += frames {
		end := min(off+frames, len(signal))
		if err := e.ProcessFrames(signal[off:end], out[:end-off]); err != nil {
			t.Fatalf("ProcessFrames() error = %v", err)
		}
	}
}

func TestEngineNotReady(t *testing.T) {
	e := NewEngine(testRate, nil)
	in := []float32{1, 2, 3}
	out := []float32{9, 9, 9}

	if err := e.ProcessFrames(in, out); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("ProcessFrames() before Initialize error = %v, want %v", err, ErrEngineNotReady)
	}
	if out[0] != 9 {
		t.Error("ProcessFrames() wrote output while not ready")
	}
	if e.Ready() {
		t.Error("Ready() = true before Initialize")
	}
}

func TestEngineInitializeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		field   string
	}{
		{"WrongRate", Config{SampleRate: 44100, PCMLength: testPCM}, ErrUnsupportedSampleRate, "sample_rate"},
		{"ZeroLength", Config{SampleRate: testRate, PCMLength: 0}, ErrInvalidConfig, "pcm_length"},
		{"NegativeLength", Config{SampleRate: testRate, PCMLength: -4}, ErrInvalidConfig, "pcm_length"},
		{"SingleSample", Config{SampleRate: testRate, PCMLength: 1}, ErrInvalidWindowLength, "pcm_length"},
		{"UnknownTransform", Config{SampleRate: testRate, PCMLength: testPCM, Transform: "fftw"}, ErrInvalidConfig, "transform"},
		{"AllocatingTransformSync", Config{SampleRate: testRate, PCMLength: testPCM, Transform: TransformGoDSP}, ErrInvalidConfig, "transform"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(testRate, nil)
			err := e.Initialize(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Initialize() error = %v, want %v", err, tt.wantErr)
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Initialize() error %T is not *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, tt.field)
			}

			if e.Ready() {
				t.Error("engine Ready after failed Initialize")
			}
			if err := e.ProcessFrames(make([]float32, 4), make([]float32, 4)); !errors.Is(err, ErrEngineNotReady) {
				t.Errorf("ProcessFrames() after failed Initialize error = %v", err)
			}
		})
	}
}

func TestEngineLifecycle(t *testing.T) {
	sink := &utils.RecordingSink{}
	e := NewEngine(testRate, sink)

	cfg := Config{SampleRate: testRate, PCMLength: testPCM}
	if err := e.Initialize(cfg); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 2048}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize() error = %v, want %v", err, ErrAlreadyInitialized)
	}
	if e.Config().PCMLength != testPCM {
		t.Errorf("second Initialize() changed PCMLength to %d", e.Config().PCMLength)
	}

	feed(t, e, make([]float32, testPCM), testFrames)
	if sink.Count() != 1 {
		t.Errorf("published %d spectra, want 1", sink.Count())
	}

	e.Shutdown()
	e.Shutdown()
	if err := e.ProcessFrames(make([]float32, 4), make([]float32, 4)); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("ProcessFrames() after Shutdown error = %v, want %v", err, ErrEngineNotReady)
	}
	if e.Stats().Cycles != 1 {
		t.Errorf("Stats().Cycles after Shutdown = %d, want 1", e.Stats().Cycles)
	}

	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 512}); err != nil {
		t.Fatalf("Initialize() after Shutdown error = %v", err)
	}
	defer e.Shutdown()

	if e.Stats().Cycles != 0 {
		t.Errorf("Stats().Cycles after re-Initialize = %d, want 0", e.Stats().Cycles)
	}
	feed(t, e, make([]float32, 512), testFrames)
	if got := len(sink.Last()); got != SpectrumLength(512) {
		t.Errorf("spectrum length after re-Initialize = %d, want %d", got, SpectrumLength(512))
	}
}

func TestEngineShutdownBeforeInitialize(t *testing.T) {
	e := NewEngine(testRate, nil)
	e.Shutdown()
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: testPCM}); err != nil {
		t.Errorf("Initialize() after early Shutdown error = %v", err)
	}
	e.Shutdown()
}

func TestEngineFrameMismatch(t *testing.T) {
	e := NewEngine(testRate, nil)
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: testPCM}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer e.Shutdown()

	if err := e.ProcessFrames(make([]float32, 8), make([]float32, 4)); !errors.Is(err, ErrFrameMismatch) {
		t.Errorf("ProcessFrames() error = %v, want %v", err, ErrFrameMismatch)
	}
	if err := e.ProcessFrames(nil, nil); err != nil {
		t.Errorf("ProcessFrames() with empty frame error = %v", err)
	}
}

func TestEnginePassthrough(t *testing.T) {
	e := NewEngine(testRate, nil)
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 64}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer e.Shutdown()

	in := utils.GenerateSineWave(200, testRate, 1000)
	out := make([]float32, len(in))
	if err := e.ProcessFrames(in, out); err != nil {
		t.Fatalf("ProcessFrames() error = %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %g, want %g", i, out[i], in[i])
		}
	}
	if e.Stats().Cycles != 3 {
		t.Errorf("Stats().Cycles = %d, want 3", e.Stats().Cycles)
	}
}

func TestEngineSinePeak(t *testing.T) {
	tests := []struct {
		name      string
		pcm       int
		bin       int
		transform string
		async     bool
	}{
		{"Gonum", 1024, 64, TransformGonum, false},
		{"GonumLarge", 8192, 128, TransformGonum, false},
		{"GonumAsync", 2048, 300, TransformGonum, true},
		{"GoDSPAsync", 1024, 100, TransformGoDSP, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &utils.RecordingSink{}
			e := NewEngine(testRate, sink)
			cfg := Config{SampleRate: testRate, PCMLength: tt.pcm, Transform: tt.transform, Async: tt.async}
			if err := e.Initialize(cfg); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			freq := float64(tt.bin) * testRate / float64(tt.pcm)
			feed(t, e, utils.GenerateSineWave(tt.pcm, testRate, freq), testFrames)
			e.Shutdown()

			if sink.Count() != 1 {
				t.Fatalf("published %d spectra, want 1", sink.Count())
			}
			mags := sink.Last()
			if len(mags) != SpectrumLength(tt.pcm) || len(sink.Freqs) != len(mags) {
				t.Fatalf("spectrum length = %d, freqs = %d, want %d", len(mags), len(sink.Freqs), SpectrumLength(tt.pcm))
			}

			peak := utils.FindPeakBin(mags, 0, len(mags)-1)
			if peak != tt.bin {
				t.Errorf("peak bin = %d (%.2f Hz), want %d (%.2f Hz)", peak, sink.Freqs[peak], tt.bin, freq)
			}
			if sink.Freqs[peak] != freq {
				t.Errorf("freqs[%d] = %g, want %g", peak, sink.Freqs[peak], freq)
			}
			// Hann leakage into far bins stays far below the peak.
			if far := mags[(tt.bin+len(mags)/2)%len(mags)]; mags[peak]-far < 60 {
				t.Errorf("far bin only %.1f dB below peak", mags[peak]-far)
			}
		})
	}
}

func TestEngineSilenceIsFinite(t *testing.T) {
	sink := &utils.RecordingSink{}
	e := NewEngine(testRate, sink)
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 256}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer e.Shutdown()

	feed(t, e, make([]float32, 256), 64)
	for i, v := range sink.Last() {
		if v != FloorDB {
			t.Fatalf("silent bin %d = %g dB, want %g", i, v, FloorDB)
		}
	}
}

func TestEngineCycleCount(t *testing.T) {
	sink := &utils.RecordingSink{}
	e := NewEngine(testRate, sink)
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 300}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer e.Shutdown()

	feed(t, e, make([]float32, 3*300+299), 97)

	stats := e.Stats()
	if stats.Cycles != 3 || stats.Published != 3 || sink.Count() != 3 {
		t.Errorf("Stats() = %+v, sink count %d, want 3 cycles published", stats, sink.Count())
	}
}

func TestEngineSinkAndObserverErrors(t *testing.T) {
	sink := &utils.RecordingSink{Err: errors.New("sink down")}
	var observed [][]float64
	observer := observerFunc(func(w []float64) error {
		observed = append(observed, append([]float64(nil), w...))
		return errors.New("disk full")
	})

	e := NewEngine(testRate, sink, WithObserver(observer))
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 16}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer e.Shutdown()

	in := make([]float32, 32)
	for i := range in {
		in[i] = 0.5
	}
	if err := e.ProcessFrames(in, make([]float32, len(in))); err != nil {
		t.Fatalf("ProcessFrames() error = %v, sink errors must not reach the callback", err)
	}

	stats := e.Stats()
	if stats.Cycles != 2 || stats.SinkErrors != 2 || stats.ObserveErrs != 2 || stats.Published != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
	// Observers see the window before the taper zeroes its ends.
	if len(observed) != 2 || observed[0][0] != 0.5 {
		t.Errorf("observer saw %v", observed)
	}
}

type observerFunc func(window []float64) error

func (f observerFunc) ObservePCM(window []float64) error { return f(window) }

func TestEngineTransformFactory(t *testing.T) {
	errBackend := errors.New("backend unavailable")
	e := NewEngine(testRate, nil, WithTransformFactory(func(string, int) (Transform, error) {
		return nil, errBackend
	}))

	err := e.Initialize(Config{SampleRate: testRate, PCMLength: testPCM})
	if !errors.Is(err, errBackend) {
		t.Errorf("Initialize() error = %v, want %v", err, errBackend)
	}
}

func TestEnginesAreIndependent(t *testing.T) {
	sinkA, sinkB := &utils.RecordingSink{}, &utils.RecordingSink{}
	a := NewEngine(testRate, sinkA)
	b := NewEngine(testRate, sinkB)
	if err := a.Initialize(Config{SampleRate: testRate, PCMLength: 128}); err != nil {
		t.Fatal(err)
	}
	if err := b.Initialize(Config{SampleRate: testRate, PCMLength: 256}); err != nil {
		t.Fatal(err)
	}

	feed(t, a, make([]float32, 256), 64)
	a.Shutdown()
	feed(t, b, make([]float32, 256), 64)
	b.Shutdown()

	if sinkA.Count() != 2 || sinkB.Count() != 1 {
		t.Errorf("sink counts = %d, %d, want 2, 1", sinkA.Count(), sinkB.Count())
	}
}

func TestEngineAsyncAccounting(t *testing.T) {
	sink := &utils.RecordingSink{}
	e := NewEngine(testRate, sink)
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 128, Async: true}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	feed(t, e, utils.GenerateComplexWave(128*20, testRate), 32)
	e.Shutdown()

	stats := e.Stats()
	if stats.Cycles != 20 {
		t.Errorf("Stats().Cycles = %d, want 20", stats.Cycles)
	}
	if stats.Published+stats.Dropped != stats.Cycles {
		t.Errorf("Published %d + Dropped %d != Cycles %d", stats.Published, stats.Dropped, stats.Cycles)
	}
	if uint64(sink.Count()) != stats.Published {
		t.Errorf("sink count = %d, Published = %d", sink.Count(), stats.Published)
	}
}

func TestEngineAsyncDropsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sink := SinkFunc(func(_, _ []float64) error {
		started <- struct{}{}
		<-release
		return nil
	})

	e := NewEngine(testRate, sink)
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 64, Async: true}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	feed(t, e, make([]float32, 64), 64)
	<-started
	// The worker is blocked in the sink: the next windows are dropped without
	// stalling the callback.
	feed(t, e, make([]float32, 3*64), 64)
	close(release)
	e.Shutdown()

	stats := e.Stats()
	if stats.Cycles != 4 || stats.Published != 1 || stats.Dropped != 3 {
		t.Errorf("Stats() = %+v, want 4 cycles, 1 published, 3 dropped", stats)
	}
}

func TestEngineAsyncObserverSkipsDroppedWindows(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sink := SinkFunc(func(_, _ []float64) error {
		started <- struct{}{}
		<-release
		return nil
	})
	var observed []float64 // First sample of each observed window.
	observer := observerFunc(func(window []float64) error {
		observed = append(observed, window[0])
		return nil
	})

	e := NewEngine(testRate, sink, WithObserver(observer))
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 64, Async: true}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	window := func(v float32) []float32 {
		w := make([]float32, 64)
		for i := range w {
			w[i] = v
		}
		return w
	}

	feed(t, e, window(0.1), 64)
	<-started
	feed(t, e, window(0.2), 64) // Dropped: the worker is busy.
	feed(t, e, window(0.3), 64) // Dropped.
	close(release)
	e.Shutdown()

	if len(observed) != 1 || observed[0] != float64(float32(0.1)) {
		t.Errorf("observed windows = %v, want only the first", observed)
	}
	if stats := e.Stats(); stats.Dropped != 2 || stats.Cycles-stats.Dropped != uint64(len(observed)) {
		t.Errorf("Stats() = %+v, observer saw %d windows", stats, len(observed))
	}
}

func TestEngineSyncAllocations(t *testing.T) {
	snap := NewSnapshot(testRate, 256)
	e := NewEngine(testRate, snap)
	if err := e.Initialize(Config{SampleRate: testRate, PCMLength: 256}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer e.Shutdown()

	in := utils.GenerateSineWave(64, testRate, 1000)
	out := make([]float32, len(in))
	allocs := testing.AllocsPerRun(200, func() {
		_ = e.ProcessFrames(in, out)
	})
	if allocs > 0 {
		t.Errorf("ProcessFrames allocated memory: got %.1f allocs, want 0", allocs)
	}
	if snap.Sequence() == 0 {
		t.Error("no spectrum reached the snapshot")
	}
}

func BenchmarkEngineProcessFrames(b *testing.B) {
	benchmarks := []struct {
		name string
		pcm  int
	}{
		{"Small", 1024},
		{"Default", 8192},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			e := NewEngine(testRate, NewSnapshot(testRate, bm.pcm))
			if err := e.Initialize(Config{SampleRate: testRate, PCMLength: bm.pcm}); err != nil {
				b.Fatal(err)
			}
			defer e.Shutdown()

			in := utils.GenerateSineWave(testFrames, testRate, 440)
			out := make([]float32, testFrames)

			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				_ = e.ProcessFrames(in, out)
			}
		})
	}
}
