// SPDX-License-Identifier: MIT
/*
Package analysis implements the streaming spectral-analysis engine:
- Sample accumulation into fixed-size windows with audio passthrough
- Hann tapering, real FFT and decibel conversion per completed window
- Publication of (frequency, magnitude) spectra to a Sink

Real-time rules:
- ProcessFrames never blocks, performs I/O or logs
- All buffers are allocated by Initialize
- In async mode the transform and the sink run on a worker goroutine fed
  through a double-buffered, non-blocking handoff
*/
package analysis

import (
	"sync/atomic"

	applog "fftplot/internal/log"
	"fftplot/pkg/bitint"
)

var logger = applog.Component("analysis")

// Config selects the analysis window and execution mode.
type Config struct {
	SampleRate int    // Must equal the rate of the audio session (Hz).
	PCMLength  int    // Analysis window length in samples, >= 2.
	Async      bool   // Run transform and sink on a worker goroutine.
	Transform  string // TransformGonum (default) or TransformGoDSP.
}

// Stats counts engine activity since Initialize.
type Stats struct {
	Cycles      uint64 // Completed windows.
	Dropped     uint64 // Completed windows skipped because the worker was busy.
	Published   uint64 // Spectra accepted by the sink.
	SinkErrors  uint64 // Publish calls that returned an error.
	ObserveErrs uint64 // PCMObserver calls that returned an error.
}

type engineState int32

const (
	stateUninitialized engineState = iota
	stateReady
	stateClosed
)

func (s engineState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateReady:
		return "ready"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Engine is the composition root of one analysis pipeline: one accumulator,
// one bin table, one transform. Engines share nothing, so several may run side
// by side.
//
// Lifecycle: Uninitialized -> Ready (Initialize) -> Closed (Shutdown), and
// Closed -> Ready again. Shutdown must not race ProcessFrames; stop the audio
// stream first.
type Engine struct {
	sessionRate  int
	sink         Sink
	observer     PCMObserver
	newTransform func(name string, n int) (Transform, error)

	state atomic.Int32

	cfg      Config
	acc      *Accumulator
	analyzer *analyzer
	handoff  *handoff // Nil in synchronous mode.

	cycles  atomic.Uint64
	dropped atomic.Uint64
	counts  analyzerCounts
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithObserver attaches an observer that sees every raw window before it is
// tapered.
func WithObserver(o PCMObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithTransformFactory replaces NewTransform, mainly for tests.
func WithTransformFactory(f func(name string, n int) (Transform, error)) Option {
	return func(e *Engine) { e.newTransform = f }
}

// NewEngine returns an uninitialized engine for an audio session opened at
// sessionRate. sink may be nil, in which case spectra are computed and
// dropped.
func NewEngine(sessionRate int, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		sessionRate:  sessionRate,
		sink:         sink,
		newTransform: NewTransform,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize validates cfg, allocates every buffer, acquires the transform and
// builds the bin table, then moves the engine to Ready. It fails with
// ErrAlreadyInitialized while Ready, leaving the running configuration
// intact. Configuration problems are returned as *ConfigError.
func (e *Engine) Initialize(cfg Config) error {
	if engineState(e.state.Load()) == stateReady {
		return ErrAlreadyInitialized
	}

	if cfg.SampleRate != e.sessionRate {
		return &ConfigError{Field: "sample_rate", Value: cfg.SampleRate, Err: ErrUnsupportedSampleRate}
	}
	if cfg.PCMLength <= 0 {
		return &ConfigError{Field: "pcm_length", Value: cfg.PCMLength, Err: ErrInvalidConfig}
	}
	if cfg.PCMLength < 2 {
		return &ConfigError{Field: "pcm_length", Value: cfg.PCMLength, Err: ErrInvalidWindowLength}
	}

	bins, err := BuildBinTable(cfg.SampleRate, cfg.PCMLength)
	if err != nil {
		return &ConfigError{Field: "pcm_length", Value: cfg.PCMLength, Err: err}
	}
	transform, err := e.newTransform(cfg.Transform, cfg.PCMLength)
	if err != nil {
		return &ConfigError{Field: "transform", Value: cfg.Transform, Err: err}
	}
	if !cfg.Async && allocatesPerCall(transform) {
		return &ConfigError{Field: "transform", Value: cfg.Transform, Err: ErrInvalidConfig}
	}

	if !bitint.IsPowerOfTwo(cfg.PCMLength) {
		logger.Warnf("pcm length %d is not a power of two, %d would transform faster",
			cfg.PCMLength, bitint.NearestPowerOfTwo(cfg.PCMLength))
	}

	e.cycles.Store(0)
	e.dropped.Store(0)
	e.counts.reset()
	e.analyzer = &analyzer{
		transform: transform,
		spectrum:  make([]complex128, SpectrumLength(cfg.PCMLength)),
		magnitude: make([]float64, SpectrumLength(cfg.PCMLength)),
		bins:      bins,
		sink:      e.sink,
		observer:  e.observer,
		counts:    &e.counts,
	}

	if cfg.Async {
		e.handoff = newHandoff(cfg.PCMLength, e.analyzer.run)
		e.handoff.start()
		e.acc = NewAccumulator(e.handoff.current(), e.completeAsync)
	} else {
		e.acc = NewAccumulator(make([]float64, cfg.PCMLength), e.completeSync)
	}
	e.cfg = cfg

	logger.Infof("engine ready (rate %d Hz, window %d, bins %d, async %v)",
		cfg.SampleRate, cfg.PCMLength, len(bins), cfg.Async)

	e.state.Store(int32(stateReady))
	return nil
}

// ProcessFrames is the audio callback entry point. Every input sample is
// copied to out and accumulated; each completed window is analysed and
// published. Outside Ready it returns ErrEngineNotReady without touching
// either slice. It never allocates.
func (e *Engine) ProcessFrames(in, out []float32) error {
	if engineState(e.state.Load()) != stateReady {
		return ErrEngineNotReady
	}
	if len(out) < len(in) {
		return ErrFrameMismatch
	}
	e.acc.Push(in, out)
	return nil
}

func (e *Engine) completeSync(window []float64) []float64 {
	e.cycles.Add(1)
	e.analyzer.run(window)
	return window
}

func (e *Engine) completeAsync(window []float64) []float64 {
	e.cycles.Add(1)
	next, ok := e.handoff.complete()
	if !ok {
		e.dropped.Add(1)
	}
	return next
}

// Shutdown waits for any in-flight asynchronous window, then releases the
// buffers, bin table and transform. It is a no-op unless the engine is Ready.
func (e *Engine) Shutdown() {
	if !e.state.CompareAndSwap(int32(stateReady), int32(stateClosed)) {
		return
	}

	if e.handoff != nil {
		e.handoff.stop()
		e.handoff = nil
	}

	stats := e.Stats()
	logger.Infof("engine closed (cycles %d, published %d, dropped %d, sink errors %d)",
		stats.Cycles, stats.Published, stats.Dropped, stats.SinkErrors)

	e.acc = nil
	e.analyzer = nil
}

// Stats returns the counters for the current or last configuration.
func (e *Engine) Stats() Stats {
	return Stats{
		Cycles:      e.cycles.Load(),
		Dropped:     e.dropped.Load(),
		Published:   e.counts.published.Load(),
		SinkErrors:  e.counts.sinkErrors.Load(),
		ObserveErrs: e.counts.observeErrors.Load(),
	}
}

// Config returns the active configuration.
func (e *Engine) Config() Config { return e.cfg }

// Ready reports whether ProcessFrames will accept frames.
func (e *Engine) Ready() bool {
	return engineState(e.state.Load()) == stateReady
}

// analyzerCounts are updated by whichever goroutine runs the analyzer.
type analyzerCounts struct {
	published     atomic.Uint64
	sinkErrors    atomic.Uint64
	observeErrors atomic.Uint64
}

func (c *analyzerCounts) reset() {
	c.published.Store(0)
	c.sinkErrors.Store(0)
	c.observeErrors.Store(0)
}

// analyzer runs the completion cycle on a full window: observe, taper,
// transform, convert to dB, publish.
type analyzer struct {
	transform Transform
	spectrum  []complex128
	magnitude []float64
	bins      []float64
	sink      Sink
	observer  PCMObserver
	counts    *analyzerCounts
}

func (a *analyzer) run(window []float64) {
	if a.observer != nil {
		if err := a.observer.ObservePCM(window); err != nil {
			a.counts.observeErrors.Add(1)
		}
	}

	// Window length was validated by Initialize.
	_ = ApplyHann(window)
	a.transform.Coefficients(a.spectrum, window)
	ToMagnitudeDB(a.magnitude, a.spectrum)

	if a.sink == nil {
		return
	}
	if err := a.sink.Publish(a.bins, a.magnitude); err != nil {
		a.counts.sinkErrors.Add(1)
		return
	}
	a.counts.published.Add(1)
}
