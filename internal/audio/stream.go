// SPDX-License-Identifier: MIT
/*
Package audio owns the PortAudio session feeding the analysis engine:
- Device discovery and lookup by id
- A mono float32 duplex stream whose callback hands every frame to a Processor
- A WAV recorder for analysed windows

Thread Safety:
- The callback touches only pre-allocated buffers and atomics
- Failures inside the callback are latched and surfaced through Done and Err
*/
package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"fftplot/internal/config"
	applog "fftplot/internal/log"

	"github.com/gordonklaus/portaudio"
)

var logger = applog.Component("audio")

// Processor consumes one callback's worth of frames. in and out have the
// same length; out must be fully written. *analysis.Engine satisfies it.
type Processor interface {
	ProcessFrames(in, out []float32) error
}

// Stream is a mono duplex PortAudio stream driving a Processor from the
// real-time callback. Without passthrough only an input device is opened and
// the processor writes into a scratch buffer.
type Stream struct {
	cfg  config.AudioConfig
	proc Processor

	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo // Nil without passthrough.
	inputLatency  time.Duration
	outputLatency time.Duration
	paStream      *portaudio.Stream

	scratch []float32 // Output for input-only streams.

	failed atomic.Bool
	err    atomic.Value // First callback error.
	done   chan struct{}
}

// NewStream resolves the configured devices. The stream is opened by Start.
func NewStream(cfg config.AudioConfig, proc Processor) (*Stream, error) {
	if proc == nil {
		return nil, fmt.Errorf("audio: stream processor cannot be nil")
	}

	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		cfg:         cfg,
		proc:        proc,
		inputDevice: inputDevice,
		scratch:     make([]float32, cfg.FramesPerBuffer),
		done:        make(chan struct{}),
	}

	if cfg.Passthrough {
		if s.outputDevice, err = OutputDevice(cfg.OutputDevice); err != nil {
			return nil, err
		}
	}

	if cfg.LowLatency {
		s.inputLatency = inputDevice.DefaultLowInputLatency
		if s.outputDevice != nil {
			s.outputLatency = s.outputDevice.DefaultLowOutputLatency
		}
	} else {
		s.inputLatency = inputDevice.DefaultHighInputLatency
		if s.outputDevice != nil {
			s.outputLatency = s.outputDevice.DefaultHighOutputLatency
		}
	}

	return s, nil
}

// Start opens and starts the PortAudio stream.
func (s *Stream) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   s.inputDevice,
			Latency:  s.inputLatency,
		},
		FramesPerBuffer: s.cfg.FramesPerBuffer,
		SampleRate:      float64(s.cfg.SampleRate),
	}

	var (
		stream *portaudio.Stream
		err    error
	)
	if s.outputDevice != nil {
		params.Output = portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   s.outputDevice,
			Latency:  s.outputLatency,
		}
		stream, err = portaudio.OpenStream(params, s.processDuplex)
	} else {
		stream, err = portaudio.OpenStream(params, s.processInput)
	}
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	s.paStream = stream

	if err := s.paStream.Start(); err != nil {
		s.paStream.Close()
		s.paStream = nil
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	output := "none"
	if s.outputDevice != nil {
		output = s.outputDevice.Name
	}
	logger.Infof("stream started (input %s, output %s, rate %d Hz, %d frames per buffer)",
		s.inputDevice.Name, output, s.cfg.SampleRate, s.cfg.FramesPerBuffer)
	return nil
}

// Stop drains pending buffers and closes the stream. Safe to call when the
// stream was never started.
func (s *Stream) Stop() error {
	return s.close((*portaudio.Stream).Stop)
}

// Abort stops the stream immediately, discarding pending buffers.
func (s *Stream) Abort() error {
	return s.close((*portaudio.Stream).Abort)
}

func (s *Stream) close(halt func(*portaudio.Stream) error) error {
	if s.paStream == nil {
		return nil
	}
	if err := halt(s.paStream); err != nil {
		return err
	}
	if err := s.paStream.Close(); err != nil {
		return err
	}
	s.paStream = nil
	return nil
}

// Done is closed when the callback hits an error and the stream should be
// aborted.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the first error reported by the processor, or nil.
func (s *Stream) Err() error {
	if err, ok := s.err.Load().(error); ok {
		return err
	}
	return nil
}

// processDuplex is the real-time callback for passthrough streams.
// Performance Critical:
// - Uses pre-allocated buffers only
// - No dynamic allocations, locks or logging
func (s *Stream) processDuplex(in, out []float32) {
	if s.failed.Load() {
		clear(out)
		return
	}
	if err := s.proc.ProcessFrames(in, out); err != nil {
		clear(out)
		s.fail(err)
	}
}

// processInput is the real-time callback for input-only streams.
func (s *Stream) processInput(in []float32) {
	if s.failed.Load() {
		return
	}
	out := s.scratch
	if len(in) > len(out) {
		in = in[:len(out)]
	}
	if err := s.proc.ProcessFrames(in, out[:len(in)]); err != nil {
		s.fail(err)
	}
}

// fail latches the first error and signals Done. PortAudio's Go callback
// cannot return an abort code, so the owner aborts from outside.
func (s *Stream) fail(err error) {
	if s.failed.CompareAndSwap(false, true) {
		s.err.Store(err)
		close(s.done)
	}
}
