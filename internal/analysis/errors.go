// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
)

// Sentinel errors. They are allocated once so the real-time path can return
// them without touching the heap; callers match them with errors.Is.
var (
	// ErrEngineNotReady is returned by ProcessFrames outside the Ready state.
	// It is a lifecycle bug in the caller and should end the audio stream.
	ErrEngineNotReady = errors.New("analysis: engine not ready")

	// ErrFrameMismatch is returned when the output frame is shorter than the
	// input frame.
	ErrFrameMismatch = errors.New("analysis: output frame shorter than input frame")

	// ErrAlreadyInitialized is returned by Initialize while the engine is Ready.
	ErrAlreadyInitialized = errors.New("analysis: engine already initialized")

	// ErrUnsupportedSampleRate is returned when the requested rate differs from
	// the rate the audio session was opened with.
	ErrUnsupportedSampleRate = errors.New("analysis: unsupported sample rate")

	// ErrInvalidConfig covers non-positive lengths, rates and unknown transforms.
	ErrInvalidConfig = errors.New("analysis: invalid configuration")

	// ErrInvalidWindowLength is returned by ApplyHann for windows shorter than
	// two samples, where the taper is undefined.
	ErrInvalidWindowLength = errors.New("analysis: window length must be at least 2")
)

// ConfigError describes which configuration field Initialize rejected.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%v", e.Err, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
