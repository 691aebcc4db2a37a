// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults of the
// analyser.
const (
	// Audio session defaults
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultFramesPerBuffer = 256         // Callback frame size
	DefaultLowLatency      = false       // Standard latency mode
	DefaultPassthrough     = true        // Open an output device and copy input to it
	DefaultSampleRate      = 48000       // Fixed session rate (Hz)

	// Analysis defaults
	DefaultPCMLength = 8192 // 5.86 Hz bins at 48 kHz
	DefaultAsync     = false
	DefaultTransform = "gonum"

	// Logging defaults
	DefaultLogLevel = "info"

	// Recording defaults
	DefaultRecordingDir = "./recordings"

	// Transport defaults
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 33 * time.Millisecond // ~30 Hz
	DefaultWSAddress       = ":8080"
	DefaultWSQueueSize     = 16

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per callback
	MinPCMLength    = 2      // Shortest window the Hann taper is defined for

	// UDP packet limits: seq(4) + timestamp(8) + count(2) + bin width(4).
	UDPHeaderBytes = 18
	MaxUDPDatagram = 65507
)

// Config is the complete runtime configuration. It is built from defaults,
// an optional YAML file, ENV_* overrides and finally command line flags.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces debug logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn or error.
	TUI       bool            `yaml:"tui"`       // Show the terminal spectrum view.
	Command   string          `yaml:"-"`         // One-off command from the CLI (e.g. "list").
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig describes the PortAudio session.
type AudioConfig struct {
	InputDevice     int  `yaml:"input_device"`      // PortAudio device index (-1 for default).
	OutputDevice    int  `yaml:"output_device"`     // PortAudio device index (-1 for default).
	Passthrough     bool `yaml:"passthrough"`       // Open an output device for the passthrough signal.
	SampleRate      int  `yaml:"sample_rate"`       // Session rate in Hz; the engine only accepts this rate.
	FramesPerBuffer int  `yaml:"frames_per_buffer"` // Frames delivered per callback.
	LowLatency      bool `yaml:"low_latency"`       // Request the devices' low latency settings.
}

// AnalysisConfig configures the spectral analysis engine.
type AnalysisConfig struct {
	PCMLength int    `yaml:"pcm_length"` // Window length in samples.
	Async     bool   `yaml:"async"`      // Transform on a worker goroutine.
	Transform string `yaml:"transform"`  // "gonum" or "godsp" (async only).
}

// RecordingConfig controls the analysed-window recorder.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record every analysed window to WAV.
	OutputDir string `yaml:"output_dir"` // Directory for recordings.
}

// TransportConfig holds the spectrum outputs.
type TransportConfig struct {
	LogSpectra bool            `yaml:"log_spectra"` // Log the peak of every spectrum at debug level.
	UDP        UDPConfig       `yaml:"udp"`
	WebSocket  WebSocketConfig `yaml:"websocket"`
}

// UDPConfig configures the datagram publisher.
type UDPConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TargetAddress string        `yaml:"target_address"` // host:port
	SendInterval  time.Duration `yaml:"send_interval"`  // Poll interval, e.g. "33ms".
}

// WebSocketConfig configures the browser push endpoint.
type WebSocketConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`    // Listen address, e.g. ":8080".
	QueueSize int    `yaml:"queue_size"` // Spectra buffered before dropping.
}

// NewConfig returns a Config holding the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			Passthrough:     DefaultPassthrough,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Analysis: AnalysisConfig{
			PCMLength: DefaultPCMLength,
			Async:     DefaultAsync,
			Transform: DefaultTransform,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
		},
		Transport: TransportConfig{
			UDP: UDPConfig{
				TargetAddress: DefaultUDPTarget,
				SendInterval:  DefaultUDPSendInterval,
			},
			WebSocket: WebSocketConfig{
				Address:   DefaultWSAddress,
				QueueSize: DefaultWSQueueSize,
			},
		},
	}
}

// Bins returns the spectrum length for the configured window.
func (c *Config) Bins() int {
	return c.Analysis.PCMLength/2 + 1
}
