// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applog "fftplot/internal/log"

	"gopkg.in/yaml.v3"
)

var logger = applog.Component("config")

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// defaultCandidates are searched, in order, when LoadConfig is given no path.
var defaultCandidates = []string{
	"config.yaml",
	"fftplot.yaml",
}

// LoadConfig loads configuration from the YAML file at path. If path is empty
// it searches the default locations and falls back to built-in defaults when
// none exists. Environment overrides are applied after the file, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range defaultCandidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field the audio session and the engine depend on.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}

	// Audio
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %d outside [%d, %d]",
			ErrInvalid, c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w: audio.frames_per_buffer %d outside (0, %d]",
			ErrInvalid, c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.InputDevice < MinDeviceID || c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("%w: device ids must be >= %d", ErrInvalid, MinDeviceID)
	}

	// Analysis
	if c.Analysis.PCMLength < MinPCMLength {
		return fmt.Errorf("%w: analysis.pcm_length %d below %d", ErrInvalid, c.Analysis.PCMLength, MinPCMLength)
	}
	switch strings.ToLower(c.Analysis.Transform) {
	case "", "gonum":
	case "godsp":
		if !c.Analysis.Async {
			return fmt.Errorf("%w: analysis.transform godsp allocates per window and requires analysis.async", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: analysis.transform %q", ErrInvalid, c.Analysis.Transform)
	}

	// Recording runs beside the transform and writes files.
	if c.Recording.Enabled {
		if !c.Analysis.Async {
			return fmt.Errorf("%w: recording.enabled requires analysis.async", ErrInvalid)
		}
		if c.Recording.OutputDir == "" {
			return fmt.Errorf("%w: recording.output_dir must be set when recording is enabled", ErrInvalid)
		}
	}

	// Transport
	if udp := c.Transport.UDP; udp.Enabled {
		if udp.TargetAddress == "" || !strings.Contains(udp.TargetAddress, ":") {
			return fmt.Errorf("%w: transport.udp.target_address %q appears invalid (missing port?)", ErrInvalid, udp.TargetAddress)
		}
		if udp.SendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp.send_interval must be positive", ErrInvalid)
		}
		if size := UDPHeaderBytes + 4*c.Bins(); size > MaxUDPDatagram {
			return fmt.Errorf("%w: analysis.pcm_length %d gives %d byte UDP packets, limit %d",
				ErrInvalid, c.Analysis.PCMLength, size, MaxUDPDatagram)
		}
	}
	if ws := c.Transport.WebSocket; ws.Enabled {
		if ws.Address == "" {
			return fmt.Errorf("%w: transport.websocket.address must be set", ErrInvalid)
		}
		if ws.QueueSize <= 0 {
			return fmt.Errorf("%w: transport.websocket.queue_size must be positive", ErrInvalid)
		}
	}

	return nil
}

// applyEnvOverrides reads the ENV_* variables. Unparseable values are
// ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// General overrides.
	envBool("ENV_DEBUG", &c.Debug)
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("ENV_LOG_LEVEL overrides log_level: %s", val)
	}
	envInt("ENV_SAMPLE_RATE", &c.Audio.SampleRate)
	envInt("ENV_PCM_LENGTH", &c.Analysis.PCMLength)

	// ENV_UDP_{...}
	envBool("ENV_UDP_ENABLED", &c.Transport.UDP.Enabled)
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDP.TargetAddress = val
		logger.Infof("ENV_UDP_TARGET_ADDRESS overrides transport.udp.target_address: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDP.SendInterval = dur
			logger.Infof("ENV_UDP_SEND_INTERVAL overrides transport.udp.send_interval: %s", dur)
		} else {
			logger.Warnf("ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}

	// ENV_WS_{...}
	envBool("ENV_WS_ENABLED", &c.Transport.WebSocket.Enabled)
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocket.Address = val
		logger.Infof("ENV_WS_ADDRESS overrides transport.websocket.address: %s", val)
	}
}

func envBool(name string, dst *bool) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		logger.Warnf("ignoring %s=%q: %v", name, val, err)
		return
	}
	*dst = b
	logger.Infof("%s overrides configuration: %v", name, b)
}

func envInt(name string, dst *int) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		logger.Warnf("ignoring %s=%q: %v", name, val, err)
		return
	}
	*dst = n
	logger.Infof("%s overrides configuration: %d", name, n)
}
