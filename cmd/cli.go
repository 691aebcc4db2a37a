// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"time"

	"fftplot/internal/config"
	"fftplot/pkg/build"

	"github.com/spf13/cobra"
)

// Commands recorded in config.Config.Command.
const (
	CommandRun  = "run"
	CommandList = "list"
)

// cliFlags mirrors the config fields that can be overridden from the command
// line. Only flags the user actually set are applied on top of the file.
type cliFlags struct {
	configPath string

	debug    bool
	logLevel string
	tui      bool

	inputDevice   int
	outputDevice  int
	noPassthrough bool
	sampleRate    int
	frames        int
	lowLatency    bool

	pcmLength int
	async     bool
	transform string

	record    bool
	recordDir string

	logSpectra  bool
	udp         bool
	udpTarget   string
	udpInterval time.Duration
	ws          bool
	wsAddr      string
}

// ParseArgs parses args (without the program name), loads the configuration
// file they point at and applies flag overrides. The returned Command is
// empty when cobra handled the invocation itself (--help, --version).
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		f       cliFlags
		options *config.Config
	)

	load := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(f.configPath)
		if err != nil {
			return err
		}
		f.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		cfg.Command = command
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Live audio passthrough with streaming spectrum analysis",
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandRun)
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices (interactive with --tui)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList)
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "",
		"YAML configuration file (default: ./config.yaml or ./fftplot.yaml if present)")
	pf.BoolVar(&f.debug, "debug", false, "Force debug logging")
	pf.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	pf.BoolVarP(&f.tui, "tui", "t", false, "Show the terminal user interface")

	// Audio Device Configuration
	fl := rootCmd.Flags()
	fl.IntVarP(&f.inputDevice, "input-device", "i", config.DefaultDeviceID,
		"Input device ID (-1 for the system default). Use 'list' to see available devices.")
	fl.IntVarP(&f.outputDevice, "output-device", "o", config.DefaultDeviceID,
		"Output device ID for passthrough (-1 for the system default)")
	fl.BoolVar(&f.noPassthrough, "no-passthrough", false, "Open the input device only")
	fl.IntVarP(&f.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Session sample rate, measured in Hertz (Hz)")
	fl.IntVarP(&f.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	fl.BoolVarP(&f.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the devices' low latency settings")

	// Analysis Configuration
	fl.IntVarP(&f.pcmLength, "pcm-length", "n", config.DefaultPCMLength,
		"Analysis window length in samples (powers of two are fastest)")
	fl.BoolVarP(&f.async, "async", "a", config.DefaultAsync,
		"Run the transform on a worker goroutine")
	fl.StringVar(&f.transform, "transform", config.DefaultTransform,
		"FFT implementation: gonum or godsp (godsp requires --async)")

	// Recording Configuration
	fl.BoolVarP(&f.record, "record", "r", false,
		"Record every analysed window to WAV (requires --async)")
	fl.StringVar(&f.recordDir, "record-dir", config.DefaultRecordingDir, "Directory for recordings")

	// Transport Configuration
	fl.BoolVar(&f.logSpectra, "log-spectra", false, "Log the peak of each new spectrum")
	fl.BoolVar(&f.udp, "udp", false, "Publish spectra as UDP datagrams")
	fl.StringVar(&f.udpTarget, "udp-target", config.DefaultUDPTarget, "UDP target address (host:port)")
	fl.DurationVar(&f.udpInterval, "udp-interval", config.DefaultUDPSendInterval, "UDP publish interval")
	fl.BoolVar(&f.ws, "ws", false, "Serve spectra over WebSocket")
	fl.StringVar(&f.wsAddr, "ws-addr", config.DefaultWSAddress, "WebSocket listen address")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options == nil {
		options = config.NewConfig()
	}
	return options, nil
}

// apply copies every flag the user set onto cfg.
func (f *cliFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	if set("debug") {
		cfg.Debug = f.debug
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("tui") {
		cfg.TUI = f.tui
	}

	if set("input-device") {
		cfg.Audio.InputDevice = f.inputDevice
	}
	if set("output-device") {
		cfg.Audio.OutputDevice = f.outputDevice
	}
	if set("no-passthrough") {
		cfg.Audio.Passthrough = !f.noPassthrough
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.frames
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}

	if set("pcm-length") {
		cfg.Analysis.PCMLength = f.pcmLength
	}
	if set("async") {
		cfg.Analysis.Async = f.async
	}
	if set("transform") {
		cfg.Analysis.Transform = f.transform
	}

	if set("record") {
		cfg.Recording.Enabled = f.record
	}
	if set("record-dir") {
		cfg.Recording.OutputDir = f.recordDir
	}

	if set("log-spectra") {
		cfg.Transport.LogSpectra = f.logSpectra
	}
	if set("udp") {
		cfg.Transport.UDP.Enabled = f.udp
	}
	if set("udp-target") {
		cfg.Transport.UDP.TargetAddress = f.udpTarget
	}
	if set("udp-interval") {
		cfg.Transport.UDP.SendInterval = f.udpInterval
	}
	if set("ws") {
		cfg.Transport.WebSocket.Enabled = f.ws
	}
	if set("ws-addr") {
		cfg.Transport.WebSocket.Address = f.wsAddr
	}
}

// Usage returns a one-line pointer to the help text.
func Usage() string {
	return fmt.Sprintf("'%s --help' for usage information.", build.GetBuildFlags().Name)
}
