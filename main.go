// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"fftplot/cmd"
	"fftplot/internal/analysis"
	"fftplot/internal/audio"
	"fftplot/internal/config"
	applog "fftplot/internal/log"
	"fftplot/internal/transport"
	"fftplot/internal/transport/udp"
	"fftplot/internal/tui"
	"fftplot/pkg/build"
)

var logger = applog.Component("fftplot")

// main is the entry point for the spectrum analyser.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//   - Build the sinks and initialize the analysis engine
//
// 2. Concurrent Phase (Hot Path):
//   - Open the duplex stream; every callback feeds the engine
//   - Start the spectrum consumers (UDP, WebSocket, logging, TUI)
//
// 3. Shutdown Phase (Cold Path):
//   - Stop the stream before the engine
//   - Close consumers and the recorder
//   - Report engine statistics
func main() {
	if err := run(); err != nil {
		applog.Fatalf("%v", err)
	}
}

func run() error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		logger.Debugf("build info incomplete (%v), using development defaults", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.Command == "" {
		return nil // --help or --version
	}
	applog.Configure(cfg.LogLevel, cfg.Debug)
	logger.Infof("%s", build.GetBuildFlags())

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			logger.Errorf("terminating PortAudio: %v", err)
		}
	}()

	if cfg.Command == cmd.CommandList {
		if cfg.TUI {
			return tui.StartDeviceListUI()
		}
		return audio.ListDevices(os.Stdout)
	}

	return analyse(cfg)
}

// analyse runs the live session until a signal, a stream failure or the
// TUI exits.
func analyse(cfg *config.Config) error {
	pcmLength := cfg.Analysis.PCMLength

	// Every consumer reads the snapshot; only the WebSocket sink is pushed to.
	snapshot := analysis.NewSnapshot(cfg.Audio.SampleRate, pcmLength)
	sinks := analysis.Fanout{snapshot}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Errorf("shutdown: %v", err)
			}
		}
	}()

	if ws := cfg.Transport.WebSocket; ws.Enabled {
		sink := transport.NewWebSocketSink(ws.Address, cfg.Bins(), ws.QueueSize)
		closers = append(closers, sink)
		addr, err := sink.ListenAndServe()
		if err != nil {
			return err
		}
		logger.Infof("spectra on ws://%s%s", addr, transport.SpectrumPath)
		sinks = append(sinks, sink)
	}

	var opts []analysis.Option
	var recorder *audio.Recorder
	if cfg.Recording.Enabled {
		recorder = audio.NewRecorder(cfg.Audio.SampleRate, pcmLength)
		closers = append(closers, recorder)
		filename, err := recorder.StartInDir(cfg.Recording.OutputDir)
		if err != nil {
			return err
		}
		logger.Infof("recording to %s", filename)
		opts = append(opts, analysis.WithObserver(recorder))
	}

	engine := analysis.NewEngine(cfg.Audio.SampleRate, sinks, opts...)
	err := engine.Initialize(analysis.Config{
		SampleRate: cfg.Audio.SampleRate,
		PCMLength:  pcmLength,
		Async:      cfg.Analysis.Async,
		Transform:  cfg.Analysis.Transform,
	})
	if err != nil {
		return err
	}

	stream, err := audio.NewStream(cfg.Audio, engine)
	if err != nil {
		engine.Shutdown()
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// CRITICAL: Start of real-time audio processing. From here on the
	// callback drives engine.ProcessFrames.
	if err := stream.Start(); err != nil {
		engine.Shutdown()
		return err
	}

	if udpCfg := cfg.Transport.UDP; udpCfg.Enabled {
		sender, err := udp.NewUDPSender(udpCfg.TargetAddress)
		if err != nil {
			stopSession(stream, engine, false)
			return err
		}
		closers = append(closers, sender)
		publisher, err := udp.NewUDPPublisher(udpCfg.SendInterval, sender, snapshot)
		if err != nil {
			stopSession(stream, engine, false)
			return err
		}
		closers = append(closers, publisher)
		publisher.Start()
	}

	if cfg.Transport.LogSpectra {
		if applog.GetLevel() > applog.LevelDebug {
			logger.Warnf("log_spectra reports at debug level; set --log-level debug to see it")
		}
		reporter := transport.NewLoggingReporter(snapshot, 0)
		closers = append(closers, reporter)
		reporter.Start()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var streamErr error
	if cfg.TUI {
		streamErr = runTUI(ctx, cancel, stream, snapshot, engine)
	} else {
		fmt.Printf("Analysing %d-sample windows at %d Hz. Press Ctrl+C to stop, %s\n",
			pcmLength, cfg.Audio.SampleRate, cmd.Usage())
		select {
		case <-ctx.Done():
		case <-stream.Done():
			streamErr = stream.Err()
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stopSession(stream, engine, streamErr != nil)

	if recorder != nil {
		if dropped := engine.Stats().Dropped; dropped > 0 {
			logger.Warnf("recorded %d windows; %d dropped windows are missing from the file", recorder.Windows(), dropped)
		} else {
			logger.Infof("recorded %d windows", recorder.Windows())
		}
	}

	if streamErr != nil {
		return fmt.Errorf("session ended with error: %w", streamErr)
	}
	return nil
}

// runTUI shows the spectrum view until the user quits, the context is
// cancelled or the stream fails. Logs go to a file while the view owns the
// terminal.
func runTUI(ctx context.Context, cancel context.CancelFunc,
	stream *audio.Stream, snapshot *analysis.Snapshot, engine *analysis.Engine) error {
	logFile, err := os.OpenFile(build.GetBuildFlags().Name+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open TUI log file: %w", err)
	}
	applog.SetOutput(logFile)
	defer func() {
		applog.SetOutput(os.Stderr)
		logFile.Close()
	}()

	go func() {
		select {
		case <-stream.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	model := tui.NewSpectrumModel(snapshot, 0, engine.Stats)
	if err := tui.StartSpectrumUI(ctx, model); err != nil {
		return err
	}
	cancel()

	select {
	case <-stream.Done():
		return stream.Err()
	default:
		return nil
	}
}

// stopSession halts the callback before releasing the engine buffers.
func stopSession(stream *audio.Stream, engine *analysis.Engine, abort bool) {
	var err error
	if abort {
		err = stream.Abort()
	} else {
		err = stream.Stop()
	}
	if err != nil {
		logger.Errorf("stopping audio stream: %v", err)
	}
	engine.Shutdown()
}
