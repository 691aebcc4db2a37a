// SPDX-License-Identifier: MIT

// Package log is the process-wide levelled logger. Messages carry the level
// and, when written through a Component, the subsystem that produced them:
//
//	2026/10/19 12:00:00.000000 INFO  [analysis] engine ready (rate 48000 Hz, window 8192)
//
// Nothing here may be called from the audio callback.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// levelNames is indexed by LogLevel and padded to a common width.
var levelNames = [...]string{"DEBUG", "INFO ", "WARN ", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return strings.TrimSpace(levelNames[l])
	}
	return "UNKNOWN"
}

// ParseLevel converts a case-insensitive level name. WARNING is accepted for
// WARN. Unknown names return LevelInfo and false.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	}
	return LevelInfo, false
}

var (
	minLevel atomic.Uint32 // LevelInfo until configured.
	out      = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
)

func init() {
	minLevel.Store(uint32(LevelInfo))
}

// SetLevel sets the lowest level that is written.
func SetLevel(level LogLevel) { minLevel.Store(uint32(level)) }

// GetLevel returns the lowest level that is written.
func GetLevel() LogLevel { return LogLevel(minLevel.Load()) }

// SetOutput redirects all log output, e.g. to a file while the terminal UI
// owns the screen.
func SetOutput(w io.Writer) { out.SetOutput(w) }

// Configure applies a level name from configuration; debug forces
// LevelDebug. An unknown name keeps LevelInfo and is reported.
func Configure(name string, debug bool) {
	level, ok := ParseLevel(name)
	if debug {
		level, ok = LevelDebug, true
	}
	SetLevel(level)
	if !ok && name != "" {
		logf(LevelWarn, "log", "unknown level %q, using %s", name, level)
	}
}

// logf formats and writes one message. component may be empty.
func logf(level LogLevel, component, format string, v ...any) {
	if level < GetLevel() && level != LevelFatal {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if component != "" {
		msg = "[" + component + "] " + msg
	}
	if level == LevelFatal {
		out.Fatalf("%s %s", levelNames[level], msg)
	}
	out.Printf("%s %s", levelNames[level], msg)
}

func Debugf(format string, v ...any) { logf(LevelDebug, "", format, v...) }
func Infof(format string, v ...any)  { logf(LevelInfo, "", format, v...) }
func Warnf(format string, v ...any)  { logf(LevelWarn, "", format, v...) }
func Errorf(format string, v ...any) { logf(LevelError, "", format, v...) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) { logf(LevelFatal, "", format, v...) }

// Component is a logger that tags every message with a subsystem name.
// Packages declare one at package level:
//
//	var logger = applog.Component("udp")
type Component string

func (c Component) Debugf(format string, v ...any) { logf(LevelDebug, string(c), format, v...) }
func (c Component) Infof(format string, v ...any)  { logf(LevelInfo, string(c), format, v...) }
func (c Component) Warnf(format string, v ...any)  { logf(LevelWarn, string(c), format, v...) }
func (c Component) Errorf(format string, v ...any) { logf(LevelError, string(c), format, v...) }
