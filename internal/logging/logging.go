// Package logging configures the default slog logger from the verbosity
// given on the command line.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// VerbosityLevel defines the logging verbosity.
type VerbosityLevel int

const (
	Verbose VerbosityLevel = iota
	Info
	Warning
	Error
	Off
)

var levelNames = map[VerbosityLevel]string{
	Verbose: "Verbose",
	Info:    "Info",
	Warning: "Warning",
	Error:   "Error",
	Off:     "Off",
}

func (v VerbosityLevel) String() string {
	if name, ok := levelNames[v]; ok {
		return name
	}
	return fmt.Sprintf("VerbosityLevel(%d)", int(v))
}

// ParseVerbosity converts a level name, ignoring case.
func ParseVerbosity(s string) (VerbosityLevel, error) {
	for level, name := range levelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return level, nil
		}
	}
	return Info, fmt.Errorf("invalid verbosity level '%s'. Valid levels are Verbose, Info, Warning, Error, Off", s)
}

// Level maps the verbosity to a slog level. Off is above every level
// slog defines.
func (v VerbosityLevel) Level() slog.Level {
	switch v {
	case Verbose:
		return slog.LevelDebug
	case Warning:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	case Off:
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to w at the given verbosity. Off
// discards everything.
func NewLogger(level VerbosityLevel, w io.Writer) *slog.Logger {
	if level == Off {
		w = io.Discard
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.Level()}))
}

// Setup installs NewLogger(level, w) as the default logger.
func Setup(level VerbosityLevel, w io.Writer) {
	slog.SetDefault(NewLogger(level, w))
}
