package logging

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
)

type Flag int

const (
	Nil Flag = iota
	Performance
	Debug
)

// Mode is the process-wide verbosity. The CLI sets it once from the config
// file so that it doesn't need to be threaded through every function.
var (
	Mode Flag = Nil
)

// ParseFlag converts a config string into a Flag.
func ParseFlag(s string) (Flag, error) {
	switch strings.ToLower(s) {
	case "", "nil", "none", "quiet":
		return Nil, nil
	case "performance", "info":
		return Performance, nil
	case "debug":
		return Debug, nil
	}
	return Nil, fmt.Errorf("unrecognized logging mode '%s'", s)
}

// New returns a text logger writing to w. Nil mode only reports warnings,
// Performance adds per-stage progress, and Debug adds per-grain detail.
func New(w io.Writer, mode Flag) *slog.Logger {
	level := slog.LevelWarn
	switch mode {
	case Performance:
		level = slog.LevelInfo
	case Debug:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Or returns l, or a logger which discards everything if l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MemString returns a string containing various statistics on the current
// memory usage of the process.
func MemString() string {
	ms := runtime.MemStats{}
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf(
		"Alloc - %d MB; Sys - %d MB Integrated - %d MB",
		ms.Alloc>>20, ms.Sys>>20, ms.TotalAlloc>>20,
	)
}
