// Package config holds the command line options shared between commands.
package config

import (
	"io"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/importer"
)

type Import struct {
	MaxRecordingDistance float64       `help:"Start a new segment when consecutive positions are further apart than this (meters, 0 disables)" default:"200" group:"Import"`
	DeferResume          bool          `help:"Always time a resumed segment by its first position instead of by the resume marker" group:"Import"`
	PreventReimport      bool          `help:"Refuse files containing a track UUID that was already imported" group:"Import"`
	NMEASampleInterval   time.Duration `name:"nmea-sample-interval" help:"Minimum time between positions kept from NMEA logs" default:"0s" group:"Import"`
	MaxDecompressedMB    int64         `name:"max-decompressed-mb" help:"Largest accepted size of gzip compressed input after decompression (MiB)" default:"256" group:"Import"`
}

func (c Import) Options() importer.Options {
	return importer.Options{
		MaxRecordingDistance: c.MaxRecordingDistance,
		DeferResume:          c.DeferResume,
		PreventReimport:      c.PreventReimport,
		NMEASampleInterval:   c.NMEASampleInterval,
		MaxDecompressed:      c.MaxDecompressedMB << 20,
	}
}

type Logging struct {
	LogLevel   string `help:"Minimum log level" enum:"debug,info,warn,error" default:"info" env:"TRACK_IMPORT_LOG_LEVEL" group:"Logging"`
	LogNoColor bool   `help:"Disable colored log output" group:"Logging"`
}

type fdWriter interface {
	io.Writer
	Fd() uintptr
}

// Logger returns a tint logger writing to w. Color is used when w is a
// terminal unless disabled.
func (c Logging) Logger(w fdWriter) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    c.LogNoColor || !isatty.IsTerminal(w.Fd()),
	}))
}
