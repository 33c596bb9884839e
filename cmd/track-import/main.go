package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"calmh.dev/track-import/cmd/track-import/serve"
	"calmh.dev/track-import/cmd/track-import/summarize"
	"calmh.dev/track-import/internal/config"
	"calmh.dev/track-import/internal/storage"
)

type CLI struct {
	config.Logging `embed:""`

	DB string `help:"Track database" default:"tracks.db" env:"TRACK_IMPORT_DB" type:"path"`

	Import    importCmd     `cmd:"" help:"Import GPX, KML, KMZ or NMEA files"`
	List      listCmd       `cmd:"" help:"List stored tracks"`
	Show      showCmd       `cmd:"" help:"Show the points of a track"`
	Export    exportCmd     `cmd:"" help:"Export a track as GPX"`
	Summarize summarize.CLI `cmd:"" help:"Summarize tracks"`
	Delete    deleteCmd     `cmd:"" help:"Delete a track"`
	Serve     serve.CLI     `cmd:"" help:"Import files from a spool directory and over HTTP"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli)

	logger := cli.Logger(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cli.DB)
	if err != nil {
		logger.Error("Opening database", "path", cli.DB, "error", err)
		os.Exit(1)
	}

	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(logger, store)
	store.Close()
	if err != nil && ctx.Err() == nil {
		logger.Error(kctx.Command(), "error", err)
		os.Exit(1)
	}
}
