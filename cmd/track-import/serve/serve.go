package serve

import (
	"context"
	"net/url"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/config"
	"calmh.dev/track-import/internal/importer"
	"calmh.dev/track-import/internal/storage"
)

type CLI struct {
	config.Import `embed:""`

	SpoolDir      string        `help:"Directory to watch for files to import" placeholder:"DIR" group:"Spool"`
	SpoolInterval time.Duration `help:"How often to look for new files" default:"10s" group:"Spool"`

	HTTPListen      string `default:"127.0.0.1:8140" help:"HTTP listen address for uploads and exports" placeholder:"ADDR" group:"HTTP"`
	HTTPMaxUploadMB int64  `name:"http-max-upload-mb" default:"64" help:"Largest accepted upload (MiB)" group:"HTTP"`

	PrometheusMetricsListen string `default:"127.0.0.1:9141" help:"HTTP listen address for Prometheus metrics endpoint" placeholder:"ADDR" group:"Metrics"`
}

func (cli *CLI) Run(ctx context.Context, logger *slog.Logger, store *storage.Store) error {
	logger = logger.With("module", "serve")

	sup := suture.New("main", suture.Spec{
		EventHook: func(ev suture.Event) {
			logger.Error(ev.String())
		},
	})

	imp := importer.New(store, cli.Import.Options(), logger)

	if cli.SpoolDir != "" {
		logger.Info("Watching spool directory", "dir", cli.SpoolDir, "interval", cli.SpoolInterval)
		sup.Add(&spoolWatcher{
			dir:      cli.SpoolDir,
			interval: cli.SpoolInterval,
			imp:      imp,
			logger:   logger,
		})
	}

	if cli.HTTPListen != "" {
		u := &url.URL{Scheme: "http", Host: cli.HTTPListen, Path: "/import"}
		logger.Info("Accepting uploads", "url", u.String())
		sup.Add(&httpListener{
			addr:    cli.HTTPListen,
			handler: newHandler(imp, store, cli.HTTPMaxUploadMB<<20, logger),
		})
	}

	if cli.PrometheusMetricsListen != "" {
		u := &url.URL{Scheme: "http", Host: cli.PrometheusMetricsListen, Path: "/metrics"}
		logger.Info("Exporting metrics", "url", u.String())
		sup.Add(&prometheusListener{cli.PrometheusMetricsListen})
	}

	return sup.Serve(ctx)
}
