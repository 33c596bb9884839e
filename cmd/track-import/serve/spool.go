package serve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/track"
)

const (
	spoolDoneDir   = "done"
	spoolFailedDir = "failed"
)

var spoolFiles = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trackimport",
	Subsystem: "spool",
	Name:      "files_total",
}, []string{"result"})

type fileImporter interface {
	ImportFile(ctx context.Context, path string) ([]track.ID, error)
}

// spoolWatcher imports files dropped into a directory, then moves them to
// done/ or failed/ below it.
type spoolWatcher struct {
	dir      string
	interval time.Duration
	imp      fileImporter
	logger   *slog.Logger
}

func (s *spoolWatcher) String() string {
	return fmt.Sprintf("spool-watcher(%s)@%p", s.dir, s)
}

func (s *spoolWatcher) Serve(ctx context.Context) error {
	if err := s.prepare(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.scan(ctx); err != nil {
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *spoolWatcher) prepare() error {
	for _, sub := range []string{spoolDoneDir, spoolFailedDir} {
		if err := os.MkdirAll(filepath.Join(s.dir, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// scan imports all files currently in the spool directory, oldest name
// first. Dot files and partial uploads are left alone.
func (s *spoolWatcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".part") {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		path := filepath.Join(s.dir, name)
		ids, err := s.imp.ImportFile(ctx, path)
		dest := spoolDoneDir
		if err != nil {
			s.logger.Error("Import failed", "file", name, "error", err)
			spoolFiles.WithLabelValues("failed").Inc()
			dest = spoolFailedDir
		} else {
			s.logger.Info("Imported file", "file", name, "tracks", len(ids))
			spoolFiles.WithLabelValues("done").Inc()
		}
		if err := os.Rename(path, filepath.Join(s.dir, dest, name)); err != nil {
			return fmt.Errorf("move %s: %w", name, err)
		}
	}
	return nil
}
