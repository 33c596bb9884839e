// Package importer converts legacy track files into typed point sequences
// and persists them.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/gpx/reader"
	"calmh.dev/track-import/internal/kml"
	"calmh.dev/track-import/internal/nmealog"
	"calmh.dev/track-import/internal/stream"
	"calmh.dev/track-import/internal/track"
)

var (
	ErrMissingTime     = errors.New("record has no timestamp")
	ErrAlreadyImported = errors.New("track already imported")
	ErrUnknownFormat   = errors.New("unknown file format")
	ErrNoTracks        = errors.New("file contains no tracks")
	ErrStorage         = errors.New("storage")
	ErrTooLarge        = errors.New("decompressed content too large")
)

var (
	importFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackimport",
		Subsystem: "import",
		Name:      "files_total",
	}, []string{"format", "result"})
	importTracks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trackimport",
		Subsystem: "import",
		Name:      "tracks_total",
	})
	importPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackimport",
		Subsystem: "import",
		Name:      "points_total",
	}, []string{"type"})
)

// Store is the persistence the importer needs.
type Store interface {
	InsertTracks(ctx context.Context, tracks []track.Track) error
	HasUUID(ctx context.Context, uuid string) (bool, error)
}

type Options struct {
	// MaxRecordingDistance, in meters, starts a new segment when two
	// consecutive positions are further apart. Zero disables the check.
	MaxRecordingDistance float64
	// DeferResume always takes the time of a resume from the next
	// position instead of from the resume record itself.
	DeferResume bool
	// PreventReimport refuses files whose track UUID is already stored.
	PreventReimport bool
	// NMEASampleInterval is the minimum time between positions kept from
	// NMEA logs.
	NMEASampleInterval time.Duration
	// MaxDecompressed caps the size of gzip compressed input after
	// decompression, in bytes. Zero means DefaultMaxDecompressed.
	MaxDecompressed int64
}

type Importer struct {
	store  Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, opts Options, logger *slog.Logger) *Importer {
	return &Importer{
		store:  store,
		opts:   opts,
		logger: logger.With("module", "importer"),
		now:    time.Now,
	}
}

// ImportFile imports the file at path. See Import.
func (i *Importer) ImportFile(ctx context.Context, path string) ([]track.ID, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	ids, err := i.Import(ctx, fd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}

// Import reads a GPX, KML, KMZ or NMEA file from r and stores one track
// per track in the file. The IDs of the new tracks are returned in file
// order. Nothing is stored when an error is returned.
func (i *Importer) Import(ctx context.Context, r io.Reader) ([]track.ID, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		importFiles.WithLabelValues(FormatUnknown.String(), "error").Inc()
		return nil, fmt.Errorf("read: %w", err)
	}

	format, data, err := DetectFormat(data, i.opts.MaxDecompressed)
	if err != nil {
		importFiles.WithLabelValues(format.String(), "error").Inc()
		return nil, err
	}

	ids, err := i.importData(ctx, format, data)
	if err != nil {
		importFiles.WithLabelValues(format.String(), "error").Inc()
		return nil, err
	}
	importFiles.WithLabelValues(format.String(), "ok").Inc()
	return ids, nil
}

func (i *Importer) importData(ctx context.Context, format Format, data []byte) ([]track.ID, error) {
	streams, err := i.decode(format, data)
	if err != nil {
		return nil, err
	}

	tracks, err := i.Convert(streams)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrNoTracks
	}

	if i.opts.PreventReimport {
		for _, t := range tracks {
			if t.UUID == "" {
				continue
			}
			exists, err := i.store.HasUUID(ctx, t.UUID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStorage, err)
			}
			if exists {
				return nil, fmt.Errorf("%q (%s): %w", t.Name, t.UUID, ErrAlreadyImported)
			}
		}
	}

	if err := i.store.InsertTracks(ctx, tracks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	ids := make([]track.ID, len(tracks))
	for n, t := range tracks {
		ids[n] = t.ID
		importTracks.Inc()
		for _, p := range t.Points {
			importPoints.WithLabelValues(p.Type.String()).Inc()
		}
		i.logger.Info("Imported track", "id", t.ID, "name", t.Name, "format", format, "points", len(t.Points), "waypoints", len(t.Waypoints))
	}
	return ids, nil
}

func (i *Importer) decode(format Format, data []byte) ([]stream.Track, error) {
	switch format {
	case FormatGPX:
		return reader.Read(bytes.NewReader(data))
	case FormatKML:
		return kml.Read(bytes.NewReader(data))
	case FormatKMZ:
		return kml.ReadKMZ(data)
	case FormatNMEA:
		r := nmealog.Reader{SampleInterval: i.opts.NMEASampleInterval}
		tracks, rep, err := r.Read(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		i.logger.Debug("Read NMEA log", "lines", rep.Lines, "bad", rep.Bad, "unsupported", rep.Unsupported, "fixes", rep.Fixes, "kept", rep.Kept, "aisContacts", rep.AISContacts)
		return tracks, nil
	default:
		return nil, ErrUnknownFormat
	}
}

// Convert classifies the decoded tracks and builds storable tracks with
// fresh IDs. Tracks without any points are skipped.
func (i *Importer) Convert(streams []stream.Track) ([]track.Track, error) {
	var tracks []track.Track
	for _, s := range streams {
		points, err := i.classify(s.Records)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", s.Name, err)
		}
		if len(points) == 0 {
			i.logger.Warn("Skipping track without points", "name", s.Name)
			continue
		}

		icon := s.Icon
		if icon == "" {
			icon = track.IconFor(s.Category)
		}
		tracks = append(tracks, track.Track{
			ID:          track.NewID(),
			UUID:        s.UUID,
			Name:        s.Name,
			Description: s.Description,
			Category:    s.Category,
			Icon:        icon,
			ImportedAt:  i.now().UTC(),
			Stats:       track.ComputeStatistics(points),
			Points:      points,
			Waypoints:   convertWaypoints(s.Waypoints),
		})
	}
	return tracks, nil
}

func convertWaypoints(ws []stream.Waypoint) []track.Waypoint {
	if len(ws) == 0 {
		return nil
	}
	out := make([]track.Waypoint, len(ws))
	for n, w := range ws {
		out[n] = track.Waypoint{
			Name:        w.Name,
			Description: w.Description,
			Category:    w.Category,
			Time:        w.Time,
			Latitude:    w.Lat,
			Longitude:   w.Lon,
		}
		if w.HasAlt {
			alt := w.Alt
			out[n].Altitude = &alt
		}
	}
	return out
}
