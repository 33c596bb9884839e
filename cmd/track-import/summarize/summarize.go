package summarize

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"calmh.dev/track-import/internal/geometry"
	"calmh.dev/track-import/internal/storage"
	"calmh.dev/track-import/internal/track"
)

type CLI struct {
	IDs []string `arg:"" help:"Track IDs to summarize"`
}

func (cli *CLI) Run(ctx context.Context, store *storage.Store) error {
	var tracks []summary
	for _, s := range cli.IDs {
		id, err := track.ParseID(s)
		if err != nil {
			return err
		}
		t, err := store.Track(ctx, id)
		if err != nil {
			return err
		}
		points, err := store.TrackPoints(ctx, id)
		if err != nil {
			return err
		}
		tracks = append(tracks, summary{t, points})
	}

	summarize(os.Stdout, tracks)
	return nil
}

type summary struct {
	track  track.Track
	points []track.Point
}

// summarize prints per track and per segment figures followed by speed
// statistics over all given tracks. Speeds are only taken between points
// of the same segment.
func summarize(w io.Writer, tracks []summary) {
	var speed metric

	for _, s := range tracks {
		st := s.track.Stats
		fmt.Fprintf(w, "Track: %s (%s)\n", s.track.Name, s.track.ID)
		if s.track.Category != "" {
			fmt.Fprintf(w, "Category: %s\n", s.track.Category)
		}
		fmt.Fprintf(w, "Start: %v\nEnd:   %v\nDuration: %s (moving %s)\n", st.StartTime.Local(), st.StopTime.Local(), st.TotalTime.Round(time.Minute), st.MovingTime.Round(time.Minute))

		var prev, first *track.Point
		var segments int
		for i, p := range s.points {
			if p.Type.StartsSegment() {
				segments++
				prev = nil
			}
			if p.Type == track.TypeSegmentEndManual {
				prev = nil
				continue
			}
			if !p.HasLocation() {
				continue
			}
			if first == nil {
				first = &s.points[i]
			}
			if prev != nil {
				td := p.Time.Sub(prev.Time)
				if td > 0 {
					dist := geometry.Meters(prev.Latitude(), prev.Longitude(), p.Latitude(), p.Longitude())
					speed.record(dist/1000/td.Hours(), td)
				}
			}
			prev = &s.points[i]
		}

		fmt.Fprintf(w, "Segments: %d\nDistance: %.2f km\n", segments, st.TotalDistance/1000)
		if st.HasAltitude {
			fmt.Fprintf(w, "Altitude: %.0f m to %.0f m, gain %.0f m\n", st.MinAltitude, st.MaxAltitude, st.ElevationGain)
		}
		if last := lastLocated(s.points); first != nil && last != nil && last != first {
			b := geometry.Bearing(first.Latitude(), first.Longitude(), last.Latitude(), last.Longitude())
			fmt.Fprintf(w, "Heading: %.0f° (%s)\n", b, geometry.CardinalDirection(int(b+0.5)))
		}
		fmt.Fprintf(w, "---\n")
	}

	if speed.dur > 0 {
		fmt.Fprintf(w, "Speed: %.1f km/h avg (med %.1f km/h, min %.1f km/h, max %.1f km/h)\n", speed.avg(), speed.med(), speed.min, speed.max)
	}
}

func lastLocated(points []track.Point) *track.Point {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].HasLocation() {
			return &points[i]
		}
	}
	return nil
}

type metric struct {
	sum      float64
	dur      time.Duration
	min      float64
	max      float64
	all      []float64
	notFirst bool
}

func (m *metric) record(val float64, dur time.Duration) {
	m.sum += val * dur.Seconds()
	m.dur += dur
	m.all = append(m.all, val)
	if !m.notFirst {
		m.max = val
		m.min = val
		m.notFirst = true
	} else {
		if val > m.max {
			m.max = val
		}
		if val < m.min {
			m.min = val
		}
	}
}

func (m *metric) avg() float64 {
	return m.sum / m.dur.Seconds()
}

func (m *metric) med() float64 {
	sort.Float64s(m.all)
	return m.all[len(m.all)/2]
}
