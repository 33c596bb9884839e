package importer

import (
	"fmt"

	"calmh.dev/track-import/internal/geometry"
	"calmh.dev/track-import/internal/stream"
	"calmh.dev/track-import/internal/track"
)

// classify turns a decoded stream into a typed point sequence.
//
// A pause yields a SEGMENT_END_MANUAL at its own time. A resume yields a
// SEGMENT_START_MANUAL at its own time by default. With DeferResume, or
// when the resume has no time, the start takes the time of the next
// located record instead, which is the rule legacy importers documented;
// the default follows what they actually stored for the pause/resume
// fixtures. A deferred resume followed by a pause before any position
// starts its segment at the pause's time. The first located point of a
// segment not opened by a resume is a SEGMENT_START_AUTOMATIC; all
// others are TRACKPOINTs.
func (i *Importer) classify(records []stream.Record) ([]track.Point, error) {
	var (
		points        []track.Point
		segmentOpen   bool
		pendingResume bool
		prev          *stream.Record
	)

	for idx := range records {
		r := records[idx]
		switch r.Kind {
		case stream.Pause:
			if r.Time.IsZero() {
				return nil, fmt.Errorf("record %d (pause): %w", idx, ErrMissingTime)
			}
			if pendingResume {
				points = append(points, track.Marker(track.TypeSegmentStartManual, r.Time))
			}
			points = append(points, track.Marker(track.TypeSegmentEndManual, r.Time))
			segmentOpen = false
			pendingResume = false
			prev = nil

		case stream.Resume:
			if i.opts.DeferResume || r.Time.IsZero() {
				pendingResume = true
				continue
			}
			points = append(points, track.Marker(track.TypeSegmentStartManual, r.Time))
			segmentOpen = true
			prev = nil

		case stream.Break:
			// A segment opened by a resume but still without points is
			// kept open.
			if prev != nil {
				segmentOpen = false
				prev = nil
			}

		case stream.Located:
			if r.Time.IsZero() {
				return nil, fmt.Errorf("record %d: %w", idx, ErrMissingTime)
			}
			var alt *float64
			if r.HasAlt {
				alt = &r.Alt
			}

			typ := track.TypeTrackpoint
			switch {
			case pendingResume:
				points = append(points, track.Marker(track.TypeSegmentStartManual, r.Time))
				pendingResume = false
			case !segmentOpen:
				typ = track.TypeSegmentStartAutomatic
			case prev != nil && i.opts.MaxRecordingDistance > 0 &&
				geometry.Meters(prev.Lat, prev.Lon, r.Lat, r.Lon) > i.opts.MaxRecordingDistance:
				typ = track.TypeSegmentStartAutomatic
			}
			points = append(points, track.Located(typ, r.Time, r.Lat, r.Lon, alt))
			segmentOpen = true
			prev = &records[idx]

		default:
			return nil, fmt.Errorf("record %d: unknown kind %v", idx, r.Kind)
		}
	}

	if pendingResume {
		i.logger.Debug("Dropping resume without following position")
	}
	return points, nil
}
