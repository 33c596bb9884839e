package track

import (
	"math"
	"time"

	"calmh.dev/track-import/internal/geometry"
)

type Statistics struct {
	StartTime     time.Time
	StopTime      time.Time
	TotalTime     time.Duration
	MovingTime    time.Duration
	TotalDistance float64 // meters
	MinAltitude   float64
	MaxAltitude   float64
	ElevationGain float64 // meters
	HasAltitude   bool
}

// ComputeStatistics summarizes a classified point sequence. Distance, moving
// time and elevation gain only accumulate between consecutive located points
// of the same segment.
func ComputeStatistics(points []Point) Statistics {
	var s Statistics
	if len(points) == 0 {
		return s
	}
	s.StartTime = points[0].Time
	s.StopTime = points[len(points)-1].Time
	s.TotalTime = s.StopTime.Sub(s.StartTime)
	s.MinAltitude = math.Inf(1)
	s.MaxAltitude = math.Inf(-1)

	var prev *Point
	for i, p := range points {
		if p.Type.StartsSegment() || p.Type == TypeSegmentEndManual {
			prev = nil
		}
		if !p.HasLocation() {
			continue
		}
		if p.HasAltitude() {
			s.HasAltitude = true
			s.MinAltitude = math.Min(s.MinAltitude, p.Altitude())
			s.MaxAltitude = math.Max(s.MaxAltitude, p.Altitude())
		}
		if prev != nil {
			s.TotalDistance += geometry.Meters(prev.Latitude(), prev.Longitude(), p.Latitude(), p.Longitude())
			if td := p.Time.Sub(prev.Time); td > 0 {
				s.MovingTime += td
			}
			if prev.HasAltitude() && p.HasAltitude() {
				if d := p.Altitude() - prev.Altitude(); d > 0 {
					s.ElevationGain += d
				}
			}
		}
		prev = &points[i]
	}

	if !s.HasAltitude {
		s.MinAltitude, s.MaxAltitude = 0, 0
	}
	return s
}
