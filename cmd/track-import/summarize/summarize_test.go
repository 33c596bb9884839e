package summarize

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"calmh.dev/track-import/internal/track"
)

func TestSummarize(t *testing.T) {
	t0 := time.Date(2021, 5, 16, 10, 0, 0, 0, time.UTC)
	points := []track.Point{
		track.Located(track.TypeSegmentStartAutomatic, t0, 0, 0, nil),
		track.Located(track.TypeTrackpoint, t0.Add(time.Minute), 0, 0.01, nil),
		track.Marker(track.TypeSegmentEndManual, t0.Add(2*time.Minute)),
		track.Marker(track.TypeSegmentStartManual, t0.Add(10*time.Minute)),
		track.Located(track.TypeTrackpoint, t0.Add(10*time.Minute), 0, 0.02, nil),
		track.Located(track.TypeTrackpoint, t0.Add(11*time.Minute), 0, 0.04, nil),
	}
	tr := track.Track{
		ID:       track.NewID(),
		Name:     "Test",
		Category: "biking",
		Stats:    track.ComputeStatistics(points),
	}

	var buf bytes.Buffer
	summarize(&buf, []summary{{tr, points}})
	out := buf.String()

	for _, want := range []string{
		"Track: Test (" + tr.ID.String() + ")\n",
		"Category: biking\n",
		"Segments: 2\n",
		"Distance: 3.33 km\n",
		"Heading: 90° (E)\n",
		"Speed: 100.0 km/h avg (med 133.3 km/h, min 66.7 km/h, max 133.3 km/h)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Altitude:") {
		t.Error("unexpected altitude line for track without altitude")
	}
}

func TestMetric(t *testing.T) {
	var m metric
	m.record(10, time.Second)
	m.record(20, 3*time.Second)
	m.record(5, time.Second)

	if got := m.avg(); got != (10+60+5)/5.0 {
		t.Errorf("avg %v", got)
	}
	if got := m.med(); got != 10 {
		t.Errorf("med %v", got)
	}
	if m.min != 5 || m.max != 20 {
		t.Errorf("min %v max %v", m.min, m.max)
	}
}
