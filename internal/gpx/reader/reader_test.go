package reader

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"calmh.dev/track-import/internal/isotime"
	"calmh.dev/track-import/internal/stream"
)

func TestReadPauseResume(t *testing.T) {
	fd, err := os.Open("testdata/legacy_gpx_pause_resume.gpx")
	if err != nil {
		t.Fatal(err)
	}
	defer fd.Close()

	tracks, err := Read(fd)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatal("expected one track, got", len(tracks))
	}

	trk := tracks[0]
	if trk.Name != "2021-01-07 22:51" || trk.Description != "the description" || trk.Category != "the category" {
		t.Errorf("bad metadata %q %q %q", trk.Name, trk.Description, trk.Category)
	}
	if trk.Icon != "" || trk.UUID != "" {
		t.Errorf("unexpected icon %q or uuid %q", trk.Icon, trk.UUID)
	}

	kinds := []stream.Kind{stream.Located, stream.Located, stream.Located, stream.Pause, stream.Break, stream.Resume, stream.Located}
	if len(trk.Records) != len(kinds) {
		t.Fatalf("got %d records, want %d", len(trk.Records), len(kinds))
	}
	for i, k := range kinds {
		if trk.Records[i].Kind != k {
			t.Errorf("record %d is %v, want %v", i, trk.Records[i].Kind, k)
		}
	}

	first := trk.Records[0]
	if first.Lat != 3 || first.Lon != 14 || !first.HasAlt || first.Alt != 10 {
		t.Error("bad first record", first)
	}
	if want := time.Date(2021, 1, 7, 21, 51, 59, 179e6, time.UTC); !first.Time.Equal(want) {
		t.Error("bad first time", first.Time)
	}
}

func TestReadTracksAndWaypoints(t *testing.T) {
	fd, err := os.Open("testdata/two_tracks.gpx")
	if err != nil {
		t.Fatal(err)
	}
	defer fd.Close()

	tracks, err := Read(fd)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatal("expected two tracks, got", len(tracks))
	}
	if tracks[0].Name != "Morning ride" || tracks[1].Name != "Evening walk" {
		t.Error("tracks out of order", tracks[0].Name, tracks[1].Name)
	}
	if tracks[0].UUID != "e3d56c62-3a56-4e30-a1f3-b2f4e2e4c0c1" {
		t.Error("bad uuid", tracks[0].UUID)
	}
	if n := len(tracks[0].Records); n != 4 {
		t.Error("expected 3 points and one break, got", n)
	}
	if tracks[0].Records[1].HasAlt {
		t.Error("point without <ele> has altitude")
	}

	if len(tracks[0].Waypoints) != 1 || len(tracks[1].Waypoints) != 0 {
		t.Fatal("waypoints not attached to first track")
	}
	w := tracks[0].Waypoints[0]
	if w.Name != "Lunch" || w.Category != "food" || !w.HasAlt || w.Alt != 400 {
		t.Error("bad waypoint", w)
	}

	if want := time.Date(2021, 5, 16, 17, 0, 0, 0, time.UTC); !tracks[1].Records[0].Time.Equal(want) {
		t.Error("offset not applied", tracks[1].Records[0].Time)
	}
}

func TestReadMissingTime(t *testing.T) {
	doc := `<gpx><trk><trkseg><trkpt lat="1" lon="2"></trkpt></trkseg></trk></gpx>`
	tracks, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !tracks[0].Records[0].Time.IsZero() {
		t.Error("expected zero time for point without <time>")
	}
}

func TestReadErrors(t *testing.T) {
	cases := map[string]string{
		"time":      `<gpx><trk><trkseg><trkpt lat="1" lon="2"><time>not a time</time></trkpt></trkseg></trk></gpx>`,
		"latitude":  `<gpx><trk><trkseg><trkpt lat="north" lon="2"><time>2021-01-01T00:00:00Z</time></trkpt></trkseg></trk></gpx>`,
		"elevation": `<gpx><trk><trkseg><trkpt lat="1" lon="2"><ele>high</ele></trkpt></trkseg></trk></gpx>`,
		"xml":       `<gpx><trk><trkseg>`,
	}
	for name, doc := range cases {
		if _, err := Read(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	_, err := Read(strings.NewReader(cases["time"]))
	if !errors.Is(err, isotime.ErrMalformed) {
		t.Error("time error does not wrap ErrMalformed:", err)
	}
}
