package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/storage"
	"calmh.dev/track-import/internal/track"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestImportExportDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.Open(ctx, filepath.Join(dir, "tracks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	imp := &importCmd{Files: []string{"testdata/legacy_gpx_pause_resume.gpx"}}
	if err := imp.Run(ctx, discard, store); err != nil {
		t.Fatal(err)
	}
	tracks, err := store.Tracks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	orig := tracks[0]

	out := filepath.Join(dir, "export.gpx")
	exp := &exportCmd{ID: orig.ID.String(), Output: out}
	if err := exp.Run(ctx, store); err != nil {
		t.Fatal(err)
	}

	imp = &importCmd{Files: []string{out}}
	if err := imp.Run(ctx, discard, store); err != nil {
		t.Fatal(err)
	}
	tracks, err = store.Tracks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks after reimport, want 2", len(tracks))
	}

	var copyID track.ID
	for _, tr := range tracks {
		if tr.ID != orig.ID {
			copyID = tr.ID
		}
	}
	a := located(t, store, orig.ID)
	b := located(t, store, copyID)
	if len(a) != 4 || len(a) != len(b) {
		t.Fatalf("located points %d and %d, want 4", len(a), len(b))
	}
	for i := range a {
		if !a[i].Time.Equal(b[i].Time) || a[i].Latitude() != b[i].Latitude() || a[i].Longitude() != b[i].Longitude() || a[i].Altitude() != b[i].Altitude() {
			t.Errorf("point %d: %v != %v", i, a[i], b[i])
		}
	}

	del := &deleteCmd{IDs: []string{orig.ID.String(), copyID.String()}}
	if err := del.Run(ctx, discard, store); err != nil {
		t.Fatal(err)
	}
	tracks, err = store.Tracks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Errorf("got %d tracks after delete, want 0", len(tracks))
	}
}

func TestImportContinueOnError(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "tracks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	imp := &importCmd{
		Files:           []string{"testdata/does-not-exist.gpx", "testdata/legacy_gpx_pause_resume.gpx"},
		ContinueOnError: true,
	}
	if err := imp.Run(ctx, discard, store); err == nil {
		t.Error("expected an error for the missing file")
	}
	tracks, err := store.Tracks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Errorf("got %d tracks, want 1", len(tracks))
	}
}

func located(t *testing.T, store *storage.Store, id track.ID) []track.Point {
	t.Helper()
	points, err := store.TrackPoints(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	var res []track.Point
	for _, p := range points {
		if p.HasLocation() {
			res = append(res, p)
		}
	}
	return res
}
