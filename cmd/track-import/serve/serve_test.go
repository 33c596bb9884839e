package serve

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/importer"
	"calmh.dev/track-import/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "tracks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func readFile(t *testing.T, name string) []byte {
	t.Helper()
	bs, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return bs
}

func TestHTTPImportExport(t *testing.T) {
	store := openStore(t)
	imp := importer.New(store, importer.Options{PreventReimport: true}, discard)
	srv := httptest.NewServer(newHandler(imp, store, 1<<20, discard))
	defer srv.Close()

	gpx := readFile(t, "two_tracks.gpx")

	resp, err := http.Post(srv.URL+"/import", "application/gpx+xml", bytes.NewReader(gpx))
	if err != nil {
		t.Fatal(err)
	}
	var ir importResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d", resp.StatusCode)
	}
	if len(ir.IDs) != 2 {
		t.Fatalf("got %d ids, want 2", len(ir.IDs))
	}

	resp, err = http.Get(srv.URL + "/tracks")
	if err != nil {
		t.Fatal(err)
	}
	var tracks []trackResponse
	if err := json.NewDecoder(resp.Body).Decode(&tracks); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(tracks) != 2 || tracks[0].Name != "Morning ride" || tracks[1].Icon != "WALK" {
		t.Errorf("unexpected track list %+v", tracks)
	}

	resp, err = http.Get(srv.URL + "/tracks/" + ir.IDs[0] + ".gpx")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status %d", resp.StatusCode)
	}
	if n := strings.Count(string(body), "<trkseg>"); n != 2 {
		t.Errorf("export has %d segments, want 2", n)
	}
	if !strings.Contains(string(body), "<name>Morning ride</name>") {
		t.Error("export is missing the track name")
	}

	// The file carries a track UUID, so a second upload is refused.
	resp, err = http.Post(srv.URL+"/import", "application/gpx+xml", bytes.NewReader(gpx))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("reimport status %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestHTTPErrors(t *testing.T) {
	store := openStore(t)
	imp := importer.New(store, importer.Options{MaxDecompressed: 1 << 16}, discard)
	srv := httptest.NewServer(newHandler(imp, store, 1<<10, discard))
	defer srv.Close()

	// Small on the wire, far larger than the decompression limit.
	var packed bytes.Buffer
	gw := gzip.NewWriter(&packed)
	gw.Write(bytes.Repeat([]byte("$GPRMC,215159.179,A,0300.000,N,01400.000,E,0.0,0.0,070121,,,A*69\r\n"), 2000))
	gw.Close()
	if packed.Len() >= 1<<10 {
		t.Fatalf("compressed body is %d bytes, too large for the upload limit", packed.Len())
	}

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{"GET", "/import", "", http.StatusMethodNotAllowed},
		{"POST", "/import", "hello, world\n", http.StatusUnsupportedMediaType},
		{"POST", "/import", strings.Repeat("x", 2<<10), http.StatusRequestEntityTooLarge},
		{"POST", "/import", packed.String(), http.StatusRequestEntityTooLarge},
		{"POST", "/import", `<gpx><trk><trkseg><trkpt lat="1" lon="2"/></trkseg></trk></gpx>`, http.StatusUnprocessableEntity},
		{"POST", "/import", `<gpx><trk><trkseg><trkpt lat="1" lon="2"><time>yesterday</time></trkpt></trkseg></trk></gpx>`, http.StatusUnprocessableEntity},
		{"GET", "/tracks/not-an-id.gpx", "", http.StatusNotFound},
		{"GET", "/tracks/5b3fd0a4-6a5e-4bd4-8f0e-1c8e7c7f8a11.gpx", "", http.StatusNotFound},
		{"GET", "/tracks/5b3fd0a4-6a5e-4bd4-8f0e-1c8e7c7f8a11", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Errorf("%s %s: status %d, want %d", tc.method, tc.path, resp.StatusCode, tc.status)
		}
	}

	tracks, err := store.Tracks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 0 {
		t.Errorf("failed imports stored %d tracks", len(tracks))
	}
}

func TestSpoolScan(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t)
	sw := &spoolWatcher{
		dir:    dir,
		imp:    importer.New(store, importer.Options{}, discard),
		logger: discard,
	}
	if err := sw.prepare(); err != nil {
		t.Fatal(err)
	}

	files := map[string][]byte{
		"a.gpx":           readFile(t, "two_tracks.gpx"),
		"b.txt":           []byte("not a track\n"),
		".hidden.gpx":     readFile(t, "two_tracks.gpx"),
		"upload.gpx.part": []byte("<gpx"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := sw.scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{
		filepath.Join(spoolDoneDir, "a.gpx"),
		filepath.Join(spoolFailedDir, "b.txt"),
		".hidden.gpx",
		"upload.gpx.part",
	} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}

	tracks, err := store.Tracks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Errorf("got %d tracks, want 2", len(tracks))
	}

	// A second scan finds nothing new.
	if err := sw.scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	tracks, _ = store.Tracks(context.Background())
	if len(tracks) != 2 {
		t.Errorf("rescan imported again, %d tracks", len(tracks))
	}
}
