package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	"calmh.dev/track-import/internal/gpx/writer"
	"calmh.dev/track-import/internal/importer"
	"calmh.dev/track-import/internal/isotime"
	"calmh.dev/track-import/internal/storage"
	"calmh.dev/track-import/internal/track"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trackimport",
	Subsystem: "http",
	Name:      "requests_total",
}, []string{"handler", "code"})

type handler struct {
	imp       *importer.Importer
	store     *storage.Store
	maxUpload int64
	logger    *slog.Logger
}

func newHandler(imp *importer.Importer, store *storage.Store, maxUpload int64, logger *slog.Logger) http.Handler {
	h := &handler{imp: imp, store: store, maxUpload: maxUpload, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/import", h.handleImport)
	mux.HandleFunc("/tracks", h.handleTracks)
	mux.HandleFunc("/tracks/", h.handleTrackGPX)
	return mux
}

type importResponse struct {
	IDs []string `json:"ids"`
}

type trackResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Icon          string  `json:"icon"`
	Start         string  `json:"start"`
	Stop          string  `json:"stop"`
	TotalDistance float64 `json:"totalDistance"`
	MovingTimeS   float64 `json:"movingTime"`
}

func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "import", http.StatusMethodNotAllowed, "POST only")
		return
	}

	ids, err := h.imp.Import(r.Context(), http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		h.logger.Warn("Upload rejected", "remote", r.RemoteAddr, "error", err)
		h.writeError(w, "import", importStatus(err), err.Error())
		return
	}

	resp := importResponse{IDs: make([]string, len(ids))}
	for i, id := range ids {
		resp.IDs[i] = id.String()
	}
	h.writeJSON(w, "import", http.StatusCreated, resp)
}

func importStatus(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, importer.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrAlreadyImported):
		return http.StatusConflict
	case errors.Is(err, importer.ErrUnknownFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, importer.ErrMissingTime), errors.Is(err, importer.ErrNoTracks), errors.Is(err, isotime.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (h *handler) handleTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.store.Tracks(r.Context())
	if err != nil {
		h.writeError(w, "tracks", http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		resp = append(resp, trackResponse{
			ID:            t.ID.String(),
			Name:          t.Name,
			Description:   t.Description,
			Category:      t.Category,
			Icon:          t.Icon,
			Start:         isotime.Format(t.Stats.StartTime),
			Stop:          isotime.Format(t.Stats.StopTime),
			TotalDistance: t.Stats.TotalDistance,
			MovingTimeS:   t.Stats.MovingTime.Seconds(),
		})
	}
	h.writeJSON(w, "tracks", http.StatusOK, resp)
}

// handleTrackGPX serves /tracks/{id}.gpx.
func (h *handler) handleTrackGPX(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/tracks/")
	idStr, ok := strings.CutSuffix(name, ".gpx")
	if !ok {
		h.writeError(w, "gpx", http.StatusNotFound, "not found")
		return
	}
	id, err := track.ParseID(idStr)
	if err != nil {
		h.writeError(w, "gpx", http.StatusNotFound, err.Error())
		return
	}

	t, err := h.store.Track(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "gpx", http.StatusNotFound, err.Error())
		return
	} else if err != nil {
		h.writeError(w, "gpx", http.StatusInternalServerError, err.Error())
		return
	}
	points, err := h.store.TrackPoints(r.Context(), id)
	if err != nil {
		h.writeError(w, "gpx", http.StatusInternalServerError, err.Error())
		return
	}
	wpts, err := h.store.Waypoints(r.Context(), id)
	if err != nil {
		h.writeError(w, "gpx", http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/gpx+xml")
	httpRequests.WithLabelValues("gpx", "200").Inc()
	if err := writer.WriteTrack(w, t, points, wpts); err != nil {
		h.logger.Warn("Writing GPX", "id", id, "error", err)
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, name string, status int, payload any) {
	httpRequests.WithLabelValues(name, fmt.Sprint(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *handler) writeError(w http.ResponseWriter, name string, status int, msg string) {
	h.writeJSON(w, name, status, map[string]string{"error": msg})
}

type httpListener struct {
	addr    string
	handler http.Handler
}

func (l *httpListener) String() string {
	return fmt.Sprintf("http-listener(%s)@%p", l.addr, l)
}

func (l *httpListener) Serve(ctx context.Context) error {
	list, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		list.Close()
	}()

	return http.Serve(list, l.handler)
}

type prometheusListener struct {
	addr string
}

func (l *prometheusListener) String() string {
	return fmt.Sprintf("prometheus-listener(%s)@%p", l.addr, l)
}

func (l *prometheusListener) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", promhttp.Handler())

	list, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		list.Close()
	}()

	return http.Serve(list, mux)
}
