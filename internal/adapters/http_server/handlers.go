package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"airbnb_kpi/internal/app"
	"airbnb_kpi/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	// Ready reports whether backing stores are reachable. Optional.
	Ready func(ctx context.Context) error
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type kpiIndex struct {
	RunID string   `json:"run_id"`
	KPIs  []string `json:"kpis"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.health)
	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/report", h.latestReport)
		r.Get("/reports/{runID}", h.report)
		r.Get("/kpis", h.listKPIs)
		r.Get("/kpis/{name}", h.kpi)
		r.Get("/amenities", h.amenities)
		r.Get("/booking-windows", h.bookingWindows)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps domain errors to problem responses.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownKPI):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "no report stored")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("query failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body, nil
}

// writeJSON writes v with a weak ETag, answering 304 when the client has it.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body, err := calcETagAndBody(v)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("ETag", etag)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("write body failed")
	}
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) latestReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Q.LatestReport(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, rep)
}

func (h *Handlers) report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Q.Report(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, rep)
}

func (h *Handlers) listKPIs(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Q.LatestReport(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, kpiIndex{RunID: rep.RunID, KPIs: rep.SeriesNames()})
}

// kpi serves one KPI table; ?dimension= narrows it to one city, host type or listing.
func (h *Handlers) kpi(w http.ResponseWriter, r *http.Request) {
	s, err := h.Q.Series(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("dimension"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, r, s)
}

// amenities serves the amenity impact table; ?month=YYYY-MM narrows it.
func (h *Handlers) amenities(w http.ResponseWriter, r *http.Request) {
	var (
		only   domain.Month
		filter bool
	)
	if ms := r.URL.Query().Get("month"); ms != "" {
		m, err := domain.ParseMonth(ms)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid month", "month must be YYYY-MM")
			return
		}
		only, filter = m, true
	}

	stats, err := h.Q.Amenities(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]domain.AmenityStat, 0, len(stats))
	for _, s := range stats {
		if !filter || s.Month == only {
			out = append(out, s)
		}
	}
	writeJSON(w, r, out)
}

func (h *Handlers) bookingWindows(w http.ResponseWriter, r *http.Request) {
	bw, err := h.Q.BookingWindows(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if bw == nil {
		bw = []domain.BookingWindow{}
	}
	writeJSON(w, r, bw)
}
