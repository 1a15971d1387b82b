package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dealtimeline/internal/calendar"
	"dealtimeline/internal/config"
	"dealtimeline/internal/report"
	"dealtimeline/internal/storage"
	logx "dealtimeline/pkg/logx"

	"github.com/gorilla/mux"
)

// maxSpan bounds calendar queries.
const maxSpan = 5 * 366 * 24 * time.Hour

// Backend is what the API reads from and triggers.
type Backend interface {
	LatestReport() (report.Report, bool)
	Calendar() (*calendar.Calendar, error)
	Recompute(ctx context.Context, reason string) (report.Report, error)
	Health() any
}

type handlers struct {
	b     Backend
	store storage.Store
	log   logx.Logger
	now   func() time.Time
}

// NewRouter builds the API routes. store may be nil.
func NewRouter(b Backend, store storage.Store, log logx.Logger) http.Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handlers{b: b, store: store, log: log, now: time.Now}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/schedule", h.schedule).Methods(http.MethodGet)
	r.HandleFunc("/schedule/tasks/{id}", h.task).Methods(http.MethodGet)
	r.HandleFunc("/holidays", h.holidays).Methods(http.MethodGet)
	r.HandleFunc("/weeks", h.weeks).Methods(http.MethodGet)
	r.HandleFunc("/runs", h.runs).Methods(http.MethodGet)
	r.HandleFunc("/recompute", h.recompute).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.b.Health())
}

func (h *handlers) schedule(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.b.LatestReport()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no schedule computed yet"))
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.WriteText(w, rep); err != nil {
			h.log.Warn("write text report", logx.Err(err))
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w, rep); err != nil {
		h.log.Warn("write json report", logx.Err(err))
	}
}

func (h *handlers) task(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.b.LatestReport()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no schedule computed yet"))
		return
	}
	id := mux.Vars(r)["id"]
	row, ok := rep.Row(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown task %q", id))
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *handlers) holidays(w http.ResponseWriter, r *http.Request) {
	cal, from, to, ok := h.calendarSpan(w, r)
	if !ok {
		return
	}
	out := cal.HolidaysInSpan(from, to)
	if out == nil {
		out = []calendar.Holiday{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jurisdiction": cal.Jurisdiction(),
		"from":         from.Format(time.DateOnly),
		"to":           to.Format(time.DateOnly),
		"holidays":     out,
	})
}

func (h *handlers) weeks(w http.ResponseWriter, r *http.Request) {
	cal, from, to, ok := h.calendarSpan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jurisdiction": cal.Jurisdiction(),
		"weeks":        cal.WeekBuckets(from, to),
	})
}

// calendarSpan resolves the calendar and the [from, to] query span. Without
// parameters the span is the latest schedule, or the current year.
func (h *handlers) calendarSpan(w http.ResponseWriter, r *http.Request) (*calendar.Calendar, time.Time, time.Time, bool) {
	from, to := h.defaultSpan()
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		d, err := config.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("from: %w", err))
			return nil, time.Time{}, time.Time{}, false
		}
		from = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := config.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
			return nil, time.Time{}, time.Time{}, false
		}
		to = d
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, errors.New("to is before from"))
		return nil, time.Time{}, time.Time{}, false
	}
	if to.Sub(from) > maxSpan {
		writeError(w, http.StatusBadRequest, errors.New("span longer than five years"))
		return nil, time.Time{}, time.Time{}, false
	}
	cal, err := h.b.Calendar()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return nil, time.Time{}, time.Time{}, false
	}
	if err := cal.Prefetch(from, to); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return nil, time.Time{}, time.Time{}, false
	}
	return cal, from, to, true
}

func (h *handlers) defaultSpan() (time.Time, time.Time) {
	if rep, ok := h.b.LatestReport(); ok {
		from, err1 := config.ParseDate(rep.StartDate)
		to, err2 := config.ParseDate(rep.EndDate)
		if err1 == nil && err2 == nil && !to.Before(from) {
			return from, to
		}
	}
	y := h.now().Year()
	return calendar.Day(y, time.January, 1), calendar.Day(y, time.December, 31)
}

func (h *handlers) runs(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, storage.ErrDisabled)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be 1..1000"))
			return
		}
		limit = n
	}
	runs, err := h.store.RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *handlers) recompute(w http.ResponseWriter, r *http.Request) {
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))
	if reason == "" {
		reason = "api"
	}
	rep, err := h.b.Recompute(r.Context(), reason)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project":    rep.Project,
		"start_date": rep.StartDate,
		"end_date":   rep.EndDate,
		"unresolved": rep.Unresolved,
		"risks":      len(rep.Risks),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
