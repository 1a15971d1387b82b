package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dealtimeline/internal/calendar"
	"dealtimeline/internal/report"
	"dealtimeline/internal/storage"
	logx "dealtimeline/pkg/logx"
)

type fakeBackend struct {
	rep       report.Report
	has       bool
	calErr    error
	recompErr error
	reasons   []string
}

func (f *fakeBackend) LatestReport() (report.Report, bool) { return f.rep, f.has }

func (f *fakeBackend) Calendar() (*calendar.Calendar, error) {
	if f.calErr != nil {
		return nil, f.calErr
	}
	return calendar.New(calendar.StaticProvider{"XX": {
		{Date: calendar.Day(2025, time.December, 25), Name: "Christmas"},
		{Date: calendar.Day(2025, time.December, 27), Name: "Weekend holiday"},
	}}, "XX")
}

func (f *fakeBackend) Recompute(_ context.Context, reason string) (report.Report, error) {
	f.reasons = append(f.reasons, reason)
	if f.recompErr != nil {
		return report.Report{}, f.recompErr
	}
	f.has = true
	return f.rep, nil
}

func (f *fakeBackend) Health() any { return map[string]string{"status": "ok"} }

func sampleReport() report.Report {
	return report.Report{
		Project:      "Acme",
		Jurisdiction: "XX",
		StartDate:    "2025-12-01",
		EndDate:      "2025-12-31",
		Rows: []report.Row{
			{ID: "T1", Name: "Kickoff", Start: "2025-12-01", End: "2025-12-08", Scheduled: true},
		},
	}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestScheduleNotComputed(t *testing.T) {
	h := NewRouter(&fakeBackend{}, nil, logx.Nop())
	if rec := do(t, h, http.MethodGet, "/schedule"); rec.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestScheduleAndTask(t *testing.T) {
	h := NewRouter(&fakeBackend{rep: sampleReport(), has: true}, nil, logx.Nop())

	rec := do(t, h, http.MethodGet, "/schedule")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body)
	}
	var rep report.Report
	decode(t, rec, &rep)
	if rep.Project != "Acme" || len(rep.Rows) != 1 {
		t.Fatalf("report=%+v", rep)
	}

	rec = do(t, h, http.MethodGet, "/schedule?format=text")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("code=%d ct=%s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = do(t, h, http.MethodGet, "/schedule/tasks/T1")
	var row report.Row
	decode(t, rec, &row)
	if rec.Code != http.StatusOK || row.Name != "Kickoff" {
		t.Fatalf("code=%d row=%+v", rec.Code, row)
	}
	if rec := do(t, h, http.MethodGet, "/schedule/tasks/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task code=%d", rec.Code)
	}
}

func TestHolidaysSkipWeekends(t *testing.T) {
	h := NewRouter(&fakeBackend{rep: sampleReport(), has: true}, nil, logx.Nop())
	rec := do(t, h, http.MethodGet, "/holidays")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body)
	}
	var out struct {
		From     string             `json:"from"`
		Holidays []calendar.Holiday `json:"holidays"`
	}
	decode(t, rec, &out)
	if out.From != "2025-12-01" || len(out.Holidays) != 1 || out.Holidays[0].Name != "Christmas" {
		t.Fatalf("out=%+v", out)
	}
}

func TestHolidaysBadQuery(t *testing.T) {
	h := NewRouter(&fakeBackend{}, nil, logx.Nop())
	for _, target := range []string{
		"/holidays?from=garbage",
		"/holidays?from=2025-12-10&to=2025-12-01",
		"/weeks?from=2020-01-01&to=2030-01-01",
	} {
		if rec := do(t, h, http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: code=%d", target, rec.Code)
		}
	}
	h = NewRouter(&fakeBackend{calErr: calendar.ErrUnknownJurisdiction}, nil, logx.Nop())
	if rec := do(t, h, http.MethodGet, "/holidays?from=2025-01-01&to=2025-01-31"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("calendar error code=%d", rec.Code)
	}
}

func TestWeeks(t *testing.T) {
	h := NewRouter(&fakeBackend{}, nil, logx.Nop())
	rec := do(t, h, http.MethodGet, "/weeks?from=2025-12-17&to=2025-12-31")
	var out struct {
		Weeks []calendar.WeekBucket `json:"weeks"`
	}
	decode(t, rec, &out)
	if len(out.Weeks) != 3 {
		t.Fatalf("weeks=%d, want 3", len(out.Weeks))
	}
	if out.Weeks[0].HasHoliday || !out.Weeks[1].HasHoliday || out.Weeks[2].HasHoliday {
		t.Fatalf("weeks=%+v", out.Weeks)
	}
}

func TestRecompute(t *testing.T) {
	b := &fakeBackend{rep: sampleReport()}
	h := NewRouter(b, nil, logx.Nop())
	if rec := do(t, h, http.MethodGet, "/recompute"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET code=%d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/recompute")
	if rec.Code != http.StatusOK || len(b.reasons) != 1 || b.reasons[0] != "api" {
		t.Fatalf("code=%d reasons=%v", rec.Code, b.reasons)
	}
	b.recompErr = errors.New("cycle")
	if rec := do(t, h, http.MethodPost, "/recompute?reason=manual"); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("failed recompute code=%d", rec.Code)
	}
}

func TestRuns(t *testing.T) {
	h := NewRouter(&fakeBackend{}, nil, logx.Nop())
	if rec := do(t, h, http.MethodGet, "/runs"); rec.Code != http.StatusNotFound {
		t.Fatalf("no store code=%d", rec.Code)
	}

	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "api")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	for i, reason := range []string{"startup", "schedule", "api"} {
		rec := storage.RunRecord{ID: storage.NewRunID(), At: time.Unix(int64(1000+i), 0), Reason: reason, OK: true}
		if err := st.AppendRun(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	h = NewRouter(&fakeBackend{}, st, logx.Nop())
	if rec := do(t, h, http.MethodGet, "/runs?limit=0"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit code=%d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/runs?limit=2")
	var out struct {
		Runs []storage.RunRecord `json:"runs"`
	}
	decode(t, rec, &out)
	if len(out.Runs) != 2 || out.Runs[0].Reason != "api" {
		t.Fatalf("runs=%+v", out.Runs)
	}
}

func TestAuth(t *testing.T) {
	h := withAuth("s3cret", NewRouter(&fakeBackend{rep: sampleReport(), has: true}, nil, logx.Nop()))

	if rec := do(t, h, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz code=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/schedule"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token code=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/schedule?token=wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token code=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/schedule?token=s3cret"); rec.Code != http.StatusOK {
		t.Fatalf("query token code=%d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/schedule", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer code=%d", rec.Code)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:80":   true,
		"[::1]:9000":     true,
		":8080":          false,
		"0.0.0.0:8080":   false,
		"10.0.0.5:8080":  false,
		"garbage":        false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q)=%v, want %v", addr, got, want)
		}
	}
}

func TestServerServesAndStops(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, &fakeBackend{}, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("server not ready")
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
	if s.Supervisor() != nil {
		t.Fatalf("supervisor still set after stop")
	}
}

func TestServerRefusesInsecureBind(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, &fakeBackend{}, nil, logx.Nop())
	err := s.serveOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "insecure") {
		t.Fatalf("err=%v", err)
	}
}
