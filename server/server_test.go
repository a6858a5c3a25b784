package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/tempo/db"
	tempotest "github.com/teranos/tempo/internal/testing"
	"github.com/teranos/tempo/pulse"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
)

var now = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

type exportActivity struct{ activity.Base }

func (*exportActivity) Type() string       { return "export" }
func (*exportActivity) Recurrence() string { return "" }
func (*exportActivity) Run(_ context.Context, out io.Writer) error {
	fmt.Fprintln(out, "exported")
	return nil
}

type fixture struct {
	scheduler *pulse.Scheduler
	store     *jobs.Store
	handler   http.Handler
}

func newFixture(t *testing.T, conn *sql.DB) *fixture {
	t.Helper()
	reg := activity.NewRegistry()
	reg.MustRegister(activity.Build(func(activity.Handle) activity.Activity {
		return &exportActivity{Base: activity.NewBase("customer", "limit")}
	}))

	clock := func() time.Time { return now }
	store := jobs.NewStore(conn, db.SQLite)
	s := pulse.New(reg, store, pulse.Config{Clock: clock}, zaptest.NewLogger(t).Sugar())
	srv := New(s, Options{AllowedOrigins: []string{"https://ops.example.com"}, Clock: clock}, zaptest.NewLogger(t).Sugar())
	return &fixture{scheduler: s, store: store, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, []string{"export"}, health.Activities)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHealthStoreDown(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	f := newFixture(t, conn)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[HealthResponse](t, rec).Store)
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	f := newFixture(t, conn)

	rec := f.do(t, http.MethodGet, "/api/jobs/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "job store unavailable", decode[ErrorResponse](t, rec).Error)
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))
}

func TestSubmitAndRead(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))

	rec := f.do(t, http.MethodPost, "/api/jobs", `{"type":"export","params":{"customer":"acme","limit":10}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[SubmitResponse](t, rec)
	assert.Equal(t, "export", sub.Type)
	assert.True(t, now.Equal(sub.Plan))

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%d", sub.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[JobResponse](t, rec)
	assert.Equal(t, jobs.StatusTodo, job.Status)
	assert.False(t, job.Recurring)
	assert.Equal(t, "acme", job.Params["customer"])
	assert.Equal(t, float64(10), job.Params["limit"])

	stored, err := f.store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	decoded, err := params.Decode(stored.Params)
	require.NoError(t, err)
	limit, ok := decoded["limit"].Int()
	assert.True(t, ok, "integers stay integers")
	assert.Equal(t, int64(10), limit)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/jobs/%d/status", sub.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusResponse{ID: sub.ID, Status: jobs.StatusTodo}, decode[StatusResponse](t, rec))
}

func TestSubmitScheduledAt(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))

	rec := f.do(t, http.MethodPost, "/api/jobs", `{"type":"export","at":"2026-10-17T06:00:00+02:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[SubmitResponse](t, rec)
	assert.Equal(t, time.Date(2026, 10, 17, 4, 0, 0, 0, time.UTC), sub.Plan)

	stored, err := f.store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "{}", stored.Params)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{`, "invalid request body"},
		{"missing type", `{"params":{}}`, "type is required"},
		{"unknown type", `{"type":"ftp"}`, "unknown activity type"},
		{"unknown field", `{"type":"export","params":{"region":"eu"}}`, "unknown activity field"},
		{"null param", `{"type":"export","params":{"customer":null}}`, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[ErrorResponse](t, rec).Error, tt.want)
		})
	}

	rows, err := f.store.ListByStatus(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListJobsForDay(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))
	ctx := context.Background()

	today, err := f.scheduler.ScheduleAt(ctx, "export", now.Add(time.Hour), params.Params{"customer": params.String("a")})
	require.NoError(t, err)
	_, err = f.scheduler.ScheduleAt(ctx, "export", now.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	ran, err := f.scheduler.ScheduleNow(ctx, "export", nil)
	require.NoError(t, err)
	_, err = f.scheduler.Activate(ctx)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListJobsResponse](t, rec)
	assert.Equal(t, "2026-10-16", list.Date)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, ran, list.Jobs[0].ID)
	assert.Equal(t, jobs.StatusDone, list.Jobs[0].Status)
	assert.Equal(t, "exported\n", list.Jobs[0].Result)
	assert.Equal(t, today, list.Jobs[1].ID)

	rec = f.do(t, http.MethodGet, "/api/jobs?date=2026-10-16&status=finish", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[ListJobsResponse](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, ran, list.Jobs[0].ID)

	rec = f.do(t, http.MethodGet, "/api/jobs?date=2026-10-17", "")
	assert.Equal(t, 1, decode[ListJobsResponse](t, rec).Count)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/jobs?date=16-10-2026", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/jobs?status=done-ish", "").Code)
}

func TestReadEndpointsDoNotMutate(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))
	ctx := context.Background()
	id, err := f.scheduler.ScheduleNow(ctx, "export", nil)
	require.NoError(t, err)
	before, err := f.store.Get(ctx, id)
	require.NoError(t, err)

	for _, target := range []string{"/api/jobs", fmt.Sprintf("/api/jobs/%d", id), fmt.Sprintf("/api/jobs/%d/status", id), "/health"} {
		f.do(t, http.MethodGet, target, "")
	}

	after, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRedo(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))
	ctx := context.Background()

	id, err := f.scheduler.ScheduleNow(ctx, "export", nil)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/jobs/%d/redo", id), "")
	assert.Equal(t, http.StatusConflict, rec.Code, "todo rows cannot be redone")

	_, err = f.scheduler.Activate(ctx)
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/jobs/%d/redo", id), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job := decode[JobResponse](t, rec)
	assert.Equal(t, jobs.StatusTodo, job.Status)
	assert.Nil(t, job.Start)
	assert.Empty(t, job.Result)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/999", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/999/status", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/jobs/999/redo", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/jobs/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/jobs/-4/status", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodDelete, "/api/jobs/1", "").Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServeShutsDown(t *testing.T) {
	f := newFixture(t, tempotest.CreateTestDB(t))
	srv := New(f.scheduler, Options{Addr: "127.0.0.1:0"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
