package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/handler"
	"habitflow/internal/httpserver"
	"habitflow/internal/repository/repotest"
	"habitflow/internal/service/auth"
	"habitflow/internal/service/event"
	"habitflow/internal/service/habit"
	"habitflow/internal/service/planner"
	"habitflow/internal/service/schedule"
	"habitflow/pkg/mq"
)

const farDay = "2030-01-15"

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type testServer struct {
	engine *gin.Engine
	store  *repotest.MemStore
}

func newTestServer(t *testing.T, db httpserver.Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	store := repotest.New()
	settings := availability.DefaultSettings()
	authSvc := auth.NewAuthService(store, nil, "test-secret", log)

	h := httpserver.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, log),
		Events:   handler.NewEventHandler(event.NewService(store, store, settings, log), log),
		Habits:   handler.NewHabitHandler(habit.NewService(store, store, settings, log), log),
		Schedule: handler.NewScheduleHandler(schedule.NewService(store, store, settings, log), log),
		Planner:  handler.NewPlannerHandler(planner.NewService(store, nil, settings, planner.DefaultLowSuccessThreshold, log), log),
	}
	engine := httpserver.NewRouter(h, httpserver.Options{Auth: authSvc, DB: db, Logger: log})
	return &testServer{engine: engine, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	creds := gin.H{"email": email, "password": "correct horse"}
	w := s.do(t, http.MethodPost, "/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = s.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestServer(t, stubPinger{err: errors.New("connection refused")})
	w = down.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "db_not_ready")
}

func TestTraceIDIsEchoed(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, stubPinger{})

	w := s.do(t, http.MethodGet, "/api/v1/day", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/day", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	s.login(t, "ana@example.com")

	w := s.do(t, http.MethodPost, "/register", "", gin.H{"email": "ana@example.com", "password": "correct horse"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/register", "", gin.H{"email": "bob@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "ana@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/login", "", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateEventOutcomes(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	token := s.login(t, "ana@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/events", token, gin.H{"title": "Dentist", "day": farDay})
	require.Equal(t, http.StatusBadRequest, w.Code)
	out := decode[event.Outcome](t, w)
	assert.Equal(t, event.StatusNeedsInfo, out.Status)
	assert.Equal(t, event.FieldStartTime, out.Field)
	assert.NotEmpty(t, out.Question)

	w = s.do(t, http.MethodPost, "/api/v1/events", token, gin.H{
		"title": "Dentist", "day": farDay, "start_time": "09:00", "end_time": "10:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out = decode[event.Outcome](t, w)
	assert.Equal(t, event.StatusCreated, out.Status)
	require.NotNil(t, out.Event)
	assert.Equal(t, farDay, out.Event.Day)

	w = s.do(t, http.MethodPost, "/api/v1/events", token, gin.H{
		"title": "Call", "day": farDay, "start_time": "09:30", "end_time": "10:30",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	out = decode[event.Outcome](t, w)
	assert.Equal(t, event.StatusConflict, out.Status)
	assert.NotEmpty(t, out.Suggestions)

	assert.Len(t, s.store.Busy(), 1)
	require.Len(t, s.store.Outbox(), 1)
	assert.Equal(t, mq.RoutingScheduleCreated, s.store.Outbox()[0].RoutingKey)
}

func TestDayReportWithCandidate(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	token := s.login(t, "ana@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/events", token, gin.H{
		"title": "Standup", "day": farDay, "start_time": "09:00", "end_time": "09:30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/day?day="+farDay+"&start=09:15&end=10:00", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[planner.DayReport](t, w)
	assert.Equal(t, farDay, report.Day)
	assert.Len(t, report.Entries, 1)
	assert.NotEmpty(t, report.Overlaps)
	assert.NotEmpty(t, report.FreeWindows)

	w = s.do(t, http.MethodGet, "/api/v1/day?day=someday", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHabitLifecycle(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	token := s.login(t, "ana@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/habits", token, gin.H{"title": "Read"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Habit struct {
			ID int64 `json:"id"`
		} `json:"habit"`
	}](t, w)
	require.NotZero(t, created.Habit.ID)

	w = s.do(t, http.MethodPost, "/api/v1/habits", token, gin.H{"title": "read"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/habits", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Read"`)

	base := "/api/v1/habits/" + itoa(created.Habit.ID)
	w = s.do(t, http.MethodPost, base+"/completions", token, gin.H{"outcome": "done"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/completions", token, gin.H{"outcome": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, base+"/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[habit.HabitStats](t, w)
	assert.Equal(t, 1, stats.Stats.Done)
	assert.Equal(t, 1, stats.Stats.CurrentStreak)

	today := time.Now().UTC().Format(time.DateOnly)
	w = s.do(t, http.MethodDelete, base+"/completions?date="+today+"&outcome=done", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, base+"/completions?date="+today+"&outcome=done", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/habits/abc/stats", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/habits/999/stats", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleListAndDelete(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	token := s.login(t, "ana@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/events", token, gin.H{
		"title": "Dentist", "day": farDay, "start_time": "09:00", "end_time": "10:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[event.Outcome](t, w)

	w = s.do(t, http.MethodGet, "/api/v1/schedule?from="+farDay+"&to="+farDay, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	listed := decode[struct {
		Days []schedule.DaySchedule `json:"days"`
	}](t, w)
	require.Len(t, listed.Days, 1)
	assert.Len(t, listed.Days[0].Entries, 1)

	path := "/api/v1/schedule/" + string(out.Event.Kind) + "/" + itoa(out.Event.ID)
	w = s.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, s.store.Busy())
}

func TestInsights(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	token := s.login(t, "ana@example.com")

	w := s.do(t, http.MethodGet, "/api/v1/insights?horizon=3", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[planner.InsightsReport](t, w)
	assert.Equal(t, 3, report.HorizonDays)
	assert.Len(t, report.FreeWindows, 3)

	w = s.do(t, http.MethodGet, "/api/v1/insights?horizon=lots", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
