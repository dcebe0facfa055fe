package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/scriptsched/internal/mq"
	"github.com/shaiso/scriptsched/internal/repo"
)

var testNow = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

type publishedEvent struct {
	Type       mq.MessageType
	JobID      string
	ScriptName string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishScheduleEvent(_ context.Context, msgType mq.MessageType, jobID, scriptName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{msgType, jobID, scriptName})
	return nil
}

func (p *fakePublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

func newTestServer(t *testing.T) (*httptest.Server, *repo.MemoryScheduleRepo, *fakePublisher) {
	t.Helper()

	r := repo.NewMemoryScheduleRepo()
	pub := &fakePublisher{}
	h := NewHandler(Config{
		Repo:   r,
		Events: pub,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return testNow },
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, r, pub
}

func doRequest(t *testing.T, method, url, user string, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set(HeaderUser, user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

const dailySchedule = `{
	"repeatable": true,
	"start_datetime": "2026-03-01T09:00:00Z",
	"repeat_unit": "days",
	"repeat_period": 1,
	"end_option": "never"
}`

func createBody(script, schedule string) string {
	return `{"script_name": "` + script + `", "parameter_values": {"target": "db"}, "schedule": ` + schedule + `}`
}

func TestCreateSchedule(t *testing.T) {
	srv, _, pub := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "alice", createBody("backup", dailySchedule))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decode[CreateScheduleResponse](t, resp)
	if created.ID != "1" {
		t.Errorf("expected id 1, got %q", created.ID)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/schedules/1", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	job := decode[JobResponse](t, resp)
	if job.User != "alice" || job.ScriptName != "backup" {
		t.Errorf("unexpected job %+v", job)
	}
	if job.ParameterValues["target"] != "db" {
		t.Errorf("expected parameter target=db, got %v", job.ParameterValues)
	}
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if job.NextExecution == nil || !job.NextExecution.Equal(want) {
		t.Errorf("expected next execution %v, got %v", want, job.NextExecution)
	}

	events := pub.Events()
	if len(events) != 1 || events[0].Type != mq.MessageTypeScheduleCreated || events[0].JobID != "1" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestCreateSchedule_RequiresUser(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "", createBody("backup", dailySchedule))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	er := decode[ErrorResponse](t, resp)
	if er.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected BAD_REQUEST, got %s", er.Error.Code)
	}
}

func TestCreateSchedule_Validation(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		message  string
	}{
		{
			name:     "one-shot in the past",
			schedule: `{"repeatable": false, "start_datetime": "2026-03-01T09:00:00Z"}`,
			message:  "Start date should be in the future",
		},
		{
			name: "end before start",
			schedule: `{"repeatable": true, "start_datetime": "2026-03-01T09:00:00Z",
				"repeat_unit": "hours", "repeat_period": 2,
				"end_option": "end_datetime", "end_arg": "2026-02-01T00:00:00Z"}`,
			message: "End date should be after start date",
		},
		{
			name: "zero max executions",
			schedule: `{"repeatable": true, "start_datetime": "2026-03-01T09:00:00Z",
				"repeat_unit": "hours", "repeat_period": 2,
				"end_option": "max_executions", "end_arg": 0}`,
			message: "Count should be greater than 0!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, r, _ := newTestServer(t)

			resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "alice", createBody("backup", tt.schedule))
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			er := decode[ErrorResponse](t, resp)
			if er.Error.Message != tt.message {
				t.Errorf("expected %q, got %q", tt.message, er.Error.Message)
			}

			jobs, _ := r.List(context.Background(), "")
			if len(jobs) != 0 {
				t.Errorf("invalid schedule must not be stored")
			}
		})
	}
}

func TestCreateSchedule_InvalidCron(t *testing.T) {
	srv, _, _ := newTestServer(t)

	schedule := `{"repeatable": true, "start_datetime": "2026-03-01T09:00:00Z", "cron_expr": "not a cron"}`
	resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "alice", createBody("backup", schedule))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	er := decode[ErrorResponse](t, resp)
	if er.Error.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_SCHEDULE, got %s", er.Error.Code)
	}
}

func TestListSchedules_FilterAndOrder(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, script := range []string{"backup", "report", "backup"} {
		resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "alice", createBody(script, dailySchedule))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %s: %d", script, resp.StatusCode)
		}
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/schedules", "", "")
	all := decode[[]JobResponse](t, resp)
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	for i, want := range []string{"1", "2", "3"} {
		if all[i].ID != want {
			t.Errorf("position %d: expected id %s, got %s", i, want, all[i].ID)
		}
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/schedules?script=backup", "", "")
	backups := decode[[]JobResponse](t, resp)
	if len(backups) != 2 || backups[0].ID != "1" || backups[1].ID != "3" {
		t.Errorf("unexpected filtered list %+v", backups)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/schedules?script=none", "", "")
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}
}

func TestUpdateSchedule_PreservesExecutionsCount(t *testing.T) {
	srv, r, pub := newTestServer(t)
	ctx := context.Background()

	resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "alice", createBody("backup", dailySchedule))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}

	// Имитируем три срабатывания
	job, err := r.GetByID(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	job.Schedule.ExecutionsCount = 3
	if err := r.Update(ctx, job); err != nil {
		t.Fatal(err)
	}

	update := `{"schedule": {"repeatable": true, "start_datetime": "2026-03-01T09:00:00Z",
		"repeat_unit": "hours", "repeat_period": 6, "executions_count": 0}}`
	resp = doRequest(t, http.MethodPut, srv.URL+"/schedules/1/update", "", update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decode[JobResponse](t, resp)
	if updated.Schedule.RepeatPeriod != 6 {
		t.Errorf("expected period 6, got %d", updated.Schedule.RepeatPeriod)
	}
	if updated.Schedule.ExecutionsCount != 3 {
		t.Errorf("expected executions_count 3, got %d", updated.Schedule.ExecutionsCount)
	}

	events := pub.Events()
	if len(events) != 2 || events[1].Type != mq.MessageTypeScheduleUpdated {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestUpdateSchedule_PastOneShotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "alice", createBody("backup", dailySchedule))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}

	update := `{"schedule": {"repeatable": false, "start_datetime": "2026-03-01T09:00:00Z"}}`
	resp = doRequest(t, http.MethodPut, srv.URL+"/schedules/1/update", "", update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decode[JobResponse](t, resp)
	if updated.NextExecution != nil {
		t.Errorf("expected no next execution, got %v", updated.NextExecution)
	}
}

func TestUpdateSchedule_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPut, srv.URL+"/schedules/99/update", "", `{"schedule": `+dailySchedule+`}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteSchedule(t *testing.T) {
	srv, _, pub := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/schedules", "alice", createBody("backup", dailySchedule))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/schedules/1/delete", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/schedules/1/delete", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}

	events := pub.Events()
	if len(events) != 2 || events[1] != (publishedEvent{mq.MessageTypeScheduleDeleted, "1", "backup"}) {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/schedules", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get(HeaderRequestID); got != "req-42" {
		t.Errorf("expected request id req-42, got %q", got)
	}

	resp2 := doRequest(t, http.MethodGet, srv.URL+"/schedules", "", "")
	if resp2.Header.Get(HeaderRequestID) == "" {
		t.Errorf("expected generated request id")
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(ErrCodeInternalError)) {
		t.Errorf("expected INTERNAL_ERROR body, got %s", rec.Body.String())
	}
}
