package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/scriptsched/internal/domain"
	"github.com/shaiso/scriptsched/internal/store"
)

func TestClient_ListSchedulesQuery(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id": 7, "script_name": "nightly backup", "user": "alice"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")

	records, err := c.ListSchedules(context.Background(), "nightly backup")
	require.NoError(t, err)
	assert.Equal(t, "/schedules", gotPath)
	assert.Equal(t, "script=nightly%20backup", gotQuery)
	require.Len(t, records, 1)
	assert.Equal(t, domain.JobID("7"), records[0].ID)
	assert.Equal(t, "alice", records[0].StringField("user"))

	_, err = c.ListSchedules(context.Background(), "a+b&c")
	require.NoError(t, err)
	assert.Equal(t, "script=a%2Bb%26c", gotQuery)

	_, err = c.ListSchedules(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestClient_MutationPaths(t *testing.T) {
	type call struct {
		method, path, body, user string
	}
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(body), r.Header.Get("X-User")})
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"id": "3"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			io.WriteString(w, `{"id": "3", "script_name": "backup"}`)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL, WithUser("alice"), WithTimeout(time.Second))

	id, err := c.CreateSchedule(ctx, CreateScheduleRequest{
		ScriptName: "backup",
		Schedule:   json.RawMessage(`{"repeatable":false}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobID("3"), id)

	require.NoError(t, c.UpdateSchedule(ctx, "3", map[string]any{"repeatable": true}))
	require.NoError(t, c.DeleteSchedule(ctx, "3"))

	require.Len(t, calls, 3)
	assert.Equal(t, call{http.MethodPost, "/schedules", `{"script_name":"backup","schedule":{"repeatable":false}}`, "alice"}, calls[0])
	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.Equal(t, "/schedules/3/update", calls[1].path)
	assert.JSONEq(t, `{"schedule": {"repeatable": true}}`, calls[1].body)
	assert.Equal(t, http.MethodDelete, calls[2].method)
	assert.Equal(t, "/schedules/3/delete", calls[2].path)
}

func TestClient_ErrorWithJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error": {"code": "NOT_FOUND", "message": "schedule not found"}}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).DeleteSchedule(context.Background(), "9")

	var reqErr *store.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	assert.Equal(t, "NOT_FOUND: schedule not found", reqErr.Error())
	assert.True(t, reqErr.HasPayload())
	assert.Equal(t, map[string]any{
		"error": map[string]any{"code": "NOT_FOUND", "message": "schedule not found"},
	}, reqErr.Value())
}

func TestClient_ErrorWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListSchedules(context.Background(), "")

	var reqErr *store.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadGateway, reqErr.StatusCode)
	assert.False(t, reqErr.HasPayload())
	assert.Equal(t, "API error: HTTP 502", reqErr.Value())
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).ListSchedules(context.Background(), "")

	var reqErr *store.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Zero(t, reqErr.StatusCode)
	assert.NotNil(t, reqErr.Unwrap())
	assert.False(t, reqErr.HasPayload())
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"not": "an array"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListSchedules(context.Background(), "")

	var reqErr *store.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusOK, reqErr.StatusCode)
	assert.Contains(t, reqErr.Error(), "failed to decode response")
}
