package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binjactl/uiengine/internal/ipc"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestOpen_SendsBodyAndDecodesEnvelope(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ui/open", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/tmp/a.bin", req["filepath"])
		assert.Equal(t, false, req["click_open"])

		json.NewEncoder(w).Encode(ipc.Envelope{
			OK: true, SchemaVersion: 1, Endpoint: "/ui/open", APIVersion: 2,
			Actions: []string{"low_level_load"},
			Result:  ipc.EnvelopeResult{RunID: "run-1"},
		})
	})

	click := false
	env, err := c.Open(context.Background(), ipc.OpenRequest{Filepath: "/tmp/a.bin", ClickOpen: &click})
	require.NoError(t, err)
	assert.True(t, env.OK)
	assert.Equal(t, 2, env.APIVersion)
	assert.Equal(t, "run-1", env.Result.RunID)
	assert.Equal(t, []string{"low_level_load"}, env.Actions)
}

func TestRuns_QueryParameters(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "/ui/quit", r.URL.Query().Get("endpoint"))
		w.Write([]byte(`[{"seq":3,"run_id":"r3","endpoint":"/ui/quit","ok":true,"actions":["x"]}]`))
	})

	runs, err := c.Runs(context.Background(), "/ui/quit", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(3), runs[0].Seq)
	assert.JSONEq(t, `["x"]`, string(runs[0].Actions))
}

func TestStatusError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-32100,"message":"rate limit exceeded"}`))
	})

	_, err := c.Statusbar(context.Background(), ipc.StatusbarRequest{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, -32100, se.Code)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestStatusError_NonJSONBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Status(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusText(http.StatusBadGateway), se.Message)
}

func TestStatusAndRun(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			w.Write([]byte(`{"loaded":true,"filename":"/tmp/a.bin"}`))
		case "/api/v1/runs/abc":
			w.Write([]byte(`{"seq":1,"run_id":"abc","ok":false}`))
		default:
			http.NotFound(w, r)
		}
	})

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Loaded)
	assert.Equal(t, "/tmp/a.bin", st.Filename)

	run, err := c.Run(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, run.OK)
}
