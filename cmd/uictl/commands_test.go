package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, h http.HandlerFunc, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--url", srv.URL}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestOpenCmd_Flags(t *testing.T) {
	var body map[string]any
	out, err := runCmd(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ui/open", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"ok":true,"endpoint":"/ui/open","api_version":2}`))
	}, "open", "/tmp/a.bin", "--platform", "armv7", "--view-type", "Raw", "--no-click")

	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.bin", body["filepath"])
	assert.Equal(t, "armv7", body["platform"])
	assert.Equal(t, "Raw", body["view_type"])
	assert.Equal(t, false, body["click_open"])
	assert.Contains(t, out, `"api_version": 2`)
}

func TestQuitCmd_NotOKExitsWithError(t *testing.T) {
	var body map[string]any
	_, err := runCmd(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"ok":false,"errors":["UI toolkit is not available"]}`))
	}, "quit", "--decision", "dont-save", "--quit-app")

	assert.True(t, errors.Is(err, errNotOK))
	assert.Equal(t, "dont-save", body["decision"])
	assert.Equal(t, true, body["quit_app"])
	assert.Equal(t, float64(2000), body["wait_ms"])
}

func TestStatusbarCmd(t *testing.T) {
	var body map[string]any
	_, err := runCmd(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"ok":true}`))
	}, "statusbar", "--all-windows")

	require.NoError(t, err)
	assert.Equal(t, true, body["all_windows"])
	assert.Equal(t, false, body["include_hidden"])
}

func TestRunsCmd(t *testing.T) {
	out, err := runCmd(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"seq":1,"run_id":"r1","ok":true}]`))
	}, "runs", "--limit", "3")

	require.NoError(t, err)
	assert.Contains(t, out, `"run_id": "r1"`)
}

func TestHTTPErrorIsReturned(t *testing.T) {
	_, err := runCmd(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":-32101,"message":"host is busy"}`))
	}, "status")

	require.Error(t, err)
	assert.False(t, errors.Is(err, errNotOK))
	assert.Contains(t, err.Error(), "host is busy")
}
