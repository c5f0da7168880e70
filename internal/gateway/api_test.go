// ABOUTME: Tests for the command submission and ledger query HTTP handlers
// ABOUTME: Uses httptest recorders against the gateway's mux

package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shellcast/internal/command"
)

func do(t *testing.T, gw *Gateway, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)
	return w
}

func decodeCommand(t *testing.T, w *httptest.ResponseRecorder) command.Command {
	t.Helper()
	var c command.Command
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c), "body: %s", w.Body.String())
	return c
}

func TestSubmit_DefaultsIDAndStatus(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	w := do(t, gw, http.MethodPost, "/api/commands", `{"cmd":"echo hi"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	c := decodeCommand(t, w)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "echo hi", c.Cmd)
	assert.Equal(t, command.Pending{}, c.Status)
	assert.Equal(t, "/api/commands/"+c.ID, w.Header().Get("Location"))

	stored, ok := gw.Ledger().Get(c.ID)
	require.True(t, ok)
	assert.Equal(t, c, stored)
}

func TestSubmit_ExplicitIDAndPending(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	w := do(t, gw, http.MethodPost, "/api/commands", `{"id":"job-1","cmd":"uptime","status":"Pending"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, command.Command{ID: "job-1", Cmd: "uptime", Status: command.Pending{}}, decodeCommand(t, w))
}

func TestSubmit_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid json", `{"cmd":`, http.StatusBadRequest, "invalid JSON body"},
		{"missing cmd", `{"id":"1"}`, http.StatusBadRequest, "cmd is required"},
		{"blank cmd", `{"cmd":"   "}`, http.StatusBadRequest, "cmd is required"},
		{"completed status", `{"cmd":"ls","status":{"Completed":"x"}}`, http.StatusBadRequest, "must be Pending"},
		{"failed status", `{"cmd":"ls","status":{"Failed":"x"}}`, http.StatusBadRequest, "must be Pending"},
		{"unknown status", `{"cmd":"ls","status":"Running"}`, http.StatusBadRequest, "invalid status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, testConfig())

			w := do(t, gw, http.MethodPost, "/api/commands", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp["error"], tt.wantErr)
			assert.Equal(t, 0, gw.Ledger().Len())
		})
	}
}

func TestSubmit_DuplicateIDConflicts(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	require.Equal(t, http.StatusCreated, do(t, gw, http.MethodPost, "/api/commands", `{"id":"x","cmd":"a"}`).Code)
	w := do(t, gw, http.MethodPost, "/api/commands", `{"id":"x","cmd":"b"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	stored, ok := gw.Ledger().Get("x")
	require.True(t, ok)
	assert.Equal(t, "a", stored.Cmd)
}

func TestListCommands(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	w := do(t, gw, http.MethodGet, "/api/commands", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	do(t, gw, http.MethodPost, "/api/commands", `{"id":"1","cmd":"first"}`)
	do(t, gw, http.MethodPost, "/api/commands", `{"id":"2","cmd":"second"}`)
	gw.Ledger().AppendOrUpdate(command.Command{ID: "1", Cmd: "first", Status: command.Completed{Output: "ok"}})

	w = do(t, gw, http.MethodGet, "/api/commands", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"id":"1","cmd":"first","status":{"Completed":"ok"}},
		{"id":"2","cmd":"second","status":"Pending"}
	]`, w.Body.String())
}

func TestGetCommand(t *testing.T) {
	gw := newTestGateway(t, testConfig())
	do(t, gw, http.MethodPost, "/api/commands", `{"id":"abc","cmd":"date"}`)

	w := do(t, gw, http.MethodGet, "/api/commands/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", decodeCommand(t, w).ID)

	assert.Equal(t, http.StatusNotFound, do(t, gw, http.MethodGet, "/api/commands/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, gw, http.MethodGet, "/api/commands/a/b", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, gw, http.MethodDelete, "/api/commands/abc", "").Code)
}

func TestCommands_MethodNotAllowed(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	w := do(t, gw, http.MethodPut, "/api/commands", `{"cmd":"x"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
}

func TestHealth(t *testing.T) {
	gw := newTestGateway(t, testConfig())

	w := do(t, gw, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = do(t, gw, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no agents connected", w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	gw := newTestGateway(t, cfg)

	do(t, gw, http.MethodPost, "/api/commands", `{"cmd":"echo hi"}`)

	w := do(t, gw, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `shellcast_commands_submitted_total{source="api"} 1`)
	assert.Contains(t, body, "shellcast_ledger_commands 1")
}

func TestMetricsEndpoint_DisabledIsNotMounted(t *testing.T) {
	gw := newTestGateway(t, testConfig())
	assert.Equal(t, http.StatusNotFound, do(t, gw, http.MethodGet, "/metrics", "").Code)
}
