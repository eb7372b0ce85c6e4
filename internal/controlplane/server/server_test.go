package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/copytrade/internal/copytrade"
	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/ports"
)

type fakeController struct {
	mu        sync.Mutex
	running   bool
	enabled   bool
	starts    int
	lastLimit int
	startErr  error
}

func (f *fakeController) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if !f.running {
		f.starts++
	}
	f.running = true
	return nil
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeController) SetEnabled(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
}

func (f *fakeController) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeController) Status() copytrade.Status {
	st := copytrade.Status{State: copytrade.StateStopped, Accounts: []string{"A", "B"}, Enabled: f.Enabled()}
	if f.Running() {
		st.State, st.Running = copytrade.StateRunning, true
	}
	return st
}

func (f *fakeController) Recent(ctx context.Context, limit int) ([]ports.RecordSummary, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	return []ports.RecordSummary{{ID: "r1", Action: domain.ActionPlace, PrimaryOrderID: "p1", SuccessCount: 2, Total: 2}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthzIsPublic(t *testing.T) {
	s := New(Config{Token: "secret"}, &fakeController{})
	rec := do(t, s.Router(), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := New(Config{Token: "secret"}, &fakeController{})
	h := s.Router()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/status", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/status", "", "wrong").Code)

	rec := do(t, h, http.MethodGet, "/api/status", "", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "stopped", body["state"])
	assert.Equal(t, []any{"A", "B"}, body["accounts"])
}

func TestStartStopReportTransitions(t *testing.T) {
	ctl := &fakeController{}
	h := New(Config{}, ctl).Router()

	rec := do(t, h, http.MethodPost, "/api/start", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["changed"])

	rec = do(t, h, http.MethodPost, "/api/start", "", "")
	assert.Equal(t, false, decode(t, rec)["changed"])
	assert.Equal(t, 1, ctl.starts)

	rec = do(t, h, http.MethodPost, "/api/stop", "", "")
	assert.Equal(t, true, decode(t, rec)["changed"])
	rec = do(t, h, http.MethodPost, "/api/stop", "", "")
	assert.Equal(t, false, decode(t, rec)["changed"])
}

func TestStartWhileStoppingIsConflict(t *testing.T) {
	ctl := &fakeController{startErr: copytrade.ErrStopInProgress}
	h := New(Config{}, ctl).Router()

	rec := do(t, h, http.MethodPost, "/api/start", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, ctl.starts)
}

func TestCopyingToggle(t *testing.T) {
	ctl := &fakeController{enabled: true}
	h := New(Config{}, ctl).Router()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/copying", `{}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/copying", `nope`, "").Code)

	rec := do(t, h, http.MethodPut, "/api/copying", `{"enabled":false}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["enabled"])
	assert.False(t, ctl.Enabled())
}

func TestReplicationsLimit(t *testing.T) {
	ctl := &fakeController{}
	h := New(Config{}, ctl).Router()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/replications?limit=abc", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/replications?limit=0", "", "").Code)

	rec := do(t, h, http.MethodGet, "/api/replications?limit=9999", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxRecentLimit, ctl.lastLimit)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].(map[string]any)["primary_order_id"])

	do(t, h, http.MethodGet, "/api/replications", "", "")
	assert.Equal(t, defaultRecentLimit, ctl.lastLimit)
}

func TestCORSPreflight(t *testing.T) {
	h := New(Config{AllowedOrigins: []string{"http://localhost:3000"}}, &fakeController{}).Router()
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventsWebsocketReceivesReports(t *testing.T) {
	s := New(Config{Token: "secret"}, &fakeController{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()
	defer s.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events?token=secret"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	s.Hub().OnReplicated(ports.Report{Action: domain.ActionPlace, PrimaryOrderID: "p9", SuccessCount: 1, Total: 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "replication", ev.Type)
	assert.Equal(t, "p9", ev.Data.PrimaryOrderID)
	assert.Equal(t, 1, ev.Data.SuccessCount)
}

func TestHubDropsSlowClients(t *testing.T) {
	h := NewHub()
	c := &wsClient{id: "slow", send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	h.broadcast([]byte("1"))
	h.broadcast([]byte("2"))
	assert.Equal(t, 0, h.Clients())
}
