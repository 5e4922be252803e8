package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/seenimoa/diligenceops/internal/agent"
	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/store"
	"github.com/seenimoa/diligenceops/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// fakeLauncher emits two progress events, leaves two artifacts and returns
// a finished record. A non-nil release channel holds the run until closed.
type fakeLauncher struct {
	root    string
	release chan struct{}
	err     error
	calls   atomic.Int32
}

func (f *fakeLauncher) Run(ctx context.Context, runID, ticker string, sink pipeline.Sink) (*agent.Result, error) {
	f.calls.Add(1)
	sink(models.Progress{RunID: runID, StageID: string(pipeline.StageResolver), Stage: pipeline.LayerBronze, Message: "Resolved " + ticker, Percent: 5})
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sink(models.Progress{RunID: runID, Stage: pipeline.LayerComplete, Message: "Pipeline complete for " + ticker, Percent: 100})

	dir := filepath.Join(f.root, ticker)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	_ = os.WriteFile(filepath.Join(dir, "bronze_company_info.csv"), []byte("ticker\n"+ticker+"\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "results_diligence_memo.md"), []byte("# Due Diligence Report"), 0o644)

	rec := pipeline.NewRecord(runID, ticker)
	rec.Recommendation = models.RecommendProceed
	rec.Confidence = 0.8
	res := &agent.Result{Record: rec, OutputDir: dir}
	if f.err != nil {
		return res, f.err
	}
	return res, nil
}

func testServer(t *testing.T, l Launcher, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.Defaults()
	}
	runs, err := store.OpenRunStore(config.StoreConfig{InMemory: true}, nil)
	require.NoError(t, err)

	var seq atomic.Int32
	srv := NewServer(cfg, l, runs,
		WithLogger(zaptest.NewLogger(t)),
		WithVersion("test"),
		WithIDGenerator(func() string { return fmt.Sprintf("run%05d", seq.Add(1)) }),
	)
	t.Cleanup(func() {
		srv.Close()
		_ = runs.Close()
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw), "response must be a JSON envelope")
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

func startRun(t *testing.T, srv *Server, ticker string) AnalyzeResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/analyze", fmt.Sprintf(`{"ticker":%q}`, ticker))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var ack AnalyzeResponse
	resp := decodeResponse(t, rec, &ack)
	require.True(t, resp.Success)
	return ack
}

// waitDone waits for every background run of srv to finish.
func waitDone(srv *Server) { srv.wg.Wait() }

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, nil)
	for _, path := range []string{"/health", "/api/v1/health"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, path, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var data map[string]any
			resp := decodeResponse(t, rec, &data)
			assert.True(t, resp.Success)
			assert.Equal(t, "ok", data["status"])
			assert.Equal(t, "test", data["version"])
			assert.Equal(t, false, data["llm"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, nil)
	preflight := func(origin string) string {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec.Header().Get("Access-Control-Allow-Origin")
	}
	assert.Equal(t, "http://localhost:3000", preflight("http://localhost:3000"))
	assert.Empty(t, preflight("http://evil.example"))
}

// ════════════════════════════════════════════════════════════════════
// Analyze
// ════════════════════════════════════════════════════════════════════

func TestHandleAnalyze_Validation(t *testing.T) {
	launcher := &fakeLauncher{root: t.TempDir()}
	srv := testServer(t, launcher, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{not json`, "invalid request body"},
		{"missing ticker", `{}`, "ticker is required"},
		{"blank ticker", `{"ticker":"   "}`, "ticker is required"},
		{"too long", `{"ticker":"TOOLONG"}`, "ticker must be 1-5 characters"},
		{"bad characters", `{"ticker":"A$B"}`, "ticker is not a valid ticker symbol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeResponse(t, rec, nil)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Error)
		})
	}
	assert.Zero(t, launcher.calls.Load())
}

func TestHandleAnalyze_StartsRun(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, nil)

	ack := startRun(t, srv, " brk.b ")
	assert.Equal(t, AnalyzeResponse{RunID: "run00001", Ticker: "BRK.B", Status: store.RunRunning}, ack)

	waitDone(srv)
	rec := do(t, srv, http.MethodGet, "/api/v1/runs/run00001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view RunView
	decodeResponse(t, rec, &view)
	assert.Equal(t, store.RunComplete, view.Status)
	assert.NotEmpty(t, view.CompletedAt)
	require.NotNil(t, view.Result)
	assert.Equal(t, models.RecommendProceed, view.Result.Recommendation)
	assert.Equal(t, "BRK.B", view.Result.Ticker)
}

func TestHandleAnalyze_RunFailure(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir(), err: errors.New("stage gold_memo: disk full")}, nil)
	ack := startRun(t, srv, "ACME")
	waitDone(srv)

	var view RunView
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/runs/"+ack.RunID, ""), &view)
	assert.Equal(t, store.RunError, view.Status)
	assert.Equal(t, "stage gold_memo: disk full", view.Error)
	assert.Nil(t, view.Result, "result is only exposed for complete runs")
}

func TestCloseCancelsRuns(t *testing.T) {
	launcher := &fakeLauncher{root: t.TempDir(), release: make(chan struct{})}
	srv := testServer(t, launcher, nil)
	ack := startRun(t, srv, "ACME")

	srv.Close()
	rr, err := srv.runs.Get(ack.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunError, rr.Status)
	assert.Equal(t, context.Canceled.Error(), rr.Error)
}

// ════════════════════════════════════════════════════════════════════
// Runs and files
// ════════════════════════════════════════════════════════════════════

func TestHandleListRuns(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, nil)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	srv.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	for _, ticker := range []string{"AAA", "BBB", "CCC"} {
		startRun(t, srv, ticker)
		waitDone(srv)
	}

	var views []RunView
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/runs", ""), &views)
	require.Len(t, views, 3)
	assert.Equal(t, []string{"CCC", "BBB", "AAA"}, []string{views[0].Ticker, views[1].Ticker, views[2].Ticker})
	assert.Nil(t, views[0].Result, "list omits results")

	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/runs?limit=1", ""), &views)
	assert.Len(t, views, 1)

	rec := do(t, srv, http.MethodGet, "/api/v1/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetRun_NotFound(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, nil)
	for _, path := range []string{"/api/v1/runs/nope", "/api/v1/runs/nope/files", "/api/v1/runs/nope/files/x.csv"} {
		rec := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "run not found", decodeResponse(t, rec, nil).Error)
	}
}

func TestHandleFiles(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, nil)
	ack := startRun(t, srv, "ACME")
	waitDone(srv)

	var files []string
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/runs/"+ack.RunID+"/files", ""), &files)
	assert.ElementsMatch(t, []string{"bronze_company_info.csv", "results_diligence_memo.md"}, files)

	rec := do(t, srv, http.MethodGet, "/api/v1/runs/"+ack.RunID+"/files/bronze_company_info.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ticker\nACME\n", rec.Body.String())

	for _, name := range []string{"missing.csv", "..%2F..%2Fetc%2Fpasswd"} {
		rec = do(t, srv, http.MethodGet, "/api/v1/runs/"+ack.RunID+"/files/"+name, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, name)
	}
}

// ════════════════════════════════════════════════════════════════════
// Config
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig_HidesSecrets(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.OpenAIKey = "sk-secret-123456"
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, cfg)

	rec := do(t, srv, http.MethodGet, "/api/v1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "sk-secret-123456")
	assert.Contains(t, body, `"masked":"sk-...456"`)
	assert.Contains(t, body, `"lookback_months":12`)

	var keys []config.KeyStatus
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/config/keys", ""), &keys)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].IsSet)
}

// ════════════════════════════════════════════════════════════════════
// Hub
// ════════════════════════════════════════════════════════════════════

func drain(c *WSClient) []string {
	var types []string
	for m := range c.send {
		types = append(types, m.Type)
	}
	return types
}

func TestHub_ReplayAndFinish(t *testing.T) {
	h := NewHub()
	h.Open("r1")
	h.Publish("r1", WSMessage{Type: MsgProgress})

	late, ok := h.Subscribe("r1")
	require.True(t, ok)
	assert.Equal(t, 1, h.SubscriberCount("r1"))

	h.Publish("r1", WSMessage{Type: MsgProgress})
	h.Publish("other", WSMessage{Type: MsgProgress}) // unknown run: dropped
	h.Finish("r1", WSMessage{Type: MsgComplete})

	assert.Equal(t, []string{MsgProgress, MsgProgress, MsgComplete}, drain(late))
	assert.Equal(t, 0, h.SubscriberCount("r1"))

	_, ok = h.Subscribe("r1")
	assert.False(t, ok, "finished runs are forgotten")
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub()
	h.Open("r1")
	c, _ := h.Subscribe("r1")
	h.Unsubscribe("r1", c)
	h.Unsubscribe("r1", c)
	h.Send(c, WSMessage{Type: MsgPong}) // closed: no panic
	h.Finish("r1", WSMessage{Type: MsgComplete})
	assert.Empty(t, drain(c))
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	h := NewHub()
	h.Open("r1")
	c, _ := h.Subscribe("r1")
	for i := 0; i < sendBuffer+1; i++ {
		h.Publish("r1", WSMessage{Type: MsgProgress})
	}
	assert.Equal(t, 0, h.SubscriberCount("r1"))
	assert.Len(t, drain(c), sendBuffer)
	h.Finish("r1", WSMessage{Type: MsgComplete})
}

// ════════════════════════════════════════════════════════════════════
// WebSocket
// ════════════════════════════════════════════════════════════════════

func wsURL(ts *httptest.Server, runID string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/pipeline/" + runID
}

func readAll(t *testing.T, conn *websocket.Conn) []WSMessage {
	t.Helper()
	var msgs []WSMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var m WSMessage
		if err := conn.ReadJSON(&m); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return msgs
		}
		msgs = append(msgs, m)
	}
}

func TestPipelineWebSocket_StreamsRun(t *testing.T) {
	launcher := &fakeLauncher{root: t.TempDir(), release: make(chan struct{})}
	srv := testServer(t, launcher, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ack := startRun(t, srv, "ACME")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ack.RunID), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.hub.SubscriberCount(ack.RunID) == 1 }, 2*time.Second, 10*time.Millisecond)
	close(launcher.release)

	msgs := readAll(t, conn)
	require.Len(t, msgs, 3)
	assert.Equal(t, MsgProgress, msgs[0].Type)
	assert.Equal(t, MsgProgress, msgs[1].Type)
	assert.Equal(t, MsgComplete, msgs[2].Type)
	data, ok := msgs[2].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.RecommendProceed, data["recommendation"])
	waitDone(srv)
}

func TestPipelineWebSocket_FinishedRun(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir(), err: errors.New("boom")}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ack := startRun(t, srv, "ACME")
	waitDone(srv)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ack.RunID), nil)
	require.NoError(t, err)
	defer conn.Close()

	msgs := readAll(t, conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgError, msgs[0].Type)
}

func TestPipelineWebSocket_UnknownRun(t *testing.T) {
	srv := testServer(t, &fakeLauncher{root: t.TempDir()}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "short and stout")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"short and stout"}`, rec.Body.String())
}
