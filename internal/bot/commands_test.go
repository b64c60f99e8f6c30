package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCommands_PauseResume(t *testing.T) {
	b, _, _ := newTestBot(t)
	handler := b.Commands()

	rec := postForm(t, handler, "/pause", url.Values{"reason": {"maintenance window"}})
	require.Equal(t, http.StatusOK, rec.Code)
	paused, detail := b.rm.IsPaused()
	assert.True(t, paused)
	assert.Equal(t, "maintenance window", detail)

	rec = postForm(t, handler, "/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	paused, _ = b.rm.IsPaused()
	assert.False(t, paused)
}

func TestCommands_PauseRequiresPost(t *testing.T) {
	b, _, _ := newTestBot(t)
	req := httptest.NewRequest(http.MethodGet, "/pause", nil)
	rec := httptest.NewRecorder()
	b.Commands().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCommands_ForceStrategy(t *testing.T) {
	b, _, _ := newTestBot(t)
	handler := b.Commands()
	ctx := context.Background()

	rec := postForm(t, handler, "/strategy", url.Values{"pair": {"BTCUSDT"}, "name": {"momentum"}})
	require.Equal(t, http.StatusOK, rec.Code)

	// The sideways market would pick the grid; the override wins.
	b.cycle(ctx)
	run, ok := b.active["BTCUSDT"]
	require.True(t, ok)
	assert.Equal(t, types.StrategyMomentum, run.strat.Name())

	rec = postForm(t, handler, "/strategy", url.Values{"pair": {"BTCUSDT"}})
	require.Equal(t, http.StatusOK, rec.Code)
	b.cycle(ctx)
	run, ok = b.active["BTCUSDT"]
	require.True(t, ok)
	assert.Equal(t, types.StrategyGrid, run.strat.Name())
}

func TestCommands_ForceStrategyRejectsUnknown(t *testing.T) {
	b, _, _ := newTestBot(t)
	rec := postForm(t, b.Commands(), "/strategy", url.Values{"pair": {"BTCUSDT"}, "name": {"martingale"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(t, b.Commands(), "/strategy", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommands_Status(t *testing.T) {
	b, _, _ := newTestBot(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	b.Commands().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status risk.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1000.0, status.Capital)
}
