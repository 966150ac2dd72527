package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/betbot/signaldesk/internal/analysis"
	"github.com/betbot/signaldesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "signaldesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := analysis.NewService(analysis.Options{
		Store: st,
		Now:   func() time.Time { return time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	srv, err := New(svc, nil)
	require.NoError(t, err)
	return srv.Router()
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

const signalsJSON = `{"signals":[
  {"id":"s1","asset":"BTCUSDT","direction":"long","entry":100,"stopLoss":90,"takeProfit1":110,"timestamp":"2024-03-01T00:00:00Z"},
  {"id":"s2","asset":"BTCUSDT","direction":"long","entry":100,"stopLoss":96,"takeProfit1":130,"timestamp":"2024-03-01T00:00:00Z"}
]}`

const barsCSV = "Timestamp,Open,High,Low,Close\n" +
	"2024-03-01T00:00:00Z,100,104,97,102\n" +
	"2024-03-01T01:00:00Z,102,111,95,109\n"

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestServer(t)
	assert.Equal(t, 200, do(t, h, "GET", "/healthz", "", nil).Code)

	rec := do(t, h, "GET", "/metrics", "", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "signaldesk_")
}

func TestImportUploadRunExport(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, "POST", "/api/signals/import", "application/json", []byte(signalsJSON))
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, 2.0, decode(t, rec)["accepted"])

	rec = do(t, h, "GET", "/api/signals?asset=btc/usdt", "", nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["count"])

	rec = do(t, h, "POST", "/api/bars/BTCUSDT/csv?interval=1h", "text/csv", []byte(barsCSV))
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, 2.0, decode(t, rec)["stored"])

	rec = do(t, h, "GET", "/api/bars/BTCUSDT?interval=1h&start=2024-03-01", "", nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["count"])

	rec = do(t, h, "POST", "/api/analysis/run", "application/json", []byte(`{"asset":"BTCUSDT","interval":"1h"}`))
	require.Equal(t, 200, rec.Code, rec.Body.String())
	run := decode(t, rec)
	summary := run["summary"].(map[string]any)
	assert.Equal(t, 2.0, summary["total"])
	assert.Equal(t, 1.0, summary["wins"])
	assert.Equal(t, 1.0, summary["losses"])

	rec = do(t, h, "GET", "/api/analysis/results?outcome=SL%20Hit", "", nil)
	require.Equal(t, 200, rec.Code)
	results := decode(t, rec)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "s2", results[0].(map[string]any)["signalId"])

	rec = do(t, h, "GET", "/api/analysis/export.csv?asset=BTCUSDT", "", nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "signal-analysis-btcusdt-")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)

	rec = do(t, h, "GET", "/api/analysis/results/s1/insight", "", nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, "rule", decode(t, rec)["provider"])

	rec = do(t, h, "GET", "/api/status", "", nil)
	require.Equal(t, 200, rec.Code)
	st := decode(t, rec)
	assert.Len(t, st["runs"], 1)
	assert.NotEmpty(t, st["notices"])
}

func TestBarsUploadMultipart(t *testing.T) {
	h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "bars.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(barsCSV))
	require.NoError(t, mw.Close())

	rec := do(t, h, "POST", "/api/bars/ETHUSDT/csv", mw.FormDataContentType(), buf.Bytes())
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, 2.0, decode(t, rec)["stored"])
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"run without asset", "POST", "/api/analysis/run", `{}`, 400},
		{"run bad json", "POST", "/api/analysis/run", `{`, 400},
		{"run bad expiry", "POST", "/api/analysis/run", `{"asset":"BTCUSDT","expiry_window":"soon"}`, 400},
		{"run no signals", "POST", "/api/analysis/run", `{"asset":"DOGEUSDT"}`, 404},
		{"import bad json", "POST", "/api/signals/import", `not json`, 400},
		{"webhook unknown source", "POST", "/api/webhooks/telegram", `[]`, 400},
		{"csv missing column", "POST", "/api/bars/BTCUSDT/csv", "timestamp,open\n1,2\n", 400},
		{"insight unknown signal", "GET", "/api/analysis/results/nope/insight", "", 404},
		{"bad outcome filter", "GET", "/api/analysis/results?outcome=moon", "", 400},
		{"bad status filter", "GET", "/api/signals?status=maybe", "", 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, "application/json", []byte(tc.body))
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestRunWithoutBarsIsNotFound(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, "POST", "/api/signals/import", "application/json", []byte(signalsJSON))
	require.Equal(t, 200, rec.Code)

	rec = do(t, h, "POST", "/api/analysis/run", "application/json", []byte(`{"asset":"BTCUSDT"}`))
	assert.Equal(t, 404, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "no historical data")
}

func TestWebhookTradingView(t *testing.T) {
	h := newTestServer(t)
	body := `{"Ticker":"SOLUSDT","Direction":"buy","Entry Price":"$150.5","Stop Loss":"140","Take Profit 1":"165"}`
	rec := do(t, h, "POST", "/api/webhooks/TradingView", "application/json", []byte(body))
	require.Equal(t, 202, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, decode(t, rec)["accepted"])
}

func TestBarsUploadTooLarge(t *testing.T) {
	h := newTestServer(t)
	row := "2024-03-01T00:00:00Z,100,104,97,102\n"
	body := "Timestamp,Open,High,Low,Close\n" + strings.Repeat(row, maxUploadBytes/len(row)+10)

	rec := do(t, h, "POST", "/api/bars/BTCUSDT/csv", "text/csv", []byte(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])
}

func TestWebhookAutoDetectsTradingViewAlert(t *testing.T) {
	h := newTestServer(t)
	body := `{"ticker":"BTCUSDT","action":"buy","price":"68500","time":"2024-03-01T00:00:00Z"}`
	rec := do(t, h, "POST", "/api/webhooks/auto", "application/json", []byte(body))
	require.Equal(t, 202, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, decode(t, rec)["accepted"])
}
