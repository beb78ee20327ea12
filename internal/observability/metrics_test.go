package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/lwctl/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordSession("opened")
	RecordEnvelope("out", "hello")
	RecordRequest("open", "ok", 12*time.Millisecond)
	RecordProgress(3, 0)
	RecordProgress(0, 2)
	RecordHTTPRequest("lwctl", "GET", "/healthz", 200, time.Millisecond)
}

func TestServerRoutes(t *testing.T) {
	testlog.Start(t)
	RecordEnvelope("in", "filetree")
	s := NewServer("lwctl", []string{"http://localhost:3000"}, func() map[string]any {
		return map[string]any{"archive": "English.big"}
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("healthz body: %v", err)
	}
	if body["node"] != "lwctl" || body["archive"] != "English.big" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected CORS header: %q", got)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lwctl_session_envelopes_total") {
		t.Fatalf("metrics output missing session envelopes")
	}
}
