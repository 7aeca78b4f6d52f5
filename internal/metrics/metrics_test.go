package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(func() float64 { return 3 })

	m.ObserveTurn(OutcomeOK)
	m.ObserveTurn(OutcomeOK)
	m.ObserveTurn(OutcomeUpstreamError)
	m.IncReset()
	m.IncSettingsChange()
	m.ObserveUpstream("nvidia/llama-3-70b-instruct", 1200*time.Millisecond)

	if got := testutil.ToFloat64(m.turns.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("ok turns = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.turns.WithLabelValues(OutcomeUpstreamError)); got != 1 {
		t.Errorf("upstream_error turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.resets); got != 1 {
		t.Errorf("resets = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.settingsChanges); got != 1 {
		t.Errorf("settings changes = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New(func() float64 { return 5 })
	m.ObserveTurn(OutcomeOK)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`nimchat_chat_turns_total{outcome="ok"} 1`,
		"nimchat_active_sessions 5",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTurn(OutcomeOK)
	m.ObserveUpstream("x", time.Second)
	m.IncReset()
	m.IncSettingsChange()
}
