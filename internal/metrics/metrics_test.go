package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsMaterializationsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMaterialization(MaterializationCreated)
	c.RecordMaterialization(MaterializationReused)
	c.RecordMaterialization(MaterializationReused)

	if got := testutil.ToFloat64(c.materializations.WithLabelValues(MaterializationReused)); got != 2 {
		t.Fatalf("reused = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.materializations.WithLabelValues(MaterializationCreated)); got != 1 {
		t.Fatalf("created = %v, want 1", got)
	}
}

func TestCollectorTracksRelayState(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetRelayConnections(3)
	c.RecordRelayDrop()
	c.RecordSlotsServed(7)

	if got := testutil.ToFloat64(c.relayConnections); got != 3 {
		t.Fatalf("connections = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.relayDrops); got != 1 {
		t.Fatalf("drops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.slotsServed); got != 7 {
		t.Fatalf("slots served = %v, want 7", got)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCallTransition("completed")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "consult_call_transitions_total") {
		t.Fatalf("expected call transition metric in body")
	}
}

func TestNoopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Noop{}
	r.RecordRelayMessage("offer")
	r.SetRelayConnections(0)
}
