package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pkt.systems/foldscreen/schema"
)

func TestMetricsCounters(t *testing.T) {
	m := New(false)
	m.Invalidated("a", false)
	m.Invalidated("a", true)
	m.Invalidated("a", true)
	m.Dispatched("a")
	m.Resized("a")
	m.BridgeMessage("a", nil)
	m.BridgeMessage("a", schema.ErrUnknownAction)
	m.BridgeMessage("a", errors.New("bad"))
	m.ContextsLive(3)

	if got := testutil.ToFloat64(m.Invalidations.WithLabelValues("scheduled")); got != 1 {
		t.Fatalf("scheduled = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Invalidations.WithLabelValues("coalesced")); got != 2 {
		t.Fatalf("coalesced = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Dispatches); got != 1 {
		t.Fatalf("dispatches = %v, want 1", got)
	}
	for _, result := range []string{"applied", "unknown_action", "invalid"} {
		if got := testutil.ToFloat64(m.BridgeMessages.WithLabelValues(result)); got != 1 {
			t.Fatalf("bridge %s = %v, want 1", result, got)
		}
	}
	if got := testutil.ToFloat64(m.Contexts); got != 3 {
		t.Fatalf("contexts = %v, want 3", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New(false)
	m.Dispatched("a")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "foldscreen_change_dispatches_total 1") {
		t.Fatalf("metrics output missing dispatch counter:\n%s", body)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New(true)
	b := New(true)
	a.Resized("x")
	if got := testutil.ToFloat64(b.Resizes); got != 0 {
		t.Fatalf("second registry saw %v resizes", got)
	}
}
