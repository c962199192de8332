package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/deixis/ohosbuild/internal/runner"
)

func TestObserve_CountsByOutcome(t *testing.T) {
	before := map[string]float64{
		"success": testutil.ToFloat64(Invocations.WithLabelValues("success")),
		"timeout": testutil.ToFloat64(Invocations.WithLabelValues("timeout")),
	}

	Observe(&runner.Result{Code: 0, Duration: 10 * time.Millisecond})
	Observe(&runner.Result{Code: runner.CodeTimeout, Duration: time.Second})
	Observe(&runner.Result{Code: runner.CodeTimeout, Duration: time.Second})

	if got := testutil.ToFloat64(Invocations.WithLabelValues("success")) - before["success"]; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(Invocations.WithLabelValues("timeout")) - before["timeout"]; got != 2 {
		t.Errorf("timeout delta = %v, want 2", got)
	}
}

func TestHandler_ServesCollectors(t *testing.T) {
	Register()
	Register()
	Observe(&runner.Result{Code: 3})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`ohosbuild_runner_invocations_total{outcome="exit"}`,
		"ohosbuild_runner_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
