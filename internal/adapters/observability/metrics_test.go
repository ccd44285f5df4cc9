package observability_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"airbnb_kpi/internal/adapters/observability"
)

func scrape(t *testing.T) string {
	t.Helper()
	reg := observability.InitRegistry()
	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	return string(body)
}

func TestMetricsRegistryAndHandler(t *testing.T) {
	// record one sample so counters are non-zero
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)

	out := scrape(t)
	if !strings.Contains(out, "kpi_http_requests_total") {
		t.Fatalf("expected kpi_http_requests_total in output")
	}
}

func TestStageAndRunMetrics(t *testing.T) {
	observability.ObserveStage("unify", nil, 42, 3*time.Millisecond)
	observability.ObserveStage("normalize", errors.New("boom"), 0, time.Millisecond)
	observability.ObserveRun(nil)
	observability.ObserveMissing("lead_time", 7)

	out := scrape(t)
	for _, want := range []string{
		`kpi_stage_rows{stage="unify"} 42`,
		`kpi_stage_duration_seconds_count{stage="normalize",status="error"} 1`,
		`kpi_pipeline_runs_total{status="ok"}`,
		`kpi_missing_values{field="lead_time"} 7`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
	if strings.Contains(out, `kpi_stage_rows{stage="normalize"}`) {
		t.Fatalf("failed stage must not publish a row count")
	}
}
