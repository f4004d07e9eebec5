package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("POST", "/viewport", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "app_build_info") || !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestDomainMetrics_Labels(t *testing.T) {
	IncFetchFailure("cluster")
	IncViewTransition("", "segment")
	IncResponseCache("lru", true)
	ObserveCacheOp("get", errors.New("boom"), 0.001)
	AddDedupRemoved(3)
	ObserveInvalidation("detection", 2, nil)
	IncConsumerError("decode")

	reg := prometheus.NewRegistry()
	Init(reg, true)
	Init(reg, true)

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		`fetch_failures_total{data_type="cluster"}`,
		`view_transitions_total{from="none",to="segment"}`,
		`response_cache_total{outcome="hit",tier="lru"}`,
		`cache_op_total{op="get",result="error"}`,
		`cluster_dedup_removed_total`,
		`invalidation_events_total{data_type="detection",result="ok"}`,
		`invalidated_keys_total{data_type="detection"}`,
		`kafka_consumer_errors_total{kind="decode"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in:\n%s", want, body)
		}
	}
}
