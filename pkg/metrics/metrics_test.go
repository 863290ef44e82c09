package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler_ExposesAsyncMetrics(t *testing.T) {
	before := testutil.ToFloat64(async.Resolutions.WithLabelValues("pending"))
	async.Resolutions.WithLabelValues("pending").Inc()
	if got := testutil.ToFloat64(async.Resolutions.WithLabelValues("pending")); got != before+1 {
		t.Fatalf("pending resolutions = %v, want %v", got, before+1)
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `odata_async_resolutions_total{outcome="pending"}`) {
		t.Error("metrics output should contain odata_async_resolutions_total")
	}
}
