package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "creditledger"})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/users/:user_id/credits", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/7/credits", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/users/:user_id/credits", "200"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if testutil.ToFloat64(m.inflight) != 0 {
		t.Fatalf("expected inflight gauge back at 0")
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newHTTPMetrics(registry, Config{})
	second := newHTTPMetrics(registry, Config{})
	if first.requests != second.requests {
		t.Fatalf("expected the existing collector to be reused")
	}
}
