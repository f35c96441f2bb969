package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/postings/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/v1/postings/:id", "204"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/postings/42", nil))
	after := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/v1/postings/:id", "204"))

	assert.Equal(t, before+1, after)
}

func TestGinMiddlewareSkipsHealthAndScrapeRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/health", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, before, testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/health", "200")))
	assert.Zero(t, testutil.ToFloat64(requestsInFlight))
}

func TestAsynqMetricsMiddlewareCountsOutcome(t *testing.T) {
	boom := errors.New("boom")
	h := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return boom }))

	before := testutil.ToFloat64(taskProcessedTotal.WithLabelValues("test:task", "error"))
	err := h.ProcessTask(context.Background(), asynq.NewTask("test:task", nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before+1, testutil.ToFloat64(taskProcessedTotal.WithLabelValues("test:task", "error")))
}

func TestObserveAI(t *testing.T) {
	before := testutil.ToFloat64(aiRequests.WithLabelValues("generate_jd", "mock", "ok"))
	ObserveAI("generate_jd", true, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(aiRequests.WithLabelValues("generate_jd", "mock", "ok")))
}
