package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

type fakeDashboards []int64

func (d fakeDashboards) Active() []int64 {
	return d
}

func serve(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := NewRouter(fakePinger{}, fakeDashboards(nil), nil)
	rec := serve(t, router, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthzStoreDown(t *testing.T) {
	router := NewRouter(fakePinger{err: errors.New("connection refused")}, fakeDashboards(nil), nil)
	rec := serve(t, router, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDashboards(t *testing.T) {
	router := NewRouter(fakePinger{}, fakeDashboards{-100, 42}, nil)
	rec := serve(t, router, "/dashboards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body dashboardsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []int64{-100, 42}, body.Channels)
	assert.Equal(t, 2, body.Count)
}

func TestDashboardsEmpty(t *testing.T) {
	router := NewRouter(fakePinger{}, fakeDashboards(nil), nil)
	rec := serve(t, router, "/dashboards")
	assert.JSONEq(t, `{"channels":[],"count":0}`, rec.Body.String())
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dashboard_active 1\n"))
	})
	router := NewRouter(fakePinger{}, fakeDashboards(nil), metrics)
	rec := serve(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard_active")

	router = NewRouter(fakePinger{}, fakeDashboards(nil), nil)
	assert.Equal(t, http.StatusNotFound, serve(t, router, "/metrics").Code)
}
