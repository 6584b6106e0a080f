// Package status serves health, metrics and the list of live dashboards over
// HTTP.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const pingTimeout = time.Second * 5

type Pinger interface {
	Ping(ctx context.Context) error
}

type Dashboards interface {
	Active() []int64
}

type dashboardsResponse struct {
	Channels []int64 `json:"channels"`
	Count    int     `json:"count"`
}

// NewRouter builds the status routes. metrics may be nil.
func NewRouter(store Pinger, dashboards Dashboards, metrics http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthz(store)).Methods(http.MethodGet)
	router.HandleFunc("/dashboards", listDashboards(dashboards)).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return router
}

func healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		err := store.Ping(ctx)
		if err != nil {
			slog.Warn("health check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func listDashboards(dashboards Dashboards) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels := dashboards.Active()
		if channels == nil {
			channels = []int64{}
		}
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(dashboardsResponse{Channels: channels, Count: len(channels)})
		if err != nil {
			slog.Warn("unable to write dashboards", "error", err)
		}
	}
}
