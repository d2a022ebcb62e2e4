package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// HealthServer serves the liveness and readiness endpoints
type HealthServer struct {
	server *http.Server
}

// NewHealthServer creates the health server. ready reports whether startup reconciliation finished.
func NewHealthServer(port int, ready func() bool) *HealthServer {
	return &HealthServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           healthHandler(ready),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func healthHandler(ready func() bool) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready() {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}

// Start serves the endpoints in the background
func (h *HealthServer) Start() {
	go func() {
		log.WithField("addr", h.server.Addr).Info("Health server listening")
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Health server stopped")
		}
	}()
}

// Shutdown stops the health server
func (h *HealthServer) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}
