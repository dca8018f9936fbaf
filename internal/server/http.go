package server

import (
	"net/http"

	"github.com/VelascoAMath/phase.ten/internal/config"
)

// NewHTTPServer mounts the hub at /ws next to a liveness probe.
func NewHTTPServer(cfg config.ServerConfig, hub *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}
}
