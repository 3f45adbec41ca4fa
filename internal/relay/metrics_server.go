package relay

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes a registry's metrics over /metrics for Prometheus
// to scrape.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

// NewMetricsServer builds an HTTP server for reg, bound to addr once Start
// is called.
func NewMetricsServer(addr string, reg *prometheus.Registry) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (m *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return err
	}
	m.listener = ln
	m.running.Store(true)
	go m.server.Serve(ln)
	return nil
}

// Stop gracefully shuts the server down.
func (m *MetricsServer) Stop() error {
	if !m.running.Swap(false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

// Address returns the bound listener address.
func (m *MetricsServer) Address() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}
