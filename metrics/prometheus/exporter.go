package prometheus

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultReadHeaderTimeout bounds header reads on the scrape endpoint.
const defaultReadHeaderTimeout = 10 * time.Second

// Exporter serves the sessionkit collectors over HTTP for scraping. The
// embedding application owns its lifecycle: Start blocks until Shutdown.
// Applications that already run an HTTP server mount Handler instead.
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewExporter creates an exporter for the sessionkit collectors plus Go
// runtime metrics at the given address. Use "host:0" to bind an ephemeral
// port and read it back with Addr.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	for _, collector := range allMetrics {
		reg.MustRegister(collector)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Exporter{addr: addr, registry: reg}
}

// MustRegister adds collectors to the exporter's registry, for embedding
// applications that expose their own counters alongside the session
// metrics. Panics on duplicate registration.
func (e *Exporter) MustRegister(cs ...prometheus.Collector) {
	e.registry.MustRegister(cs...)
}

// Handler returns the scrape handler, for mounting into an existing HTTP
// server instead of running Start.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start binds the listen address and serves /metrics and /health, blocking
// until Shutdown or a listener error. Returns http.ErrServerClosed after a
// graceful Shutdown.
func (e *Exporter) Start() error {
	e.mu.Lock()
	if e.server != nil {
		e.mu.Unlock()
		return fmt.Errorf("exporter already started")
	}

	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", e.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	e.listener = ln
	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	server := e.server
	e.mu.Unlock()

	return server.Serve(ln)
}

// Addr returns the bound listen address, or "" before Start.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Shutdown gracefully stops a started exporter. Shutting down an unstarted
// exporter is a no-op.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	server := e.server
	e.server = nil
	e.listener = nil
	e.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
