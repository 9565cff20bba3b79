// Package metrics implements the prometheus collectors that satisfy
// supervisor.Metrics, plus a loopback-only debug HTTP listener to serve
// them. Not a spec feature — carried as ambient observability the way the
// rest of the retrieved pack instruments daemons that otherwise have no
// spec-mandated metrics surface (SPEC_FULL §1/§2).
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors implements supervisor.Metrics. Constructed once per process
// and registered with a dedicated Registry so tests can create as many
// independent instances as they like without a global-registry collision.
type Collectors struct {
	liveInstances    *prometheus.GaugeVec
	restarts         *prometheus.CounterVec
	fastFailTrips    *prometheus.CounterVec
	heartbeatFailure *prometheus.CounterVec
	eventSubscribers prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Collectors registered with a fresh prometheus.Registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		liveInstances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ubervisor",
			Name:      "live_instances",
			Help:      "Currently live instance count per group.",
		}, []string{"group"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ubervisor",
			Name:      "restarts_total",
			Help:      "Total instance restarts per group.",
		}, []string{"group"}),
		fastFailTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ubervisor",
			Name:      "fast_fail_trips_total",
			Help:      "Total BROKEN transitions per group.",
		}, []string{"group"}),
		heartbeatFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ubervisor",
			Name:      "heartbeat_failures_total",
			Help:      "Total non-zero heartbeat exits per group.",
		}, []string{"group"}),
		eventSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ubervisor",
			Name:      "event_subscribers",
			Help:      "Currently live SUBS event-stream subscriptions (event-bus fan-out depth).",
		}),
	}
	reg.MustRegister(c.liveInstances, c.restarts, c.fastFailTrips, c.heartbeatFailure, c.eventSubscribers)
	return c
}

// SetEventSubscribers records the event bus's current fan-out depth.
func (c *Collectors) SetEventSubscribers(n int) {
	c.eventSubscribers.Set(float64(n))
}

func (c *Collectors) SetLiveInstances(group string, n int) {
	c.liveInstances.WithLabelValues(group).Set(float64(n))
}

func (c *Collectors) IncRestarts(group string) {
	c.restarts.WithLabelValues(group).Inc()
}

func (c *Collectors) IncFastFailTrips(group string) {
	c.fastFailTrips.WithLabelValues(group).Inc()
}

func (c *Collectors) IncHeartbeatFailures(group string) {
	c.heartbeatFailure.WithLabelValues(group).Inc()
}

// Server serves /metrics on a loopback-only listener (addr is expected to
// be a 127.0.0.1/::1 address; ubervisor never exposes metrics off-host).
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// Listen binds addr and prepares the metrics HTTP server, but does not yet
// accept connections (call Serve for that) so callers can log the
// resolved address first.
func Listen(addr string, c *Collectors) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return &Server{
		httpServer: &http.Server{Handler: mux},
		listener:   ln,
	}, nil
}

// Addr returns the resolved listen address (useful when addr was ":0").
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks accepting metrics requests until Shutdown is called.
func (s *Server) Serve() error {
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
