// ubervisord is the long-running supervisor daemon: it listens on a Unix
// domain socket and reaps/restarts/health-checks the process groups
// registered on it (spec §1-§9).
//
// Usage:
//
//	ubervisord
//
// All tunables are read from the environment (UBERVISOR_*, see
// internal/config); there is no flag surface, matching the teacher's
// GROVE_ROOT-env-var-over-default pattern but generalized to the fuller
// knob set this daemon needs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kforslund/ubervisor/internal/config"
	"github.com/kforslund/ubervisor/internal/eventbus"
	"github.com/kforslund/ubervisor/internal/metrics"
	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/supervisor"
	"github.com/kforslund/ubervisor/internal/ulog"

	"github.com/goccy/go-json"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ubervisord: config: %v\n", err)
		os.Exit(1)
	}

	logger := ulog.New(cfg.LogLevel)
	log := ulog.For(logger, "ubervisord")

	var m *metrics.Collectors
	var metricsSrv *metrics.Server
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		metricsSrv, err = metrics.Listen(cfg.MetricsAddr, m)
		if err != nil {
			log.WithError(err).Fatal("metrics listen failed")
		}
		go func() {
			if err := metricsSrv.Serve(); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
		log.WithField("addr", metricsSrv.Addr()).Info("metrics listening")
	}

	bus := eventbus.New(func(e eventbus.Event) ([]byte, error) {
		return json.Marshal(e)
	})

	policy := supervisor.Policy{
		FastFailThresholdMillis: cfg.FastFailThreshold.Milliseconds(),
		FastFailWindowMillis:    cfg.FastFailWindow.Milliseconds(),
		FastFailLimit:           cfg.FastFailLimit,
	}

	var sm supervisor.Metrics
	var em server.EventMetrics
	if m != nil {
		sm = m
		em = m
	}
	sup := supervisor.New(bus, ulog.For(logger, "supervisor"), sm, policy)

	srv := server.New(cfg, ulog.For(logger, "server"), sup, bus, em)
	if err := srv.Listen(); err != nil {
		log.WithError(err).Fatal("listen failed")
	}
	log.WithField("socket", cfg.SocketPath).Info("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("shutting down")
		srv.Shutdown()
		if metricsSrv != nil {
			metricsSrv.Shutdown(context.Background())
		}
	}()

	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("run failed")
	}
}
