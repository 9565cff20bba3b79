// Package server implements C2 (connection manager), C3 (command
// dispatch) and the single-threaded reactor described in spec §5: one
// goroutine owns every mutable structure (the group registry and the
// event bus); every other goroutine here only does I/O and forwards what
// it reads onto a channel the reactor selects on.
//
// Grounded on the teacher's internal/daemon/daemon.go (Run's accept loop,
// handleConn's per-request dispatch switch, respond's write-then-return
// shape), restructured from "goroutine per connection mutates a
// mutex-guarded map" to "goroutine per connection only forwards to the
// reactor," which is what spec §5 asks for and what lets the rest of this
// module drop every mutex the teacher needed.
package server

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/kforslund/ubervisor/internal/config"
	"github.com/kforslund/ubervisor/internal/eventbus"
	"github.com/kforslund/ubervisor/internal/persist"
	"github.com/kforslund/ubervisor/internal/supervisor"
	"github.com/kforslund/ubervisor/internal/wire"
)

// EventMetrics is the narrow interface internal/metrics satisfies for
// reporting the event bus's fan-out depth; kept here so server has no
// hard dependency on the concrete prometheus types.
type EventMetrics interface {
	SetEventSubscribers(n int)
}

type noopEventMetrics struct{}

func (noopEventMetrics) SetEventSubscribers(int) {}

// Server owns the listener and drives the reactor loop.
type Server struct {
	cfg     config.Config
	log     *logrus.Entry
	sup     *supervisor.Supervisor
	bus     *eventbus.Bus
	metrics EventMetrics

	listener net.Listener

	inbound  chan inboundCmd
	connDone chan *conn
	sigchld  chan os.Signal
	quit     chan struct{}

	connsMu sync.Mutex // guards only the accounting below, never supervisor/bus state
	conns   map[*conn]struct{}
}

type inboundCmd struct {
	c    *conn
	cid  uint16
	tag  string
	body []byte
}

// New builds a Server. The listener is created by Listen, kept separate so
// callers can log the resolved socket path between the two. metrics may be
// nil, in which case event-subscriber counts are simply not reported.
func New(cfg config.Config, log *logrus.Entry, sup *supervisor.Supervisor, bus *eventbus.Bus, metrics EventMetrics) *Server {
	if metrics == nil {
		metrics = noopEventMetrics{}
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		sup:      sup,
		bus:      bus,
		metrics:  metrics,
		inbound:  make(chan inboundCmd, 64),
		connDone: make(chan *conn, 16),
		sigchld:  make(chan os.Signal, 16),
		quit:     make(chan struct{}),
		conns:    make(map[*conn]struct{}),
	}
}

// Listen binds the Unix domain socket at cfg.SocketPath, clearing a stale
// socket left behind by a previous (now-dead) server instance first (spec
// §5: "on startup, try connecting to any existing socket; if nothing
// answers, unlink it and bind fresh; if something does answer, refuse to
// start").
func (s *Server) Listen() error {
	if err := s.clearStaleSocket(); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.SocketPath, err)
	}
	s.listener = ln
	return nil
}

func (s *Server) clearStaleSocket() error {
	_, err := os.Stat(s.cfg.SocketPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if probe, dialErr := net.DialTimeout("unix", s.cfg.SocketPath, 200*time.Millisecond); dialErr == nil {
		probe.Close()
		return fmt.Errorf("another ubervisord is already listening on %s", s.cfg.SocketPath)
	}
	return os.Remove(s.cfg.SocketPath)
}

// Run accepts connections and drives the reactor until Shutdown is
// called. It blocks until the listener and every background goroutine it
// started have stopped.
func (s *Server) Run() error {
	signal.Notify(s.sigchld, syscall.SIGCHLD)
	defer signal.Stop(s.sigchld)

	s.loadPersisted()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.acceptLoop()
	}()

	s.reactorLoop()
	wg.Wait()
	return nil
}

func (s *Server) loadPersisted() {
	bootstraps, err := persist.LoadBootstrap(s.cfg.BootstrapPath)
	if err != nil {
		s.log.WithError(err).Warn("bootstrap file could not be read")
	}
	for _, b := range bootstraps {
		if err := s.sup.Spawn(b.ToGroup()); err != nil {
			s.log.WithError(err).WithField("group", b.Name).Warn("bootstrap group rejected")
		}
	}

	groups, err := persist.Load(s.cfg.DumpPath)
	if err != nil {
		s.log.WithError(err).Warn("dump file could not be read")
		return
	}
	for _, g := range groups {
		if _, exists := s.sup.Get(g.Name); exists {
			continue // bootstrap already registered this name
		}
		if err := s.sup.Spawn(g); err != nil {
			s.log.WithError(err).WithField("group", g.Name).Warn("persisted group rejected on reload")
		}
	}
}

func (s *Server) acceptLoop() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.log.WithError(err).Warn("accept failed")
				return
			}
		}
		c := newConn(nc, s.cfg.MaxMessageBytes, s.cfg.WriteQueueLimit)
		s.connsMu.Lock()
		s.conns[c] = struct{}{}
		s.connsMu.Unlock()
		go s.serveConn(c)
	}
}

// serveConn reads framed commands off c and forwards each to the reactor.
// It never touches supervisor/bus state directly (spec §5).
func (s *Server) serveConn(c *conn) {
	defer func() {
		c.close()
		s.connDone <- c
	}()

	if err := s.handleHandshake(c); err != nil {
		return
	}

	for {
		f, err := c.codec.ReadFrame()
		if err != nil {
			return
		}
		tag, body, err := wire.SplitCommand(f.Payload)
		if err != nil {
			continue
		}
		select {
		case s.inbound <- inboundCmd{c: c, cid: f.CID, tag: tag, body: body}:
		case <-s.quit:
			return
		}
	}
}

// handleHandshake consumes the connection's first frame, which must be a
// HELO command, and answers with the legacy unframed 4-byte reply quirk
// (spec §4.2/§9) before the normal framed loop for this connection begins.
func (s *Server) handleHandshake(c *conn) error {
	f, err := c.codec.ReadFrame()
	if err != nil {
		return err
	}
	tag, _, err := wire.SplitCommand(f.Payload)
	if err != nil || tag != wire.TagHelo {
		return fmt.Errorf("expected HELO, got %q", tag)
	}
	return wire.WriteRawHELO(c.nc)
}

// reactorLoop is the single goroutine that owns the supervisor and the
// event bus (spec §5). Nothing else in this package mutates either.
func (s *Server) reactorLoop() {
	heartbeatTicker := time.NewTicker(s.cfg.HeartbeatTick)
	ageTicker := time.NewTicker(s.cfg.AgeTick)
	defer heartbeatTicker.Stop()
	defer ageTicker.Stop()

	for {
		select {
		case cmd := <-s.inbound:
			s.dispatch(cmd)

		case c := <-s.connDone:
			s.bus.UnsubscribeSink(c)
			s.metrics.SetEventSubscribers(s.bus.Count())
			s.connsMu.Lock()
			delete(s.conns, c)
			s.connsMu.Unlock()

		case <-s.sigchld:
			s.sup.Reap()

		case <-heartbeatTicker.C:
			s.sup.HeartbeatTick()

		case t := <-ageTicker.C:
			s.sup.AgeTick(t)

		case <-s.quit:
			s.shutdownConns()
			return
		}
	}
}

func (s *Server) shutdownConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for c := range s.conns {
		c.close()
	}
}

// Shutdown stops the accept loop and the reactor, and unlinks the socket
// (spec §5 graceful shutdown: EXIT command or SIGTERM/SIGHUP).
func (s *Server) Shutdown() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.cfg.SocketPath)
}

func encodeReply(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(fail("internal: reply encoding failed"))
	}
	return b
}
