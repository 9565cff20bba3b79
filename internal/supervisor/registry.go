package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/kforslund/ubervisor/internal/eventbus"
)

// Metrics is the narrow interface internal/metrics satisfies; kept here so
// supervisor has no import dependency on the concrete prometheus types.
type Metrics interface {
	SetLiveInstances(group string, n int)
	IncRestarts(group string)
	IncFastFailTrips(group string)
	IncHeartbeatFailures(group string)
}

type noopMetrics struct{}

func (noopMetrics) SetLiveInstances(string, int) {}
func (noopMetrics) IncRestarts(string)            {}
func (noopMetrics) IncFastFailTrips(string)       {}
func (noopMetrics) IncHeartbeatFailures(string)   {}

// Policy carries the fast-fail tunables from internal/config,
// kept as a small struct so tests can construct tight timings (spec §9:
// "Fast-fail threshold and window are configuration choices").
type Policy struct {
	FastFailThresholdMillis int64
	FastFailWindowMillis    int64
	FastFailLimit           int
}

// Supervisor owns the group registry (C4) and implements spawn/kill/
// delete/update (C5) and the reap/restart/health policy (C6). It is driven
// exclusively by the reactor goroutine in internal/server (spec §5); none
// of its state is mutex-protected.
type Supervisor struct {
	groups  map[string]*Group
	bus     *eventbus.Bus
	log     *logrus.Entry
	metrics Metrics
	policy  Policy

	// spawner is overridable for tests.
	spawner processSpawner
	// w is overridable for tests; nil means unixWaiter{} (the real Wait4 loop).
	w waiter
	// kill is overridable for tests; nil means realKill (syscall.Kill).
	kill killFunc

	// pids maps a live child pid to the (group, index) slot it occupies,
	// populated by trackChild and drained by reapOne.
	pids map[int]pidRef
	// cmds keeps each tracked child's *exec.Cmd around so Wait can be
	// called on it once WNOHANG confirms it exited.
	cmds map[int]*exec.Cmd

	// pipePIDs/pipeCmds track stdout_pipe helper processes (SPEC_FULL §4),
	// reaped and restarted through the same Reap loop as instances but
	// kept out of the pids/cmds maps since they aren't instance slots.
	pipePIDs map[int]string
	pipeCmds map[int]*exec.Cmd
}

// New creates an empty supervisor.
func New(bus *eventbus.Bus, log *logrus.Entry, metrics Metrics, policy Policy) *Supervisor {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Supervisor{
		groups:  make(map[string]*Group),
		bus:     bus,
		log:     log,
		metrics: metrics,
		policy:  policy,
		spawner: osSpawner{},
	}
}

// Names returns the registered group names (spec §4.4's LIST, order
// unspecified — spec §8 says "tests sort before comparing").
func (s *Supervisor) Names() []string {
	names := make([]string, 0, len(s.groups))
	for n := range s.groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a defensive copy of the named group's configuration (GETC,
// spec §4.4), with no live pid information (spec §4.4: "sensitive/internal
// fields stripped (no live pids)").
func (s *Supervisor) Get(name string) (*Group, bool) {
	g, ok := s.groups[name]
	if !ok {
		return nil, false
	}
	return g.clone(), true
}

// All returns a defensive copy of every registered group's configuration,
// in the same order as Names (used by DUMP, spec §4.9).
func (s *Supervisor) All() []*Group {
	names := s.Names()
	out := make([]*Group, 0, len(names))
	for _, n := range names {
		out = append(out, s.groups[n].clone())
	}
	return out
}

// PIDs returns the currently-live pids for name (spec §4.4/§8 PIDS).
func (s *Supervisor) PIDs(name string) ([]int, error) {
	g, ok := s.groups[name]
	if !ok {
		return nil, fmt.Errorf("unknown group %q", name)
	}
	pids := g.LivePIDs()
	if pids == nil {
		pids = []int{}
	}
	return pids, nil
}

// LogPath returns the resolved stdout/stderr path for one instance index,
// by substituting the index into the group's path template the same way
// spawning does (spec §4.5 "Path templating", §4.8 READ). This works even
// for an instance that is not currently alive, since the template is a
// property of the group's configuration, not of any one live process.
func (s *Supervisor) LogPath(name string, index int, stream string) (string, error) {
	g, ok := s.groups[name]
	if !ok {
		return "", fmt.Errorf("unknown group %q", name)
	}
	var tmpl *string
	switch stream {
	case "stdout":
		tmpl = g.Stdout
	case "stderr":
		tmpl = g.Stderr
	default:
		return "", fmt.Errorf("unknown stream %q", stream)
	}
	if tmpl == nil {
		return "", fmt.Errorf("group %q has no %s redirection configured", name, stream)
	}
	path := resolvePath(*tmpl, index)
	if g.Dir != "" && !isAbs(path) {
		path = g.Dir + string(os.PathSeparator) + path
	}
	return path, nil
}

// restartWindowExpired reports whether enough time has passed that g's
// fast-fail counter should reset (a fresh window, spec §4.6).
func (g *Group) restartWindowExpired(now, window int64) bool {
	if g.fastFailWindowStart.IsZero() {
		return true
	}
	return now-g.fastFailWindowStart.UnixMilli() > window
}
