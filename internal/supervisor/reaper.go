// reaper.go implements C6 (spec §4.6): draining SIGCHLD notifications,
// reaping with WNOHANG in a loop, applying the restart/fast-fail policy,
// and publishing lifecycle events. Heartbeats and age expiry are in
// health.go.
//
// Grounded on other_examples/74daf05c_kornnellio-gosv__supervisor.go.go's
// reapZombies/handleRestarts: a Wait4(-1, &status, WNOHANG) loop driven by
// signal.Notify(syscall.SIGCHLD) rather than a raw C signal handler — the
// Go-idiomatic realization of the spec's self-pipe, since the runtime
// already serializes signal delivery onto a channel outside handler
// context. Adapted from that file's exponential-backoff restart policy to
// the spec's fixed fast-fail-count-within-a-window → BROKEN policy.
package supervisor

import (
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kforslund/ubervisor/internal/eventbus"
)

type pidRef struct {
	group string
	index int
}

// waitResult is one reaped child, abstracted so tests can drive the
// restart/fast-fail policy without a real fork/exec/wait cycle.
type waitResult struct {
	PID      int
	ExitedOK bool
}

// waiter polls for exited children, non-blocking (spec §5: "waitpid is
// always called with WNOHANG").
type waiter interface {
	// Wait returns the next reaped child, or ok=false if none are ready.
	Wait() (res waitResult, ok bool)
}

type unixWaiter struct{}

func (unixWaiter) Wait() (waitResult, bool) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
	if err != nil || pid <= 0 {
		return waitResult{}, false
	}
	return waitResult{PID: pid, ExitedOK: ws.Exited() && ws.ExitStatus() == 0}, true
}

// trackChild registers pid → (group, index) so Reap can find which slot
// exited, and keeps the spawned *exec.Cmd around so its wait-side fds are
// released (avoiding a zombie-of-zombies from os/exec's own bookkeeping).
func (s *Supervisor) trackChild(group string, index int, proc *spawnedProcess) {
	if s.pids == nil {
		s.pids = make(map[int]pidRef)
		s.cmds = make(map[int]*exec.Cmd)
	}
	s.pids[proc.PID] = pidRef{group: group, index: index}
	s.cmds[proc.PID] = proc.cmd
}

// Reap drains every exited child currently reapable (spec §4.6: "the
// reactor drains this pipe and calls waitpid(-1, …, WNOHANG) repeatedly
// until it returns 0"). Call this once per SIGCHLD notification.
func (s *Supervisor) Reap() {
	s.reapWith(s.waiter())
}

func (s *Supervisor) waiter() waiter {
	if s.w != nil {
		return s.w
	}
	return unixWaiter{}
}

func (s *Supervisor) reapWith(w waiter) {
	for {
		res, ok := w.Wait()
		if !ok {
			return
		}
		s.reapOne(res.PID)
	}
}

func (s *Supervisor) reapOne(pid int) {
	if groupName, isPipe := s.pipePIDs[pid]; isPipe {
		delete(s.pipePIDs, pid)
		if cmd, ok := s.pipeCmds[pid]; ok {
			cmd.Wait()
			delete(s.pipeCmds, pid)
		}
		if g, ok := s.groups[groupName]; ok {
			g.stdoutPipeRunning = false
			if !g.deleting {
				s.maybeStartStdoutPipe(g)
			}
		}
		return
	}

	ref, known := s.pids[pid]
	if !known {
		// Reaped pid belongs to a detached helper (fatal_cb) whose exit
		// status we don't track individually.
		return
	}
	delete(s.pids, pid)
	if cmd, ok := s.cmds[pid]; ok {
		if cmd != nil {
			cmd.Wait() // release os/exec's internal bookkeeping; error ignored, we already know it exited
		}
		delete(s.cmds, pid)
	}

	g, ok := s.groups[ref.group]
	if !ok {
		return
	}
	if ref.index >= len(g.slots) {
		return
	}
	inst := g.slots[ref.index]
	if inst == nil || inst.PID != pid {
		return
	}

	s.onInstanceExit(g, ref.index, inst.StartTime)
}

// onInstanceExit applies spec §4.6's restart policy to the slot that just
// became empty.
func (s *Supervisor) onInstanceExit(g *Group, index int, startTime time.Time) {
	wasAlive := g.slots[index].Alive()
	g.slots[index] = nil
	if wasAlive {
		s.publishDelta(g, index, 0, false)
	}
	s.metrics.SetLiveInstances(g.Name, g.LiveCount())

	if g.Status == StatusStopped || g.Status == StatusBroken || g.deleting {
		if g.deleting && g.LiveCount() == 0 {
			delete(s.groups, g.Name)
			s.publishStatus(g, eventbus.EventRemoved)
		}
		return
	}

	elapsed := time.Since(startTime)
	threshold := time.Duration(s.policy.FastFailThresholdMillis) * time.Millisecond
	window := s.policy.FastFailWindowMillis

	if elapsed < threshold {
		now := time.Now()
		if g.restartWindowExpired(now.UnixMilli(), window) {
			g.fastFailWindowStart = now
			g.fastFailCount = 0
		}
		g.fastFailCount++
		g.RestartCountWindow = g.fastFailCount

		if g.fastFailCount >= s.policy.FastFailLimit {
			s.breakGroup(g)
			return
		}
	}

	s.metrics.IncRestarts(g.Name)
	s.spawnOne(g, index)
}

// breakGroup transitions g to BROKEN (spec §4.6: fast-fail limit reached),
// invokes fatal_cb if configured, and publishes the transition.
func (s *Supervisor) breakGroup(g *Group) {
	g.Status = StatusBroken
	s.metrics.IncFastFailTrips(g.Name)
	s.log.WithField("group", g.Name).Warn("group entered BROKEN after repeated fast failures")

	if g.FatalCB != nil && *g.FatalCB != "" {
		cmd := exec.Command(*g.FatalCB, g.Name)
		if err := cmd.Start(); err != nil {
			s.log.WithError(err).WithField("group", g.Name).Warn("fatal_cb failed to start")
		} else {
			go cmd.Wait() // reaped independently; not tracked in s.pids
		}
	}

	s.publishStatus(g, int(g.Status)) // BROKEN has no dedicated event-stream code; GETC.status=3 is authoritative
}

func (s *Supervisor) publishDelta(g *Group, index, pid int, up bool) {
	status := eventbus.EventRunning
	if !up {
		status = eventbus.EventStopped
	}
	s.bus.Publish(eventbus.Event{
		Ident:  eventbus.IdentDelta,
		Group:  g.Name,
		Status: status,
		Index:  index,
		PID:    pid,
	})
}

func (s *Supervisor) publishStatus(g *Group, status int) {
	s.bus.Publish(eventbus.Event{
		Ident:  eventbus.IdentStatus,
		Group:  g.Name,
		Status: status,
	})
}

func (s *Supervisor) publishConfig(g *Group) {
	s.bus.Publish(eventbus.Event{
		Ident:  eventbus.IdentConfigDiff,
		Group:  g.Name,
		Config: g.clone(),
	})
}
