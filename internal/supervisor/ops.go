// ops.go implements the mutating group operations dispatched from the wire
// commands SPWN, DELE, KILL and UPDT (spec §4.4-§4.5), plus the
// stdout_pipe supplement (SPEC_FULL §4).
//
// Grounded on GandalftheGUI-grove's internal/daemon/project.go, which held
// the same shape of "validate, mutate the registry entry, then reconcile
// live processes against the new desired state" logic for its own
// project/container lifecycle.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kforslund/ubervisor/internal/eventbus"
)

// Spawn registers a new group and fills its initial instances (SPWN, spec
// §4.4). Returns an error if the name is already registered.
func (s *Supervisor) Spawn(g *Group) error {
	if g.Name == "" {
		return fmt.Errorf("group name is required")
	}
	if _, exists := s.groups[g.Name]; exists {
		return fmt.Errorf("group %q already exists", g.Name)
	}
	if g.KillSig == 0 {
		g.KillSig = defaultKillSig
	}
	if g.UID == 0 {
		g.UID = -1
	}
	if g.GID == 0 {
		g.GID = -1
	}
	g.Status = StatusRunning
	g.slots = make([]*Instance, g.Instances)

	s.groups[g.Name] = g
	s.publishStatus(g, eventbus.EventSpawnInProgress)
	s.fillDeficit(g)
	s.publishStatus(g, eventbus.EventRunning)
	s.maybeStartStdoutPipe(g)
	return nil
}

// Delete enters deleting mode for name: every live instance is signaled,
// and the group is actually removed from the registry once the last
// instance is reaped (spec §4.5 "Delete"). Calling Delete on a group with
// no live instances removes it immediately.
func (s *Supervisor) Delete(name string) error {
	g, ok := s.groups[name]
	if !ok {
		return fmt.Errorf("unknown group %q", name)
	}
	g.deleting = true
	for _, inst := range g.slots {
		if inst.Alive() {
			s.signalInstance(g, inst, g.EffectiveKillSig())
		}
	}
	if g.LiveCount() == 0 {
		delete(s.groups, name)
		s.publishStatus(g, eventbus.EventRemoved)
	}
	return nil
}

// Kill signals one instance (index >= 0) or every live instance (index <
// 0) of name with sig, returning the pids signaled (KILL, spec §4.4).
func (s *Supervisor) Kill(name string, index int, sig int) ([]int, error) {
	g, ok := s.groups[name]
	if !ok {
		return nil, fmt.Errorf("unknown group %q", name)
	}
	if sig == 0 {
		sig = g.EffectiveKillSig()
	}

	var signaled []int
	if index < 0 {
		for _, inst := range g.slots {
			if inst.Alive() {
				s.signalInstance(g, inst, sig)
				signaled = append(signaled, inst.PID)
			}
		}
	} else {
		if index >= len(g.slots) || !g.slots[index].Alive() {
			return []int{}, nil
		}
		s.signalInstance(g, g.slots[index], sig)
		signaled = append(signaled, g.slots[index].PID)
	}
	if signaled == nil {
		signaled = []int{}
	}
	return signaled, nil
}

// Update applies a partial reconfiguration to name (UPDT, spec §4.5). Only
// non-nil fields in patch are applied; a nil Instances leaves the instance
// count unchanged.
func (s *Supervisor) Update(name string, patch GroupPatch) error {
	g, ok := s.groups[name]
	if !ok {
		return fmt.Errorf("unknown group %q", name)
	}

	if patch.Args != nil {
		g.Args = patch.Args
	}
	if patch.Dir != nil {
		g.Dir = *patch.Dir
	}
	if patch.Stdout != nil {
		g.Stdout = patch.Stdout
	}
	if patch.Stderr != nil {
		g.Stderr = patch.Stderr
	}
	if patch.KillSig != nil {
		g.KillSig = *patch.KillSig
	}
	if patch.Heartbeat != nil {
		g.Heartbeat = patch.Heartbeat
	}
	if patch.FatalCB != nil {
		g.FatalCB = patch.FatalCB
	}
	if patch.Age != nil {
		g.Age = *patch.Age
	}
	if patch.StdoutPipe != nil {
		g.StdoutPipe = patch.StdoutPipe
	}

	wasBroken := g.Status == StatusBroken
	prevStatus := g.Status
	if patch.Status != nil {
		g.Status = *patch.Status
	}
	if wasBroken && g.Status == StatusRunning {
		// Recovering a BROKEN group resets the fast-fail window (spec
		// §4.6: "a manual UPDT to RUNNING clears the fast-fail count").
		g.fastFailCount = 0
		g.RestartCountWindow = 0
		g.fastFailWindowStart = time.Time{}
	}
	if patch.Status != nil && g.Status != prevStatus {
		switch g.Status {
		case StatusRunning:
			s.publishStatus(g, eventbus.EventRunning)
		case StatusStopped:
			s.publishStatus(g, eventbus.EventStopped)
		}
	}

	if patch.Instances != nil {
		g.Instances = *patch.Instances
		if g.Instances > len(g.slots) {
			s.fillDeficit(g)
		} else if g.Instances < len(g.slots) {
			s.shrinkExcess(g)
		}
	}

	switch g.Status {
	case StatusRunning:
		s.fillDeficit(g)
	case StatusStopped:
		for _, inst := range g.slots {
			if inst.Alive() {
				s.signalInstance(g, inst, g.EffectiveKillSig())
			}
		}
	}

	s.maybeStartStdoutPipe(g)
	s.publishConfig(g)
	return nil
}

// GroupPatch is UPDT's partial-update payload; nil fields are left
// unchanged (spec §4.5 "Update" / SPEC_FULL §2's wire-schema note).
type GroupPatch struct {
	Args       []string
	Dir        *string
	Stdout     *string
	Stderr     *string
	Instances  *int
	Status     *Status
	KillSig    *int
	Heartbeat  *string
	FatalCB    *string
	Age        *int
	StdoutPipe *string
}

// maybeStartStdoutPipe starts g's stdout_pipe child if configured and not
// already running (SPEC_FULL §4 supplement, grounded on the original
// Python client's stdout_pipe start/update parameter).
func (s *Supervisor) maybeStartStdoutPipe(g *Group) {
	if g.StdoutPipe == nil || *g.StdoutPipe == "" || g.stdoutPipeRunning || g.Stdout == nil {
		return
	}
	path := resolvePath(*g.Stdout, 0)
	if g.Dir != "" && !isAbs(path) {
		path = g.Dir + string(os.PathSeparator) + path
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		s.log.WithError(err).WithField("group", g.Name).Warn("stdout_pipe source unavailable")
		return
	}
	defer f.Close()

	cmd := exec.Command("/bin/sh", "-c", *g.StdoutPipe)
	cmd.Stdin = f
	if err := cmd.Start(); err != nil {
		s.log.WithError(err).WithField("group", g.Name).Warn("stdout_pipe failed to start")
		return
	}
	g.stdoutPipeRunning = true
	if s.pipePIDs == nil {
		s.pipePIDs = make(map[int]string)
		s.pipeCmds = make(map[int]*exec.Cmd)
	}
	s.pipePIDs[cmd.Process.Pid] = g.Name
	s.pipeCmds[cmd.Process.Pid] = cmd
}
