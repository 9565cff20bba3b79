// Package supervisor implements the authoritative group registry (C4), the
// per-instance spawn/kill/delete/update logic (C5), and the SIGCHLD
// reap/restart/health policy (C6) described in spec §3, §4.4-§4.6.
//
// Every exported method on *Supervisor is meant to be called from exactly
// one goroutine — the reactor in internal/server — so none of its state is
// protected by a mutex (spec §5: "no mutex discipline because there is no
// sharing").
package supervisor

import "time"

// Status mirrors the group status codes in spec §3.
type Status int

const (
	StatusRunning Status = 1
	StatusStopped Status = 2
	StatusBroken  Status = 3
)

// defaultKillSig is SIGTERM, the spec §3 default for killsig.
const defaultKillSig = 15

// Group is one named process group (spec §3). JSON tags match the wire
// shape used by SPWN/UPDT/GETC (spec §6); pointer fields are optional and
// encoded as null when unset (StdoutPipe is omitted), matching the spec's "absent/null" GETC
// contract (spec §8's testable property on GETC defaults).
type Group struct {
	Name      string   `json:"name"`
	Args      []string `json:"args"`
	Dir       string   `json:"dir,omitempty"`
	Stdout    *string  `json:"stdout"`
	Stderr    *string  `json:"stderr"`
	Instances int      `json:"instances"`
	Status    Status   `json:"status"`
	KillSig   int      `json:"killsig"`
	UID       int      `json:"uid"`
	GID       int      `json:"gid"`
	Heartbeat *string  `json:"heartbeat"`
	FatalCB   *string  `json:"fatal_cb"`
	Age       int      `json:"age"`

	// StdoutPipe is the SPEC_FULL §4 supplement: a command whose stdin is
	// the group's instance-0 stdout log file, opened for reading.
	StdoutPipe *string `json:"stdout_pipe,omitempty"`

	// RestartCountWindow surfaces the fast-fail rolling counter read-only
	// over GETC, per SPEC_FULL §4's "fast-fail test visibility" supplement.
	RestartCountWindow int `json:"restart_count_window"`

	// deleting is true from the moment DELE is accepted until the last
	// instance is reaped, at which point the group is actually removed
	// from the registry (spec §4.5 "Delete").
	deleting bool

	// slots holds one slot per configured instance index, nil when
	// the slot is empty (spec §3 Instance lifecycle).
	slots []*Instance

	// fastFailWindowStart anchors the rolling fast-fail window (spec §4.6).
	fastFailWindowStart time.Time
	// fastFailCount is the rolling count within the current window.
	fastFailCount int

	// stdoutPipeRunning reports whether the stdout_pipe child process is running.
	stdoutPipeRunning bool
}

// Instance is one live (or just-exited) child belonging to a Group (spec §3).
type Instance struct {
	Index       int
	PID         int
	StartTime   time.Time
	StdoutPath  string
	StderrPath  string
	SpawnFailed bool
}

// Alive reports whether this instance slot currently has a live pid.
func (i *Instance) Alive() bool {
	return i != nil && i.PID > 0
}

// EffectiveKillSig returns g.KillSig, defaulting to SIGTERM (spec §3).
func (g *Group) EffectiveKillSig() int {
	if g.KillSig == 0 {
		return defaultKillSig
	}
	return g.KillSig
}

// LivePIDs returns the pids of every currently-alive instance, in index
// order, matching the spec §8 property "PIDS(G) returns exactly the
// currently-live pids of G."
func (g *Group) LivePIDs() []int {
	var pids []int
	for _, inst := range g.slots {
		if inst.Alive() {
			pids = append(pids, inst.PID)
		}
	}
	return pids
}

// LiveCount returns the number of instance slots with a live pid.
func (g *Group) LiveCount() int {
	n := 0
	for _, inst := range g.slots {
		if inst.Alive() {
			n++
		}
	}
	return n
}

// Deleting reports whether DELE has been accepted for this group and it is
// waiting for its instances to be reaped (spec §4.5).
func (g *Group) Deleting() bool {
	return g.deleting
}

// clone returns a defensive deep copy suitable for handing to GETC/events,
// so callers can never mutate the registry's authoritative record.
func (g *Group) clone() *Group {
	cp := *g
	cp.Args = append([]string(nil), g.Args...)
	cp.slots = nil
	if g.Stdout != nil {
		v := *g.Stdout
		cp.Stdout = &v
	}
	if g.Stderr != nil {
		v := *g.Stderr
		cp.Stderr = &v
	}
	if g.Heartbeat != nil {
		v := *g.Heartbeat
		cp.Heartbeat = &v
	}
	if g.FatalCB != nil {
		v := *g.FatalCB
		cp.FatalCB = &v
	}
	if g.StdoutPipe != nil {
		v := *g.StdoutPipe
		cp.StdoutPipe = &v
	}
	return &cp
}
