// health.go implements the two periodic ticks the reactor drives into the
// supervisor: heartbeats (observational health checks) and age expiry
// (spec §4.6 "Heartbeats" and §4.5 "age").
package supervisor

import (
	"os/exec"
	"strconv"
	"time"
)

// HeartbeatTick runs every configured group's heartbeat command, if any,
// against each live instance. Per spec §9, a heartbeat's exit status is
// observational only — it is logged and counted in metrics but never
// triggers a restart or a BROKEN transition on its own.
func (s *Supervisor) HeartbeatTick() {
	for _, g := range s.groups {
		if g.Heartbeat == nil || *g.Heartbeat == "" {
			continue
		}
		for _, inst := range g.slots {
			if !inst.Alive() {
				continue
			}
			s.runHeartbeat(g, inst)
		}
	}
}

func (s *Supervisor) runHeartbeat(g *Group, inst *Instance) {
	cmd := exec.Command(*g.Heartbeat, strconv.Itoa(inst.PID))
	if err := cmd.Run(); err != nil {
		s.metrics.IncHeartbeatFailures(g.Name)
		s.log.WithError(err).WithFields(map[string]interface{}{
			"group": g.Name, "pid": inst.PID,
		}).Debug("heartbeat reported unhealthy")
	}
}

// AgeTick kills any instance older than its group's configured age (spec
// §4.5: "age, if > 0, is the maximum lifetime in seconds before the
// instance is killed and allowed to restart normally"). The kill is a
// plain signal; the usual reap/restart path brings the instance back.
func (s *Supervisor) AgeTick(now time.Time) {
	for _, g := range s.groups {
		if g.Age <= 0 {
			continue
		}
		maxAge := time.Duration(g.Age) * time.Second
		for _, inst := range g.slots {
			if inst.Alive() && now.Sub(inst.StartTime) >= maxAge {
				s.signalInstance(g, inst, g.EffectiveKillSig())
			}
		}
	}
}
