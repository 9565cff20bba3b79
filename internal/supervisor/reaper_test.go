package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWaiter replays a fixed queue of exits, one per Wait() call.
type fakeWaiter struct {
	queue []waitResult
}

func (w *fakeWaiter) Wait() (waitResult, bool) {
	if len(w.queue) == 0 {
		return waitResult{}, false
	}
	res := w.queue[0]
	w.queue = w.queue[1:]
	return res, true
}

func TestReapRestartsAfterASlowExit(t *testing.T) {
	s, sp := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))
	g := s.groups["web"]
	g.slots[0].StartTime = time.Now().Add(-time.Hour) // well past the fast-fail threshold

	pid := g.slots[0].PID
	s.reapWith(&fakeWaiter{queue: []waitResult{{PID: pid, ExitedOK: true}}})

	assert.NotEqual(t, pid, g.slots[0].PID, "instance should have been respawned with a new pid")
	assert.Equal(t, StatusRunning, g.Status)
	assert.Equal(t, 0, g.fastFailCount)
	assert.GreaterOrEqual(t, len(sp.starts), 2)
}

func TestFastFailTripsBrokenAfterLimit(t *testing.T) {
	s, _ := newTestSupervisor()
	s.policy.FastFailLimit = 2
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))
	g := s.groups["web"]

	for i := 0; i < 2; i++ {
		pid := g.slots[0].PID
		s.reapWith(&fakeWaiter{queue: []waitResult{{PID: pid, ExitedOK: false}}})
	}

	assert.Equal(t, StatusBroken, g.Status)
}

func TestFastFailWindowResetsAfterExpiry(t *testing.T) {
	s, _ := newTestSupervisor()
	s.policy.FastFailWindowMillis = 1 // expires almost immediately
	s.policy.FastFailLimit = 5
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))
	g := s.groups["web"]

	pid := g.slots[0].PID
	s.reapWith(&fakeWaiter{queue: []waitResult{{PID: pid, ExitedOK: false}}})
	assert.Equal(t, 1, g.fastFailCount)

	time.Sleep(5 * time.Millisecond)
	pid = g.slots[0].PID
	s.reapWith(&fakeWaiter{queue: []waitResult{{PID: pid, ExitedOK: false}}})
	assert.Equal(t, 1, g.fastFailCount, "window should have reset, not accumulated")
}

func TestUnknownPidIsIgnored(t *testing.T) {
	s, _ := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))
	assert.NotPanics(t, func() {
		s.reapWith(&fakeWaiter{queue: []waitResult{{PID: 999999, ExitedOK: true}}})
	})
}

func TestDeletedGroupIsRemovedOnceLastInstanceReaped(t *testing.T) {
	s, _ := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))
	pid := s.groups["web"].slots[0].PID

	require.NoError(t, s.Delete("web"))
	_, stillThere := s.groups["web"]
	assert.True(t, stillThere, "group stays registered until its last instance is reaped")

	s.reapWith(&fakeWaiter{queue: []waitResult{{PID: pid, ExitedOK: true}}})
	_, stillThere = s.groups["web"]
	assert.False(t, stillThere)
}

func TestAgeTickKillsOverAgeInstances(t *testing.T) {
	s, _ := newTestSupervisor()
	rk := &recordingKill{}
	s.kill = rk.fn()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1, Age: 1}))
	g := s.groups["web"]
	g.slots[0].StartTime = time.Now().Add(-2 * time.Second)

	s.AgeTick(time.Now())
	require.Len(t, rk.calls, 1)
	assert.Equal(t, g.slots[0].PID, rk.calls[0].pid)
}

func TestHeartbeatTickIsObservationalOnly(t *testing.T) {
	s, _ := newTestSupervisor()
	fail := "/bin/false"
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1, Heartbeat: &fail}))
	g := s.groups["web"]
	pidBefore := g.slots[0].PID

	s.HeartbeatTick()

	assert.Equal(t, StatusRunning, g.Status, "a failing heartbeat must never change group status")
	assert.Equal(t, pidBefore, g.slots[0].PID, "a failing heartbeat must never restart the instance")
}
