package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillSignalsAllLiveInstancesByDefault(t *testing.T) {
	s, _ := newTestSupervisor()
	rk := &recordingKill{}
	s.kill = rk.fn()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 3}))

	signaled, err := s.Kill("web", -1, 0)
	require.NoError(t, err)
	assert.Len(t, signaled, 3)
	assert.Len(t, rk.calls, 3)
}

func TestKillSignalsSingleInstance(t *testing.T) {
	s, _ := newTestSupervisor()
	rk := &recordingKill{}
	s.kill = rk.fn()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 3}))

	signaled, err := s.Kill("web", 1, 9)
	require.NoError(t, err)
	require.Len(t, signaled, 1)
	assert.Len(t, rk.calls, 1)
	assert.Equal(t, 9, int(rk.calls[0].sig))
}

func TestKillUnknownGroupErrors(t *testing.T) {
	s, _ := newTestSupervisor()
	_, err := s.Kill("ghost", -1, 0)
	assert.Error(t, err)
}

func TestDeleteWithNoLiveInstancesRemovesImmediately(t *testing.T) {
	s, _ := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 0}))
	require.NoError(t, s.Delete("web"))
	_, ok := s.groups["web"]
	assert.False(t, ok)
}

func TestUpdateInstancesUpSpawnsNewSlots(t *testing.T) {
	s, sp := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))

	three := 3
	require.NoError(t, s.Update("web", GroupPatch{Instances: &three}))

	g := s.groups["web"]
	assert.Equal(t, 3, g.Instances)
	assert.Len(t, g.slots, 3)
	assert.Equal(t, []int{0, 1, 2}, sp.starts) // index 0 spawned at create, then 1 and 2 on scale-up
}

func TestUpdateInstancesDownKillsHighestIndexed(t *testing.T) {
	s, _ := newTestSupervisor()
	rk := &recordingKill{}
	s.kill = rk.fn()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 3}))

	one := 1
	require.NoError(t, s.Update("web", GroupPatch{Instances: &one}))

	g := s.groups["web"]
	assert.Len(t, g.slots, 1)
	assert.Len(t, rk.calls, 2)
}

func TestUpdateStatusStoppedSignalsLiveInstances(t *testing.T) {
	s, _ := newTestSupervisor()
	rk := &recordingKill{}
	s.kill = rk.fn()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))

	stopped := StatusStopped
	require.NoError(t, s.Update("web", GroupPatch{Status: &stopped}))
	assert.Equal(t, StatusStopped, s.groups["web"].Status)
	assert.Len(t, rk.calls, 1)
}

func TestUpdateRecoveringFromBrokenResetsFastFailCounter(t *testing.T) {
	s, _ := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))
	g := s.groups["web"]
	g.Status = StatusBroken
	g.fastFailCount = 7
	g.RestartCountWindow = 7

	running := StatusRunning
	require.NoError(t, s.Update("web", GroupPatch{Status: &running}))

	assert.Equal(t, 0, g.fastFailCount)
	assert.Equal(t, 0, g.RestartCountWindow)
}

func TestUpdateUnknownGroupErrors(t *testing.T) {
	s, _ := newTestSupervisor()
	err := s.Update("ghost", GroupPatch{})
	assert.Error(t, err)
}
