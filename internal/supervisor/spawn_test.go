package supervisor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathSubstitutesIndex(t *testing.T) {
	assert.Equal(t, "/var/log/app.3.log", resolvePath("/var/log/app.%(NUM).log", 3))
	assert.Equal(t, "/var/log/app.log", resolvePath("/var/log/app.log", 3))
}

// fakeSpawner replaces osSpawner in tests so no real fork/exec happens.
type fakeSpawner struct {
	nextPID int
	fail    map[int]bool // index -> force failure
	starts  []int        // indices spawned, in order
}

func (f *fakeSpawner) Spawn(g *Group, index int) (*spawnedProcess, error) {
	f.starts = append(f.starts, index)
	if f.fail[index] {
		return nil, fmt.Errorf("forced failure for index %d", index)
	}
	f.nextPID++
	return &spawnedProcess{PID: f.nextPID, cmd: nil}, nil
}

func newTestSupervisor() (*Supervisor, *fakeSpawner) {
	bus := newNoopBus()
	sp := &fakeSpawner{fail: make(map[int]bool)}
	s := New(bus, testLog(), nil, Policy{FastFailThresholdMillis: 100, FastFailWindowMillis: 10000, FastFailLimit: 3})
	s.spawner = sp
	s.kill = (&recordingKill{}).fn()
	return s, sp
}

func TestFillDeficitSpawnsEveryEmptySlotLowestIndexFirst(t *testing.T) {
	s, sp := newTestSupervisor()
	g := &Group{Name: "web", Args: []string{"/bin/true"}, Instances: 3}
	require.NoError(t, s.Spawn(g))

	assert.Equal(t, []int{0, 1, 2}, sp.starts)
	got, ok := s.Get("web")
	require.True(t, ok)
	assert.Equal(t, 3, got.Instances)

	pids, err := s.PIDs("web")
	require.NoError(t, err)
	assert.Len(t, pids, 3)
}

func TestSpawnRejectsDuplicateName(t *testing.T) {
	s, _ := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1}))
	err := s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 1})
	assert.Error(t, err)
}

func TestShrinkExcessTrimsSlotsToInstanceCount(t *testing.T) {
	s, _ := newTestSupervisor()
	require.NoError(t, s.Spawn(&Group{Name: "web", Args: []string{"/bin/true"}, Instances: 3}))
	g := s.groups["web"]

	g.Instances = 1
	s.shrinkExcess(g)
	assert.Len(t, g.slots, 1)
}
