package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforslund/ubervisor/internal/supervisor"
)

func TestDumpThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	stdout := "/var/log/web.%(NUM).log"
	groups := []*supervisor.Group{
		{Name: "web", Args: []string{"/bin/serve"}, Instances: 2, Stdout: &stdout},
	}

	require.NoError(t, Dump(path, groups))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "web", loaded[0].Name)
	assert.Equal(t, []string{"/bin/serve"}, loaded[0].Args)
	assert.Equal(t, 2, loaded[0].Instances)
	require.NotNil(t, loaded[0].Stdout)
	assert.Equal(t, stdout, *loaded[0].Stdout)
}

func TestDumpLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.json")
	require.NoError(t, Dump(path, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dump.json", entries[0].Name())
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	groups, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, groups)
}

func TestLoadBootstrapMissingPathReturnsEmpty(t *testing.T) {
	groups, err := LoadBootstrap("")
	require.NoError(t, err)
	assert.Nil(t, groups)

	groups, err = LoadBootstrap(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Nil(t, groups)
}

func TestLoadBootstrapParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.yaml")
	content := `
- name: web
  args: ["/bin/serve", "--port=8080"]
  instances: 2
  stdout: /var/log/web.%(NUM).log
  killsig: 15
- name: worker
  args: ["/bin/work"]
  instances: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	groups, err := LoadBootstrap(path)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "web", groups[0].Name)
	assert.Equal(t, []string{"/bin/serve", "--port=8080"}, groups[0].Args)
	assert.Equal(t, 2, groups[0].Instances)

	g := groups[0].ToGroup()
	require.NotNil(t, g.Stdout)
	assert.Equal(t, "/var/log/web.%(NUM).log", *g.Stdout)
	assert.Nil(t, g.Heartbeat)
}
