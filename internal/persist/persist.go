// Package persist implements C9 (spec §4.9): atomically dumping every
// registered group's configuration to disk, reloading it at startup, and
// optionally pre-registering groups from a bootstrap file before the dump
// is loaded (SPEC_FULL §4 supplement).
//
// Grounded on the teacher's internal/daemon/instance.go persistMeta (JSON
// snapshot to disk, one file per instance) and daemon.go
// loadPersistedInstances (reload-and-reconcile on startup), generalized
// from one-file-per-instance to one dump file holding every group's
// configuration, matching spec §4.9's single DUMP target.
package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/kforslund/ubervisor/internal/supervisor"
)

// Dump writes every group in groups to path, replacing its contents
// atomically via a temp-file-then-rename (spec §4.9: "DUMP never leaves a
// partially-written file on disk even if the process is killed mid-write" —
// the same guarantee the teacher's persistMeta relies on for its own
// per-instance files).
func Dump(path string, groups []*supervisor.Group) error {
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dump: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dump-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp dump file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp dump file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp dump file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dump file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp dump file: %w", err)
	}
	return nil
}

// Load reads the groups a previous Dump wrote to path. A missing file is
// not an error — a fresh server has nothing to reload (spec §5 startup:
// "a missing dump file starts with an empty registry").
func Load(path string) ([]*supervisor.Group, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dump file: %w", err)
	}
	var groups []*supervisor.Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("unmarshal dump file: %w", err)
	}
	return groups, nil
}

// BootstrapGroup is one entry in the optional YAML bootstrap file
// (SPEC_FULL §4 supplement): a human-editable pre-registration list,
// applied before the dump file is reloaded so a fresh deployment doesn't
// need a client to SPWN its groups by hand.
type BootstrapGroup struct {
	Name       string   `yaml:"name"`
	Args       []string `yaml:"args"`
	Dir        string   `yaml:"dir"`
	Stdout     string   `yaml:"stdout"`
	Stderr     string   `yaml:"stderr"`
	Instances  int      `yaml:"instances"`
	KillSig    int      `yaml:"killsig"`
	UID        int      `yaml:"uid"`
	GID        int      `yaml:"gid"`
	Heartbeat  string   `yaml:"heartbeat"`
	FatalCB    string   `yaml:"fatal_cb"`
	Age        int      `yaml:"age"`
	StdoutPipe string   `yaml:"stdout_pipe"`
}

// LoadBootstrap parses path as a YAML list of BootstrapGroup. A missing
// path is not an error, matching the dump file's missing-is-empty
// convention.
func LoadBootstrap(path string) ([]BootstrapGroup, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bootstrap file: %w", err)
	}
	var groups []BootstrapGroup
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("unmarshal bootstrap file: %w", err)
	}
	return groups, nil
}

// ToGroup converts a bootstrap entry into the *supervisor.Group shape
// Supervisor.Spawn expects.
func (b BootstrapGroup) ToGroup() *supervisor.Group {
	g := &supervisor.Group{
		Name:      b.Name,
		Args:      b.Args,
		Dir:       b.Dir,
		Instances: b.Instances,
		KillSig:   b.KillSig,
		UID:       b.UID,
		GID:       b.GID,
		Age:       b.Age,
	}
	if b.Stdout != "" {
		g.Stdout = &b.Stdout
	}
	if b.Stderr != "" {
		g.Stderr = &b.Stderr
	}
	if b.Heartbeat != "" {
		g.Heartbeat = &b.Heartbeat
	}
	if b.FatalCB != "" {
		g.FatalCB = &b.FatalCB
	}
	if b.StdoutPipe != "" {
		g.StdoutPipe = &b.StdoutPipe
	}
	return g
}
