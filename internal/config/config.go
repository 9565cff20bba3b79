// Package config loads ubervisor server tunables, generalizing the
// teacher's single --root flag + env var override
// (cmd/groved/main.go: GROVE_ROOT) into the fuller set of knobs the spec
// calls out as configuration choices (spec §9 "Open questions": fast-fail
// threshold/window; spec §4.6/§6: heartbeat tick, log/message caps).
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds every server-side tunable. Zero-value-safe defaults are
// applied by Load so callers never need to special-case an unset field.
type Config struct {
	// SocketPath is the Unix domain socket the server listens on.
	// Default ~/.uber/socket, overridable by UBERVISOR_SOCKET (spec §6).
	SocketPath string

	// DumpPath is where DUMP writes group configuration (spec §4.9).
	DumpPath string

	// BootstrapPath, if non-empty and present, is loaded once at startup
	// to pre-register groups before the dump-file reload (SPEC_FULL §4).
	BootstrapPath string

	// MetricsAddr is the loopback-only address the prometheus debug
	// listener binds, empty disables it.
	MetricsAddr string

	LogLevel string

	// FastFailThreshold: a spawn-to-exit duration below this counts as a
	// fast failure (spec §4.6). Default 1s.
	FastFailThreshold time.Duration
	// FastFailWindow: the rolling window fast failures are counted within.
	FastFailWindow time.Duration
	// FastFailLimit: fast failures within the window before BROKEN. Default 5.
	FastFailLimit int

	// HeartbeatTick: how often configured heartbeats run (spec §4.6). Default 5s.
	HeartbeatTick time.Duration
	// AgeTick: how often instance age is checked (spec §4.6). Default 5s.
	AgeTick time.Duration

	// MaxMessageBytes caps a fully reassembled chunked frame (spec §4.1).
	MaxMessageBytes int
	// MaxLogReadBytes caps a single READ reply (spec §4.8).
	MaxLogReadBytes int
	// WriteQueueLimit: backpressure threshold per client (spec §4.2).
	WriteQueueLimit int
}

// Load builds a Config from environment variables (UBERVISOR_* per spec
// §6) with defaults for everything unset.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UBERVISOR")
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("socket", filepath.Join(home, ".uber", "socket"))
	v.SetDefault("dump_path", filepath.Join(home, ".uber", "dump.json"))
	v.SetDefault("bootstrap", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("fast_fail_threshold_ms", 1000)
	v.SetDefault("fast_fail_window_ms", 10000)
	v.SetDefault("fast_fail_limit", 5)
	v.SetDefault("heartbeat_tick_ms", 5000)
	v.SetDefault("age_tick_ms", 5000)
	v.SetDefault("max_message_bytes", 16<<20)
	v.SetDefault("max_log_read_bytes", 1<<20)
	v.SetDefault("write_queue_limit", 1<<20)

	return Config{
		SocketPath:        v.GetString("socket"),
		DumpPath:          v.GetString("dump_path"),
		BootstrapPath:     v.GetString("bootstrap"),
		MetricsAddr:       v.GetString("metrics_addr"),
		LogLevel:          v.GetString("log_level"),
		FastFailThreshold: time.Duration(v.GetInt("fast_fail_threshold_ms")) * time.Millisecond,
		FastFailWindow:    time.Duration(v.GetInt("fast_fail_window_ms")) * time.Millisecond,
		FastFailLimit:     v.GetInt("fast_fail_limit"),
		HeartbeatTick:     time.Duration(v.GetInt("heartbeat_tick_ms")) * time.Millisecond,
		AgeTick:           time.Duration(v.GetInt("age_tick_ms")) * time.Millisecond,
		MaxMessageBytes:   v.GetInt("max_message_bytes"),
		MaxLogReadBytes:   v.GetInt("max_log_read_bytes"),
		WriteQueueLimit:   v.GetInt("write_queue_limit"),
	}, nil
}
