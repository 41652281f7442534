package am

import (
	"runtime"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Replication server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.sim_tick_hz", DefaultSimTickHz)
	v.SetDefault("server.snapshot_divisor", DefaultSnapshotDivisor)
	v.SetDefault("server.snapshot_ring_size", DefaultSnapshotRing)
	v.SetDefault("server.shutdown_drain_ms", DefaultShutdownDrainMS)
	v.SetDefault("server.log_theme", "everforest")

	// Job scheduler defaults
	v.SetDefault("jobs.workers", max(1, runtime.NumCPU()-1))
	v.SetDefault("jobs.steal_attempts", max(1, runtime.NumCPU()-1))
	v.SetDefault("jobs.max_main_thread_per_drain", 0) // unbounded
	v.SetDefault("jobs.watch_memory_pressure", true)

	// Asset pipeline defaults
	v.SetDefault("assets.search_roots", []string{"assets"})
	v.SetDefault("assets.watch_for_edits", false)
}

// BindSensitiveEnvVars explicitly binds configuration values an operator
// is likely to want overridden without touching a config file.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", "GARDEN_SERVER_PORT")
	v.BindEnv("jobs.workers", "GARDEN_JOBS_WORKERS")
}

// GetServerPort returns the configured replication server port.
func GetServerPort() int {
	cfg, err := Load()
	if err != nil {
		return DefaultServerPort
	}
	return cfg.Server.Port
}
