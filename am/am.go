package am

// Config represents the core engine process configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Jobs   JobsConfig   `mapstructure:"jobs"`
	Assets AssetsConfig `mapstructure:"assets"`
}

// ServerConfig configures the replication server listener
type ServerConfig struct {
	Port             int     `mapstructure:"port"`               // Listen port (default: 7777)
	SimTickHz        float64 `mapstructure:"sim_tick_hz"`        // Simulation tick rate (default: 60)
	SnapshotDivisor  int     `mapstructure:"snapshot_divisor"`   // Emit a world snapshot every N sim ticks (default: 3)
	SnapshotRingSize int     `mapstructure:"snapshot_ring_size"` // Per-client baseline history depth (default: 64)
	ShutdownDrainMS  int     `mapstructure:"shutdown_drain_ms"`  // Drain window on graceful shutdown (default: 100)
	LogTheme         string  `mapstructure:"log_theme"`          // Color theme: gruvbox, everforest
}

// Default server listener constants
const (
	DefaultServerPort      = 7777
	DefaultSimTickHz       = 60.0
	DefaultSnapshotDivisor = 3
	DefaultSnapshotRing    = 64
	DefaultShutdownDrainMS = 100
)

// JobsConfig configures the job scheduler (core infrastructure)
type JobsConfig struct {
	Workers               int  `mapstructure:"workers"`                   // Worker goroutines (default: max(1, NumCPU-1))
	StealAttempts         int  `mapstructure:"steal_attempts"`            // Work-steal retries per idle pass (default: workers)
	MaxMainThreadPerDrain int  `mapstructure:"max_main_thread_per_drain"` // 0 = unbounded drain
	WatchMemoryPressure   bool `mapstructure:"watch_memory_pressure"`     // Log a warning if worker count looks too high for available RAM
}

// AssetsConfig configures the asset pipeline
type AssetsConfig struct {
	SearchRoots   []string `mapstructure:"search_roots"`    // Base directories consulted for sibling-file resolution
	WatchForEdits bool     `mapstructure:"watch_for_edits"` // Re-trigger load_async when a loaded source file changes on disk
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
