package types

// HarvestConf controls candidate harvesting and health testing.
type HarvestConf struct {
	Country        string `ini:"country"`         // two-letter filter, "ALL" disables
	MaxPerSource   int    `ini:"max_per_source"`  // cap on candidates taken from one source
	TimeoutSeconds int    `ini:"timeout_seconds"` // per-probe timeout
	Workers        int    `ini:"workers"`         // concurrent probe workers
	PoolSize       int    `ini:"pool_size"`       // top-N records kept after ranking
}

// PoolConf controls rotation state and persistence.
type PoolConf struct {
	DataDir        string `ini:"data_dir"`
	FreshnessHours int    `ini:"freshness_hours"` // snapshots older than this trigger re-harvest
	MaxFailures    int    `ini:"max_failures"`    // consecutive failures before direct fallback
	AllowDirect    bool   `ini:"allow_direct"`
}

// DetectorConf controls defense detection and retry behavior.
type DetectorConf struct {
	MaxRetries   int    `ini:"max_retries"`
	TargetDomain string `ini:"target_domain"` // navigations outside this domain are off-target
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config is the unified behavior configuration for the whole application.
type Config struct {
	HarvestConf  `ini:"harvest"`
	PoolConf     `ini:"pool"`
	DetectorConf `ini:"detector"`
	LogConf      `ini:"log"`
}
