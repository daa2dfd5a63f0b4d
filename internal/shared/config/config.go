package config

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"listingminer/internal/shared/types"
)

// LoadIni loads the behavior configuration file and applies defaults
// for anything the file leaves unset.
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnvInt(&cfg.HarvestConf.Workers, "HARVEST_WORKERS")
	overrideFromEnvInt(&cfg.HarvestConf.TimeoutSeconds, "HARVEST_TIMEOUT_SECONDS")
	ApplyDefaults(cfg)
	return nil
}

// ApplyDefaults fills zero-valued fields with the standard defaults.
func ApplyDefaults(cfg *types.Config) {
	if cfg.HarvestConf.Country == "" {
		cfg.HarvestConf.Country = "US"
	}
	if cfg.HarvestConf.MaxPerSource <= 0 {
		cfg.HarvestConf.MaxPerSource = 300
	}
	if cfg.HarvestConf.TimeoutSeconds <= 0 {
		cfg.HarvestConf.TimeoutSeconds = 5
	}
	if cfg.HarvestConf.Workers <= 0 {
		cfg.HarvestConf.Workers = 20
	}
	if cfg.HarvestConf.PoolSize <= 0 {
		cfg.HarvestConf.PoolSize = 25
	}
	if cfg.PoolConf.DataDir == "" {
		cfg.PoolConf.DataDir = "data"
	}
	if cfg.PoolConf.FreshnessHours <= 0 {
		cfg.PoolConf.FreshnessHours = 24
	}
	if cfg.PoolConf.MaxFailures <= 0 {
		cfg.PoolConf.MaxFailures = 3
	}
	if cfg.DetectorConf.MaxRetries <= 0 {
		cfg.DetectorConf.MaxRetries = 3
	}
	if cfg.LogConf.Level == "" {
		cfg.LogConf.Level = "info"
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
