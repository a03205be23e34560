package config

const (
	defaultStorageDriver  = "sqlite"
	defaultSQLitePath     = "~/.local/share/sporelab/sporelab.db"
	defaultBlobDriver     = "fs"
	defaultBlobFSRoot     = "~/.local/share/sporelab/photos"
	defaultURLTTLSeconds  = 3600
	defaultURLMarginSecs  = 30
	defaultSweepMinAgeHrs = 24
	defaultLogFormat      = "text"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Storage: Storage{
			Driver:     defaultStorageDriver,
			SQLitePath: defaultSQLitePath,
		},
		Blob: Blob{
			Driver: defaultBlobDriver,
			FSRoot: defaultBlobFSRoot,
		},
		URLs: URLs{
			TTLSeconds:          defaultURLTTLSeconds,
			SafetyMarginSeconds: defaultURLMarginSecs,
		},
		Sweep: Sweep{
			MinAgeHours: defaultSweepMinAgeHrs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
