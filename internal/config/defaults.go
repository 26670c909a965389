package config

import "github.com/hargabyte/jacograph/internal/classify"

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendDolt     = "dolt"
	BackendPostgres = "postgres"
)

// ValidBackends lists the valid values for storage.backend
var ValidBackends = []string{BackendSQLite, BackendDolt, BackendPostgres}

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	filename := classify.DefaultFilename
	dirname := classify.DefaultDirname
	return &Config{
		Jacoco: JacocoConfig{
			Filename: &filename,
			Dirname:  &dirname,
		},
		Scan: ScanConfig{
			Exclude: []string{
				"node_modules/**",
				"vendor/**",
				"src/**",
			},
			Workers:        4,
			MaxReportBytes: 256 << 20,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}

	result.Jacoco = mergeJacocoConfig(loaded.Jacoco, defaults.Jacoco)
	result.Scan = mergeScanConfig(loaded.Scan, defaults.Scan)
	result.Storage = mergeStorageConfig(loaded.Storage, defaults.Storage)

	// Remote sources have no defaults
	result.Source = loaded.Source

	return result
}

func mergeJacocoConfig(loaded, defaults JacocoConfig) JacocoConfig {
	result := JacocoConfig{}

	// Filename: an explicit value, even "", wins
	if loaded.Filename != nil {
		result.Filename = loaded.Filename
	} else {
		result.Filename = defaults.Filename
	}

	if loaded.Dirname != nil {
		result.Dirname = loaded.Dirname
	} else {
		result.Dirname = defaults.Dirname
	}

	return result
}

func mergeScanConfig(loaded, defaults ScanConfig) ScanConfig {
	result := ScanConfig{}

	// Use loaded exclude patterns if provided, otherwise defaults
	if len(loaded.Exclude) > 0 {
		result.Exclude = loaded.Exclude
	} else {
		result.Exclude = defaults.Exclude
	}

	if loaded.Workers != 0 {
		result.Workers = loaded.Workers
	} else {
		result.Workers = defaults.Workers
	}

	if loaded.MaxReportBytes != 0 {
		result.MaxReportBytes = loaded.MaxReportBytes
	} else {
		result.MaxReportBytes = defaults.MaxReportBytes
	}

	return result
}

func mergeStorageConfig(loaded, defaults StorageConfig) StorageConfig {
	result := StorageConfig{}

	// Backend: use loaded if non-empty
	if loaded.Backend != "" {
		result.Backend = loaded.Backend
	} else {
		result.Backend = defaults.Backend
	}

	result.DSN = loaded.DSN

	return result
}

// IsValidBackend checks if the given storage backend is supported
func IsValidBackend(backend string) bool {
	for _, valid := range ValidBackends {
		if backend == valid {
			return true
		}
	}
	return false
}
