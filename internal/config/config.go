package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hargabyte/jacograph/internal/classify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the jcg configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the jcg configuration directory
const ConfigDirName = ".jcg"

// EnvFileName is the optional dotenv file read next to the config directory
const EnvFileName = ".env"

// Environment variables that override the config file.
const (
	EnvJacocoFilename = "JCG_JACOCO_FILENAME"
	EnvJacocoDirname  = "JCG_JACOCO_DIRNAME"
	EnvS3AccessKey    = "JCG_S3_ACCESS_KEY"
	EnvS3SecretKey    = "JCG_S3_SECRET_KEY"
)

// Config holds all jcg configuration
type Config struct {
	Jacoco  JacocoConfig  `yaml:"jacoco"`
	Scan    ScanConfig    `yaml:"scan"`
	Storage StorageConfig `yaml:"storage"`
	Source  SourceConfig  `yaml:"source"`
}

// JacocoConfig selects which scanned files are treated as coverage reports.
// Both fields are pointers so that an explicit empty value, which disables
// the rule, can be told apart from an omitted one.
type JacocoConfig struct {
	Filename *string `yaml:"filename"`
	Dirname  *string `yaml:"dirname"`
}

// FilenameRule returns the configured report filename, "" when disabled.
func (j JacocoConfig) FilenameRule() string {
	if j.Filename == nil {
		return ""
	}
	return *j.Filename
}

// DirnameRule returns the configured report directory name, "" when disabled.
func (j JacocoConfig) DirnameRule() string {
	if j.Dirname == nil {
		return ""
	}
	return *j.Dirname
}

// ScanConfig holds configuration for report scanning
type ScanConfig struct {
	Exclude        []string `yaml:"exclude"`
	Workers        int      `yaml:"workers"`
	MaxReportBytes int64    `yaml:"max_report_bytes"`
}

// StorageConfig selects the graph store backend
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn,omitempty"`
}

// SourceConfig holds remote scan sources
type SourceConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config points the scanner at an S3-compatible bucket
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .jcg/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree. Environment overrides are applied in both cases.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		cfg := DefaultConfig()
		if err := loadEnvFile(workDir); err != nil {
			return nil, err
		}
		ApplyEnv(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults, applies environment overrides and
// validates the result.
func LoadFromPath(path string) (*Config, error) {
	if err := loadEnvFile(filepath.Dir(filepath.Dir(path))); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			ApplyEnv(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	ApplyEnv(merged)

	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// loadEnvFile reads dir/.env into the process environment if present.
// Variables already set in the environment win.
func loadEnvFile(dir string) error {
	path := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with the JCG_* environment variables that are set.
// A set but empty JCG_JACOCO_* variable disables that rule.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvJacocoFilename); ok {
		cfg.Jacoco.Filename = &v
	}
	if v, ok := os.LookupEnv(EnvJacocoDirname); ok {
		cfg.Jacoco.Dirname = &v
	}
	if v, ok := os.LookupEnv(EnvS3AccessKey); ok {
		cfg.Source.S3.AccessKey = v
	}
	if v, ok := os.LookupEnv(EnvS3SecretKey); ok {
		cfg.Source.S3.SecretKey = v
	}
}

// Classifier builds the report classifier described by the jacoco section.
func (c *Config) Classifier() *classify.Classifier {
	var dirname *string
	if d := c.Jacoco.DirnameRule(); d != "" {
		dirname = &d
	}
	return classify.New(c.Jacoco.FilenameRule(), dirname)
}

// FindConfigDir locates the .jcg directory by walking up from startDir.
// Returns the path to the .jcg directory if found.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .jcg directory if it doesn't exist.
// Returns the path to the .jcg directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	if cfg.Jacoco.FilenameRule() == "" && cfg.Jacoco.DirnameRule() == "" {
		return fmt.Errorf("%w: jacoco.filename and jacoco.dirname are both empty, no file would be accepted",
			ErrInvalidConfig)
	}

	if cfg.Scan.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d",
			ErrInvalidConfig, cfg.Scan.Workers)
	}

	if cfg.Scan.MaxReportBytes <= 0 {
		return fmt.Errorf("%w: max_report_bytes must be positive, got %d",
			ErrInvalidConfig, cfg.Scan.MaxReportBytes)
	}

	if !IsValidBackend(cfg.Storage.Backend) {
		return fmt.Errorf("%w: storage.backend must be one of %v, got %q",
			ErrInvalidConfig, ValidBackends, cfg.Storage.Backend)
	}

	if cfg.Storage.Backend == BackendPostgres && cfg.Storage.DSN == "" {
		return fmt.Errorf("%w: storage.dsn is required for the postgres backend", ErrInvalidConfig)
	}

	return nil
}

// SaveDefault writes the default configuration to .jcg/config.yaml in workDir.
// Creates the .jcg directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# jcg configuration\n# jacoco.dirname: \"\" disables the directory rule\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
