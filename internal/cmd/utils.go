package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hargabyte/jacograph/internal/config"
	"github.com/hargabyte/jacograph/internal/ingest"
	"github.com/hargabyte/jacograph/internal/jacoco"
	"github.com/hargabyte/jacograph/internal/mapper"
	"github.com/hargabyte/jacograph/internal/output"
	"github.com/hargabyte/jacograph/internal/signature"
	"github.com/hargabyte/jacograph/internal/store"
	"github.com/sirupsen/logrus"
)

// loadConfig loads --config if given, else .jcg/config.yaml found from the
// working directory upwards.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return config.Load(cwd)
}

// dataDir returns the .jcg directory embedded stores live in: the one next
// to --config, the nearest one above the working directory, or ./.jcg.
func dataDir() (string, error) {
	if configPath != "" {
		return filepath.Dir(configPath), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	if dir, err := config.FindConfigDir(cwd); err == nil {
		return dir, nil
	}
	return filepath.Join(cwd, config.ConfigDirName), nil
}

// openStore opens the configured graph store.
func openStore(cfg *config.Config) (*store.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Storage, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	return st, nil
}

// newPlugin wires classifier, signature formatter and mapper from cfg.
func newPlugin(cfg *config.Config) (*ingest.Plugin, error) {
	log := logrus.StandardLogger()

	c := cfg.Classifier()
	c.Log = log
	log.Infof("jacoco plugin: looking for files named %q and files in directory %q",
		cfg.Jacoco.FilenameRule(), cfg.Jacoco.DirnameRule())

	sigs, err := signature.NewCached(signature.Descriptor{}, signature.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	p := ingest.New(c, mapper.New(sigs), jacoco.Options{MaxBytes: cfg.Scan.MaxReportBytes})
	p.Log = log
	return p, nil
}

// writeOutput renders v to w using the global --format and --density flags.
func writeOutput(w io.Writer, v interface{}) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	density, err := output.ParseDensity(outputDensity)
	if err != nil {
		return err
	}
	formatter, err := output.GetFormatter(format)
	if err != nil {
		return err
	}
	return formatter.FormatToWriter(w, v, density)
}
