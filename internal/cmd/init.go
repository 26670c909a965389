package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hargabyte/jacograph/internal/config"
	"github.com/hargabyte/jacograph/internal/store"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .jcg directory, config and database",
	Long: `Initialize the .jcg directory in the current directory.

This writes .jcg/config.yaml with the default settings and creates the
coverage graph database for the configured storage backend.`,
	Example: `  jcg init          # Initialize in current directory
  jcg init --force  # Recreate the database, keeping config.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Recreate the database even if .jcg already exists")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	out := cmd.OutOrStdout()

	jcgDir := filepath.Join(cwd, config.ConfigDirName)
	cfgPath := filepath.Join(jcgDir, config.ConfigFileName)

	existing := false
	if _, err := os.Stat(cfgPath); err == nil {
		existing = true
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config path: %w", err)
	}

	if existing && !initForce {
		relPath, _ := filepath.Rel(cwd, jcgDir)
		fmt.Fprintf(out, "Already initialized at %s\n", relPath)
		return nil
	}

	if !existing {
		if _, err := config.SaveDefault(cwd); err != nil {
			return err
		}
	}

	cfg, err := config.LoadFromPath(cfgPath)
	if err != nil {
		return err
	}

	if initForce {
		if err := removeEmbeddedDB(cfg, jcgDir); err != nil {
			return err
		}
	}

	st, err := store.Open(cfg.Storage, jcgDir)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer st.Close()

	relPath, _ := filepath.Rel(cwd, jcgDir)
	fmt.Fprintf(out, "Initialized jcg %s store at %s\n", st.Backend(), relPath)
	return nil
}

// removeEmbeddedDB deletes the sqlite file or dolt repo under dir. Server
// backends are left alone.
func removeEmbeddedDB(cfg *config.Config, dir string) error {
	var targets []string
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db := filepath.Join(dir, "graph.db")
		targets = []string{db, db + "-wal", db + "-shm"}
	case config.BackendDolt:
		targets = []string{filepath.Join(dir, "graph")}
	}
	for _, t := range targets {
		if err := os.RemoveAll(t); err != nil {
			return fmt.Errorf("removing existing database: %w", err)
		}
	}
	return nil
}
