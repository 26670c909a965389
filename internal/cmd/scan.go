package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/hargabyte/jacograph/internal/exclude"
	"github.com/hargabyte/jacograph/internal/scan"
	"github.com/hargabyte/jacograph/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Find coverage reports and load them into the graph",
	Long: `Walk a directory tree (default: current directory) or an S3 bucket, pick out
JaCoCo XML reports by file name or parent directory, and store each one as a
report -> package -> class -> method -> counter graph.

Reports whose content has not changed since the last scan are skipped unless
--force is given. A changed report replaces its previous graph. A report that
fails to parse or map is listed under failures and does not stop the scan;
the command exits non-zero if any report failed.`,
	Example: `  jcg scan                       # Scan the current directory
  jcg scan ./services --workers 8
  jcg scan --dry-run --format text
  jcg scan --bucket ci-artifacts --prefix builds/42/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

var (
	scanForce   bool
	scanWorkers int
	scanDryRun  bool
	scanBucket  string
	scanPrefix  string

	scanNoAutoExclude bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "Re-ingest reports even if unchanged")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Concurrent report ingestions (default: scan.workers)")
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "Parse and map reports in memory without writing the store")
	scanCmd.Flags().StringVar(&scanBucket, "bucket", "", "Scan this S3 bucket instead of a directory (endpoint from source.s3)")
	scanCmd.Flags().StringVar(&scanPrefix, "prefix", "", "Object key prefix within --bucket (default: source.s3.prefix)")
	scanCmd.Flags().BoolVar(&scanNoAutoExclude, "no-auto-exclude", false, "Do not skip detected dependency directories (node_modules, vendor, target/dependency)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var src scan.Source
	var srcName string
	if scanBucket != "" {
		s3 := cfg.Source.S3
		s3.Bucket = scanBucket
		if scanPrefix != "" {
			s3.Prefix = scanPrefix
		}
		bucket, err := scan.NewBucketSource(s3)
		if err != nil {
			return err
		}
		src, srcName = bucket, bucket.String()
	} else {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		excludes := append([]string(nil), cfg.Scan.Exclude...)
		if !scanNoAutoExclude {
			auto := exclude.DetectAutoExcludes(root)
			for _, dir := range auto.Directories {
				logrus.WithField("dir", dir).Infof("auto-excluding: %s", auto.Reasons[dir])
			}
			excludes = append(excludes, auto.Patterns()...)
		}
		src = &scan.FSSource{Root: root, Exclude: excludes, Log: logrus.StandardLogger()}
		srcName = root
	}

	plugin, err := newPlugin(cfg)
	if err != nil {
		return err
	}

	var target scan.Target
	var st *store.Store
	if scanDryRun {
		target = scan.NewMemoryTarget()
	} else {
		st, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		target = scan.StoreTarget{Store: st}
	}

	workers := scanWorkers
	if workers <= 0 {
		workers = cfg.Scan.Workers
	}
	scanner := &scan.Scanner{
		Plugin:   plugin,
		Target:   target,
		Workers:  workers,
		Force:    scanForce,
		MaxBytes: cfg.Scan.MaxReportBytes,
		Log:      logrus.StandardLogger(),
	}

	start := time.Now()
	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %s...\n", srcName)
	res, err := scanner.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("scan %s: %w", srcName, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Scanned %d files in %s: %d reports ingested, %d unchanged, %d failed\n",
		res.Scanned, time.Since(start).Round(time.Millisecond), res.Ingested, res.Skipped, len(res.Failures))

	if st != nil && res.Ingested > 0 {
		snapshot(ctx, cmd, st, res)
	}

	if err := writeOutput(cmd.OutOrStdout(), res); err != nil {
		return err
	}

	if len(res.Failures) > 0 {
		return fmt.Errorf("%d of %d reports failed", len(res.Failures), res.Accepted)
	}
	return nil
}

// snapshot commits the scan to the store's version history where the
// backend has one.
func snapshot(ctx context.Context, cmd *cobra.Command, st *store.Store, res *scan.Result) {
	msg := fmt.Sprintf("jcg scan: %d reports ingested", res.Ingested)
	hash, err := st.Snapshot(ctx, msg)
	switch {
	case errors.Is(err, store.ErrNotVersioned):
	case err != nil:
		logrus.WithError(err).Warn("could not record scan in version history")
	case hash != "":
		fmt.Fprintf(cmd.ErrOrStderr(), "Recorded scan as commit %s\n", hash)
	}
}
