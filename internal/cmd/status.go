package cmd

import (
	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/output"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node counts and scanned reports",
	Long: `Show what the coverage graph store holds: the backend in use, the number of
nodes per kind and every stored report with the hash it was scanned at.`,
	Example: `  jcg status
  jcg status --format json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	counts, err := st.CountByKind(ctx)
	if err != nil {
		return err
	}
	reports, err := st.Reports(ctx)
	if err != nil {
		return err
	}
	files, err := st.GetAllFileEntries(ctx)
	if err != nil {
		return err
	}

	status := &output.StatusOutput{
		Backend: st.Backend(),
		Path:    st.Path(),
		Nodes:   make(map[string]int, len(counts)),
	}
	for kind, n := range counts {
		status.Nodes[string(kind)] = n
	}

	hashes := make(map[string]int, len(files))
	for i, f := range files {
		hashes[f.FilePath] = i
	}
	for _, r := range reports {
		summary := output.ReportSummary{File: r.FilePath}
		if rep, ok := r.Entity.(graph.Report); ok {
			summary.Name = rep.Name
		}
		if i, ok := hashes[r.FilePath]; ok {
			summary.Hash = files[i].ScanHash
			summary.ScannedAt = files[i].ScannedAt
		}
		status.Reports = append(status.Reports, summary)
	}

	return writeOutput(cmd.OutOrStdout(), status)
}
