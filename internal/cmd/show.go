package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hargabyte/jacograph/internal/graph"
	"github.com/hargabyte/jacograph/internal/ingest"
	"github.com/hargabyte/jacograph/internal/output"
	"github.com/spf13/cobra"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <report.xml>",
	Short: "Parse one report and print its graph",
	Long: `Parse a single JaCoCo XML report, map it in memory and print the resulting
tree. Nothing is written to the store. The file is loaded even if its name or
directory would not be picked up by 'jcg scan'.

With --diagram the report is rendered as Mermaid instead: "flowchart" draws
the tree coloured by coverage of --counter, "pie" draws covered against missed.`,
	Example: `  jcg show build/reports/jacoco/test/jacocoTestReport.xml
  jcg show target/site/jacoco/jacoco.xml --density dense --format text
  jcg show jacoco.xml --diagram pie --counter BRANCH`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var (
	showDiagram string
	showCounter string
)

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVar(&showDiagram, "diagram", "", "Render as a Mermaid diagram (flowchart|pie)")
	showCmd.Flags().StringVar(&showCounter, "counter", string(graph.CounterLine), "Counter type used by --diagram")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plugin, err := newPlugin(cfg)
	if err != nil {
		return err
	}

	path := args[0]
	if !plugin.Accepts(filepath.ToSlash(path)) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Note: %s would not be picked up by 'jcg scan' with the current jacoco settings\n", path)
	}

	file := ingest.FileFunc(func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	})
	host := ingest.NewMemoryHost()
	root, err := plugin.Load(cmd.Context(), file, filepath.ToSlash(path), host)
	if err != nil {
		return err
	}

	if showDiagram != "" {
		return writeDiagram(cmd, host.Memory, root)
	}

	density, err := output.ParseDensity(outputDensity)
	if err != nil {
		return err
	}
	tree, err := output.MemoryTree(host.Memory, root, density)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), tree)
}

func writeDiagram(cmd *cobra.Command, g *graph.Memory, root graph.Handle) error {
	counter := graph.CounterType(strings.ToUpper(showCounter))
	var out string
	var err error
	switch showDiagram {
	case "flowchart":
		opts := graph.DefaultMermaidOptions()
		opts.Counter = counter
		if outputDensity == string(output.DensityDense) {
			opts.Deepest = graph.KindCounter
		}
		out, err = graph.GenerateMermaid(g, root, opts)
	case "pie":
		var title string
		if e, ok := g.Node(root); ok {
			if r, ok := e.(graph.Report); ok && r.Name != "" {
				title = fmt.Sprintf("%s %s coverage", r.Name, counter)
			}
		}
		out, err = graph.GeneratePieChart(g, root, counter, title)
	default:
		return fmt.Errorf("unknown diagram %q (use flowchart or pie)", showDiagram)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}
