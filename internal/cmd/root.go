// Package cmd contains all CLI commands for jcg.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is the current version of jcg
	Version = "0.1.0"

	// Global flags
	verbose       bool
	configPath    string
	forAgents     bool
	outputFormat  string
	outputDensity string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jcg",
	Short: "Load JaCoCo coverage reports into a coverage graph",
	Long: `jcg finds JaCoCo XML coverage reports in a build tree or bucket, parses
them without fetching DTDs or entities, and stores each report as a graph:

  report -> package -> class -> method -> counter

Output Format:
  All commands output YAML format by default.
  Use --format flag to switch to JSON or an indented text tree.
  Use --density flag to control how deep report trees go (sparse|medium|dense).

Global Flags:
  --format    Output format: yaml (default) | json | text
  --density   Tree depth: sparse (classes) | medium (methods, default) | dense (counters)

Examples:
  jcg init                                   # Create .jcg/config.yaml and the database
  jcg scan                                   # Scan the current directory
  jcg scan --bucket ci-artifacts             # Scan an S3 bucket
  jcg show build/reports/jacoco/test/jacocoTestReport.xml
  jcg status                                 # Node counts and scanned reports

See 'jcg <command> --help' for command-specific options.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .jcg/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "yaml", "Output format (yaml|json|text)")
	rootCmd.PersistentFlags().StringVar(&outputDensity, "density", "medium", "Output density (sparse|medium|dense)")
	rootCmd.Flags().BoolVar(&forAgents, "for-agents", false, "Output machine-readable capability discovery JSON")

	// Set custom help function to intercept --for-agents flag
	originalHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if forAgents {
			outputAgentHelp(cmd.OutOrStdout(), cmd)
			return
		}
		originalHelp(cmd, args)
	})
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if forAgents {
			return outputAgentHelp(cmd.OutOrStdout(), cmd)
		}
		return cmd.Help()
	}
}

// setupLogging configures the standard logrus logger. Logs go to stderr so
// that stdout carries only command output.
func setupLogging(w io.Writer) {
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

// CommandInfo represents a command for agent discovery
type CommandInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Usage       string        `json:"usage"`
	Flags       []FlagInfo    `json:"flags,omitempty"`
	Subcommands []CommandInfo `json:"subcommands,omitempty"`
	Examples    []string      `json:"examples,omitempty"`
}

// FlagInfo represents a command flag for agent discovery
type FlagInfo struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
}

// outputAgentHelp outputs machine-readable JSON describing all commands
func outputAgentHelp(w io.Writer, cmd *cobra.Command) error {
	root := cmd.Root()
	info := buildCommandInfo(root)

	var global []FlagInfo
	root.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		global = append(global, flagInfo(f))
	})

	output := map[string]interface{}{
		"version":      Version,
		"commands":     info.Subcommands,
		"global_flags": global,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func flagInfo(f *pflag.Flag) FlagInfo {
	return FlagInfo{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Description: f.Usage,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
	}
}

// buildCommandInfo recursively builds command information for agent discovery
func buildCommandInfo(cmd *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:        cmd.Name(),
		Description: cmd.Short,
		Usage:       cmd.UseLine(),
	}

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		info.Flags = append(info.Flags, flagInfo(f))
	})

	for _, sub := range cmd.Commands() {
		if !sub.Hidden && sub.Name() != "help" && sub.Name() != "completion" {
			info.Subcommands = append(info.Subcommands, buildCommandInfo(sub))
		}
	}

	if cmd.Example != "" {
		for _, line := range strings.Split(cmd.Example, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				info.Examples = append(info.Examples, trimmed)
			}
		}
	}

	return info
}
