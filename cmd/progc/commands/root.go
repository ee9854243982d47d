// Package commands implements the progc subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/progc"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "progc",
	Short: "Asynchronous GPU program compiler",
	Long: `progc - compile WGSL programs with the progc service.

Programs are listed in a YAML manifest. Each program names the WGSL files of
its stages, its priority, vertex attribute locations and specialization
constants. Stages are compiled on a pool of worker contexts and linked into
pipelines on the selected backend.

Examples:
  # Compile every program of a manifest on the headless backend
  progc compile -f programs.yaml

  # Use a persistent SPIR-V cache and four workers on Vulkan
  progc compile -f programs.yaml --backend vulkan --threads 4 --cache-dir .progc

  # Recompile on change
  progc watch -f programs.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			progc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging to stderr)")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
