package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/progc/cmd/progc/internal/manifest"
)

type compileOptions struct {
	manifest string
	timeout  time.Duration
	session  sessionOptions
}

var compileOpts compileOptions

var compileCmd = &cobra.Command{
	Use:   "compile -f <manifest>",
	Short: "Compile every program of a manifest",
	Long: `Compile every program listed in a manifest and print one line per program.

Exits with an error if any program fails to compile or link.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if compileOpts.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, compileOpts.timeout)
			defer cancel()
		}
		return runCompile(ctx, cmd.OutOrStdout(), compileOpts)
	},
}

func init() {
	compileCmd.Flags().StringVarP(&compileOpts.manifest, "file", "f", "", "program manifest (YAML)")
	compileCmd.Flags().DurationVar(&compileOpts.timeout, "timeout", 0, "abort if compilation takes longer")
	addSessionFlags(compileCmd, &compileOpts.session)
	compileCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(ctx context.Context, out io.Writer, o compileOptions) error {
	m, err := manifest.Load(o.manifest)
	if err != nil {
		return err
	}
	entries, err := m.Entries(ctx)
	if err != nil {
		return err
	}

	s, err := openSession(o.session, m.PriorityLevels)
	if err != nil {
		return err
	}
	defer s.close()

	results, elapsed, err := s.build(ctx, entries)
	if err != nil {
		return err
	}
	failed := printResults(out, results, elapsed)
	if IsVerbose() {
		printCacheStats(out, s)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d programs failed", failed, len(results))
	}
	return nil
}
