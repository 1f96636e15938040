package cli

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/project"
)

var (
	buildQuietFlag bool
	buildKeepFlag  int
	buildNoSave    bool
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the source map and save a snapshot",
	Long: `Build discovers the COBOL sources of the project, parses the C cobc generated
for each of them and saves the resulting source map as a snapshot in the
project database (.cobmap/sourcemap.db by default).

Examples:
  # Build and save a snapshot
  cobmap build

  # Build, keeping only the three newest snapshots
  cobmap build --keep 3

  # Only check that the generated C parses
  cobmap build --no-save
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		return runBuild(ctx, cmd.OutOrStdout(), p, buildOptions{
			quiet: buildQuietFlag,
			keep:  buildKeepFlag,
			save:  !buildNoSave,
		})
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVarP(&buildQuietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	buildCmd.Flags().IntVar(&buildKeepFlag, "keep", 0, "Prune all but the N newest snapshots (0 keeps all)")
	buildCmd.Flags().BoolVar(&buildNoSave, "no-save", false, "Do not save a snapshot")
}

type buildOptions struct {
	quiet bool
	keep  int
	save  bool
}

func runBuild(ctx context.Context, out io.Writer, p *project.Project, opts buildOptions) error {
	progress := NewCLIProgressReporter(out, opts.quiet)

	m, err := p.Build(ctx, progress)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("build cancelled")
		}
		return fmt.Errorf("build failed: %w", err)
	}

	for _, d := range m.Diagnostics() {
		log.Printf("Warning: %s", d)
	}

	if !opts.save {
		return nil
	}

	id, err := p.Persist(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if !opts.quiet {
		fmt.Fprintf(out, "✓ Snapshot %s saved\n", id)
	}

	if opts.keep > 0 {
		store, err := p.Store()
		if err != nil {
			return err
		}
		pruned, err := store.Writer().Prune(ctx, opts.keep)
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
		if !opts.quiet && pruned > 0 {
			fmt.Fprintf(out, "✓ Pruned %d old snapshot(s)\n", pruned)
		}
	}

	return nil
}
