package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/project"
)

var snapshotsPruneFlag int

// snapshotsCmd represents the snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List saved source map snapshots",
	Long: `Snapshots lists the source maps saved by 'cobmap build' and 'cobmap watch',
newest first. --prune N deletes all but the N newest.

Examples:
  cobmap snapshots
  cobmap snapshots --prune 5
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		return runSnapshots(cmd.Context(), cmd.OutOrStdout(), p, snapshotsPruneFlag)
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.Flags().IntVar(&snapshotsPruneFlag, "prune", 0, "Keep only the N newest snapshots")
}

func runSnapshots(ctx context.Context, out io.Writer, p *project.Project, prune int) error {
	store, err := p.Store()
	if err != nil {
		return err
	}

	if prune > 0 {
		n, err := store.Writer().Prune(ctx, prune)
		if err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
		fmt.Fprintf(out, "✓ Pruned %d snapshot(s)\n", n)
	}

	snapshots, err := store.Reader().ListSnapshots(ctx)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(out, "No snapshots saved yet. Run 'cobmap build' first.")
		return nil
	}

	for _, s := range snapshots {
		fmt.Fprintf(out, "%s  %s  %8s lines  %8s vars\n",
			s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			formatNumber(s.LineCount), formatNumber(s.SymbolCount))
	}
	return nil
}
