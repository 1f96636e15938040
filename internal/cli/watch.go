package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/project"
	"github.com/mvp-joe/cobmap/internal/watcher"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the source map whenever cobc regenerates C",
	Long: `Watch builds the source map once, then watches the generated C directory and
saves a new snapshot each time cobc rewrites a .c or .h file. Bursts of
changes are debounced (watch.debounce_millis, 500ms by default).

Examples:
  cobmap watch
  COBMAP_WATCH_DEBOUNCE_MILLIS=2000 cobmap watch
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		return runWatch(ctx, cmd.OutOrStdout(), p)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, out io.Writer, p *project.Project) error {
	stats, err := p.Rebuild(ctx, nil)
	if err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}
	fmt.Fprintf(out, "✓ Initial snapshot %s: %s lines, %s vars\n",
		stats.SnapshotID, formatNumber(stats.Lines), formatNumber(stats.Symbols))

	cfg := p.Config()
	fw, err := watcher.NewFileWatcher(
		[]string{p.GeneratedDir()},
		cfg.Watch.Extensions,
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	coordinator := watcher.NewRebuildCoordinator(fw, p, func(s *watcher.RebuildStats) {
		fmt.Fprintf(out, "✓ Snapshot %s: %s lines, %s vars\n",
			s.SnapshotID, formatNumber(s.Lines), formatNumber(s.Symbols))
	})

	log.Printf("Watching %s (Ctrl+C to stop)", p.GeneratedDir())
	if err := coordinator.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch mode failed: %w", err)
	}
	log.Println("Watch mode stopped")
	return nil
}
