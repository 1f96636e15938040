package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/project"
	"github.com/mvp-joe/cobmap/internal/search"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

var (
	searchUnitFlag     string
	searchKindFlag     string
	searchLimitFlag    int
	searchSnapshotFlag bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find COBOL variables by name",
	Long: `Search matches words of hyphenated COBOL names, name prefixes, near misses
and exact C names. Queries containing ':' or '+' use bleve query syntax over
original_name, generated_name, unit, kind and path.

Examples:
  cobmap search customer
  cobmap search --kind field --unit billing total
  cobmap search 'unit:hello +kind:storage'
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		return runSearch(cmd.Context(), cmd.OutOrStdout(), p, args[0], searchSnapshotFlag, &search.Options{
			Unit:  searchUnitFlag,
			Kind:  sourcemap.SymbolKind(searchKindFlag),
			Limit: searchLimitFlag,
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchUnitFlag, "unit", "", "Only symbols of this program")
	searchCmd.Flags().StringVar(&searchKindFlag, "kind", "", "Only storage or field symbols")
	searchCmd.Flags().IntVarP(&searchLimitFlag, "limit", "n", 15, "Maximum number of results (1-100)")
	searchCmd.Flags().BoolVar(&searchSnapshotFlag, "snapshot", false, "Use the newest saved snapshot")
}

func runSearch(ctx context.Context, out io.Writer, p *project.Project, query string, snapshot bool, opts *search.Options) error {
	if opts.Kind != "" && opts.Kind != sourcemap.KindStorage && opts.Kind != sourcemap.KindField {
		return fmt.Errorf("invalid kind %q: must be %q or %q", opts.Kind, sourcemap.KindStorage, sourcemap.KindField)
	}

	m, err := sourceMap(ctx, p, snapshot)
	if err != nil {
		return err
	}

	searcher, err := search.NewSymbolSearcher(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to index symbols: %w", err)
	}
	defer searcher.Close()

	results, err := searcher.Search(ctx, query, opts)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintf(out, "No symbols match %q\n", query)
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(out, "%-40s %-10s %-8s %.3f\n", r.Symbol.Path(), r.Symbol.GeneratedName, r.Symbol.Kind, r.Score)
	}
	return nil
}
