package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/project"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

var (
	symbolsUnitFlag      string
	symbolsGeneratedFlag bool
	symbolsSnapshotFlag  bool
	symbolsJSONFlag      bool
)

// symbolsCmd represents the symbols command
var symbolsCmd = &cobra.Command{
	Use:   "symbols [path]",
	Short: "List COBOL variables and the C symbols behind them",
	Long: `Without a path, symbols prints every COBOL variable with its fields nested
underneath. With a path, it prints that one symbol.

Paths are <program>.<name> or <program>.<group>.<name>; with --generated
they are <program>.<c-name>.

Examples:
  cobmap symbols
  cobmap symbols --unit hello
  cobmap symbols hello.WS-REC.WS-NAME
  cobmap symbols --generated hello.f_9
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		opts := symbolsOptions{
			unit:      symbolsUnitFlag,
			generated: symbolsGeneratedFlag,
			snapshot:  symbolsSnapshotFlag,
			json:      symbolsJSONFlag,
		}
		if len(args) == 1 {
			opts.path = args[0]
		}
		return runSymbols(cmd.Context(), cmd.OutOrStdout(), p, opts)
	},
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
	symbolsCmd.Flags().StringVar(&symbolsUnitFlag, "unit", "", "Only list symbols of this program")
	symbolsCmd.Flags().BoolVar(&symbolsGeneratedFlag, "generated", false, "Path uses the C name")
	symbolsCmd.Flags().BoolVar(&symbolsSnapshotFlag, "snapshot", false, "Use the newest saved snapshot")
	symbolsCmd.Flags().BoolVar(&symbolsJSONFlag, "json", false, "Print symbols as JSON")
}

type symbolsOptions struct {
	path      string
	unit      string
	generated bool
	snapshot  bool
	json      bool
}

func runSymbols(ctx context.Context, out io.Writer, p *project.Project, opts symbolsOptions) error {
	m, err := sourceMap(ctx, p, opts.snapshot)
	if err != nil {
		return err
	}

	var symbols []*sourcemap.Symbol
	if opts.path != "" {
		var (
			s  *sourcemap.Symbol
			ok bool
		)
		if opts.generated {
			s, ok = m.SymbolByGeneratedPath(opts.path)
		} else {
			s, ok = m.SymbolByOriginalPath(opts.path)
		}
		if !ok {
			return fmt.Errorf("%s: %w", opts.path, sourcemap.ErrNotFound)
		}
		symbols = append(symbols, s)
	} else {
		for _, s := range m.Symbols() {
			if _, nested := s.Parent(); nested {
				continue
			}
			if opts.unit != "" && s.Unit != opts.unit {
				continue
			}
			symbols = append(symbols, s)
		}
	}

	if opts.json {
		docs := make([]sourcemap.SymbolDocument, 0, len(symbols))
		for _, s := range symbols {
			docs = append(docs, s.Document())
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	for _, s := range symbols {
		printSymbol(out, s, 0)
	}
	return nil
}

func printSymbol(out io.Writer, s *sourcemap.Symbol, depth int) {
	fmt.Fprintf(out, "%s%s  %s\n", strings.Repeat("  ", depth), s.Path(), s)
	for _, c := range s.Children {
		printSymbol(out, c, depth+1)
	}
}
