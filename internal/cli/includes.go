package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/project"
)

var includesDotFlag bool

// includesCmd represents the includes command
var includesCmd = &cobra.Command{
	Use:   "includes",
	Short: "Show the #include graph of the generated C",
	Long: `Includes prints every #include edge followed while parsing, then the
generated files in dependency order. --dot prints the graph in Graphviz DOT.

Examples:
  cobmap includes
  cobmap includes --dot | dot -Tsvg > includes.svg
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		return runIncludes(cmd.Context(), cmd.OutOrStdout(), p, includesDotFlag)
	},
}

func init() {
	rootCmd.AddCommand(includesCmd)
	includesCmd.Flags().BoolVar(&includesDotFlag, "dot", false, "Print Graphviz DOT")
}

func runIncludes(ctx context.Context, out io.Writer, p *project.Project, dot bool) error {
	m, err := p.Current(ctx)
	if err != nil {
		return err
	}

	g, err := m.IncludeGraph()
	if err != nil {
		return err
	}

	if dot {
		return draw.DOT(g, out)
	}

	for _, e := range m.Includes() {
		fmt.Fprintf(out, "%s -> %s\n", e.From, e.To)
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return fmt.Errorf("failed to order includes: %w", err)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Parse order:")
	for i, f := range order {
		fmt.Fprintf(out, "%3d. %s\n", i+1, f)
	}
	return nil
}
