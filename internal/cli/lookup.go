package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/cframes"
	"github.com/mvp-joe/cobmap/internal/project"
	"github.com/mvp-joe/cobmap/internal/sourcemap"
)

var (
	lookupCobolFlag    string
	lookupCFlag        string
	lookupSnapshotFlag bool
	lookupJSONFlag     bool
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Translate a line between COBOL and generated C",
	Long: `Lookup translates a breakpoint location. Locations are written file:line;
relative files are taken from the project directory.

Examples:
  # Where does line 12 of hello.cob live in the C?
  cobmap lookup --cobol src/hello.cob:12

  # Which COBOL line produced line 340 of hello.c?
  cobmap lookup --c build/hello.c:340

  # Answer from the newest saved snapshot instead of reparsing
  cobmap lookup --snapshot --cobol src/hello.cob:12
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (lookupCobolFlag == "") == (lookupCFlag == "") {
			return errors.New("exactly one of --cobol or --c is required")
		}

		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		opts := lookupOptions{snapshot: lookupSnapshotFlag, json: lookupJSONFlag}
		if lookupCobolFlag != "" {
			opts.direction, opts.location = directionCobol, lookupCobolFlag
		} else {
			opts.direction, opts.location = directionC, lookupCFlag
		}
		return runLookup(cmd.Context(), cmd.OutOrStdout(), p, opts)
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVar(&lookupCobolFlag, "cobol", "", "COBOL location file:line")
	lookupCmd.Flags().StringVar(&lookupCFlag, "c", "", "Generated C location file:line")
	lookupCmd.Flags().BoolVar(&lookupSnapshotFlag, "snapshot", false, "Use the newest saved snapshot")
	lookupCmd.Flags().BoolVar(&lookupJSONFlag, "json", false, "Print the result as JSON")
}

type lookupDirection int

const (
	directionCobol lookupDirection = iota
	directionC
)

type lookupOptions struct {
	direction lookupDirection
	location  string
	snapshot  bool
	json      bool
}

type lookupResult struct {
	Found    bool              `json:"found"`
	Location *sourcemap.Line   `json:"location,omitempty"`
	Function *cframes.Function `json:"function,omitempty"`
}

// parseLocation splits "file:line". The last colon separates the line so
// Windows drive letters survive.
func parseLocation(s string) (string, int, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", 0, fmt.Errorf("invalid location %q: expected file:line", s)
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("invalid line in location %q", s)
	}
	return s[:i], line, nil
}

// sourceMap returns the saved snapshot or a fresh build.
func sourceMap(ctx context.Context, p *project.Project, snapshot bool) (*sourcemap.SourceMap, error) {
	if snapshot {
		return p.Load(ctx)
	}
	return p.Current(ctx)
}

func runLookup(ctx context.Context, out io.Writer, p *project.Project, opts lookupOptions) error {
	file, line, err := parseLocation(opts.location)
	if err != nil {
		return err
	}

	m, err := sourceMap(ctx, p, opts.snapshot)
	if err != nil {
		return err
	}

	var (
		loc   sourcemap.Line
		found bool
	)
	switch opts.direction {
	case directionCobol:
		loc, found = m.GeneratedLocation(file, line)
	case directionC:
		loc, found = m.OriginalLocation(file, line)
	}

	result := lookupResult{Found: found}
	if found {
		result.Location = &loc
		if ix, err := cframes.ParseFile(ctx, p.Fs(), loc.GeneratedFile); err == nil {
			if fn, ok := ix.FunctionAt(loc.GeneratedLine); ok {
				result.Function = &fn
			}
		}
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if !found {
		fmt.Fprintf(out, "%s: no mapping\n", opts.location)
		return nil
	}
	fmt.Fprintf(out, "COBOL %s:%d\n", loc.OriginalFile, loc.OriginalLine)
	fmt.Fprintf(out, "C     %s:%d\n", loc.GeneratedFile, loc.GeneratedLine)
	if result.Function != nil {
		fmt.Fprintf(out, "in    %s (lines %d-%d)\n", result.Function.Name, result.Function.StartLine, result.Function.EndLine)
	}
	return nil
}
