package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/cframes"
	"github.com/mvp-joe/cobmap/internal/project"
)

var framesLineFlag int

// framesCmd represents the frames command
var framesCmd = &cobra.Command{
	Use:   "frames <generated.c>",
	Short: "List the C functions of a generated file",
	Long: `Frames lists the function definitions of a generated C file with their line
ranges, the names a debugger shows for stack frames. With --line it prints
only the function containing that line.

Examples:
  cobmap frames build/hello.c
  cobmap frames build/hello.c --line 340
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		return runFrames(cmd.Context(), cmd.OutOrStdout(), p, args[0], framesLineFlag)
	},
}

func init() {
	rootCmd.AddCommand(framesCmd)
	framesCmd.Flags().IntVarP(&framesLineFlag, "line", "l", 0, "Only the function containing this line")
}

func runFrames(ctx context.Context, out io.Writer, p *project.Project, file string, line int) error {
	if !filepath.IsAbs(file) {
		file = filepath.Join(p.Root(), file)
	}

	ix, err := cframes.ParseFile(ctx, p.Fs(), file)
	if err != nil {
		return err
	}

	if line > 0 {
		fn, ok := ix.FunctionAt(line)
		if !ok {
			return fmt.Errorf("%s:%d is not inside a function", file, line)
		}
		printFunction(out, fn)
		return nil
	}

	for _, fn := range ix.Functions {
		printFunction(out, fn)
	}
	return nil
}

func printFunction(out io.Writer, fn cframes.Function) {
	fmt.Fprintf(out, "%5d-%-5d %s\n", fn.StartLine, fn.EndLine, fn.Signature)
}
