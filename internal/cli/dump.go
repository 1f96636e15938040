package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mvp-joe/cobmap/internal/project"
)

var (
	dumpFormatFlag   string
	dumpFileFlag     string
	dumpSnapshotFlag bool
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the whole source map",
	Long: `Dump prints every line record and symbol of the source map.

Formats:
  text  one record per line followed by COBOL > C name pairs (default)
  json  the full document with nested symbols, includes and diagnostics
  yaml  the same document as YAML

Examples:
  cobmap dump
  cobmap dump --format yaml --file src/hello.cob
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		defer p.Close()

		return runDump(cmd.Context(), cmd.OutOrStdout(), p, dumpFormatFlag, dumpFileFlag, dumpSnapshotFlag)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpFormatFlag, "format", "f", "text", "Output format: text, json or yaml")
	dumpCmd.Flags().StringVar(&dumpFileFlag, "file", "", "Only line records of this COBOL file (json and yaml)")
	dumpCmd.Flags().BoolVar(&dumpSnapshotFlag, "snapshot", false, "Use the newest saved snapshot")
}

func runDump(ctx context.Context, out io.Writer, p *project.Project, format, file string, snapshot bool) error {
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q: must be text, json or yaml", format)
	}

	m, err := sourceMap(ctx, p, snapshot)
	if err != nil {
		return err
	}

	if format == "text" {
		_, err := io.WriteString(out, m.String())
		return err
	}

	doc := m.Document()
	if file != "" {
		doc.Lines = m.LinesFor(file)
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
