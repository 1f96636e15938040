package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var cleanQuietFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the snapshot database",
	Long: `Clean removes the snapshot database of the project together with its
SQLite journal and lock files. The next 'cobmap build' starts a fresh one.

The configuration file (.cobmap/config.yml) is preserved.

Examples:
  cobmap clean
  cobmap clean --quiet
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		dbPath := p.Config().DBPath(p.Root())
		if err := p.Close(); err != nil {
			return err
		}

		return runClean(cmd.OutOrStdout(), dbPath, cleanQuietFlag)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
}

// databaseFiles lists the files SQLite and the writer lock keep next to a
// database.
func databaseFiles(dbPath string) []string {
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm", dbPath + ".lock"}
}

func runClean(out io.Writer, dbPath string, quiet bool) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if !quiet {
			fmt.Fprintln(out, "No snapshot database found for this project")
		}
		return nil
	}

	sizeMB := getDatabaseSize(dbPath)

	for _, f := range databaseFiles(dbPath) {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}

	if !quiet {
		if sizeMB > 0 {
			fmt.Fprintf(out, "✓ Removed %s (~%.1f MB)\n", dbPath, sizeMB)
		} else {
			fmt.Fprintf(out, "✓ Removed %s\n", dbPath)
		}
		fmt.Fprintln(out, "Next 'cobmap build' will start a new database")
	}
	return nil
}

// getDatabaseSize sums the sizes of a database and its journal files in MB.
func getDatabaseSize(dbPath string) float64 {
	var total int64
	for _, f := range databaseFiles(dbPath) {
		if info, err := os.Stat(f); err == nil {
			total += info.Size()
		}
	}
	return float64(total) / (1024 * 1024)
}
