package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cobmap/internal/config"
	"github.com/mvp-joe/cobmap/internal/project"
)

var (
	cfgFile string
	rootDir string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cobmap",
	Short: "cobmap - COBOL to C source maps for debuggers",
	Long: `cobmap reads the C that cobc generates from COBOL programs and correlates it
with the COBOL sources: breakpoint lines in both directions and the C symbols
behind every COBOL variable.

Configuration is read from .cobmap/config.yml in the project directory and
COBMAP_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetFlags(0)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <dir>/.cobmap/config.yml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "C", "", "project directory (default is the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadProject resolves the project directory, loads its configuration and
// opens it. The caller closes the project.
func loadProject() (*project.Project, error) {
	dir := rootDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	loader := config.NewLoader(dir)
	if cfgFile != "" {
		loader = config.NewFileLoader(dir, cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		log.Printf("Project root: %s", dir)
		log.Printf("Generated C:  %s", cfg.GeneratedDir(dir))
	}

	p, err := project.Open(dir, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}
	return p, nil
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			log.Println("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
