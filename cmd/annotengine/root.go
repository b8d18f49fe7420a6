package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose   bool
	storePath string
	adapter   string
	format    string
	gitless   bool
	timeout   string

	cfg fileConfig
)

var rootCmd = &cobra.Command{
	Use:   "annotengine",
	Short: "Persist, version and replay PDF annotations",
	Long: `annotengine stores PDF annotations per document, keeps an optional git
history of every change, and replays them onto a page surface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&storePath, "store", "", "Store path (default: nearest store root or the working directory)")
	flags.StringVar(&adapter, "adapter", "", "Store adapter: fs, sqlite or memory")
	flags.StringVar(&format, "format", "", "Record format for the fs adapter: json or yaml")
	flags.BoolVar(&gitless, "gitless", false, "Disable git versioning")
	flags.StringVar(&timeout, "timeout", "", "Per-operation timeout, e.g. 5s")
}
