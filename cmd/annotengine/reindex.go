package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the annotation index from the records on disk",
	Long: `Reindex scans every annotation record and rebuilds the store's lookup index.
Run it after editing or moving record files by hand.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		if err := gw.Reindex(context.Background()); err != nil {
			return fmt.Errorf("failed to reindex: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Index rebuilt")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
