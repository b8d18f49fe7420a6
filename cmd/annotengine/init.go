package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/academiaflow/annotengine"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an annotation store",
	Long:  `Create the store layout and, unless --gitless is set, a git repository for its history.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := openGateway(cmd, annotengine.WithAutoInit(true))
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		closeGateway(gw)

		fmt.Fprintln(cmd.OutOrStdout(), "Initialized annotation store in", cfg.location())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
