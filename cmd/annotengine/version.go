package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/academiaflow/annotengine"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of annotengine",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "annotengine version %s\n", annotengine.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
