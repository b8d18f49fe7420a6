package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [annotation]",
	Short: "Show the commits that changed an annotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		revs, err := gw.History(context.Background(), args[0])
		if err != nil {
			return err
		}
		if len(revs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no history")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, r := range revs {
			hash := r.Hash
			if len(hash) > 8 {
				hash = hash[:8]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", hash, r.Date, r.Author, r.Subject)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
