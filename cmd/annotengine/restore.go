package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/academiaflow/annotengine/pkg/session"
	"github.com/academiaflow/annotengine/pkg/surface/headless"
)

var (
	restorePages  int
	restoreVerify bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore [document]",
	Short: "Replay a document's annotations onto a headless surface",
	Long: `Restore loads every stored annotation of the document and draws it on a
headless page surface, reporting how many primitives land on each page.
Annotations on pages beyond the document's page count are skipped.
Use --pages to replay against a different page count, for example after
the PDF was re-exported with pages removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		ctx := context.Background()
		doc, err := gw.GetDocument(ctx, args[0])
		if err != nil {
			return err
		}

		pages := doc.PageCount
		if cmd.Flags().Changed("pages") {
			pages = restorePages
		}
		path := ""
		if restoreVerify {
			path = doc.Path
		}
		surface := headless.New()
		surface.Register(doc.ID, pages, path)

		info, err := surface.Open(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("open %s: %w", doc.ID, err)
		}
		res, err := session.Restore(ctx, gw, surface, &doc, info, slog.Default())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i := 0; i < info.PageCount; i++ {
			if n := len(surface.Primitives(i)); n > 0 {
				fmt.Fprintf(out, "page %d: %d\n", i+1, n)
			}
		}
		fmt.Fprintf(out, "restored %d, skipped %d\n", len(res.Annotations), len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "  skipped %s (page %d)\n", s.ID, s.Page)
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().IntVar(&restorePages, "pages", 0, "Override the document's page count")
	restoreCmd.Flags().BoolVar(&restoreVerify, "verify", false, "Require the document's PDF file to exist")
	rootCmd.AddCommand(restoreCmd)
}
