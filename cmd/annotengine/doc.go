package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/academiaflow/annotengine/pkg/core"
)

var (
	docTitle string
	docPath  string
	docPages int
	docJSON  bool
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage document records",
}

var docAddCmd = &cobra.Command{
	Use:   "add [id]",
	Short: "Create or update a document record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := core.ValidateID(args[0]); err != nil {
			return err
		}
		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		doc := core.Document{ID: args[0], Title: docTitle, Path: docPath, PageCount: docPages}
		if err := gw.PutDocument(context.Background(), doc); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Document saved: %s\n", doc.ID)
		return nil
	},
}

var docListCmd = &cobra.Command{
	Use:   "list",
	Short: "List document records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		docs, err := gw.ListDocuments(context.Background())
		if err != nil {
			return err
		}

		if docJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(docs)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPAGES\tTITLE\tPATH")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d.ID, d.PageCount, d.Title, d.Path)
		}
		return w.Flush()
	},
}

var docRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a document record and all of its annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		if err := gw.DeleteDocument(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Document deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	docAddCmd.Flags().StringVar(&docTitle, "title", "", "Document title")
	docAddCmd.Flags().StringVar(&docPath, "path", "", "Path of the PDF file")
	docAddCmd.Flags().IntVar(&docPages, "pages", 0, "Number of pages")
	docListCmd.Flags().BoolVar(&docJSON, "json", false, "Output in JSON format")

	docCmd.AddCommand(docAddCmd, docListCmd, docRmCmd)
	rootCmd.AddCommand(docCmd)
}

