package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/academiaflow/annotengine/pkg/core"
	"github.com/academiaflow/annotengine/pkg/session"
)

var (
	addPage     int
	addRect     []float64
	addKind     string
	addColor    string
	addContents string
	addCategory string
	addTags     []string

	listKind     string
	listCategory string
	listTags     []string
	listJSON     bool
	listHidden   bool

	editColor    string
	editContents string
	editCategory string
	editTags     []string
	editHidden   bool
)

var addCmd = &cobra.Command{
	Use:   "add [document]",
	Short: "Add an annotation to a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docID := args[0]
		kind, err := core.ParseKind(addKind)
		if err != nil {
			return err
		}
		if len(addRect) != 4 {
			return fmt.Errorf("--rect needs x,y,width,height")
		}
		col, err := core.ParseColor(addColor)
		if err != nil {
			return err
		}

		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		ctx := context.Background()
		doc, err := gw.GetDocument(ctx, docID)
		if err != nil {
			return err
		}

		a := core.NewAnnotation(core.Draft{
			Page:     addPage,
			Kind:     kind,
			Color:    col.Hex(),
			Contents: addContents,
			Bounds:   core.BoundsFromArray(addRect),
			Category: addCategory,
			Tags:     addTags,
		}, &doc, time.Now())
		if err := a.Validate(doc.PageCount); err != nil {
			return err
		}

		ctx = reasonContext(ctx, docID, "add "+string(kind)+" on page "+fmt.Sprint(addPage))
		if err := gw.Save(ctx, docID, a.Snapshot()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list [document]",
	Short: "List the annotations of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := listFilter()
		if err != nil {
			return err
		}

		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		snaps, err := gw.LoadAll(context.Background(), args[0])
		if err != nil {
			return err
		}
		sort.SliceStable(snaps, func(i, j int) bool {
			if snaps[i].Page != snaps[j].Page {
				return snaps[i].Page < snaps[j].Page
			}
			return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
		})

		out := session.ApplyFilter(snaps, filter)
		if !listHidden {
			visible := out[:0]
			for _, s := range out {
				if !s.Hidden {
					visible = append(visible, s)
				}
			}
			out = visible
		}

		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPAGE\tKIND\tCOLOR\tCATEGORY\tTAGS\tCONTENTS")
		for _, s := range out {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Page, s.Kind, s.Color, s.Category, strings.Join(s.Tags, ","), s.Contents)
		}
		return w.Flush()
	},
}

// listFilter builds the session filter from the flags; at most one applies.
func listFilter() (session.Filter, error) {
	set := 0
	for _, on := range []bool{listKind != "", listCategory != "", len(listTags) > 0} {
		if on {
			set++
		}
	}
	if set > 1 {
		return session.All(), errors.New("use only one of --kind, --category, --tag")
	}
	switch {
	case listKind != "":
		k, err := core.ParseKind(listKind)
		if err != nil {
			return session.All(), err
		}
		return session.ByKind(k), nil
	case listCategory != "":
		return session.ByCategory(listCategory), nil
	case len(listTags) > 0:
		return session.ByTags(listTags...), nil
	}
	return session.All(), nil
}

var rmCmd = &cobra.Command{
	Use:   "rm [annotation]",
	Short: "Delete an annotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		ctx := context.Background()
		s, err := gw.Get(ctx, args[0])
		if err != nil {
			return err
		}
		ctx = reasonContext(ctx, s.DocumentID, "remove "+s.ID)
		if err := gw.Delete(ctx, s.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Annotation deleted: %s\n", s.ID)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [annotation]",
	Short: "Change the color, contents, category, tags or visibility of an annotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var changes []session.Change
		flags := cmd.Flags()
		if flags.Changed("color") {
			col, err := core.ParseColor(editColor)
			if err != nil {
				return err
			}
			changes = append(changes, session.SetColor(col))
		}
		if flags.Changed("contents") {
			changes = append(changes, session.SetContents(editContents))
		}
		if flags.Changed("category") {
			changes = append(changes, session.SetCategory(editCategory))
		}
		if flags.Changed("tag") {
			changes = append(changes, session.SetTags(editTags...))
		}
		if flags.Changed("hidden") {
			changes = append(changes, session.SetHidden(editHidden))
		}
		if len(changes) == 0 {
			return errors.New("nothing to change")
		}

		gw, err := openGateway(cmd)
		if err != nil {
			return err
		}
		defer closeGateway(gw)

		ctx := context.Background()
		s, err := gw.Get(ctx, args[0])
		if err != nil {
			return err
		}
		a := core.FromSnapshot(s, nil)
		for _, change := range changes {
			change(a)
		}
		a.LastModified = time.Now().UTC()

		ctx = reasonContext(ctx, s.DocumentID, "edit "+s.ID)
		if err := gw.Save(ctx, s.DocumentID, a.Snapshot()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Annotation updated: %s\n", s.ID)
		return nil
	},
}

func init() {
	f := addCmd.Flags()
	f.IntVarP(&addPage, "page", "p", 1, "Page number, starting at 1")
	f.Float64SliceVar(&addRect, "rect", nil, "Bounds as x,y,width,height")
	f.StringVarP(&addKind, "kind", "k", string(core.KindHighlight), "highlight, underline, strikethrough or note")
	f.StringVar(&addColor, "color", core.Yellow.Hex(), "Color as #RRGGBB or #RRGGBBAA")
	f.StringVar(&addContents, "contents", "", "Annotation text")
	f.StringVar(&addCategory, "category", "", "Category")
	f.StringSliceVar(&addTags, "tag", nil, "Tags (repeatable)")
	_ = addCmd.MarkFlagRequired("rect")
	addReasonFlags(addCmd)

	f = listCmd.Flags()
	f.StringVar(&listKind, "kind", "", "Only this kind")
	f.StringVar(&listCategory, "category", "", "Only this category")
	f.StringSliceVar(&listTags, "tag", nil, "Only annotations sharing a tag")
	f.BoolVar(&listJSON, "json", false, "Output in JSON format")
	f.BoolVar(&listHidden, "all", false, "Include hidden annotations")

	addReasonFlags(rmCmd)

	f = editCmd.Flags()
	f.StringVar(&editColor, "color", "", "New color")
	f.StringVar(&editContents, "contents", "", "New text")
	f.StringVar(&editCategory, "category", "", "New category")
	f.StringSliceVar(&editTags, "tag", nil, "Replace tags (repeatable)")
	f.BoolVar(&editHidden, "hidden", false, "Hide or show")
	addReasonFlags(editCmd)

	rootCmd.AddCommand(addCmd, listCmd, rmCmd, editCmd)
}
