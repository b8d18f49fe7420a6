package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/academiaflow/annotengine"
	"github.com/academiaflow/annotengine/pkg/git"
)

var (
	changeReason string
	changeType   string
	changeScope  string
)

// addReasonFlags registers the commit message flags on a write command.
func addReasonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&changeReason, "message", "m", "", "Change reason (commit subject)")
	cmd.Flags().StringVarP(&changeType, "type", "t", "", "Change type (feat, fix, docs, chore)")
	cmd.Flags().StringVarP(&changeScope, "scope", "s", "", "Commit scope (default: the document id)")
}

// reasonContext carries the commit message for a write. Without flags the
// store's default message is used.
func reasonContext(ctx context.Context, docID, fallback string) context.Context {
	if changeReason == "" && changeType == "" {
		return ctx
	}
	if changeType == "" {
		return annotengine.WithChangeReason(ctx, git.AppendFooter(changeReason))
	}
	subject := changeReason
	if subject == "" {
		subject = fallback
	}
	scope := changeScope
	if scope == "" {
		scope = docID
	}
	return annotengine.WithChangeReason(ctx, annotengine.FormatChangeReason(changeType, scope, subject, ""))
}
