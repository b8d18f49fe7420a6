package core

import (
	"fmt"
	"strings"
)

// Kind classifies an annotation. The set is open: unknown kinds survive a
// round trip through the store and render as highlights.
type Kind string

const (
	KindHighlight     Kind = "highlight"
	KindUnderline     Kind = "underline"
	KindStrikethrough Kind = "strikethrough"
	KindNote          Kind = "note"
)

// Kinds lists the kinds the engine knows how to draw.
var Kinds = []Kind{KindHighlight, KindUnderline, KindStrikethrough, KindNote}

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind parses a user-supplied kind name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "highlight":
		return KindHighlight, nil
	case "underline":
		return KindUnderline, nil
	case "strikethrough", "strikeout", "strike":
		return KindStrikethrough, nil
	case "note", "text":
		return KindNote, nil
	}
	return "", fmt.Errorf("unknown annotation kind %q", s)
}
