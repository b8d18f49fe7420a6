package session

import (
	"fmt"

	"github.com/academiaflow/annotengine/pkg/core"
)

type filterMode int

const (
	filterAll filterMode = iota
	filterKind
	filterCategory
	filterTags
)

// Filter selects a subset of annotations. The zero value matches everything.
type Filter struct {
	mode     filterMode
	kind     core.Kind
	category string
	tags     core.Tags
}

// All matches every annotation.
func All() Filter { return Filter{} }

// ByKind matches annotations of kind k.
func ByKind(k core.Kind) Filter { return Filter{mode: filterKind, kind: k} }

// ByCategory matches annotations whose category equals c.
func ByCategory(c string) Filter { return Filter{mode: filterCategory, category: c} }

// ByTags matches annotations sharing at least one tag with the given set.
// An empty set matches nothing.
func ByTags(tags ...string) Filter { return Filter{mode: filterTags, tags: core.NewTags(tags...)} }

// Match reports whether s passes the filter.
func (f Filter) Match(s core.Snapshot) bool {
	switch f.mode {
	case filterKind:
		return s.Kind == f.kind
	case filterCategory:
		return s.Category == f.category
	case filterTags:
		return s.Tags.Intersects(f.tags)
	}
	return true
}

func (f Filter) String() string {
	switch f.mode {
	case filterKind:
		return "kind=" + string(f.kind)
	case filterCategory:
		return "category=" + f.category
	case filterTags:
		return fmt.Sprintf("tags=%v", []string(f.tags))
	}
	return "all"
}

// ApplyFilter returns the snapshots matching f, in input order. The input is
// not modified.
func ApplyFilter(list []core.Snapshot, f Filter) []core.Snapshot {
	out := make([]core.Snapshot, 0, len(list))
	for _, s := range list {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
