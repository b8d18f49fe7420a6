package core

import "golang.org/x/text/unicode/norm"

// Tags is an ordered set of labels. Order is kept for display only; matching
// ignores it.
type Tags []string

// NewTags drops empty labels and duplicates, keeping the first occurrence.
// Duplicates are detected on the NFC form.
func NewTags(labels ...string) Tags {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(labels))
	out := make(Tags, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		key := norm.NFC.String(l)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Has reports whether label is in the set.
func (t Tags) Has(label string) bool {
	key := norm.NFC.String(label)
	for _, l := range t {
		if norm.NFC.String(l) == key {
			return true
		}
	}
	return false
}

// Intersects reports whether t and other share at least one label.
func (t Tags) Intersects(other Tags) bool {
	if len(t) == 0 || len(other) == 0 {
		return false
	}
	keys := make(map[string]bool, len(t))
	for _, l := range t {
		keys[norm.NFC.String(l)] = true
	}
	for _, l := range other {
		if keys[norm.NFC.String(l)] {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	copy(out, t)
	return out
}
