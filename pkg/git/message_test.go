package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name    string
		ctype   string
		scope   string
		subject string
		body    string
		want    string
	}{
		{"simple", TypeFeat, "", "add highlight", "", "feat: add highlight\n\n" + Footer},
		{"with scope", TypeFix, "pdf-42", "move note", "", "fix(pdf-42): move note\n\n" + Footer},
		{"with body", TypeDocs, "", "retag", "  Tagged for review.\n", "docs: retag\n\nTagged for review.\n\n" + Footer},
		{"default type", "", "", "cleanup", "", "chore: cleanup\n\n" + Footer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMessage(tt.ctype, tt.scope, tt.subject, tt.body))
		})
	}
}

func TestAppendFooter(t *testing.T) {
	assert.Equal(t, "annotation: save a1\n\n"+Footer, AppendFooter("annotation: save a1"))
	assert.Equal(t, "line\n\n"+Footer, AppendFooter("line\n\n"))

	already := FormatMessage(TypeFeat, "", "x", "")
	assert.Equal(t, already, AppendFooter(already))
}
