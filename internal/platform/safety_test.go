package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDevRun(t *testing.T) {
	assert.True(t, IsDevRun(), "test binaries count as dev runs")
}

func TestResolvePath(t *testing.T) {
	tmp := os.TempDir()

	tests := []struct {
		name      string
		path      string
		forceTemp bool
		want      string
	}{
		{"kept", "/srv/annotations", false, "/srv/annotations"},
		{"empty means cwd", "", false, "."},
		{"re-rooted", "/srv/annotations", true, filepath.Join(tmp, DevDirName, "annotations")},
		{"already in temp", filepath.Join(tmp, "x", "store"), true, filepath.Join(tmp, "x", "store")},
		{"empty in temp", "", true, filepath.Join(tmp, DevDirName, "default")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePath(tt.path, tt.forceTemp))
		})
	}
}
