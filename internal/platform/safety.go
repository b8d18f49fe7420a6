package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// DevDirName is the temp subdirectory that sandboxed stores are moved into.
const DevDirName = "annotengine-dev"

// IsDevRun reports whether the process runs from a `go run` or `go test`
// build, whose binaries live in the temp directory or end in .test.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolvePath returns the store path to use. With forceTemp, paths outside
// the temp directory are re-rooted under DevDirName by base name; paths
// already inside it are kept.
func ResolvePath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	clean := filepath.Clean(userPath)
	if rel, err := filepath.Rel(os.TempDir(), clean); err == nil && !strings.HasPrefix(rel, "..") {
		return clean
	}

	name := filepath.Base(clean)
	if userPath == "" || name == "." || name == string(os.PathSeparator) {
		name = "default"
	}
	return filepath.Join(os.TempDir(), DevDirName, name)
}
