package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigFile is the optional project configuration read by the CLI.
const ConfigFile = "annotengine.yaml"

// ErrRootNotFound is returned by FindRoot when no marker exists up to the
// filesystem root.
var ErrRootNotFound = errors.New("store root not found")

// FindRoot walks up from startDir to the first directory holding a store
// marker: the system directory, a .git directory or ConfigFile.
func FindRoot(startDir, systemDir string) (string, error) {
	if systemDir == "" {
		systemDir = ".annot"
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if exists(dir, systemDir) || exists(dir, ".git") || exists(dir, ConfigFile) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
