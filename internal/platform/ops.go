package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/academiaflow/annotengine/pkg/adapters/fs"
	"github.com/academiaflow/annotengine/pkg/adapters/memory"
	"github.com/academiaflow/annotengine/pkg/adapters/sqlite"
	"github.com/academiaflow/annotengine/pkg/core"
)

// Init builds and initializes the store selected by the options. uri is
// adapter-specific: a directory for "fs", a database file for "sqlite",
// ignored for "memory".
func Init(uri string, opts ...Option) (core.Repository, error) {
	return initRepository(uri, apply(opts))
}

func initRepository(uri string, o *options) (core.Repository, error) {
	if o.repository != nil {
		return o.repository, nil
	}

	var repo core.Repository
	var err error
	switch o.adapter {
	case AdapterFS, "":
		repo, err = initFS(uri, o)
	case AdapterSQLite:
		repo, err = initSQLite(uri, o)
	case AdapterMemory:
		repo = memory.NewRepository()
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.Initialize(context.Background()); err != nil {
		closeQuietly(repo)
		return nil, err
	}
	return repo, nil
}

// resolve applies the dev sandbox to path and logs the decision.
func resolve(path string, o *options) (string, bool) {
	bypass := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypass)
	resolved := ResolvePath(path, useTemp)

	if o.logger != nil {
		switch {
		case useTemp:
			o.logger.Warn("running in safe mode (dev sandbox)", "original_path", path, "resolved_path", resolved)
		case IsDevRun() && o.readOnly:
			o.logger.Debug("running read-only, dev sandbox bypassed", "path", resolved)
		case IsDevRun():
			o.logger.Warn("running unsafe, dev sandbox disabled", "path", resolved)
		}
	}
	return resolved, useTemp
}

func initFS(path string, o *options) (core.Repository, error) {
	resolved, useTemp := resolve(path, o)

	systemDir := o.systemDir
	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}

	var gitless bool
	if o.versioning != nil {
		gitless = !*o.versioning
	} else {
		gitless = detectGitless(resolved, systemDir, o)
	}
	if !gitless && !fs.IsGitInstalled() {
		if o.versioning != nil {
			return nil, fmt.Errorf("versioning requested but git is not installed")
		}
		gitless = true
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		AutoInit:     o.autoInit,
		Gitless:      gitless,
		MustExist:    o.mustExist || (!o.autoInit && !useTemp),
		ReadOnly:     o.readOnly,
		Logger:       o.logger,
		SystemDir:    systemDir,
		Format:       o.format,
		ErrorHandler: o.errorHandler,
	}), nil
}

// detectGitless decides versioning when the caller did not: an existing .git
// means versioned; a fresh store created with AutoInit is versioned; an
// existing store without .git stays plain files.
func detectGitless(path, systemDir string, o *options) bool {
	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		return false
	}
	gitless := true
	if o.autoInit {
		_, err := os.Stat(filepath.Join(path, systemDir))
		gitless = err == nil
	}
	if gitless && o.logger != nil {
		o.logger.Debug("auto-detected gitless mode", "reason", ".git missing")
	}
	return gitless
}

func initSQLite(path string, o *options) (core.Repository, error) {
	resolved, _ := resolve(path, o)
	if filepath.Ext(resolved) == "" {
		resolved = filepath.Join(resolved, "annotations.db")
	}
	if o.mustExist || (!o.autoInit && o.readOnly) {
		if _, err := os.Stat(resolved); err != nil {
			return nil, fmt.Errorf("database does not exist: %s", resolved)
		}
	}
	return sqlite.Open(sqlite.Config{
		Path:     resolved,
		Key:      o.key,
		ReadOnly: o.readOnly,
		Logger:   o.logger,
	})
}

func closeQuietly(repo core.Repository) {
	if c, ok := repo.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
