// Package git wraps the git executable for versioned annotation stores.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultLockName is the lock file used when NewClient receives an empty name.
const DefaultLockName = ".annot.lock"

// ErrLockTimeout is returned when the lock file stays held past the deadline.
var ErrLockTimeout = errors.New("git lock timeout")

// Client runs git commands in one working directory. Commands do not take the
// lock themselves; callers hold it around a write and its commit.
type Client struct {
	WorkDir  string
	Logger   *slog.Logger
	lockPath string
}

// NewClient creates a client for workDir. lockName is the file, relative to
// workDir, used for cross-process locking.
func NewClient(workDir, lockName string, logger *slog.Logger) *Client {
	if lockName == "" {
		lockName = DefaultLockName
	}
	return &Client{
		WorkDir:  workDir,
		Logger:   logger,
		lockPath: lockName,
	}
}

// IsInstalled reports whether a git executable is on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Lock acquires the file lock, polling until it is free or ctx ends.
func (c *Client) Lock(ctx context.Context) (func(), error) {
	full := filepath.Join(c.WorkDir, c.lockPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to prepare lock dir: %w", err)
	}

	for {
		f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() { os.Remove(full) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, full, ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Run executes git with args in the working directory.
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	if c.Logger != nil {
		c.Logger.Debug("executing git", "args", args, "dir", c.WorkDir)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.WorkDir
	cmd.Env = withIdentity(os.Environ())

	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\nOutput: %s", args[0], err, output)
	}
	return strings.TrimSpace(output), nil
}

// withIdentity fills in author and committer variables missing from env.
func withIdentity(env []string) []string {
	defaults := map[string]string{
		"GIT_AUTHOR_NAME":     "annotengine",
		"GIT_AUTHOR_EMAIL":    "annotengine@localhost",
		"GIT_COMMITTER_NAME":  "annotengine",
		"GIT_COMMITTER_EMAIL": "annotengine@localhost",
	}
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok {
			delete(defaults, k)
		}
	}
	for k, v := range defaults {
		env = append(env, k+"="+v)
	}
	return env
}

// Init creates the repository. Re-running it is harmless.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.Run(ctx, "init")
	return err
}

// IsRepo reports whether WorkDir is inside a work tree.
func (c *Client) IsRepo(ctx context.Context) bool {
	out, err := c.Run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Add stages files.
func (c *Client) Add(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	_, err := c.Run(ctx, append([]string{"add", "--"}, files...)...)
	return err
}

// Rm removes files from the work tree and the index. Untracked files are
// ignored.
func (c *Client) Rm(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	_, err := c.Run(ctx, append([]string{"rm", "-r", "-f", "-q", "--ignore-unmatch", "--"}, files...)...)
	return err
}

// Commit records staged changes. An empty stage is not an error.
func (c *Client) Commit(ctx context.Context, msg string) error {
	status, err := c.Run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return err
	}
	if status == "" {
		return nil
	}
	_, err = c.Run(ctx, "commit", "-m", msg)
	return err
}

// Unstage resets the index entries of files to HEAD, leaving the work tree
// alone. Before the first commit the entries are dropped from the index.
func (c *Client) Unstage(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	if _, err := c.Run(ctx, append([]string{"reset", "-q", "--"}, files...)...); err == nil {
		return nil
	}
	_, err := c.Run(ctx, append([]string{"rm", "-r", "--cached", "-q", "--ignore-unmatch", "--"}, files...)...)
	return err
}

// Status returns the porcelain status.
func (c *Client) Status(ctx context.Context) (string, error) {
	return c.Run(ctx, "status", "--porcelain")
}

// Entry is one commit touching a path.
type Entry struct {
	Hash    string
	Author  string
	Date    time.Time
	Subject string
}

const fieldSep = "\x1f"

// Log lists commits touching path, newest first. A path with no history
// yields an empty list.
func (c *Client) Log(ctx context.Context, path string) ([]Entry, error) {
	out, err := c.Run(ctx, "log", "--format=%H%x1f%an%x1f%aI%x1f%s", "--", path)
	if err != nil {
		// A repository without commits has no HEAD yet.
		if strings.Contains(out, "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}
	return parseLog(out)
}

func parseLog(out string) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, fieldSep, 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("unexpected git log line: %q", line)
		}
		date, err := time.Parse(time.RFC3339, parts[2])
		if err != nil {
			return nil, fmt.Errorf("bad commit date %q: %w", parts[2], err)
		}
		entries = append(entries, Entry{Hash: parts[0], Author: parts[1], Date: date, Subject: parts[3]})
	}
	return entries, nil
}
