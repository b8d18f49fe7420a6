package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/academiaflow/annotengine"
	"github.com/academiaflow/annotengine/internal/platform"
)

// keyEnv holds the SQLCipher key; keys never live in the config file.
const keyEnv = "ANNOTENGINE_KEY"

// fileConfig mirrors annotengine.yaml. Flags override file values.
type fileConfig struct {
	Adapter    string `yaml:"adapter"`
	Path       string `yaml:"path"`
	Format     string `yaml:"format"`
	Versioning *bool  `yaml:"versioning"`
	Timeout    string `yaml:"timeout"`
	SystemDir  string `yaml:"system_dir"`

	root string
}

// loadConfig locates the store root and reads its config file, if any.
func loadConfig(cmd *cobra.Command) (fileConfig, error) {
	var c fileConfig

	root := storePath
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return c, err
		}
		if found, err := annotengine.FindRoot(wd); err == nil {
			root = found
		} else {
			root = wd
		}
	}
	c.root = root

	data, err := os.ReadFile(filepath.Join(root, platform.ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid %s: %w", platform.ConfigFile, err)
	}
	c.root = root
	slog.Debug("loaded config", "file", filepath.Join(root, platform.ConfigFile))
	return c, nil
}

// location returns the adapter uri: the configured path, relative to the
// store root.
func (c fileConfig) location() string {
	switch {
	case c.Path == "":
		return c.root
	case filepath.IsAbs(c.Path):
		return c.Path
	default:
		return filepath.Join(c.root, c.Path)
	}
}

// options merges the config file and the flags into engine options.
func (c fileConfig) options(cmd *cobra.Command) ([]annotengine.Option, error) {
	opts := []annotengine.Option{
		annotengine.WithLogger(slog.Default()),
		annotengine.WithDevSafety(false),
		annotengine.WithErrorHandler(func(err error) {
			slog.Warn("store error", "error", err)
		}),
	}

	name := c.Adapter
	if cmd.Flags().Changed("adapter") {
		name = adapter
	}
	if name != "" {
		opts = append(opts, annotengine.WithAdapter(name))
	}

	f := c.Format
	if cmd.Flags().Changed("format") {
		f = format
	}
	if f != "" {
		opts = append(opts, annotengine.WithFormat(f))
	}

	switch {
	case cmd.Flags().Changed("gitless"):
		opts = append(opts, annotengine.WithVersioning(!gitless))
	case c.Versioning != nil:
		opts = append(opts, annotengine.WithVersioning(*c.Versioning))
	}

	t := c.Timeout
	if cmd.Flags().Changed("timeout") {
		t = timeout
	}
	if t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
		opts = append(opts, annotengine.WithTimeout(d))
	}

	if c.SystemDir != "" {
		opts = append(opts, annotengine.WithSystemDir(c.SystemDir))
	}
	if key := os.Getenv(keyEnv); key != "" {
		opts = append(opts, annotengine.WithEncryptionKey(key))
	}
	return opts, nil
}

// openGateway starts a gateway on the configured store. The caller closes it.
func openGateway(cmd *cobra.Command, extra ...annotengine.Option) (*annotengine.Gateway, error) {
	opts, err := cfg.options(cmd)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)
	return annotengine.New(cfg.location(), opts...)
}

func closeGateway(gw *annotengine.Gateway) {
	if err := gw.Close(context.Background()); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}
