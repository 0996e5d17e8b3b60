// Package gen implements the gen command.
package gen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"github.com/broady/shapeclient/shapegen"
	"github.com/broady/shapeclient/shapegen/model"
	"github.com/broady/shapeclient/shapegen/sink"
)

// debounce absorbs the burst of events an editor save produces.
const debounce = 200 * time.Millisecond

type Cmd struct {
	Model      string   `arg:"" optional:"" help:"Model file (JSON or YAML). Overrides the config file."`
	Out        string   `arg:"" optional:"" help:"Output directory. Overrides the config file."`
	Config     string   `help:"Config file (default: ./shapegen.yaml if present)." short:"c"`
	Package    string   `help:"Go package name (default: base name of the output directory)." short:"p"`
	Service    string   `help:"Service shape ID (required if the model has several)." short:"s"`
	Operations []string `help:"Only generate these operations." sep:","`
	Watch      bool     `help:"Regenerate when the model or config changes." short:"w"`
	Check      bool     `help:"Fail if the generated files are out of date instead of writing them."`
}

func (c *Cmd) Run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if err := c.generate(ctx, logger, cfg); err != nil {
		return err
	}
	if !c.Watch {
		return nil
	}
	return c.watch(ctx, logger, cfg)
}

// config merges the config file, if any, with the command line flags.
func (c *Cmd) config() (*shapegen.Config, error) {
	cfg := &shapegen.Config{}
	path := c.Config
	if path == "" {
		if _, err := os.Stat(shapegen.DefaultConfigFile); err == nil {
			path = shapegen.DefaultConfigFile
		}
	}
	if path != "" {
		loaded, err := shapegen.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		// Paths in a config file are relative to the file.
		dir := filepath.Dir(path)
		if loaded.Model != "" && !filepath.IsAbs(loaded.Model) {
			loaded.Model = filepath.Join(dir, loaded.Model)
		}
		if loaded.Out != "" && !filepath.IsAbs(loaded.Out) {
			loaded.Out = filepath.Join(dir, loaded.Out)
		}
		cfg = loaded
		c.Config = path
	}

	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.Out != "" {
		cfg.Out = c.Out
	}
	if c.Package != "" {
		cfg.Package = c.Package
	}
	if c.Service != "" {
		cfg.Service = c.Service
	}
	if len(c.Operations) > 0 {
		cfg.Operations = c.Operations
	}

	if cfg.Model == "" {
		return nil, errors.New("no model file: pass one or set model in the config file")
	}
	if cfg.Out == "" {
		return nil, errors.New("no output directory: pass one or set out in the config file")
	}
	if cfg.Package == "" {
		cfg.Package = PackageName(cfg.Out)
	}
	return cfg, nil
}

// PackageName derives a Go package name from a directory path.
func PackageName(dir string) string {
	base := strings.ToLower(filepath.Base(filepath.Clean(dir)))
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base)
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "client" + name
	}
	return name
}

func (c *Cmd) generate(ctx context.Context, logger *slog.Logger, cfg *shapegen.Config) error {
	m, err := model.LoadFile(cfg.Model)
	if err != nil {
		return err
	}

	run := *cfg
	var diff *sink.DiffSink
	if c.Check {
		diff = sink.NewDiffSink(cfg.Out)
		run.Sink = diff
	}
	res, err := shapegen.Generate(ctx, m, &run)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		logger.Warn(w)
	}

	if diff != nil {
		if stale := diff.Stale(); len(stale) > 0 {
			return fmt.Errorf("generated files are out of date in %s: %s", cfg.Out, strings.Join(stale, ", "))
		}
		logger.Info("generated files are up to date", "dir", cfg.Out)
		return nil
	}
	logger.Info("generated client", "dir", cfg.Out, "package", cfg.Package, "files", len(res.Files))
	return nil
}

// watch regenerates whenever the model or config file changes, until ctx
// is done. Generation errors are logged and watching continues.
func (c *Cmd) watch(ctx context.Context, logger *slog.Logger, cfg *shapegen.Config) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	files := lo.Compact([]string{absPath(cfg.Model), lo.Ternary(c.Config != "", absPath(c.Config), "")})
	// Editors often replace files by rename, so watch the directories.
	for _, dir := range lo.Uniq(lo.Map(files, func(f string, _ int) string { return filepath.Dir(f) })) {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	logger.Info("watching for changes", "files", files)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !lo.Contains(files, filepath.Clean(e.Name)) {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounce)
		case <-pending:
			pending = nil
			next := cfg
			if c.Config != "" {
				reloaded, err := c.config()
				if err != nil {
					logger.Error("reload config", "err", err)
					continue
				}
				next = reloaded
			}
			if err := c.generate(ctx, logger, next); err != nil {
				logger.Error("generate", "err", err)
			}
		}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
