// Package watch turns source edits into discovery passes. Every settled
// batch of changed .go files becomes one pass over the packages that
// changed; cancelling the context ends the run with the terminal pass.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iVampireSP/metainf/internal/ctxlog"
	"github.com/iVampireSP/metainf/internal/provider"
)

// Loader loads provider declarations for package patterns.
type Loader interface {
	Load(ctx context.Context, patterns ...string) ([]provider.Declaration, error)
}

// Matcher reports whether a root-relative directory is excluded.
type Matcher interface {
	Match(relPath string) bool
}

// Config holds watcher configuration options.
type Config struct {
	Root     string
	Debounce time.Duration
	Ignore   Matcher
}

// Watcher is a driver source fed by fsnotify.
type Watcher struct {
	fsw    *fsnotify.Watcher
	cfg    Config
	loader Loader
}

// New creates a watcher over every non-ignored directory below cfg.Root.
func New(cfg Config, loader Loader) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{fsw: fsw, cfg: cfg, loader: loader}
	if err := w.addTree(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Next blocks until a batch of edits settles and returns the pass for the
// affected packages. Packages that fail to load are logged and skipped
// until they are edited again.
func (w *Watcher) Next(ctx context.Context) (provider.Pass, error) {
	logger := ctxlog.FromContext(ctx)

	dirs := make(map[string]bool)
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return provider.TerminalPass(), nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return provider.TerminalPass(), nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warn("watch new directory", "dir", ev.Name, "err", err)
					}
					continue
				}
			}
			if !isRelevant(ev) {
				continue
			}
			dirs[filepath.Dir(ev.Name)] = true
			settle = time.After(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return provider.TerminalPass(), nil
			}
			logger.Warn("watch error", "err", err)

		case <-settle:
			settle = nil
			patterns := w.patterns(dirs)
			clear(dirs)
			if len(patterns) == 0 {
				continue
			}
			decls, err := w.loader.Load(ctx, patterns...)
			if err != nil {
				logger.Warn("load changed packages", "packages", patterns, "err", err)
				continue
			}
			logger.Info("changes detected", "packages", patterns, "providers", len(decls))
			return provider.Pass{Declarations: decls}, nil
		}
	}
}

// isRelevant keeps writes, creations and renames of non-test Go files.
func isRelevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(ev.Name, ".go") && !strings.HasSuffix(ev.Name, "_test.go")
}

// patterns maps changed directories that still hold Go files to package
// patterns relative to the root.
func (w *Watcher) patterns(dirs map[string]bool) []string {
	var out []string
	for dir := range dirs {
		if !hasGoFiles(dir) {
			continue
		}
		rel, err := filepath.Rel(w.cfg.Root, dir)
		if err != nil {
			continue
		}
		if rel == "." {
			out = append(out, ".")
			continue
		}
		out = append(out, "./"+filepath.ToSlash(rel))
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.cfg.Root && w.skip(path, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) skip(path, name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor" || name == "META-INF" {
		return true
	}
	if w.cfg.Ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.cfg.Root, path)
	return err == nil && w.cfg.Ignore.Match(filepath.ToSlash(rel))
}

func hasGoFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") && !strings.HasSuffix(e.Name(), "_test.go") {
			return true
		}
	}
	return false
}
