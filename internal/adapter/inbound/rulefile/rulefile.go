// Package rulefile loads routing rules from a YAML file and keeps the live
// rule set in sync with it.
package rulefile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/jonny/switchyard/internal/domain/model"
)

const DefaultDebounce = 500 * time.Millisecond

type document struct {
	Rules []model.RoutingRule `yaml:"rules"`
}

// Parse decodes a rules document.
func Parse(data []byte) ([]model.RoutingRule, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return doc.Rules, nil
}

// Load reads and parses the rules file at path.
func Load(path string) ([]model.RoutingRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Replacer atomically swaps the live rule set.
type Replacer interface {
	Replace(ctx context.Context, rules []model.RoutingRule) error
}

// Watcher applies the rules file on start and again after every change.
// A file that fails to parse or validate leaves the previous rules live.
type Watcher struct {
	path     string
	target   Replacer
	debounce time.Duration
	logger   *slog.Logger
}

func NewWatcher(path string, target Replacer, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, target: target, debounce: debounce, logger: logger}
}

// Apply loads the file once and replaces the live rules.
func (w *Watcher) Apply(ctx context.Context) error {
	rules, err := Load(w.path)
	if err != nil {
		return err
	}
	if err := w.target.Replace(ctx, rules); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "routing rules loaded from file", "path", w.path, "count", len(rules))
	return nil
}

// Run applies the file and watches it until ctx is cancelled. The parent
// directory is watched so editors that save by rename are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Apply(ctx); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	target := filepath.Clean(w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Apply(ctx); err != nil {
				w.logger.ErrorContext(ctx, "rules file reload rejected; keeping previous rules", "path", w.path, "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.ErrorContext(ctx, "rules file watcher error", "error", err)
		}
	}
}
