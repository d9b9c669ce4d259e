package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Merge rules for included files:
//
//   - Sections other than bots are decoded onto the same Config in
//     include order, depth first. The main file is decoded once more at
//     the end, so its own values win.
//   - Bots form a roster keyed by name. The main file's bots come first,
//     then each included file's bots in walk order. A name that is
//     already on the roster is skipped, never overwritten.
//   - An included file may not declare the same bot name twice.
//     Duplicates inside the main file are reported by Validate.

const maxIncludeDepth = 10

// botRoster is the ordered set of bot declarations collected across files.
type botRoster struct {
	bots  []BotConfig
	names map[string]bool
}

func newBotRoster(main []BotConfig) *botRoster {
	r := &botRoster{names: make(map[string]bool, len(main))}
	for _, b := range main {
		r.names[b.Name] = true
	}
	r.bots = append(r.bots, main...)
	return r
}

// admit adds the bots declared by one included file. Names already on
// the roster are skipped.
func (r *botRoster) admit(file string, bots []BotConfig) error {
	local := make(map[string]bool, len(bots))
	for _, b := range bots {
		if local[b.Name] {
			return fmt.Errorf("config includes: bot %q declared twice in %q", b.Name, file)
		}
		local[b.Name] = true
		if r.names[b.Name] {
			continue
		}
		r.names[b.Name] = true
		r.bots = append(r.bots, b)
	}
	return nil
}

// includeWalker follows the include graph of one main config file.
type includeWalker struct {
	cfg     *Config
	roster  *botRoster
	visited map[string]bool // absolute paths
}

// loadIncludes applies the includes of the main file at path. cfg holds
// the main file already decoded from data.
func loadIncludes(cfg *Config, path string, data []byte) error {
	w := &includeWalker{
		cfg:     cfg,
		roster:  newBotRoster(cfg.Bots),
		visited: map[string]bool{path: true},
	}
	if err := w.walk(filepath.Dir(path), 0); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config (second pass): %w", err)
	}
	cfg.Bots = w.roster.bots
	cfg.Includes = nil
	return nil
}

// walk merges every file named by cfg.Includes, resolved against baseDir.
func (w *includeWalker) walk(baseDir string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	patterns := w.cfg.Includes
	w.cfg.Includes = nil
	for _, pattern := range patterns {
		paths, err := resolveIncludePaths(pattern, baseDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("config includes: abs path %q: %w", p, err)
			}
			if w.visited[abs] {
				return fmt.Errorf("config includes: circular include detected for %q", abs)
			}
			w.visited[abs] = true

			if err := w.merge(abs, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge decodes one included file onto cfg, moves its bots to the roster
// and then follows the file's own includes.
func (w *includeWalker) merge(path string, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}

	w.cfg.Includes = nil
	w.cfg.Bots = nil
	if err := yaml.Unmarshal(data, w.cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	if err := w.roster.admit(path, w.cfg.Bots); err != nil {
		return err
	}
	w.cfg.Bots = nil

	if len(w.cfg.Includes) == 0 {
		return nil
	}
	return w.walk(filepath.Dir(path), depth)
}

// resolveIncludePaths expands pattern relative to baseDir. A literal path
// that does not exist is returned as is so the read reports it; a glob
// with no matches yields nothing.
func resolveIncludePaths(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}
	pattern = filepath.Clean(pattern)

	rel, err := filepath.Rel(baseDir, pattern)
	if err == nil && len(rel) >= 2 && rel[:2] == ".." {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 && !hasMeta(pattern) {
		return []string{pattern}, nil
	}
	return matches, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[':
			return true
		}
	}
	return false
}
