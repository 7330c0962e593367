// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config discovers and merges ccelerate.toml files and answers the
// classification queries the rest of the server relies on: which paths are
// eager, which headers are "local" rather than shareable, which headers need
// an extern "C" wrapper in C++ units, which global symbols are known-bad, and
// which preprocessor defines are worth hoisting into a synthetic prologue.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

const fileName = "ccelerate.toml"

// configFile is the on-disk shape of a ccelerate.toml.
type configFile struct {
	EagerPatterns           []string `toml:"eager_patterns"`
	LocalHeaderPatterns     []string `toml:"local_header_patterns"`
	IncludeDefines          []string `toml:"include_defines"`
	PureCHeaderPatterns     []string `toml:"pure_c_header_patterns"`
	BadGlobalSymbolsPattern []string `toml:"bad_global_symbols_patterns"`
}

// Config is an immutable, merged view over zero or more ccelerate.toml
// files. Re-resolution never mutates an existing Config; it produces a new
// one, so callers that captured a *Config earlier keep a stable snapshot.
type Config struct {
	eagerPatterns       []string
	localHeaderPatterns []string
	pureCHeaderPatterns []string
	badGlobalPatterns   []string
	includeDefines      map[string]struct{}
}

func empty() *Config {
	return &Config{includeDefines: map[string]struct{}{}}
}

func anyMatch(patterns []string, path string) bool {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, path)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// IsEagerPath reports whether path matches one of the eager_patterns.
func (c *Config) IsEagerPath(path string) bool { return anyMatch(c.eagerPatterns, path) }

// IsLocalHeader reports whether path matches one of the local_header_patterns.
func (c *Config) IsLocalHeader(path string) bool { return anyMatch(c.localHeaderPatterns, path) }

// IsPureCHeader reports whether path matches one of the pure_c_header_patterns.
func (c *Config) IsPureCHeader(path string) bool { return anyMatch(c.pureCHeaderPatterns, path) }

// HasBadGlobalSymbol reports whether path matches one of the
// bad_global_symbols_patterns.
func (c *Config) HasBadGlobalSymbol(path string) bool { return anyMatch(c.badGlobalPatterns, path) }

// IsIncludeDefine reports whether name is one of the configured
// include_defines macro names.
func (c *Config) IsIncludeDefine(name string) bool {
	_, ok := c.includeDefines[name]
	return ok
}

// merge returns a new Config with extra's patterns appended after c's.
func (c *Config) merge(extra configFile) *Config {
	next := &Config{
		eagerPatterns:       append(append([]string(nil), c.eagerPatterns...), extra.EagerPatterns...),
		localHeaderPatterns: append(append([]string(nil), c.localHeaderPatterns...), extra.LocalHeaderPatterns...),
		pureCHeaderPatterns: append(append([]string(nil), c.pureCHeaderPatterns...), extra.PureCHeaderPatterns...),
		badGlobalPatterns:   append(append([]string(nil), c.badGlobalPatterns...), extra.BadGlobalSymbolsPattern...),
		includeDefines:      make(map[string]struct{}, len(c.includeDefines)+len(extra.IncludeDefines)),
	}
	for k := range c.includeDefines {
		next.includeDefines[k] = struct{}{}
	}
	for _, d := range extra.IncludeDefines {
		next.includeDefines[d] = struct{}{}
	}
	return next
}

// Manager incrementally discovers ccelerate.toml files for the paths it is
// asked about, and keeps a merged Config current. Directories found to carry
// no config file are memoized so repeat queries short-circuit; this
// memoization is sticky for the manager's lifetime — a config file created
// after the first query for a directory is not picked up.
type Manager struct {
	mu                sync.Mutex
	current           *Config
	seenConfigPaths   map[string]struct{}
	dirsWithoutConfig map[string]struct{}
}

// NewManager returns a Manager with no configuration loaded yet.
func NewManager() *Manager {
	return &Manager{
		current:           empty(),
		seenConfigPaths:   map[string]struct{}{},
		dirsWithoutConfig: map[string]struct{}{},
	}
}

// ConfigForPaths resolves the merged Config governing the given absolute
// paths, walking each path's ancestor chain outward-in for ccelerate.toml
// files not yet incorporated. It returns the cached Config unchanged if
// nothing new is discovered.
func (m *Manager) ConfigForPaths(paths []string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newlyFound []string
	for _, p := range paths {
		for _, ancestor := range ancestorsOutwardIn(filepath.Dir(p)) {
			if _, skip := m.dirsWithoutConfig[ancestor]; skip {
				continue
			}
			candidate := filepath.Join(ancestor, fileName)
			if _, seen := m.seenConfigPaths[candidate]; seen {
				continue
			}
			if _, err := os.Stat(candidate); err != nil {
				m.dirsWithoutConfig[ancestor] = struct{}{}
				continue
			}
			newlyFound = append(newlyFound, candidate)
		}
	}

	if len(newlyFound) == 0 {
		return m.current, nil
	}

	merged := m.current
	for _, configPath := range newlyFound {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
		var cf configFile
		if err := toml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
		}
		for _, patterns := range [][]string{cf.EagerPatterns, cf.LocalHeaderPatterns, cf.PureCHeaderPatterns, cf.BadGlobalSymbolsPattern} {
			for _, p := range patterns {
				if !doublestar.ValidatePattern(p) {
					return nil, fmt.Errorf("config: %s: invalid glob pattern %q", configPath, p)
				}
			}
		}
		merged = merged.merge(cf)
		m.seenConfigPaths[configPath] = struct{}{}
	}

	m.current = merged
	return m.current, nil
}

// ancestorsOutwardIn returns dir and every ancestor of it, ordered from the
// filesystem root inward to dir itself, so configs are merged in
// ancestor-first, inner-most-last order.
func ancestorsOutwardIn(dir string) []string {
	var chain []string
	for {
		chain = append(chain, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
