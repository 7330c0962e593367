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

// Package linksources walks a final-link command's source list back to the
// smallest original objects the accelerator actually knows how to recompile,
// descending into recorded thin archives along the way.
package linksources

import (
	"fmt"
	"path/filepath"
	"strings"

	"ccelerate/internal/argmodel"
	"ccelerate/internal/store"
)

// Result is the outcome of walking a link command's sources.
type Result struct {
	// UnknownSources are link inputs with no matching record — precompiled
	// elsewhere, or not a recognized object/archive extension — passed to
	// the real linker verbatim.
	UnknownSources []string
	// KnownObjectFiles are object records this accelerator produced, and
	// so can be merged with compatible siblings before the real link.
	KnownObjectFiles []*store.ObjectRecord
}

// Walker resolves link sources against the record store, avoiding infinite
// recursion through self-referential archives via a visited set.
type Walker struct {
	st      *store.Store
	visited map[string]struct{}
	result  Result
}

// Find walks DFS from every path in sources and returns the resolved
// unknown-sources / known-object-files split.
func Find(st *store.Store, sources []string) (Result, error) {
	w := &Walker{st: st, visited: map[string]struct{}{}}
	for _, s := range sources {
		if err := w.visit(s); err != nil {
			return Result{}, err
		}
	}
	return w.result, nil
}

func (w *Walker) visit(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".a":
		return w.visitArchive(path)
	case ".o":
		return w.visitObject(path)
	default:
		w.result.UnknownSources = append(w.result.UnknownSources, path)
		return nil
	}
}

func (w *Walker) visitArchive(path string) error {
	if _, seen := w.visited[path]; seen {
		return nil
	}
	w.visited[path] = struct{}{}

	record, err := w.st.GetArchiveFile(path)
	if err != nil {
		return fmt.Errorf("linksources: looking up archive %s: %w", path, err)
	}
	if record == nil {
		w.result.UnknownSources = append(w.result.UnknownSources, path)
		return nil
	}
	if !record.Binary.IsArCompatible() {
		return fmt.Errorf("linksources: archive not created by ar: %s", path)
	}
	arArgs, err := argmodel.ParseArArgs(record.Cwd, record.Args)
	if err != nil {
		return fmt.Errorf("linksources: re-parsing archive record for %s: %w", path, err)
	}
	for _, m := range arArgs.Members {
		if err := w.visit(m); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) visitObject(path string) error {
	if _, seen := w.visited[path]; seen {
		return nil
	}
	w.visited[path] = struct{}{}

	record, err := w.st.GetObjectFile(path)
	if err != nil {
		return fmt.Errorf("linksources: looking up object %s: %w", path, err)
	}
	if record == nil {
		w.result.UnknownSources = append(w.result.UnknownSources, path)
		return nil
	}
	if !record.Binary.IsGCCCompatible() {
		return fmt.Errorf("linksources: object not created by a gcc-compatible tool: %s", path)
	}
	w.result.KnownObjectFiles = append(w.result.KnownObjectFiles, record)
	return nil
}
