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

// Package compileobject handles a gcc-family "-c" request: it preprocesses
// the translation unit with defines preserved, splits the result into local
// code and global includes via internal/localcode, records both the
// original command and the split on the object's path, and writes a
// placeholder object so the build driver considers the step done. The real
// compile happens later, merged with compatible siblings, at final-link
// time.
package compileobject

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"ccelerate/internal/argmodel"
	"ccelerate/internal/config"
	"ccelerate/internal/langtag"
	"ccelerate/internal/localcode"
	"ccelerate/internal/pathutil"
	"ccelerate/internal/preprocess"
	"ccelerate/internal/store"
	"ccelerate/internal/taskperiod"
	"ccelerate/internal/toolchain"
	"ccelerate/internal/workpool"
)

// placeholderObject stands in for a real ".o": empty content is enough for
// a build driver that only checks the path exists, since the real content
// is substituted wholesale at final-link time.
var placeholderObject = []byte{}

// Run executes the compile-object pipeline for a single "-c" invocation.
func Run(ctx context.Context, pool *workpool.Pool, tracker *taskperiod.Tracker, cfg *config.Config, st *store.Store, dataDir string, binary toolchain.Binary, cwd string, args []string) error {
	return pool.RunLocal(ctx, func(ctx context.Context) error {
		return run(ctx, tracker, cfg, st, dataDir, binary, cwd, args)
	})
}

func run(ctx context.Context, tracker *taskperiod.Tracker, cfg *config.Config, st *store.Store, dataDir string, binary toolchain.Binary, cwd string, args []string) error {
	parsed, err := argmodel.ParseGCCArgs(cwd, args)
	if err != nil {
		return fmt.Errorf("compileobject: parsing args: %w", err)
	}
	if len(parsed.Sources) != 1 {
		return fmt.Errorf("compileobject: expected exactly one source, got %d", len(parsed.Sources))
	}
	source := parsed.Sources[0]
	lang, err := source.Language()
	if err != nil {
		return fmt.Errorf("compileobject: %w", err)
	}

	objectPath := parsed.PrimaryOutput
	if !parsed.HasOutput {
		base := strings.TrimSuffix(filepath.Base(source.Path), filepath.Ext(source.Path))
		objectPath = pathutil.Absolute(cwd, base+".o")
	}

	preprocessed, err := preprocessTranslationUnit(ctx, tracker, binary, cwd, parsed, objectPath)
	if err != nil {
		return err
	}

	local, err := extractLocalCode(tracker, cfg, preprocessed, source.Path, objectPath)
	if err != nil {
		return err
	}

	localCodeFile, err := writeLocalCodeFile(dataDir, source.Path, lang, local)
	if err != nil {
		return fmt.Errorf("compileobject: writing local code file: %w", err)
	}

	if err := pathutil.EnsureParentDir(objectPath); err != nil {
		return fmt.Errorf("compileobject: %w", err)
	}
	if err := os.WriteFile(objectPath, placeholderObject, 0o644); err != nil {
		return fmt.Errorf("compileobject: writing placeholder object: %w", err)
	}

	if err := st.UpdateObjectFile(objectPath, cwd, binary, parsed.Emit()); err != nil {
		return fmt.Errorf("compileobject: recording object: %w", err)
	}
	if err := st.UpdateObjectFileLocalCode(objectPath, store.LocalCode{
		LocalCodeFile:  localCodeFile,
		GlobalIncludes: local.GlobalIncludes,
		IncludeDefines: local.IncludeDefines,
	}); err != nil {
		return fmt.Errorf("compileobject: recording local code: %w", err)
	}

	return nil
}

func preprocessTranslationUnit(ctx context.Context, tracker *taskperiod.Tracker, binary toolchain.Binary, cwd string, parsed *argmodel.GCCArgs, objectPath string) ([]byte, error) {
	token := tracker.Start("Preprocess", filepath.Base(objectPath))
	defer token.Close()

	preprocessArgs := parsed.ToPreprocessedWithDefines().Emit()
	stdout, err := preprocess.Preprocess(ctx, binary.StandardName(), cwd, preprocessArgs, nil)
	if err != nil {
		return nil, fmt.Errorf("compileobject: preprocessing: %w", err)
	}

	token.FinishedSuccessfully()
	return stdout, nil
}

func extractLocalCode(tracker *taskperiod.Tracker, cfg *config.Config, preprocessed []byte, sourcePath, objectPath string) (localcode.Result, error) {
	token := tracker.Start("Local Code", filepath.Base(objectPath))
	defer token.Close()

	result, err := localcode.Extract(string(preprocessed), sourcePath, cfg)
	if err != nil {
		return localcode.Result{}, fmt.Errorf("compileobject: extracting local code: %w", err)
	}

	token.FinishedSuccessfully()
	return result, nil
}

// writeLocalCodeFile writes local.LocalCode under dataDir/preprocessed,
// named by an 8-hex-digit content hash plus the source's own basename so a
// human browsing the data directory can still tell what produced it.
func writeLocalCodeFile(dataDir, sourcePath string, lang langtag.Language, local localcode.Result) (string, error) {
	preprocessedLang, err := lang.ToPreprocessed()
	if err != nil {
		return "", err
	}

	sum := xxhash.Sum64([]byte(local.LocalCode))
	hash := fmt.Sprintf("%016x", sum)[:8]
	name := fmt.Sprintf("%s_%s.%s", hash, filepath.Base(sourcePath), preprocessedLang.ValidExt())
	path := pathutil.ShardedPath(dataDir, "preprocessed", name)

	if err := pathutil.EnsureParentDir(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(local.LocalCode), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
