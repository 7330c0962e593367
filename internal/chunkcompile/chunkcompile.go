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

// Package chunkcompile merges a bucket of compatible object records into as
// few real compiles as possible. Every member's extracted local-code file is
// concatenated behind a synthetic header prologue and fed to a single
// compiler invocation over stdin; when that invocation fails, the bucket is
// split in half and each half is retried independently, down to single
// objects if needed.
package chunkcompile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ccelerate/internal/argmodel"
	"ccelerate/internal/config"
	"ccelerate/internal/langtag"
	"ccelerate/internal/pathutil"
	"ccelerate/internal/preprocess"
	"ccelerate/internal/store"
	"ccelerate/internal/taskperiod"
	"ccelerate/internal/workpool"
)

// DefaultChunkLimit is the largest bucket size that is ever tried as a
// single compile before splitting, absent an operator override; above it, a
// bucket is split before attempting any compile at all. The threshold is a
// tuning constant, not a correctness requirement — callers may override it.
const DefaultChunkLimit = 10

// CompileChunks merges objects — a single group.Bucket's members — into as
// few object files as possible, fanning sibling splits out through pool so
// independent halves compile concurrently. chunkLimit bounds the largest
// bucket ever tried whole before splitting; callers passing <= 0 get
// DefaultChunkLimit. It returns the merged object paths in no particular
// guaranteed order (the caller only cares about the resulting set of
// objects to archive).
func CompileChunks(ctx context.Context, pool *workpool.Pool, tracker *taskperiod.Tracker, cfg *config.Config, dataDir string, chunkLimit int, objects []*store.ObjectRecord) ([]string, error) {
	if chunkLimit <= 0 {
		chunkLimit = DefaultChunkLimit
	}
	if len(objects) == 0 {
		return nil, nil
	}
	if len(objects) <= chunkLimit {
		object, err := compileInPool(ctx, pool, tracker, cfg, dataDir, objects)
		if err == nil {
			return []string{object}, nil
		}
		if len(objects) == 1 {
			return nil, err
		}
	}

	mid := len(objects) / 2
	left, right := objects[:mid], objects[mid:]

	var leftResult, rightResult []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leftResult, err = CompileChunks(gctx, pool, tracker, cfg, dataDir, chunkLimit, left)
		return err
	})
	g.Go(func() error {
		var err error
		rightResult, err = CompileChunks(gctx, pool, tracker, cfg, dataDir, chunkLimit, right)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(leftResult, rightResult...), nil
}

func compileInPool(ctx context.Context, pool *workpool.Pool, tracker *taskperiod.Tracker, cfg *config.Config, dataDir string, objects []*store.ObjectRecord) (string, error) {
	var objectPath string
	err := pool.RunLocal(ctx, func(ctx context.Context) error {
		var err error
		objectPath, err = compileObjects(ctx, tracker, cfg, dataDir, objects)
		return err
	})
	return objectPath, err
}

func compileObjects(ctx context.Context, tracker *taskperiod.Tracker, cfg *config.Config, dataDir string, objects []*store.ObjectRecord) (string, error) {
	first := objects[0]

	rawLang, err := langtag.FromPath(first.LocalCode.LocalCodeFile)
	if err != nil {
		return "", fmt.Errorf("chunkcompile: resolving language of %s: %w", first.LocalCode.LocalCodeFile, err)
	}
	lang, err := rawLang.ToNonPreprocessed()
	if err != nil {
		return "", fmt.Errorf("chunkcompile: %w", err)
	}

	args, err := argmodel.ParseGCCArgs(first.Cwd, first.Args)
	if err != nil {
		return "", fmt.Errorf("chunkcompile: re-parsing object args: %w", err)
	}

	includes, defines := orderedIncludesAndDefines(objects)
	headerCode := buildHeaderPrologue(includes, defines, lang, cfg)

	headersToken := tracker.Start("Headers", fmt.Sprintf("%d headers", len(includes)))
	preprocessArgs := args.ToPreprocessStdin(lang).Emit()
	preprocessedHeaders, err := preprocess.Preprocess(ctx, first.Binary.StandardName(), first.Cwd, preprocessArgs, headerCode)
	if err != nil {
		headersToken.Close()
		return "", fmt.Errorf("chunkcompile: preprocessing headers: %w", err)
	}
	headersToken.FinishedSuccessfully()
	headersToken.Close()

	objectName := uuid.New().String() + ".o"
	objectPath := pathutil.ShardedPath(dataDir, "objects", objectName)
	if err := pathutil.EnsureParentDir(objectPath); err != nil {
		return "", fmt.Errorf("chunkcompile: %w", err)
	}

	var stdin bytes.Buffer
	stdin.Write(preprocessedHeaders)
	for _, obj := range objects {
		src, err := os.ReadFile(obj.LocalCode.LocalCodeFile)
		if err != nil {
			return "", fmt.Errorf("chunkcompile: reading local code %s: %w", obj.LocalCode.LocalCodeFile, err)
		}
		stdin.Write(src)
	}

	chunkToken := tracker.Start("Compile", chunkOneLiner(objects))
	buildArgs := args.ToBuildObjectFromStdin(objectPath, lang).Emit()
	result, err := preprocess.Run(ctx, first.Binary.StandardName(), first.Cwd, buildArgs, stdin.Bytes())
	if err != nil {
		chunkToken.Close()
		return "", fmt.Errorf("chunkcompile: compiling chunk: %w", err)
	}
	if result.Status != 0 {
		chunkToken.Close()
		return "", fmt.Errorf("chunkcompile: compile of %d objects failed with status %d: %s", len(objects), result.Status, result.Stderr)
	}
	chunkToken.FinishedSuccessfully()
	chunkToken.Close()

	return objectPath, nil
}

// orderedIncludesAndDefines collects every member's global includes and
// include-defines, deduplicated and in first-seen order across the whole
// chunk. A map is deliberately not used for this: iteration order over a Go
// map is randomized, and the emitted header prologue must be deterministic
// across runs of the same chunk.
func orderedIncludesAndDefines(objects []*store.ObjectRecord) (includes, defines []string) {
	seenInclude := map[string]bool{}
	seenDefine := map[string]bool{}
	for _, obj := range objects {
		for _, inc := range obj.LocalCode.GlobalIncludes {
			if seenInclude[inc] {
				continue
			}
			seenInclude[inc] = true
			includes = append(includes, inc)
		}
		for _, def := range obj.LocalCode.IncludeDefines {
			if seenDefine[def] {
				continue
			}
			seenDefine[def] = true
			defines = append(defines, def)
		}
	}
	return includes, defines
}

// buildHeaderPrologue emits the include-defines verbatim, followed by one
// #include per global include, wrapping any header the config classifies as
// pure C in extern "C" when the chunk is being compiled as C++.
func buildHeaderPrologue(includes, defines []string, lang langtag.Language, cfg *config.Config) []byte {
	var b bytes.Buffer
	for _, d := range defines {
		fmt.Fprintln(&b, d)
	}
	for _, header := range includes {
		needExternC := lang.IsCxx() && cfg.IsPureCHeader(header)
		if needExternC {
			fmt.Fprintln(&b, `extern "C" {`)
		}
		fmt.Fprintf(&b, "#include <%s>\n", header)
		if needExternC {
			fmt.Fprintln(&b, "}")
		}
	}
	return b.Bytes()
}

func chunkOneLiner(objects []*store.ObjectRecord) string {
	names := make([]string, len(objects))
	for i, obj := range objects {
		names[i] = obj.LocalCode.LocalCodeFile
	}
	return strings.Join(names, " ")
}
