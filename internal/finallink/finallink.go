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

// Package finallink is the top-level orchestrator for a final-link request:
// it resolves the link command's sources back to known objects, groups them
// into compatible buckets, merges each bucket down with internal/chunkcompile,
// packs the results into a thin archive, and hands the rewritten link command
// to the real linker.
package finallink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ccelerate/internal/argmodel"
	"ccelerate/internal/chunkcompile"
	"ccelerate/internal/config"
	"ccelerate/internal/group"
	"ccelerate/internal/linksources"
	"ccelerate/internal/pathutil"
	"ccelerate/internal/preprocess"
	"ccelerate/internal/store"
	"ccelerate/internal/taskperiod"
	"ccelerate/internal/toolchain"
	"ccelerate/internal/workpool"
)

// LinkError reports a failed real-tool invocation (archive creation or the
// final link itself), carrying the captured output for relay to the caller.
type LinkError struct {
	Op     string
	Status int
	Stderr []byte
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("finallink: %s failed with status %d: %s", e.Op, e.Status, e.Stderr)
}

// Run executes the full final-link pipeline for a gcc-family link
// invocation and returns the real linker's captured output.
func Run(ctx context.Context, pool *workpool.Pool, tracker *taskperiod.Tracker, cfg *config.Config, st *store.Store, dataDir string, chunkLimit int, binary toolchain.Binary, cwd string, originalArgs []string) (preprocess.Result, error) {
	sources, err := linkSourcesFromArgs(cwd, originalArgs)
	if err != nil {
		return preprocess.Result{}, err
	}

	found, err := linksources.Find(st, sources)
	if err != nil {
		return preprocess.Result{}, fmt.Errorf("finallink: resolving link sources: %w", err)
	}

	buckets, err := group.Group(found.KnownObjectFiles)
	if err != nil {
		return preprocess.Result{}, fmt.Errorf("finallink: grouping compatible objects: %w", err)
	}

	mergedPerBucket := make([][]string, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	for i, bucket := range buckets {
		i, bucket := i, bucket
		g.Go(func() error {
			objects, err := chunkcompile.CompileChunks(gctx, pool, tracker, cfg, dataDir, chunkLimit, bucket.Objects)
			if err != nil {
				return err
			}
			mergedPerBucket[i] = objects
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return preprocess.Result{}, err
	}

	var mergedObjects []string
	for _, objects := range mergedPerBucket {
		mergedObjects = append(mergedObjects, objects...)
	}

	archivePath, err := CreateThinArchive(ctx, tracker, dataDir, mergedObjects)
	if err != nil {
		return preprocess.Result{}, err
	}

	allSources := append([]string{archivePath}, found.UnknownSources...)
	return FinalLink(ctx, tracker, binary, cwd, originalArgs, allSources)
}

func linkSourcesFromArgs(cwd string, args []string) ([]string, error) {
	parsed, err := argmodel.ParseGCCArgs(cwd, args)
	if err != nil {
		return nil, fmt.Errorf("finallink: parsing link args: %w", err)
	}
	sources := make([]string, len(parsed.Sources))
	for i, s := range parsed.Sources {
		sources[i] = s.Path
	}
	return sources, nil
}

// CreateThinArchive packs objects into a fresh thin archive under
// dataDir/archives, invoking the real "ar" binary with "qc --thin" so the
// archive's wire format byte-matches what the real linker expects.
func CreateThinArchive(ctx context.Context, tracker *taskperiod.Tracker, dataDir string, objects []string) (string, error) {
	token := tracker.Start("Archive", "create thin archive")
	defer token.Close()

	archiveName := uuid.New().String() + ".a"
	archivePath := pathutil.ShardedPath(dataDir, "archives", archiveName)
	if err := pathutil.EnsureParentDir(archivePath); err != nil {
		return "", fmt.Errorf("finallink: %w", err)
	}

	args := argmodel.ThinArchiveCreateArgs(archivePath, objects)
	result, err := preprocess.Run(ctx, toolchain.Ar.StandardName(), dataDir, args, nil)
	if err != nil {
		return "", fmt.Errorf("finallink: invoking ar: %w", err)
	}
	if result.Status != 0 {
		return "", &LinkError{Op: "ar qc --thin", Status: result.Status, Stderr: result.Stderr}
	}

	token.FinishedSuccessfully()
	return archivePath, nil
}

// FinalLink rewrites originalArgs so its sources are exactly newSources
// (wrapped in a linker group) and invokes the real linker.
func FinalLink(ctx context.Context, tracker *taskperiod.Tracker, binary toolchain.Binary, cwd string, originalArgs []string, newSources []string) (preprocess.Result, error) {
	parsed, err := argmodel.ParseGCCArgs(cwd, originalArgs)
	if err != nil {
		return preprocess.Result{}, fmt.Errorf("finallink: parsing link args: %w", err)
	}

	sources := make([]argmodel.SourceFile, len(newSources))
	for i, s := range newSources {
		sources[i] = argmodel.SourceFile{Path: s}
	}
	linkArgs := parsed.ToLinkAsGroup(sources).Emit()

	token := tracker.Start("Link", parsed.PrimaryOutput)
	defer token.Close()

	result, err := preprocess.Run(ctx, binary.StandardName(), cwd, linkArgs, nil)
	if err != nil {
		return preprocess.Result{}, fmt.Errorf("finallink: invoking linker: %w", err)
	}
	if result.Status != 0 {
		return result, &LinkError{Op: "link", Status: result.Status, Stderr: result.Stderr}
	}

	token.FinishedSuccessfully()
	return result, nil
}
