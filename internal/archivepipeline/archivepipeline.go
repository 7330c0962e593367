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

// Package archivepipeline handles the "create" half of an archiver request:
// record the members an ar invocation asked to bundle, then stand a
// placeholder in for the real archive so the build driver's dependency graph
// treats the step as done. The real archive is assembled later, at
// final-link time, from merged objects rather than these recorded members.
package archivepipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"ccelerate/internal/argmodel"
	"ccelerate/internal/pathutil"
	"ccelerate/internal/store"
	"ccelerate/internal/taskperiod"
	"ccelerate/internal/toolchain"
)

// placeholderArchive is the empty ar magic: no members, just the format's
// 8-byte signature, enough for tools that only check the file exists.
var placeholderArchive = []byte("!<arch>\n")

// Run parses an archiver "create" command, records it in st keyed by the
// archive's absolute path, and writes a placeholder in its place.
func Run(tracker *taskperiod.Tracker, st *store.Store, cwd string, args []string) error {
	parsed, err := argmodel.ParseArArgs(cwd, args)
	if err != nil {
		return fmt.Errorf("archivepipeline: parsing ar args: %w", err)
	}
	if err := parsed.RequireCreateOperation(); err != nil {
		return fmt.Errorf("archivepipeline: %w", err)
	}

	token := tracker.Start("Ar", filepath.Base(parsed.ArchivePath))
	defer token.Close()

	if err := st.UpdateArchiveFile(parsed.ArchivePath, cwd, toolchain.Ar, parsed.Emit()); err != nil {
		return fmt.Errorf("archivepipeline: recording archive: %w", err)
	}

	if err := pathutil.EnsureParentDir(parsed.ArchivePath); err != nil {
		return fmt.Errorf("archivepipeline: %w", err)
	}
	if err := os.WriteFile(parsed.ArchivePath, placeholderArchive, 0o644); err != nil {
		return fmt.Errorf("archivepipeline: writing placeholder archive: %w", err)
	}

	token.FinishedSuccessfully()
	return nil
}
