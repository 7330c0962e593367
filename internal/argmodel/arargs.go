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

package argmodel

import (
	"fmt"
	"strings"

	"ccelerate/internal/pathutil"
)

// ArArgs is the structured form of a GNU ar command line: the q/c/s/T
// operation flags, the archive path, and the member list.
type ArArgs struct {
	FlagQ bool
	FlagC bool
	FlagS bool
	FlagT bool

	ArchivePath string
	Members     []string
}

// Clone makes a deep copy.
func (a *ArArgs) Clone() *ArArgs {
	c := *a
	c.Members = append([]string(nil), a.Members...)
	return &c
}

// ParseArArgs parses an ar command line. The first positional argument is a
// glyph sequence drawn from {q,c,s,T}; "--thin" is accepted anywhere as a
// long-option equivalent to the T glyph and is silently absorbed rather than
// treated as a path. The sentinel "-X32_64" is dropped. Remaining
// positionals are the archive path followed by member paths, all resolved
// to absolute form against cwd.
func ParseArArgs(cwd string, args []string) (*ArArgs, error) {
	result := &ArArgs{}
	haveOperation := false
	var positionals []string

	for _, arg := range args {
		switch {
		case arg == "-X32_64":
			continue
		case arg == "--thin":
			result.FlagT = true
			continue
		case !haveOperation:
			for _, glyph := range arg {
				switch glyph {
				case 'q':
					result.FlagQ = true
				case 'c':
					result.FlagC = true
				case 's':
					result.FlagS = true
				case 'T':
					result.FlagT = true
				default:
					return nil, fmt.Errorf("argmodel: unknown ar flag glyph %q", glyph)
				}
			}
			haveOperation = true
		default:
			positionals = append(positionals, arg)
		}
	}

	if !haveOperation {
		return nil, fmt.Errorf("argmodel: ar command is missing its operation")
	}
	if len(positionals) == 0 {
		return nil, fmt.Errorf("argmodel: ar command is missing its archive path")
	}

	result.ArchivePath = pathutil.Absolute(cwd, positionals[0])
	for _, m := range positionals[1:] {
		result.Members = append(result.Members, pathutil.Absolute(cwd, m))
	}
	return result, nil
}

// Emit serializes back to argv form: the glyph operation string, the
// archive path, then members.
func (a *ArArgs) Emit() []string {
	var glyphs strings.Builder
	if a.FlagQ {
		glyphs.WriteByte('q')
	}
	if a.FlagC {
		glyphs.WriteByte('c')
	}
	if a.FlagS {
		glyphs.WriteByte('s')
	}
	if a.FlagT {
		glyphs.WriteByte('T')
	}
	args := []string{glyphs.String(), a.ArchivePath}
	args = append(args, a.Members...)
	return args
}

// RequireCreateOperation enforces the "create" pipeline's precondition: the
// operation glyphs must include 'c'.
func (a *ArArgs) RequireCreateOperation() error {
	if !a.FlagC {
		return fmt.Errorf("argmodel: ar operation %q does not create an archive (missing 'c')", a.Emit()[0])
	}
	return nil
}

// ThinArchiveCreateArgs builds the argv ccelerate feeds to the real ar
// binary to produce the thin archive described in the design doc:
// "ar qc --thin <archive> <objects…>".
func ThinArchiveCreateArgs(archivePath string, memberPaths []string) []string {
	args := []string{"qc", "--thin", archivePath}
	return append(args, memberPaths...)
}
