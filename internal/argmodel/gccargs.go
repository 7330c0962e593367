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

// Package argmodel parses, normalizes, and re-emits gcc-family compiler and
// GNU ar archiver command lines. Every parsed value round-trips: emitting and
// re-parsing a record always yields an equal record, which is what lets the
// rest of ccelerate clone a command, tweak a couple of fields and hand the
// result back to a real compiler.
package argmodel

import (
	"fmt"
	"strings"

	"ccelerate/internal/langtag"
	"ccelerate/internal/pathutil"
)

// SourceFile is one source argument on a compiler command line, with an
// optional explicit language coming from a preceding "-x <lang>".
type SourceFile struct {
	Path            string
	HasLangOverride bool
	LangOverride    langtag.Language
}

// Language resolves the file's language: the explicit override if present,
// otherwise whatever the extension implies.
func (s SourceFile) Language() (langtag.Language, error) {
	if s.HasLangOverride {
		return s.LangOverride, nil
	}
	if s.Path == "-" {
		return 0, fmt.Errorf("argmodel: stdin source %q has no language override", s.Path)
	}
	return langtag.FromPath(s.Path)
}

// GCCArgs is the structured decomposition of a gcc-compatible command line,
// per the data model: sources, primary output, includes, defines, the
// various flag buckets, language standard, dependency-file settings, and the
// stop-early / preprocessing / link-group switches.
type GCCArgs struct {
	Sources        []SourceFile
	HasOutput      bool
	PrimaryOutput  string
	UserIncludes   []string
	SystemIncludes []string
	Defines        []string
	Warnings       []string
	MachineFlags   []string
	OptFlags       []string
	CodeGenFlags   []string // -f...
	DebugFlags     []string // -g...
	HasLangStd     bool
	LangStd        string // full "-std=..." token

	Pipe   bool
	Shared bool

	StopBeforeLink         bool // -c
	StopBeforeAssemble     bool // -S
	StopAfterPreprocessing bool // -E
	PreprocessKeepDefines  bool // -dD

	DepGenerate      bool
	HasDepTarget     bool
	DepTargetName    string // -MT
	HasDepOutputPath bool
	DepOutputPath    string // -MF

	UseLinkGroup bool

	// Unknown holds long options ("--...") that weren't recognized, in the
	// order they appeared, replayed verbatim.
	Unknown []string
}

// Clone makes a deep copy so mutator methods never alias the receiver's
// slices.
func (a *GCCArgs) Clone() *GCCArgs {
	c := *a
	c.Sources = append([]SourceFile(nil), a.Sources...)
	c.UserIncludes = append([]string(nil), a.UserIncludes...)
	c.SystemIncludes = append([]string(nil), a.SystemIncludes...)
	c.Defines = append([]string(nil), a.Defines...)
	c.Warnings = append([]string(nil), a.Warnings...)
	c.MachineFlags = append([]string(nil), a.MachineFlags...)
	c.OptFlags = append([]string(nil), a.OptFlags...)
	c.CodeGenFlags = append([]string(nil), a.CodeGenFlags...)
	c.DebugFlags = append([]string(nil), a.DebugFlags...)
	c.Unknown = append([]string(nil), a.Unknown...)
	return &c
}

// ParseGCCArgs walks a gcc-family command line token by token, classifying
// every argument per the recognized set in the design doc. Tokens that don't
// match any recognized flag default to source-file classification; "--"
// long options are passed through verbatim instead.
func ParseGCCArgs(cwd string, args []string) (*GCCArgs, error) {
	result := &GCCArgs{}
	var curLang langtag.Language
	var curLangSet bool

	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() (string, error) {
			i++
			if i >= len(args) {
				return "", fmt.Errorf("argmodel: missing value after %q", arg)
			}
			return args[i], nil
		}

		switch {
		case strings.HasPrefix(arg, "-D"):
			result.Defines = append(result.Defines, arg[2:])
		case strings.HasPrefix(arg, "-I"):
			result.UserIncludes = append(result.UserIncludes, pathutil.Absolute(cwd, arg[2:]))
		case arg == "-isystem":
			v, err := next()
			if err != nil {
				return nil, err
			}
			result.SystemIncludes = append(result.SystemIncludes, pathutil.Absolute(cwd, v))
		case strings.HasPrefix(arg, "-W"):
			result.Warnings = append(result.Warnings, arg)
		case strings.HasPrefix(arg, "-m"):
			result.MachineFlags = append(result.MachineFlags, arg)
		case strings.HasPrefix(arg, "-O"):
			result.OptFlags = append(result.OptFlags, arg)
		case strings.HasPrefix(arg, "-f"):
			result.CodeGenFlags = append(result.CodeGenFlags, arg)
		case strings.HasPrefix(arg, "-g"):
			result.DebugFlags = append(result.DebugFlags, arg)
		case strings.HasPrefix(arg, "-std="):
			result.HasLangStd = true
			result.LangStd = arg
		case arg == "-pipe":
			result.Pipe = true
		case arg == "-shared":
			result.Shared = true
		case arg == "-c":
			result.StopBeforeLink = true
		case arg == "-S":
			result.StopBeforeAssemble = true
		case arg == "-E":
			result.StopAfterPreprocessing = true
		case arg == "-dD":
			result.PreprocessKeepDefines = true
		case arg == "-MD":
			result.DepGenerate = true
		case arg == "-MT":
			v, err := next()
			if err != nil {
				return nil, err
			}
			result.HasDepTarget = true
			result.DepTargetName = v
		case arg == "-MF":
			v, err := next()
			if err != nil {
				return nil, err
			}
			result.HasDepOutputPath = true
			result.DepOutputPath = pathutil.Absolute(cwd, v)
		case arg == "-o":
			v, err := next()
			if err != nil {
				return nil, err
			}
			result.HasOutput = true
			result.PrimaryOutput = pathutil.Absolute(cwd, v)
		case arg == "-x":
			v, err := next()
			if err != nil {
				return nil, err
			}
			lang, ok, err := langtag.FromGCCXArg(v)
			if err != nil {
				return nil, err
			}
			curLang, curLangSet = lang, ok
		case arg == "-":
			sf := SourceFile{Path: "-"}
			if curLangSet {
				sf.HasLangOverride = true
				sf.LangOverride = curLang
			}
			result.Sources = append(result.Sources, sf)
		case strings.HasPrefix(arg, "--"):
			result.Unknown = append(result.Unknown, arg)
		default:
			sf := SourceFile{Path: pathutil.Absolute(cwd, arg)}
			if curLangSet {
				sf.HasLangOverride = true
				sf.LangOverride = curLang
			}
			result.Sources = append(result.Sources, sf)
		}
	}
	return result, nil
}

// Emit serializes the record back to argv form in a fixed, deterministic
// order so that Parse(Emit(x)) always equals x.
func (a *GCCArgs) Emit() []string {
	var args []string
	if a.StopBeforeLink {
		args = append(args, "-c")
	}
	if a.StopBeforeAssemble {
		args = append(args, "-S")
	}
	if a.StopAfterPreprocessing {
		args = append(args, "-E")
	}
	if a.Pipe {
		args = append(args, "-pipe")
	}
	if a.Shared {
		args = append(args, "-shared")
	}
	if a.HasLangStd {
		args = append(args, a.LangStd)
	}
	args = append(args, a.OptFlags...)
	args = append(args, a.CodeGenFlags...)
	args = append(args, a.DebugFlags...)
	if a.PreprocessKeepDefines {
		args = append(args, "-dD")
	}
	if a.DepGenerate {
		args = append(args, "-MD")
	}
	if a.HasDepTarget {
		args = append(args, "-MT", a.DepTargetName)
	}
	if a.HasDepOutputPath {
		args = append(args, "-MF", a.DepOutputPath)
	}
	args = append(args, a.Warnings...)
	args = append(args, a.MachineFlags...)
	args = append(args, a.Unknown...)
	for _, d := range a.Defines {
		args = append(args, "-D"+d)
	}
	for _, inc := range a.UserIncludes {
		args = append(args, "-I"+inc)
	}
	for _, inc := range a.SystemIncludes {
		args = append(args, "-isystem", inc)
	}
	if a.HasOutput {
		args = append(args, "-o", a.PrimaryOutput)
	}
	if a.UseLinkGroup {
		args = append(args, "--start-group")
	}
	curLangSet := false
	for _, src := range a.Sources {
		if src.HasLangOverride {
			args = append(args, "-x", src.LangOverride.ToGCCXArg())
			curLangSet = true
		} else if curLangSet {
			args = append(args, "-x", "none")
			curLangSet = false
		}
		args = append(args, src.Path)
	}
	if a.UseLinkGroup {
		args = append(args, "--end-group")
	}
	return args
}

// ToPreprocessedWithDefines clears the primary output and switches the
// command to preprocess-only while keeping #define directives in the output
// (gcc's "-E -dD").
func (a *GCCArgs) ToPreprocessedWithDefines() *GCCArgs {
	c := a.Clone()
	c.HasOutput = false
	c.PrimaryOutput = ""
	c.StopBeforeLink = false
	c.StopAfterPreprocessing = true
	c.PreprocessKeepDefines = true
	return c
}

// ToPreprocessStdin produces a command that preprocesses source fed over
// stdin in the given language, discarding sources/output/depfile settings.
func (a *GCCArgs) ToPreprocessStdin(lang langtag.Language) *GCCArgs {
	c := a.Clone()
	c.Sources = nil
	c.HasOutput = false
	c.PrimaryOutput = ""
	c.DepGenerate = false
	c.HasDepTarget = false
	c.DepTargetName = ""
	c.HasDepOutputPath = false
	c.DepOutputPath = ""
	c.StopAfterPreprocessing = true
	c.StopBeforeLink = false
	c.StopBeforeAssemble = false
	c.Sources = append(c.Sources, SourceFile{Path: "-", HasLangOverride: true, LangOverride: lang})
	return c
}

// ToBuildObjectFromStdin produces a command that compiles source fed over
// stdin in the given language directly to outputPath.
func (a *GCCArgs) ToBuildObjectFromStdin(outputPath string, lang langtag.Language) *GCCArgs {
	c := a.Clone()
	c.Sources = nil
	c.StopBeforeLink = true
	c.StopAfterPreprocessing = false
	c.StopBeforeAssemble = false
	c.HasOutput = true
	c.PrimaryOutput = outputPath
	c.Sources = append(c.Sources, SourceFile{Path: "-", HasLangOverride: true, LangOverride: lang})
	return c
}

// ToLinkAsGroup replaces the sources with the given list and wraps them in a
// linker group, so the final linker re-scans them until symbol resolution
// reaches a fixed point.
func (a *GCCArgs) ToLinkAsGroup(sources []SourceFile) *GCCArgs {
	c := a.Clone()
	c.Sources = append([]SourceFile(nil), sources...)
	c.UseLinkGroup = true
	return c
}

// CompatibilityKeyBytes clears sources, output, and depfile fields and
// re-emits in canonical order: the byte sequence two objects must agree on
// to be compiled together (component L uses this as part of its bucket key).
func (a *GCCArgs) CompatibilityKeyBytes() []byte {
	c := a.Clone()
	c.Sources = nil
	c.HasOutput = false
	c.PrimaryOutput = ""
	c.DepGenerate = false
	c.HasDepTarget = false
	c.DepTargetName = ""
	c.HasDepOutputPath = false
	c.DepOutputPath = ""
	return []byte(strings.Join(c.Emit(), "\x00"))
}
