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

// Package localcode splits the preprocessed output of a single translation
// unit (gcc -E -dD, line markers retained) into the part that originated in
// the source file itself and the headers it pulled in globally.
package localcode

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ccelerate/internal/config"
)

// Result is what extraction produces: the local body (bracketed by
// diagnostic push/pop, with collapsed line markers) plus the headers and
// defines the body depends on.
type Result struct {
	LocalCode      string
	GlobalIncludes []string
	IncludeDefines []string
}

var lineMarkerRE = regexp.MustCompile(`^# (\d+) "(.*)"\s*(\d?)\s*(\d?)\s*(\d?)\s*(\d?)\s*$`)

type lineMarker struct {
	lineNumber int
	headerName string
	isNewFile  bool
	isReturn   bool
}

func parseLineMarker(line string) (lineMarker, bool) {
	m := lineMarkerRE.FindStringSubmatch(line)
	if m == nil {
		return lineMarker{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return lineMarker{}, false
	}
	var isNewFile, isReturn bool
	for _, g := range m[3:] {
		switch g {
		case "1":
			isNewFile = true
		case "2":
			isReturn = true
		}
	}
	return lineMarker{lineNumber: n, headerName: m[2], isNewFile: isNewFile, isReturn: isReturn}, true
}

var defineNameRE = regexp.MustCompile(`^#define\s+(\w+)`)

// Extract walks code (the output of "gcc -E -dD" for sourcePath) and
// separates local code from global includes per cfg's classification.
func Extract(code string, sourcePath string, cfg *config.Config) (Result, error) {
	sourceDir := filepath.Dir(sourcePath)
	if sourceDir == "" || sourceDir == "." {
		return Result{}, fmt.Errorf("localcode: cannot determine directory of %q", sourcePath)
	}

	var body bytes.Buffer
	body.WriteString("#pragma GCC diagnostic push\n")

	var headerStack []string
	localDepth := 0
	revertablePreviousLineStart := -1

	var result Result

	// A final newline ends the last line; it does not start an empty one.
	for _, line := range strings.Split(strings.TrimSuffix(code, "\n"), "\n") {
		isLocal := len(headerStack) == localDepth

		switch {
		case strings.HasPrefix(line, "#define "):
			if isLocal {
				if m := defineNameRE.FindStringSubmatch(line); m != nil && cfg.IsIncludeDefine(m[1]) {
					result.IncludeDefines = append(result.IncludeDefines, line)
				}
			}
		case strings.HasPrefix(line, "#undef "):
			// silently skipped
		case strings.HasPrefix(line, "# "):
			marker, ok := parseLineMarker(line)
			if !ok {
				// malformed marker: skipped without aborting
				continue
			}
			headerPath := marker.headerName
			if marker.isNewFile {
				if isLocal {
					if cfg.IsLocalHeader(headerPath) {
						localDepth++
					} else {
						result.GlobalIncludes = append(result.GlobalIncludes, headerPath)
					}
				}
				headerStack = append(headerStack, headerPath)
			} else if marker.isReturn {
				if len(headerStack) > 0 {
					headerStack = headerStack[:len(headerStack)-1]
				}
				if localDepth > len(headerStack) {
					localDepth = len(headerStack)
				}
			}
			if len(headerStack) == localDepth {
				if revertablePreviousLineStart >= 0 {
					// the previous marker bracketed nothing: collapse it.
					body.Truncate(revertablePreviousLineStart)
				}
				filePath := sourcePath
				if len(headerStack) > 0 {
					filePath = headerStack[len(headerStack)-1]
				}
				revertablePreviousLineStart = body.Len()
				fmt.Fprintf(&body, "# %d %q\n", marker.lineNumber, filePath)
			}
		case isLocal:
			body.WriteString(line)
			body.WriteByte('\n')
			if strings.TrimSpace(line) != "" {
				revertablePreviousLineStart = -1
			}
		}
	}
	body.WriteString("#pragma GCC diagnostic pop\n")
	result.LocalCode = body.String()

	for i, p := range result.GlobalIncludes {
		if !filepath.IsAbs(p) {
			result.GlobalIncludes[i] = filepath.Clean(filepath.Join(sourceDir, p))
		}
	}
	return result, nil
}
