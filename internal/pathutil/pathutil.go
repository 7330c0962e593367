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

// Package pathutil holds the small set of path helpers shared by every other
// ccelerate package: making paths absolute against a cwd, and laying out the
// hash-sharded data directory described in the design doc.
package pathutil

import (
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Absolute resolves path against base unless it is already absolute, and
// always returns a filepath.Clean'd result so two different but equivalent
// spellings of the same path compare equal.
func Absolute(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(base, path))
}

// AbsoluteAll applies Absolute to every element of paths in place order,
// returning a new slice.
func AbsoluteAll(base string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = Absolute(base, p)
	}
	return out
}

// ShardedPath returns "<dataDir>/<category>/<xx>/<name>", where xx is the
// first two hex digits of an xxhash64 digest of name. This is the
// "<2-char>/<name>" layout spec.md describes for preprocessed/objects/archives.
func ShardedPath(dataDir, category, name string) string {
	sum := xxhash.Sum64String(name)
	prefix := hex2(byte(sum >> 56))
	return filepath.Join(dataDir, category, prefix, name)
}

func hex2(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

// EnsureDir creates dir (and its parents) if it doesn't already exist. Every
// writer of an intermediate file should call this so directory creation has
// one choke point, per the design doc.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// EnsureParentDir creates the parent directory of path.
func EnsureParentDir(path string) error {
	return EnsureDir(filepath.Dir(path))
}
