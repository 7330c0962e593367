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

// Command ccelerate-cmake execs the real cmake with CMAKE_AR/CC/CXX
// pointed at the ccelerate wrapper binaries installed alongside it, so a
// project configured with this in place of "cmake" transparently gets its
// compiles and archive creation deferred to ccelerate-server.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("ccelerate-cmake: resolving own path: %w", err)
	}
	dir := filepath.Dir(self)

	real, err := exec.LookPath("cmake")
	if err != nil {
		return fmt.Errorf("ccelerate-cmake: locating real cmake: %w", err)
	}

	cmd := exec.Command(real, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"CMAKE_AR="+filepath.Join(dir, "ccelerate-ar"),
		"CC="+filepath.Join(dir, "ccelerate-cc"),
		"CXX="+filepath.Join(dir, "ccelerate-cxx"),
	)

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("ccelerate-cmake: running cmake: %w", err)
	}
	return nil
}
