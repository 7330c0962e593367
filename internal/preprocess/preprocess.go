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

// Package preprocess invokes a real compiler front end to do preprocessing
// or stdin-fed compilation work, capturing its stdout for the caller.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Result is the outcome of running a tool to completion.
type Result struct {
	Stdout []byte
	Stderr []byte
	Status int
}

// Run executes name with args in cwd, feeding stdin to the child and
// capturing stdout/stderr. A non-zero exit is reported through Status, not
// as an error; err is reserved for failures to even start or wait on the
// child process.
func Run(ctx context.Context, name string, cwd string, args []string, stdin []byte) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cwd
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	status := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return Result{}, fmt.Errorf("preprocess: running %s: %w", name, err)
		}
		status = exitErr.ExitCode()
	}
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Status: status}, nil
}

// Preprocess runs binary with args (expected to already carry -E), feeding
// it stdin, and returns its stdout. A
// non-zero exit is turned into an error here, unlike Run, because
// preprocessing failures have no recovery path of their own.
func Preprocess(ctx context.Context, binary string, cwd string, args []string, stdin []byte) ([]byte, error) {
	result, err := Run(ctx, binary, cwd, args, stdin)
	if err != nil {
		return nil, err
	}
	if result.Status != 0 {
		return nil, fmt.Errorf("preprocess: %s exited with status %d: %s", binary, result.Status, result.Stderr)
	}
	return result.Stdout, nil
}
