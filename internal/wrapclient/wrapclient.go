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

// Package wrapclient is the thin HTTP client shared by the ccelerate-ar,
// ccelerate-cc, and ccelerate-cxx wrapper binaries: it relays the wrapper's
// own argv and cwd to the ccelerate-server /run endpoint and reports back
// whatever the server says the real tool would have done.
package wrapclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/shlex"
)

// DefaultServer is the loopback address ccelerate-server listens on absent
// a CCELERATE_SERVER override.
const DefaultServer = "127.0.0.1:6235"

// ServerAddr returns the address to dial: the CCELERATE_SERVER environment
// variable if set, otherwise DefaultServer.
func ServerAddr() string {
	if addr := os.Getenv("CCELERATE_SERVER"); addr != "" {
		return addr
	}
	return DefaultServer
}

// appendExtraArgs re-splits CCELERATE_EXTRA_ARGS with shell-word semantics
// and appends the result to args; a blank or unset variable is a no-op.
func appendExtraArgs(args []string) ([]string, error) {
	extra := os.Getenv("CCELERATE_EXTRA_ARGS")
	if extra == "" {
		return args, nil
	}
	words, err := shlex.Split(extra)
	if err != nil {
		return nil, err
	}
	return append(args, words...), nil
}

type runRequest struct {
	Binary string   `json:"binary"`
	Args   []string `json:"args"`
	Cwd    string   `json:"cwd"`
}

type runResponse struct {
	Stdout []byte `json:"stdout"`
	Stderr []byte `json:"stderr"`
	Status int    `json:"status"`
}

// Run posts {binary, args, cwd} to the server's /run endpoint, writes back
// whatever stdout/stderr it returns, and reports the exit status the real
// tool would have returned. Args are extended with whatever
// CCELERATE_EXTRA_ARGS carries: some build drivers relay extra flags as a
// single CFLAGS-style environment string rather than an argv element, so
// that string is re-split with shlex and appended before the request is
// sent.
func Run(binary string, args []string) (int, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return 0, fmt.Errorf("wrapclient: resolving cwd: %w", err)
	}

	args, err = appendExtraArgs(args)
	if err != nil {
		return 0, fmt.Errorf("wrapclient: parsing CCELERATE_EXTRA_ARGS: %w", err)
	}

	body, err := json.Marshal(runRequest{Binary: binary, Args: args, Cwd: cwd})
	if err != nil {
		return 0, fmt.Errorf("wrapclient: encoding request: %w", err)
	}

	resp, err := http.Post("http://"+ServerAddr()+"/run", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("wrapclient: contacting ccelerate-server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("wrapclient: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wrapclient: server returned %s: %s", resp.Status, bytes.TrimSpace(respBody))
	}

	var run runResponse
	if err := json.Unmarshal(respBody, &run); err != nil {
		return 0, fmt.Errorf("wrapclient: decoding response: %w", err)
	}

	os.Stdout.Write(run.Stdout)
	os.Stderr.Write(run.Stderr)
	return run.Status, nil
}
