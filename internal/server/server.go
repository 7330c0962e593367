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

// Package server is the loopback HTTP endpoint every wrapper binary talks
// to: it receives a {binary, args, cwd} command, dispatches it to the
// archive-create, compile-object, or final-link pipeline (or runs it eagerly
// for CMake's own feature-probe compiles), and reports back whatever the
// real tool would have printed and exited with.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ccelerate/internal/archivepipeline"
	"ccelerate/internal/argmodel"
	"ccelerate/internal/ccelog"
	"ccelerate/internal/compileobject"
	"ccelerate/internal/config"
	"ccelerate/internal/finallink"
	"ccelerate/internal/pathutil"
	"ccelerate/internal/preprocess"
	"ccelerate/internal/store"
	"ccelerate/internal/taskperiod"
	"ccelerate/internal/toolchain"
	"ccelerate/internal/workpool"
)

// cmakeScratchMarker is the literal CMake stamps into the path of its own
// feature-probe compiles; seeing it anywhere in the request means the real
// tool must run to completion right now; deferring it would starve CMake's
// own try-compile logic of a real result.
const cmakeScratchMarker = "CMakeScratch"

// Server wires together the components a /run request needs: the record
// store, per-directory config resolution, the task tracker wrappers report
// progress to, and the work pool bounding real compiles.
type Server struct {
	Store      *store.Store
	Configs    *config.Manager
	Tracker    *taskperiod.Tracker
	Pool       *workpool.Pool
	DataDir    string
	ChunkLimit int

	// Identity is returned verbatim by GET /, identifying this server and
	// the data directory it is backed by.
	Identity string
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

// Handler returns the mux this server answers /run and / on.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/run", s.handleRun)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fmt.Fprint(w, s.Identity)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}

	binary, err := toolchain.ParseBinary(req.Binary)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.run(r.Context(), binary, req.Cwd, req.Args)
	if err != nil {
		var linkErr *finallink.LinkError
		if errors.As(err, &linkErr) {
			writeJSON(w, runResponse{Stdout: result.Stdout, Stderr: linkErr.Stderr, Status: linkErr.Status})
			return
		}
		ccelog.Always("run request failed: binary=%s cwd=%s args=%v: %v", req.Binary, req.Cwd, req.Args, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runResponse{Stdout: result.Stdout, Stderr: result.Stderr, Status: result.Status})
}

func writeJSON(w http.ResponseWriter, resp runResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		ccelog.Always("writing /run response: %v", err)
	}
}

// run dispatches a parsed command to the eager passthrough or one of the
// three deferred pipelines, returning whatever the real tool printed (only
// populated for the eager and final-link paths — the other two pipelines
// never run the real tool, they just write a placeholder).
func (s *Server) run(ctx context.Context, binary toolchain.Binary, cwd string, args []string) (preprocess.Result, error) {
	cfg, err := s.Configs.ConfigForPaths(candidatePaths(cwd, args))
	if err != nil {
		return preprocess.Result{}, fmt.Errorf("server: resolving config: %w", err)
	}

	if isEager(cwd, args, cfg) {
		return s.runEager(ctx, binary, cwd, args)
	}

	if binary.IsArCompatible() {
		if err := archivepipeline.Run(s.Tracker, s.Store, cwd, args); err != nil {
			return preprocess.Result{}, err
		}
		return preprocess.Result{Status: 0}, nil
	}

	parsed, err := argmodel.ParseGCCArgs(cwd, args)
	if err != nil {
		return preprocess.Result{}, fmt.Errorf("server: parsing compiler args: %w", err)
	}
	if parsed.StopBeforeLink {
		if err := compileobject.Run(ctx, s.Pool, s.Tracker, cfg, s.Store, s.DataDir, binary, cwd, args); err != nil {
			return preprocess.Result{}, err
		}
		return preprocess.Result{Status: 0}, nil
	}

	return finallink.Run(ctx, s.Pool, s.Tracker, cfg, s.Store, s.DataDir, s.ChunkLimit, binary, cwd, args)
}

func (s *Server) runEager(ctx context.Context, binary toolchain.Binary, cwd string, args []string) (preprocess.Result, error) {
	token := s.Tracker.Start("Eager", fmt.Sprintf("%s %v", binary, args))
	defer token.Close()

	result, err := preprocess.Run(ctx, binary.StandardName(), cwd, args, nil)
	if err != nil {
		return preprocess.Result{}, fmt.Errorf("server: running eagerly: %w", err)
	}
	token.FinishedSuccessfully()
	return result, nil
}

// isEager reports whether a request must bypass deferral entirely: either
// cwd or an argument names the CMakeScratch feature-probe directory CMake
// uses for try-compiles, or the config resolver's eager_patterns otherwise
// classify one of the request's paths as eager.
func isEager(cwd string, args []string, cfg *config.Config) bool {
	if strings.Contains(cwd, cmakeScratchMarker) {
		return true
	}
	for _, arg := range args {
		if strings.Contains(arg, cmakeScratchMarker) {
			return true
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if cfg.IsEagerPath(pathutil.Absolute(cwd, arg)) {
			return true
		}
	}
	return false
}

// candidatePaths extracts the filesystem paths worth resolving config for:
// cwd itself, plus every non-flag argument, absolutized.
func candidatePaths(cwd string, args []string) []string {
	paths := []string{cwd}
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		paths = append(paths, pathutil.Absolute(cwd, arg))
	}
	return paths
}
