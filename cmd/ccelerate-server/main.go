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

// Command ccelerate-server runs the loopback HTTP server every
// ccelerate-ar/ccelerate-cc/ccelerate-cxx wrapper talks to.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/urfave/cli/v2"

	"ccelerate/internal/ccelog"
	"ccelerate/internal/chunkcompile"
	"ccelerate/internal/config"
	"ccelerate/internal/server"
	"ccelerate/internal/store"
	"ccelerate/internal/taskperiod"
	"ccelerate/internal/workpool"
)

func main() {
	app := &cli.App{
		Name:  "ccelerate-server",
		Usage: "defer and merge C/C++ compiles until final link",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Value: "127.0.0.1:6235",
				Usage: "address the server listens on",
			},
			&cli.StringFlag{
				Name:     "data-dir",
				Required: true,
				Usage:    "directory for the record store, preprocessed sources, and merged objects",
			},
			&cli.IntFlag{
				Name:  "jobs",
				Value: runtime.NumCPU(),
				Usage: "maximum number of real compiler/linker invocations running at once",
			},
			&cli.IntFlag{
				Name:  "chunk-limit",
				Value: chunkcompile.DefaultChunkLimit,
				Usage: "largest bucket ever attempted as a single merged compile before splitting",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		ccelog.Fatalf("%v", err)
	}
}

func run(c *cli.Context) error {
	dataDir := c.String("data-dir")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	st, err := store.Open(filepath.Join(dataDir, "ccelerate.db"))
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	defer st.Close()

	srv := &server.Server{
		Store:      st,
		Configs:    config.NewManager(),
		Tracker:    taskperiod.New(),
		Pool:       workpool.New(c.Int("jobs")),
		DataDir:    dataDir,
		ChunkLimit: c.Int("chunk-limit"),
		Identity:   fmt.Sprintf("ccelerate-server data-dir=%s", dataDir),
	}

	listen := c.String("listen")
	ccelog.Always("ccelerate-server listening on %s, data dir %s", listen, dataDir)
	return http.ListenAndServe(listen, srv.Handler())
}
