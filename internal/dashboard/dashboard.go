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

// Package dashboard renders a taskperiod snapshot as a short colored status
// block: one line per in-flight task, a running tally of finished/failed
// counts. This is not the interactive TUI dashboard — that stays an
// external collaborator process — just the minimal textual view ccelerate
// itself can print to its own terminal.
package dashboard

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-colorable"

	"ccelerate/internal/taskperiod"
)

const (
	colorReset  = "\x1b[0m"
	colorYellow = "\x1b[33m"
	colorGreen  = "\x1b[32m"
	colorRed    = "\x1b[31m"
)

// NewStdout returns a colorable stdout writer: ANSI codes render correctly
// even on a legacy Windows console, matching how zdima-tinygo colors its
// build log.
func NewStdout() io.Writer {
	return colorable.NewColorableStdout()
}

// Render prints one line per still-running period in periods, followed by a
// summary tally of finished/failed periods.
func Render(w io.Writer, periods []taskperiod.Period, now time.Time) {
	var finished, failed int
	for _, p := range periods {
		if p.Running {
			fmt.Fprintf(w, "%s[%s]%s %s (%s)\n", colorYellow, p.Category, colorReset, p.Name, now.Sub(p.Start).Round(time.Millisecond))
			continue
		}
		if p.Successful {
			finished++
		} else {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(w, "%s%d finished, %d failed%s\n", colorRed, finished, failed, colorReset)
		return
	}
	fmt.Fprintf(w, "%s%d finished%s\n", colorGreen, finished, colorReset)
}
