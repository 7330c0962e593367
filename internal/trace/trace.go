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

// Package trace exports a taskperiod snapshot as Chrome's trace-event JSON
// format, importable into chrome://tracing or Perfetto.
package trace

import (
	"encoding/json"
	"io"

	"ccelerate/internal/taskperiod"
)

// event is one Chrome trace-event "complete" (ph: "X") entry.
type event struct {
	Name string         `json:"name"`
	Ph   string         `json:"ph"`
	Ts   float64        `json:"ts"`
	Dur  float64        `json:"dur"`
	Tid  int            `json:"tid"`
	Cat  string         `json:"cat"`
	Args map[string]any `json:"args"`
}

// WriteChromeTrace writes periods as a pretty-printed JSON array of Chrome
// trace events. Timestamps and durations are microseconds relative to the
// earliest period's start. Rows (tid) are packed so overlapping periods
// never share a row, mirroring a simple Gantt layout.
func WriteChromeTrace(w io.Writer, periods []taskperiod.Period) error {
	if len(periods) == 0 {
		return json.NewEncoder(w).Encode([]event{})
	}

	start := periods[0].Start
	for _, p := range periods {
		if p.Start.Before(start) {
			start = p.Start
		}
	}

	rowEnd := map[int]taskperiod.Period{}
	events := make([]event, 0, len(periods))
	for _, p := range periods {
		row := rowIndex(p, rowEnd)

		name := p.Category
		if !p.Successful {
			name += " (failed)"
		}

		events = append(events, event{
			Name: name,
			Ph:   "X",
			Ts:   float64(p.Start.Sub(start).Microseconds()),
			Dur:  float64(p.End.Sub(p.Start).Microseconds()),
			Tid:  row,
			Cat:  "",
			Args: map[string]any{"name": p.Name},
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// rowIndex finds the lowest row whose most recent occupant already ended by
// p's start, and claims that row for p.
func rowIndex(p taskperiod.Period, rowEnd map[int]taskperiod.Period) int {
	row := 0
	for {
		occupant, ok := rowEnd[row]
		if !ok || !occupant.End.After(p.Start) {
			rowEnd[row] = p
			return row
		}
		row++
	}
}
