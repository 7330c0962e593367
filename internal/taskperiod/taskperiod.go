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

// Package taskperiod tracks named time intervals ("task periods") for
// progress reporting and diagnostics: one entry per in-flight or completed
// unit of work, with a category, a start time, and — once the scoped token
// is closed — an end time and a success flag.
package taskperiod

import (
	"sort"
	"sync"
	"time"
)

// Period is a recorded interval. End and Successful are only meaningful
// once Running is false.
type Period struct {
	Category   string
	Name       string
	Start      time.Time
	End        time.Time
	Running    bool
	Successful bool
}

type record struct {
	mu         sync.Mutex
	category   string
	name       string
	start      time.Time
	end        time.Time
	running    bool
	successful bool
}

// Tracker is a process-wide list of task periods.
type Tracker struct {
	mu      sync.Mutex
	periods []*record
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Token is returned by Start; the consumer must call Close (typically via
// defer) when the task finishes. Success defaults to false unless
// FinishedSuccessfully is called before Close.
type Token struct {
	r *record
}

// Start records the beginning of a new task period and returns a token that
// must be closed when the task ends.
func (t *Tracker) Start(category, name string) *Token {
	r := &record{category: category, name: name, start: time.Now(), running: true}
	t.mu.Lock()
	t.periods = append(t.periods, r)
	t.mu.Unlock()
	return &Token{r: r}
}

// FinishedSuccessfully marks the task as having succeeded. It must be
// called before Close; Close alone leaves the period marked unsuccessful.
func (tok *Token) FinishedSuccessfully() {
	tok.r.mu.Lock()
	tok.r.successful = true
	tok.r.mu.Unlock()
}

// Close marks the task period as finished, recording its end time.
func (tok *Token) Close() {
	tok.r.mu.Lock()
	tok.r.end = time.Now()
	tok.r.running = false
	tok.r.mu.Unlock()
}

// Snapshot returns every recorded period, sorted by start time.
func (t *Tracker) Snapshot() []Period {
	t.mu.Lock()
	records := append([]*record(nil), t.periods...)
	t.mu.Unlock()

	out := make([]Period, len(records))
	for i, r := range records {
		r.mu.Lock()
		out[i] = Period{
			Category:   r.category,
			Name:       r.name,
			Start:      r.start,
			End:        r.end,
			Running:    r.running,
			Successful: r.successful,
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
