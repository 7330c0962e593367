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

// Package ccelog is a thin wrapper over glog: Always always prints,
// regardless of -v level, for messages the operator should see no matter
// the configured verbosity.
package ccelog

import (
	"fmt"

	"github.com/golang/glog"
)

// Always logs f at Info severity and forces an immediate flush, the way a
// progress line ("compiled 40/120 objects") needs to reach the terminal
// right away instead of waiting for glog's periodic flush.
func Always(f string, a ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf(f, a...))
	glog.Flush()
}

// Detailed logs f at Info severity without forcing a flush, for verbose
// per-task detail that's fine to batch.
func Detailed(f string, a ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf(f, a...))
}

// Fatalf logs f at Fatal severity and exits, for unrecoverable startup
// failures (schema migration, listener bind).
func Fatalf(f string, a ...interface{}) {
	glog.FatalDepth(1, fmt.Sprintf(f, a...))
}
