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

// Command ccelerate-ar stands in for "ar": it relays its own argv to
// ccelerate-server and replays whatever the server reports back.
package main

import (
	"fmt"
	"os"

	"ccelerate/internal/ccelog"
	"ccelerate/internal/wrapclient"
)

func main() {
	status, err := wrapclient.Run("ar", os.Args[1:])
	if err != nil {
		ccelog.Always("ccelerate-ar: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(status)
}
