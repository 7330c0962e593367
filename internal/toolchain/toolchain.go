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

// Package toolchain describes the wrapped tool identities that flow through
// every ccelerate request: the archiver and the two gcc-family front ends.
package toolchain

import "fmt"

// Binary identifies which real tool a Command was originally meant for.
type Binary int

const (
	Ar Binary = iota
	Cc
	Cxx
)

func (b Binary) String() string {
	switch b {
	case Ar:
		return "ar"
	case Cc:
		return "cc"
	case Cxx:
		return "cxx"
	default:
		return fmt.Sprintf("Binary(%d)", int(b))
	}
}

// StandardName is the real binary ccelerate execs when it needs to run the
// actual tool (as opposed to the wrapper that forwarded the invocation).
func (b Binary) StandardName() string {
	switch b {
	case Ar:
		return "ar"
	case Cc:
		return "gcc"
	case Cxx:
		return "g++"
	default:
		return b.String()
	}
}

// IsGCCCompatible reports whether this binary is one of the gcc-family front
// ends (as opposed to the archiver).
func (b Binary) IsGCCCompatible() bool {
	return b == Cc || b == Cxx
}

// IsArCompatible reports whether this binary is the archiver.
func (b Binary) IsArCompatible() bool {
	return b == Ar
}

// ParseBinary maps a wrapper's own argv[0]-derived name to a Binary.
func ParseBinary(name string) (Binary, error) {
	switch name {
	case "ar":
		return Ar, nil
	case "cc", "gcc", "clang":
		return Cc, nil
	case "cxx", "g++", "clang++", "c++":
		return Cxx, nil
	default:
		return 0, fmt.Errorf("toolchain: unknown wrapped binary %q", name)
	}
}

// Command is the immutable tuple that flows from a wrapper into the server:
// which tool was invoked, from where, and with what arguments.
type Command struct {
	Tool Binary
	Cwd  string
	Args []string
}
