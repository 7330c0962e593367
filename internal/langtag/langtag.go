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

// Package langtag names the C/C++ language variants ccelerate needs to tell
// apart, and the mappings to/from gcc's own spellings of them.
package langtag

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language is a source language as gcc understands it, including the
// preprocessed-form variants produced by -E.
type Language int

const (
	// C is plain C source.
	C Language = iota
	// Cxx is C++ source.
	Cxx
	// I is preprocessed C (.i).
	I
	// II is preprocessed C++ (.ii).
	II
)

func (l Language) String() string {
	switch l {
	case C:
		return "C"
	case Cxx:
		return "Cxx"
	case I:
		return "I"
	case II:
		return "II"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// FromExt maps a file extension (without the leading dot) to a Language.
func FromExt(ext string) (Language, error) {
	switch strings.ToLower(ext) {
	case "c":
		return C, nil
	case "cc", "cp", "cpp", "cxx", "c++":
		return Cxx, nil
	case "i":
		return I, nil
	case "ii":
		return II, nil
	default:
		return 0, fmt.Errorf("langtag: unknown extension %q", ext)
	}
}

// FromPath extracts the extension from path and resolves its Language.
func FromPath(path string) (Language, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return FromExt(ext)
}

// ValidExt returns a canonical extension for this language, used when
// naming synthetic intermediate files.
func (l Language) ValidExt() string {
	switch l {
	case C:
		return "c"
	case Cxx:
		return "cc"
	case I:
		return "i"
	case II:
		return "ii"
	default:
		return ""
	}
}

// FromGCCXArg maps the argument of gcc's "-x <lang>" flag to a Language.
// "none" resets language detection and is reported as ok=false.
func FromGCCXArg(arg string) (lang Language, ok bool, err error) {
	switch arg {
	case "c":
		return C, true, nil
	case "c++":
		return Cxx, true, nil
	case "cpp-output":
		return I, true, nil
	case "c++-cpp-output":
		return II, true, nil
	case "none":
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("langtag: unknown -x argument %q", arg)
	}
}

// ToGCCXArg is the inverse of FromGCCXArg.
func (l Language) ToGCCXArg() string {
	switch l {
	case C:
		return "c"
	case Cxx:
		return "c++"
	case I:
		return "cpp-output"
	case II:
		return "c++-cpp-output"
	default:
		return "none"
	}
}

// ToPreprocessed returns the preprocessed-form variant of a non-preprocessed
// language (C -> I, Cxx -> II). It errors for languages that are already
// preprocessed.
func (l Language) ToPreprocessed() (Language, error) {
	switch l {
	case C:
		return I, nil
	case Cxx:
		return II, nil
	default:
		return 0, fmt.Errorf("langtag: cannot preprocess already-preprocessed language %s", l)
	}
}

// ToNonPreprocessed is the inverse of ToPreprocessed.
func (l Language) ToNonPreprocessed() (Language, error) {
	switch l {
	case I:
		return C, nil
	case II:
		return Cxx, nil
	case C, Cxx:
		return l, nil
	default:
		return 0, fmt.Errorf("langtag: unknown language %s", l)
	}
}

// IsCxx reports whether l is a C++ variant (Cxx or II).
func (l Language) IsCxx() bool {
	return l == Cxx || l == II
}
