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

package langtag

import "testing"

func TestFromExt(t *testing.T) {
	for _, tc := range []struct {
		ext  string
		want Language
	}{
		{"c", C},
		{"cc", Cxx},
		{"cp", Cxx},
		{"cpp", Cxx},
		{"cxx", Cxx},
		{"c++", Cxx},
		{"i", I},
		{"ii", II},
	} {
		got, err := FromExt(tc.ext)
		if err != nil {
			t.Fatalf("FromExt(%q): %v", tc.ext, err)
		}
		if got != tc.want {
			t.Errorf("FromExt(%q) = %v, want %v", tc.ext, got, tc.want)
		}
	}
	if _, err := FromExt("h"); err == nil {
		t.Errorf("FromExt(%q) should have failed", "h")
	}
}

func TestGCCXArgRoundTrip(t *testing.T) {
	for _, l := range []Language{C, Cxx, I, II} {
		arg := l.ToGCCXArg()
		got, ok, err := FromGCCXArg(arg)
		if err != nil || !ok {
			t.Fatalf("FromGCCXArg(%q) round trip failed: ok=%v err=%v", arg, ok, err)
		}
		if got != l {
			t.Errorf("round trip %v -> %q -> %v", l, arg, got)
		}
	}
	if _, ok, err := FromGCCXArg("none"); err != nil || ok {
		t.Errorf("FromGCCXArg(none) = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestToPreprocessedRoundTrip(t *testing.T) {
	for _, tc := range []struct{ src, preprocessed Language }{
		{C, I},
		{Cxx, II},
	} {
		got, err := tc.src.ToPreprocessed()
		if err != nil || got != tc.preprocessed {
			t.Fatalf("%v.ToPreprocessed() = %v, %v", tc.src, got, err)
		}
		back, err := got.ToNonPreprocessed()
		if err != nil || back != tc.src {
			t.Fatalf("%v.ToNonPreprocessed() = %v, %v", got, back, err)
		}
	}
	if _, err := I.ToPreprocessed(); err == nil {
		t.Errorf("I.ToPreprocessed() should fail")
	}
}
