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

package linksources

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"ccelerate/internal/store"
	"ccelerate/internal/toolchain"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ccelerate.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFindUnknownExtensionIsUnknownSource(t *testing.T) {
	s := openTestStore(t)
	result, err := Find(s, []string{"/w/libsystem.dylib"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !reflect.DeepEqual(result.UnknownSources, []string{"/w/libsystem.dylib"}) {
		t.Errorf("UnknownSources = %v", result.UnknownSources)
	}
}

func TestFindObjectWithNoRecordIsUnknown(t *testing.T) {
	s := openTestStore(t)
	result, err := Find(s, []string{"/w/precompiled.o"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !reflect.DeepEqual(result.UnknownSources, []string{"/w/precompiled.o"}) {
		t.Errorf("UnknownSources = %v", result.UnknownSources)
	}
	if len(result.KnownObjectFiles) != 0 {
		t.Errorf("expected no known objects")
	}
}

func TestFindObjectWithRecordIsKnown(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateObjectFile("/w/foo.o", "/w", toolchain.Cc, []string{"-c", "-o", "/w/foo.o", "/w/foo.c"}); err != nil {
		t.Fatal(err)
	}
	result, err := Find(s, []string{"/w/foo.o"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(result.UnknownSources) != 0 {
		t.Errorf("expected no unknown sources, got %v", result.UnknownSources)
	}
	if len(result.KnownObjectFiles) != 1 || result.KnownObjectFiles[0].Cwd != "/w" {
		t.Errorf("KnownObjectFiles = %+v", result.KnownObjectFiles)
	}
}

func TestFindArchiveRecursesIntoMembers(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateObjectFile("/w/a.o", "/w", toolchain.Cc, []string{"-c", "-o", "/w/a.o", "/w/a.c"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateArchiveFile("/w/lib.a", "/w", toolchain.Ar, []string{"qc", "/w/lib.a", "/w/a.o", "/w/unknown.o"}); err != nil {
		t.Fatal(err)
	}

	result, err := Find(s, []string{"/w/lib.a"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(result.KnownObjectFiles) != 1 || result.KnownObjectFiles[0].Cwd != "/w" {
		t.Errorf("KnownObjectFiles = %+v", result.KnownObjectFiles)
	}
	if !reflect.DeepEqual(result.UnknownSources, []string{"/w/unknown.o"}) {
		t.Errorf("UnknownSources = %v", result.UnknownSources)
	}
}

func TestFindArchiveWithNoRecordIsUnknown(t *testing.T) {
	s := openTestStore(t)
	result, err := Find(s, []string{"/w/precompiled.a"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !reflect.DeepEqual(result.UnknownSources, []string{"/w/precompiled.a"}) {
		t.Errorf("UnknownSources = %v", result.UnknownSources)
	}
}

func TestFindAvoidsCyclesViaVisitedSet(t *testing.T) {
	s := openTestStore(t)
	// Self-referential archive record: the walker must not recurse forever.
	if err := s.UpdateArchiveFile("/w/lib.a", "/w", toolchain.Ar, []string{"qc", "/w/lib.a", "/w/lib.a"}); err != nil {
		t.Fatal(err)
	}

	done := make(chan Result, 1)
	go func() {
		result, err := Find(s, []string{"/w/lib.a"})
		if err != nil {
			t.Errorf("Find: %v", err)
		}
		done <- result
	}()

	select {
	case result := <-done:
		if len(result.UnknownSources) != 0 || len(result.KnownObjectFiles) != 0 {
			t.Errorf("unexpected result for a self-referential archive: %+v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Find did not terminate on a self-referential archive record")
	}
}
