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

package store

import (
	"path/filepath"
	"reflect"
	"testing"

	"ccelerate/internal/toolchain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ccelerate.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpdateAndGetObjectFile(t *testing.T) {
	s := openTestStore(t)
	args := []string{"-c", "-o", "/w/foo.o", "/w/foo.c"}
	if err := s.UpdateObjectFile("/w/foo.o", "/w", toolchain.Cc, args); err != nil {
		t.Fatalf("UpdateObjectFile: %v", err)
	}

	got, err := s.GetObjectFile("/w/foo.o")
	if err != nil {
		t.Fatalf("GetObjectFile: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if got.Cwd != "/w" || got.Binary != toolchain.Cc || !reflect.DeepEqual(got.Args, args) {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.HasLocal {
		t.Errorf("expected HasLocal = false before local-code extraction")
	}
}

func TestUpdateObjectFileLocalCodePreservesCreateCommand(t *testing.T) {
	s := openTestStore(t)
	args := []string{"-c", "-o", "/w/foo.o", "/w/foo.c"}
	if err := s.UpdateObjectFile("/w/foo.o", "/w", toolchain.Cxx, args); err != nil {
		t.Fatal(err)
	}

	local := LocalCode{
		LocalCodeFile:  "/data/preprocessed/ab/foo.ii",
		GlobalIncludes: []string{"/usr/include/stdio.h"},
		IncludeDefines: []string{"NDEBUG"},
	}
	if err := s.UpdateObjectFileLocalCode("/w/foo.o", local); err != nil {
		t.Fatalf("UpdateObjectFileLocalCode: %v", err)
	}

	got, err := s.GetObjectFile("/w/foo.o")
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasLocal || !reflect.DeepEqual(got.LocalCode, local) {
		t.Errorf("unexpected local code: %+v", got)
	}
	if got.Binary != toolchain.Cxx || !reflect.DeepEqual(got.Args, args) {
		t.Errorf("create command was not preserved: %+v", got)
	}
}

func TestUpdateObjectFileLocalCodeWithoutCreateCommandFails(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateObjectFileLocalCode("/w/missing.o", LocalCode{}); err == nil {
		t.Fatal("expected an error for a path with no existing object record")
	}
}

func TestUpdateAndGetArchiveFile(t *testing.T) {
	s := openTestStore(t)
	args := []string{"qc", "/w/lib.a", "/w/a.o", "/w/b.o"}
	if err := s.UpdateArchiveFile("/w/lib.a", "/w", toolchain.Ar, args); err != nil {
		t.Fatalf("UpdateArchiveFile: %v", err)
	}

	got, err := s.GetArchiveFile("/w/lib.a")
	if err != nil {
		t.Fatalf("GetArchiveFile: %v", err)
	}
	if got == nil || got.Cwd != "/w" || !reflect.DeepEqual(got.Args, args) {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestGetObjectFileOnArchivePathReturnsNil(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateArchiveFile("/w/lib.a", "/w", toolchain.Ar, []string{"qc", "/w/lib.a"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetObjectFile("/w/lib.a")
	if err != nil {
		t.Fatalf("GetObjectFile: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil when the stored record is an archive, got %+v", got)
	}
}

func TestGetMissingRecordReturnsNilNoError(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetObjectFile("/w/does-not-exist.o")
	if err != nil || got != nil {
		t.Errorf("GetObjectFile(missing) = %+v, %v; want nil, nil", got, err)
	}
}

func TestUpdateObjectFileReplacesExistingRecord(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateObjectFile("/w/foo.o", "/w", toolchain.Cc, []string{"-c", "old.c"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateObjectFile("/w/foo.o", "/w", toolchain.Cc, []string{"-c", "new.c"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetObjectFile("/w/foo.o")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Args, []string{"-c", "new.c"}) {
		t.Errorf("expected replace semantics, got %+v", got.Args)
	}
}
