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

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"ccelerate/internal/config"
	"ccelerate/internal/store"
	"ccelerate/internal/taskperiod"
	"ccelerate/internal/toolchain"
	"ccelerate/internal/workpool"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dataDir := t.TempDir()
	st, err := store.Open(filepath.Join(dataDir, "ccelerate.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return &Server{
		Store:    st,
		Configs:  config.NewManager(),
		Tracker:  taskperiod.New(),
		Pool:     workpool.New(4),
		DataDir:  dataDir,
		Identity: "ccelerator test",
	}, dataDir
}

func doRun(t *testing.T, srv *Server, binary string, args []string, cwd string) (runResponse, int) {
	t.Helper()
	body, err := json.Marshal(runRequest{Binary: binary, Args: args, Cwd: cwd})
	if err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader(body))
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		return runResponse{}, rr.Code
	}
	var resp runResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return resp, rr.Code
}

func TestHandleIndexReturnsIdentity(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Body.String() != "ccelerator test" {
		t.Errorf("GET / = %q, want identity string", rr.Body.String())
	}
}

// Scenario 1: archiver create records members and writes a placeholder.
func TestScenarioArchiverCreate(t *testing.T) {
	srv, _ := newTestServer(t)
	cwd := t.TempDir()
	for _, name := range []string{"a.o", "b.o"} {
		if err := os.WriteFile(filepath.Join(cwd, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	resp, code := doRun(t, srv, "ar", []string{"qc", filepath.Join("lib", "x.a"), "a.o", "b.o"}, cwd)
	if code != http.StatusOK || resp.Status != 0 {
		t.Fatalf("ar create: code=%d resp=%+v", code, resp)
	}

	archivePath := filepath.Join(cwd, "lib", "x.a")
	record, err := srv.Store.GetArchiveFile(archivePath)
	if err != nil || record == nil {
		t.Fatalf("expected an archive record at %s, err=%v", archivePath, err)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Errorf("expected a placeholder archive: %v", err)
	}
}

// Scenario 2: compiling an object records the split and writes a
// placeholder, without ever running the real compiler end to end.
func TestScenarioCompileObject(t *testing.T) {
	srv, _ := newTestServer(t)
	cwd := t.TempDir()
	fakeDir := fakeGCCDir(t, "")
	t.Setenv("PATH", fakeDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	if err := os.WriteFile(filepath.Join(cwd, "foo.c"), []byte("int foo(void){return 1;}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, code := doRun(t, srv, "cc", []string{"-c", "foo.c", "-o", filepath.Join("out", "foo.o"), "-Iinc", "-DX=1"}, cwd)
	if code != http.StatusOK || resp.Status != 0 {
		t.Fatalf("compile object: code=%d resp=%+v", code, resp)
	}

	objectPath := filepath.Join(cwd, "out", "foo.o")
	if _, err := os.Stat(objectPath); err != nil {
		t.Errorf("expected a placeholder object: %v", err)
	}
	record, err := srv.Store.GetObjectFile(objectPath)
	if err != nil || record == nil || !record.HasLocal {
		t.Fatalf("expected a recorded object with local code, record=%+v err=%v", record, err)
	}
}

// Scenario 3: a CMakeScratch path is run eagerly, verbatim, with nothing
// persisted to the store.
func TestScenarioEagerFastPath(t *testing.T) {
	srv, _ := newTestServer(t)
	cwd := t.TempDir()
	probeDir := filepath.Join(cwd, "CMakeFiles", "CMakeScratch", "TryCompile")
	if err := os.MkdirAll(probeDir, 0o755); err != nil {
		t.Fatal(err)
	}

	fakeDir := fakeGCCDir(t, "echo-marker")
	t.Setenv("PATH", fakeDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	resp, code := doRun(t, srv, "cc", []string{"-c", "probe.c", "-o", "probe.o"}, probeDir)
	if code != http.StatusOK {
		t.Fatalf("eager probe: code=%d resp=%+v", code, resp)
	}
	if string(resp.Stdout) != "eager-marker\n" {
		t.Errorf("expected the real tool's stdout verbatim, got %q", resp.Stdout)
	}

	objectPath := filepath.Join(probeDir, "probe.o")
	record, err := srv.Store.GetObjectFile(objectPath)
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Errorf("expected no record persisted for an eager request, got %+v", record)
	}
	if _, err := os.Stat(objectPath); err == nil {
		t.Errorf("expected no placeholder written for an eager request")
	}
}

func seedObject(t *testing.T, srv *Server, cwd, objectName, localBody string, defines []string) string {
	t.Helper()
	objectPath := filepath.Join(cwd, objectName)
	sourceName := objectName[:len(objectName)-len(filepath.Ext(objectName))] + ".c"
	args := []string{"-c", sourceName, "-o", objectName}
	if err := srv.Store.UpdateObjectFile(objectPath, cwd, toolchain.Cc, args); err != nil {
		t.Fatal(err)
	}
	localFile := filepath.Join(cwd, objectName+".local.i")
	if err := os.WriteFile(localFile, []byte(localBody), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := srv.Store.UpdateObjectFileLocalCode(objectPath, store.LocalCode{
		LocalCodeFile:  localFile,
		IncludeDefines: defines,
	}); err != nil {
		t.Fatal(err)
	}
	return objectPath
}

// fakeGCCDir writes a shell script standing in for gcc that distinguishes
// the three invocation shapes chunkcompile/finallink can make: header
// preprocessing (-E), the final link (-shared), and a stdin-driven object
// build, which fails if more than three "FUNC_MARKER" lines arrive on stdin
// when mode is "reject-multi". Mode "echo-marker" instead always succeeds
// and echoes a fixed marker to stdout, standing in for scenario 3's eager
// passthrough.
func fakeGCCDir(t *testing.T, mode string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gcc")

	var script string
	switch mode {
	case "echo-marker":
		script = "#!/bin/sh\necho eager-marker\nexit 0\n"
	case "reject-multi":
		script = `#!/bin/sh
out=""
for a in "$@"; do
  case "$a" in
    -E) cat >/dev/null; exit 0 ;;
    -shared) :;;
  esac
done
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
case "$*" in
  *-shared*) : > "$out"; exit 0 ;;
esac
stdin="$(cat)"
count=$(printf '%s\n' "$stdin" | grep -c FUNC_MARKER)
if [ "$count" -gt 3 ]; then
  exit 1
fi
: > "$out"
exit 0
`
	default:
		script = "#!/bin/sh\ncat >/dev/null\nprev=\"\"\nfor a in \"$@\"; do\n  if [ \"$prev\" = \"-o\" ]; then : > \"$a\"; fi\n  prev=\"$a\"\ndone\nexit 0\n"
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

// Scenario 4: two compatible objects merge into a single compiled unit,
// archived and linked in one real linker invocation.
func TestScenarioFinalLinkTwoCompatibleObjects(t *testing.T) {
	requireTool(t, "ar")
	srv, _ := newTestServer(t)
	cwd := t.TempDir()
	fakeDir := fakeGCCDir(t, "reject-multi")
	t.Setenv("PATH", fakeDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	seedObject(t, srv, cwd, "a.o", "int a_func(void){return 1;}\n", nil)
	seedObject(t, srv, cwd, "b.o", "int b_func(void){return 2;}\n", nil)

	resp, code := doRun(t, srv, "cc", []string{"-shared", "-o", "app.so", "a.o", "b.o"}, cwd)
	if code != http.StatusOK || resp.Status != 0 {
		t.Fatalf("final link: code=%d resp=%+v", code, resp)
	}
	if _, err := os.Stat(filepath.Join(cwd, "app.so")); err != nil {
		t.Errorf("expected the linked output to exist: %v", err)
	}
}

// Scenario 5: objects with different include-defines land in separate
// buckets, producing two merged objects but still one linker invocation.
func TestScenarioFinalLinkIncompatibleObjects(t *testing.T) {
	requireTool(t, "ar")
	srv, _ := newTestServer(t)
	cwd := t.TempDir()
	fakeDir := fakeGCCDir(t, "reject-multi")
	t.Setenv("PATH", fakeDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	seedObject(t, srv, cwd, "a.o", "int a_func(void){return 1;}\n", []string{"#define FOO 1"})
	seedObject(t, srv, cwd, "b.o", "int b_func(void){return 2;}\n", nil)

	resp, code := doRun(t, srv, "cc", []string{"-shared", "-o", "app.so", "a.o", "b.o"}, cwd)
	if code != http.StatusOK || resp.Status != 0 {
		t.Fatalf("final link: code=%d resp=%+v", code, resp)
	}
	if _, err := os.Stat(filepath.Join(cwd, "app.so")); err != nil {
		t.Errorf("expected the linked output to exist: %v", err)
	}
}

// Scenario 6: a bucket of six members fails to compile whole and must be
// halved down to two successful three-member compiles.
func TestScenarioMergedCompileFailureSplitsBucket(t *testing.T) {
	requireTool(t, "ar")
	srv, _ := newTestServer(t)
	cwd := t.TempDir()
	fakeDir := fakeGCCDir(t, "reject-multi")
	t.Setenv("PATH", fakeDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	names := []string{"a.o", "b.o", "c.o", "d.o", "e.o", "f.o"}
	for i, name := range names {
		body := "int fn" + string(rune('0'+i)) + "(void){return " + string(rune('0'+i)) + ";}\n// FUNC_MARKER\n"
		seedObject(t, srv, cwd, name, body, nil)
	}

	resp, code := doRun(t, srv, "cc", append([]string{"-shared", "-o", "app.so"}, names...), cwd)
	if code != http.StatusOK || resp.Status != 0 {
		t.Fatalf("final link: code=%d resp=%+v", code, resp)
	}
	if _, err := os.Stat(filepath.Join(cwd, "app.so")); err != nil {
		t.Errorf("expected the linked output to exist: %v", err)
	}
}
