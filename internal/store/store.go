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

// Package store is the persistent record store: an append-or-replace map
// from absolute artifact path to the command that would reproduce it. Every
// row is written twice, once as a gob blob for faithful reload and once as
// pretty JSON for a human inspecting the database file directly.
package store

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"ccelerate/internal/toolchain"
)

// LocalCode is the product of component F run over an object's preprocessed
// output: the extracted local-code file and the global context it depends
// on. It starts unset and is filled in by UpdateObjectFileLocalCode once the
// extraction has run.
type LocalCode struct {
	LocalCodeFile  string
	GlobalIncludes []string
	IncludeDefines []string
}

// ObjectRecord is the persisted record for a single ".o" artifact.
type ObjectRecord struct {
	Cwd       string
	Binary    toolchain.Binary
	Args      []string
	HasLocal  bool
	LocalCode LocalCode
}

// ArchiveRecord is the persisted record for a single ".a" artifact.
type ArchiveRecord struct {
	Cwd    string
	Binary toolchain.Binary
	Args   []string
}

// row is the gob-serialized shape shared by both record kinds; Kind
// discriminates which of Object/Archive is populated.
type row struct {
	Kind    string
	Object  ObjectRecord
	Archive ArchiveRecord
}

const (
	kindObject  = "object"
	kindArchive = "archive"
)

// debugRow mirrors row but with string-keyed, human-friendly fields; it is
// only ever written, never read back.
type debugRow struct {
	Kind    string         `json:"kind"`
	Object  *ObjectRecord  `json:"object,omitempty"`
	Archive *ArchiveRecord `json:"archive,omitempty"`
}

// Store is the process-wide record store, backed by a single SQLite file.
// Writes are serialized through mu; reads take a consistent snapshot via a
// single SELECT.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the record store at path and applies
// schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS Files (
			path       TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			data_debug TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeRow(r row) (blob []byte, debugJSON string, err error) {
	var gobBuf bytes.Buffer
	if err := gob.NewEncoder(&gobBuf).Encode(r); err != nil {
		return nil, "", fmt.Errorf("store: gob-encoding record: %w", err)
	}
	dr := debugRow{Kind: r.Kind}
	if r.Kind == kindObject {
		dr.Object = &r.Object
	} else {
		dr.Archive = &r.Archive
	}
	debugBytes, err := json.MarshalIndent(dr, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("store: json-encoding debug record: %w", err)
	}
	return gobBuf.Bytes(), string(debugBytes), nil
}

func (s *Store) put(path string, r row) error {
	blob, debugJSON, err := encodeRow(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO Files (path, data, data_debug) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, data_debug = excluded.data_debug`,
		path, blob, debugJSON,
	)
	if err != nil {
		return fmt.Errorf("store: writing record for %s: %w", path, err)
	}
	return nil
}

func (s *Store) get(path string) (*row, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT data FROM Files WHERE path = ?`, path).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading record for %s: %w", path, err)
	}
	var r row
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&r); err != nil {
		return nil, fmt.Errorf("store: decoding record for %s: %w", path, err)
	}
	return &r, nil
}

// UpdateObjectFile records (or replaces) the creation command for an object
// artifact. Replacing an existing record discards its local-code sub-record:
// the new record always starts with HasLocal false.
func (s *Store) UpdateObjectFile(path, cwd string, binary toolchain.Binary, args []string) error {
	return s.put(path, row{Kind: kindObject, Object: ObjectRecord{
		Cwd: cwd, Binary: binary, Args: append([]string(nil), args...),
	}})
}

// UpdateObjectFileLocalCode fills in the local-code sub-record for an
// already-recorded object, preserving its creation command.
func (s *Store) UpdateObjectFileLocalCode(path string, local LocalCode) error {
	existing, err := s.get(path)
	if err != nil {
		return err
	}
	if existing == nil || existing.Kind != kindObject {
		return fmt.Errorf("store: no object record for %s", path)
	}
	obj := existing.Object
	obj.HasLocal = true
	obj.LocalCode = local
	return s.put(path, row{Kind: kindObject, Object: obj})
}

// UpdateArchiveFile records (or replaces) the creation command for an
// archive artifact.
func (s *Store) UpdateArchiveFile(path, cwd string, binary toolchain.Binary, args []string) error {
	return s.put(path, row{Kind: kindArchive, Archive: ArchiveRecord{
		Cwd: cwd, Binary: binary, Args: append([]string(nil), args...),
	}})
}

// GetObjectFile returns the object record at path, or nil if none is
// recorded or the record there is an archive.
func (s *Store) GetObjectFile(path string) (*ObjectRecord, error) {
	r, err := s.get(path)
	if err != nil || r == nil || r.Kind != kindObject {
		return nil, err
	}
	obj := r.Object
	return &obj, nil
}

// GetArchiveFile returns the archive record at path, or nil if none is
// recorded or the record there is an object.
func (s *Store) GetArchiveFile(path string) (*ArchiveRecord, error) {
	r, err := s.get(path)
	if err != nil || r == nil || r.Kind != kindArchive {
		return nil, err
	}
	arc := r.Archive
	return &arc, nil
}
