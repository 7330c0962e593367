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

// Package group buckets object records that may be compiled together: same
// tool, same source language, same cwd, same include-defines, and the same
// translation-unit-unspecific compiler arguments.
package group

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"ccelerate/internal/argmodel"
	"ccelerate/internal/store"
)

// Key is the compatibility bucket key: an xxhash64 digest of the tool name,
// source language extension, cwd, sorted include-defines, and the
// canonicalized non-translation-unit-specific argument bytes.
type Key [8]byte

// Bucket is one set of mutually compatible objects, in first-seen order.
type Bucket struct {
	Key     Key
	Objects []*store.ObjectRecord
}

// ComputeKey derives the bucket key for a single object record.
func ComputeKey(obj *store.ObjectRecord) (Key, error) {
	args, err := argmodel.ParseGCCArgs(obj.Cwd, obj.Args)
	if err != nil {
		return Key{}, fmt.Errorf("group: re-parsing object args for %s: %w", obj.Cwd, err)
	}
	if len(args.Sources) == 0 {
		return Key{}, fmt.Errorf("group: object record has no source")
	}
	lang, err := args.Sources[0].Language()
	if err != nil {
		return Key{}, fmt.Errorf("group: resolving source language: %w", err)
	}

	h := xxhash.New()
	fmt.Fprint(h, obj.Binary.StandardName())
	h.Write([]byte{0})
	fmt.Fprint(h, lang.ValidExt())
	h.Write([]byte{0})
	fmt.Fprint(h, obj.Cwd)
	h.Write([]byte{0})

	defines := append([]string(nil), obj.LocalCode.IncludeDefines...)
	sort.Strings(defines)
	for _, d := range defines {
		fmt.Fprint(h, d)
		h.Write([]byte{0})
	}

	h.Write(args.CompatibilityKeyBytes())

	var key Key
	sum := h.Sum64()
	for i := 0; i < 8; i++ {
		key[i] = byte(sum >> (8 * i))
	}
	return key, nil
}

// Group buckets objects by ComputeKey, preserving each bucket's first-seen
// member order and returning buckets in first-seen order too, so downstream
// ordering (see internal/chunkcompile) is deterministic.
func Group(objects []*store.ObjectRecord) ([]Bucket, error) {
	index := map[Key]int{}
	var buckets []Bucket
	for _, obj := range objects {
		key, err := ComputeKey(obj)
		if err != nil {
			return nil, err
		}
		if i, ok := index[key]; ok {
			buckets[i].Objects = append(buckets[i].Objects, obj)
			continue
		}
		index[key] = len(buckets)
		buckets = append(buckets, Bucket{Key: key, Objects: []*store.ObjectRecord{obj}})
	}
	return buckets, nil
}
