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

package workpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2)
	ctx := context.Background()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		err := p.Spawn(ctx, func(context.Context) {
			defer wg.Done()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		})
		if err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxActive); got > 2 {
		t.Errorf("observed %d concurrent tasks, want at most 2", got)
	}
}

func TestRunLocalPropagatesError(t *testing.T) {
	p := New(1)
	wantErr := context.Canceled
	err := p.RunLocal(context.Background(), func(context.Context) error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("RunLocal error = %v, want %v", err, wantErr)
	}
}

func TestAcquireBlocksUntilReleased(t *testing.T) {
	p := New(1)
	ctx := context.Background()

	h, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		h2, err := p.Acquire(ctx)
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		close(acquired)
		h2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should have blocked while the first permit is held")
	case <-time.After(20 * time.Millisecond):
	}

	h.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never completed after Release")
	}
}

func TestSpawnRespectsContextCancellation(t *testing.T) {
	p := New(1)
	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Spawn(ctx, func(context.Context) {}); err == nil {
		t.Error("expected Spawn to fail fast on an already-cancelled context while the pool is full")
	}
}
