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

// Package workpool bounds how many tasks run at once. It is a thin counting
// semaphore, not a job-dependency scheduler: callers that need fan-out with
// error aggregation layer golang.org/x/sync/errgroup on top (see
// internal/chunkcompile), using a Pool only to cap concurrency.
package workpool

import "context"

// Pool is a counting semaphore with a fixed number of permits.
type Pool struct {
	permits chan struct{}
}

// New returns a Pool that allows at most parallelism tasks to hold a permit
// concurrently.
func New(parallelism int) *Pool {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Pool{permits: make(chan struct{}, parallelism)}
}

// Handle represents one acquired permit. Release gives it back; it is safe
// to call Release at most once per Handle.
type Handle struct {
	pool *Pool
}

// Release returns the permit to the pool.
func (h *Handle) Release() {
	<-h.pool.permits
}

// Spawn acquires a permit (blocking until one is free, or ctx is done) and
// runs f in a new goroutine, releasing the permit when f returns. It
// returns immediately after the goroutine is launched; dropping interest in
// the result (the caller moving on without synchronizing) is a best-effort
// cancellation — the task still runs to completion, it is simply no longer
// awaited.
func (p *Pool) Spawn(ctx context.Context, f func(context.Context)) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	go func() {
		defer func() { <-p.permits }()
		f(ctx)
	}()
	return nil
}

// RunLocal acquires a permit in the calling goroutine (no spawn) and runs f
// synchronously, releasing the permit when f returns.
func (p *Pool) RunLocal(ctx context.Context, f func(context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-p.permits }()
	return f(ctx)
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire blocks until a permit is available (or ctx is done) and returns a
// Handle the caller must Release.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	return &Handle{pool: p}, nil
}
