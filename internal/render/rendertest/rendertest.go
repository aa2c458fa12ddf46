// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rendertest provides a Renderer for tests that does not start any
// external program.
package rendertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/googlegenomics/paraviewer/internal/render"
)

// Fake is a render.Renderer that returns the requested paths without writing
// anything.  The zero value succeeds for every request.
type Fake struct {
	// StartErr is returned by Start.
	StartErr error
	// Errors maps entity keys to the error returned by Render.
	Errors map[string]error
	// AssetErrors maps entity keys to per-asset failures.
	AssetErrors map[string]map[render.Asset]error
	// Delay is how long each Render call takes.
	Delay time.Duration
	// Block lists entity keys whose Render call waits until the context is
	// done.
	Block map[string]bool

	mu       sync.Mutex
	started  bool
	closed   bool
	requests []render.Request
	inFlight int
	peak     int
}

func (f *Fake) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.started = true
	return nil
}

func (f *Fake) Render(ctx context.Context, req render.Request) (render.Assets, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Block[req.EntityKey] {
		<-ctx.Done()
		return render.Assets{}, ctx.Err()
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return render.Assets{}, ctx.Err()
		}
	}
	if err := f.Errors[req.EntityKey]; err != nil {
		return render.Assets{}, err
	}

	assets := render.Assets{Image: req.ImagePath, Session: req.SessionPath}
	if req.BundlePath != "" {
		assets.Bundles = []string{req.BundlePath}
	} else {
		for _, track := range req.Tracks {
			assets.Bundles = append(assets.Bundles, track.Bundle)
		}
	}
	for asset, err := range f.AssetErrors[req.EntityKey] {
		switch asset {
		case render.Image:
			assets.Image = ""
		case render.Session:
			assets.Session = ""
		case render.Bundle:
			assets.Bundles = nil
		}
		assets.Fail(asset, err)
	}
	return assets, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Started reports whether Start succeeded.
func (f *Fake) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Requests returns the requests received so far in arrival order.
func (f *Fake) Requests() []render.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]render.Request(nil), f.requests...)
}

// Keys returns the sorted entity keys of the requests received so far.
func (f *Fake) Keys() []string {
	var keys []string
	for _, req := range f.Requests() {
		keys = append(keys, req.EntityKey)
	}
	sort.Strings(keys)
	return keys
}

// Peak returns the largest number of concurrent Render calls observed.
func (f *Fake) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}
