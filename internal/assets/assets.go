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

// Package assets drives a render.Renderer over every entity of a graph with
// bounded parallelism and records the outcome of each entity in a Manifest.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/render"
	"github.com/googlegenomics/paraviewer/internal/report"
)

// Options configures Orchestrate.
type Options struct {
	// Workers bounds the number of entities rendered at once.
	Workers int
	// Timeout bounds the rendering of one entity.  Zero means no limit.
	Timeout time.Duration
	// MaxReads is the per-haplotype read cap passed to the renderer.
	MaxReads int
	// Summary receives one AssetGeneration warning per degraded entity.
	Summary *report.Summary
	// Metrics is optional.
	Metrics *Metrics
}

// Entry is the asset outcome for one entity.  Paths are relative to the site
// root.
type Entry struct {
	Image   string
	Session string
	Bundles []string
	// Degraded is set when any asset could not be produced.
	Degraded bool
	Issues   []string
}

// Manifest maps entity keys to their assets.
type Manifest map[string]Entry

// Orchestrate renders the assets of every Call and then every TrioCall in g.
// Trio tasks start only after all call tasks have finished because they
// reference the member bundles.  A failure of one entity is recorded in its
// Entry and in opts.Summary; an error wrapping render.ErrUnavailable stops
// the run and is returned as a RendererUnavailable error.  On success the
// manifest has an entry for every entity.
func Orchestrate(ctx context.Context, g *model.Graph, r render.Renderer, opts Options) (Manifest, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Summary == nil {
		opts.Summary = &report.Summary{}
	}
	o := &orchestrator{
		renderer: r,
		opts:     opts,
		manifest: make(Manifest),
	}

	calls := make([]render.Request, len(g.Calls))
	for i, c := range g.Calls {
		calls[i] = render.ForCall(c, g.Genome, opts.MaxReads)
	}
	trios := make([]render.Request, len(g.TrioCalls))
	for i, t := range g.TrioCalls {
		trios[i] = render.ForTrio(t, g.Genome, opts.MaxReads)
	}
	slog.Info("Rendering assets", "calls", len(calls), "trio_calls", len(trios), "workers", opts.Workers, "timeout", opts.Timeout)

	start := time.Now()
	for _, phase := range [][]render.Request{calls, trios} {
		if err := o.run(ctx, phase); err != nil {
			return nil, err
		}
	}
	slog.Info("Rendered assets", "entities", len(o.manifest), "degraded", opts.Summary.Count(report.AssetGeneration), "elapsed", time.Since(start).Round(time.Millisecond))
	return o.manifest, nil
}

type orchestrator struct {
	renderer render.Renderer
	opts     Options

	mu       sync.Mutex
	manifest Manifest
}

func (o *orchestrator) run(ctx context.Context, requests []render.Request) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.opts.Workers)
	for _, req := range requests {
		if gctx.Err() != nil {
			break
		}
		req := req
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := o.render(gctx, req)
			if err != nil {
				return err
			}
			o.mu.Lock()
			o.manifest[req.EntityKey] = entry
			o.mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// render returns the entry for req.  The returned error is either systemic
// or the cancellation of ctx.
func (o *orchestrator) render(ctx context.Context, req render.Request) (Entry, error) {
	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.Timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
	}
	defer cancel()

	start := time.Now()
	assets, err := o.renderer.Render(taskCtx, req)
	o.opts.Metrics.observe(req.Kind, time.Since(start))

	switch {
	case err != nil && errors.Is(err, render.ErrUnavailable):
		o.opts.Metrics.outcome(req.Kind, "unavailable")
		if kind, ok := report.KindOf(err); ok && kind == report.RendererUnavailable {
			return Entry{}, err
		}
		return Entry{}, report.NewRendererUnavailableError(req.EntityKey, "rendering assets", err)
	case err != nil && ctx.Err() != nil:
		return Entry{}, ctx.Err()
	}

	entry := Entry{Image: assets.Image, Session: assets.Session, Bundles: assets.Bundles}
	if err == nil {
		err = assets.Err()
		for asset := range assets.Failed {
			o.opts.Metrics.assetFailed(asset)
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %v: %w", o.opts.Timeout, err)
	}
	if err != nil {
		entry.Degraded = true
		entry.Issues = []string{err.Error()}
		o.opts.Summary.Add(report.AssetGeneration, req.Owner, req.Region, err)
		o.opts.Metrics.outcome(req.Kind, "degraded")
		slog.Warn("Asset generation failed", "entity", req.EntityKey, "error", err)
		return entry, nil
	}
	o.opts.Metrics.outcome(req.Kind, "ok")
	slog.Debug("Rendered entity", "entity", req.EntityKey, "elapsed", time.Since(start).Round(time.Millisecond))
	return entry, nil
}
