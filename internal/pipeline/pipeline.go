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

// Package pipeline runs a complete paraviewer build: discovery, filtering,
// aggregation, asset rendering, site emission and the optional exports.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/googlegenomics/paraviewer/internal/aggregate"
	"github.com/googlegenomics/paraviewer/internal/assets"
	"github.com/googlegenomics/paraviewer/internal/catalog"
	"github.com/googlegenomics/paraviewer/internal/config"
	"github.com/googlegenomics/paraviewer/internal/discovery"
	"github.com/googlegenomics/paraviewer/internal/filter"
	"github.com/googlegenomics/paraviewer/internal/igv"
	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/pedigree"
	"github.com/googlegenomics/paraviewer/internal/publish"
	"github.com/googlegenomics/paraviewer/internal/render"
	"github.com/googlegenomics/paraviewer/internal/report"
	"github.com/googlegenomics/paraviewer/internal/site"
	"github.com/googlegenomics/paraviewer/internal/sqlexport"
)

// Result describes a finished run.
type Result struct {
	Graph   *model.Graph
	Dataset *site.Dataset
	// Summary holds every recovered failure of the run.
	Summary *report.Summary
	// Uploaded is the number of files published.
	Uploaded int
}

// Run builds the review site described by cfg using IGV for the assets.
// Recovered failures are reported in the result summary; the returned error
// is always fatal.
func Run(ctx context.Context, cfg config.Config) (*Result, error) {
	r := igv.New(igv.Options{
		Root:       cfg.OutDir,
		Executable: cfg.IGVPath,
		Display:    cfg.Display,
		SkipImages: cfg.SkipImages,
	})
	return run(ctx, cfg, r)
}

func run(ctx context.Context, cfg config.Config, r render.Renderer) (*Result, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, summary, err := Aggregate(cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Graph: g, Summary: summary}

	// A renderer that cannot start must leave the previous site untouched.
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.Close(); err != nil {
			slog.Warn("Stopping renderer", "error", err)
		}
	}()

	if cfg.Clobber {
		if err := os.RemoveAll(cfg.DataDir()); err != nil {
			return nil, report.NewConfigurationError(cfg.DataDir(), "removing previous output", err)
		}
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, report.NewConfigurationError(cfg.OutDir, "creating output", err)
	}

	reg := prometheus.NewRegistry()
	manifest, err := assets.Orchestrate(ctx, g, r, assets.Options{
		Workers:  cfg.Workers,
		Timeout:  cfg.AssetTimeout,
		MaxReads: cfg.MaxReadsPerHaplotype,
		Summary:  summary,
		Metrics:  assets.NewMetrics(reg),
	})
	if err != nil {
		return nil, err
	}

	res.Dataset, err = site.Emit(cfg.OutDir, g, manifest, summary, site.Options{})
	if err != nil {
		return nil, fmt.Errorf("emitting site: %w", err)
	}

	if cfg.SQLitePath != "" {
		if err := sqlexport.Write(ctx, cfg.SQLitePath, res.Dataset); err != nil {
			return nil, fmt.Errorf("exporting to %s: %w", cfg.SQLitePath, err)
		}
		slog.Info("Exported dataset", "path", cfg.SQLitePath)
	}

	if cfg.MetricsFile != "" {
		runMetrics(reg, g, summary, time.Since(start))
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return nil, fmt.Errorf("writing metrics to %s: %w", cfg.MetricsFile, err)
		}
	}

	if cfg.PublishURL != "" {
		bucket, prefix, err := publish.Open(ctx, cfg.PublishURL)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", cfg.PublishURL, err)
		}
		if res.Uploaded, err = publish.Upload(ctx, bucket, prefix, cfg.OutDir); err != nil {
			return nil, fmt.Errorf("publishing to %s: %w", cfg.PublishURL, err)
		}
		slog.Info("Published site", "url", cfg.PublishURL, "files", res.Uploaded)
	}
	return res, nil
}

// Aggregate runs the deterministic stages of a build: it discovers the
// input, applies the filter directives and pedigree and returns the entity
// graph.  Nothing is written.
func Aggregate(cfg config.Config) (*model.Graph, *report.Summary, error) {
	cat, err := catalog.Load(cfg.Genome, cfg.Pipeline())
	if err != nil {
		return nil, nil, err
	}

	summary := &report.Summary{}
	d, err := discovery.Discover(cfg.InputDir(), cfg.Pipeline(), cat, summary)
	if err != nil {
		return nil, nil, err
	}

	var ped *pedigree.Pedigree
	if cfg.Pedigree != "" {
		if ped, err = pedigree.ReadFile(cfg.Pedigree); err != nil {
			return nil, nil, err
		}
	}

	policy, err := filter.Resolve(cfg.Filters, d.RegionNames(), d.SampleIDs())
	if err != nil {
		return nil, nil, err
	}
	retainWarnings(summary, policy, d.SampleIDs(), d.RegionNames())
	g := aggregate.Build(d, policy, ped, ped.CandidateTrios(d.SampleIDs()))
	return g, summary, nil
}

// retainWarnings drops the discovery warnings of samples and regions that the
// filters remove.  Warnings naming something discovery never produced are
// kept, since no filter could have selected it.
func retainWarnings(summary *report.Summary, policy filter.Policy, samples, regions []string) {
	knownSample := make(map[string]bool, len(samples))
	for _, id := range samples {
		knownSample[id] = true
	}
	knownRegion := make(map[string]bool, len(regions))
	for _, name := range regions {
		knownRegion[filter.Fold(name)] = true
	}
	summary.Retain(func(w report.Warning) bool {
		if knownSample[w.Subject] && !policy.SampleIncluded(w.Subject) {
			return false
		}
		if w.Region != report.AnyRegion && knownRegion[filter.Fold(w.Region)] && !policy.RegionIncluded(w.Region) {
			return false
		}
		return true
	})
}

// runMetrics adds gauges describing the whole run to reg.
func runMetrics(reg prometheus.Registerer, g *model.Graph, summary *report.Summary, elapsed time.Duration) {
	entities := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paraviewer_entities",
		Help: "Entities in the generated site by kind",
	}, []string{"kind"})
	entities.WithLabelValues(string(model.SampleKind)).Set(float64(len(g.Calls)))
	entities.WithLabelValues(string(model.TrioKind)).Set(float64(len(g.TrioCalls)))

	warnings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paraviewer_warnings",
		Help: "Recovered failures by kind",
	}, []string{"kind"})
	for _, kind := range []report.Kind{report.Discovery, report.PartialRecord, report.AssetGeneration} {
		warnings.WithLabelValues(kind.String()).Set(float64(summary.Count(kind)))
	}

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "paraviewer_run_duration_seconds",
		Help: "Wall time of the run up to site emission",
	})
	duration.Set(elapsed.Seconds())

	reg.MustRegister(entities, warnings, duration)
}
