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

// Package aggregate joins discovered records, the filter policy and pedigree
// trios into the entity graph.
package aggregate

import (
	"log/slog"
	"sort"

	"github.com/googlegenomics/paraviewer/internal/filter"
	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/pedigree"
)

// Build returns the entity graph for d.  A Call is built for every record
// whose sample and region are both retained by policy.  A candidate trio is
// kept only when all three members are retained, and gets a TrioCall for each
// region where all three have a Call.  Build performs no I/O and its output
// depends only on its inputs.
func Build(d *model.Discovered, policy filter.Policy, ped *pedigree.Pedigree, candidates []model.Trio) *model.Graph {
	g := &model.Graph{Genome: d.Genome, Pipeline: d.Pipeline}

	position := make(map[string]int)
	for _, region := range d.Regions {
		if policy.RegionIncluded(region.Name) {
			position[region.Name] = len(g.Regions)
			g.Regions = append(g.Regions, region)
		}
	}

	samples := make(map[string]model.Sample)
	for _, s := range d.Samples {
		if !policy.SampleIncluded(s.ID) {
			continue
		}
		if a, ok := ped.Annotate(s.ID); ok {
			a := a
			s.Pedigree = &a
		}
		samples[s.ID] = s
		g.Samples = append(g.Samples, s)
	}
	sort.Slice(g.Samples, func(i, j int) bool { return g.Samples[i].ID < g.Samples[j].ID })

	calls := make(map[string]map[string]*model.Call)
	for _, record := range d.Records {
		sample, ok := samples[record.Sample]
		if !ok {
			continue
		}
		if _, ok := position[record.Region.Name]; !ok {
			continue
		}
		if calls[record.Sample] == nil {
			calls[record.Sample] = make(map[string]*model.Call)
		}
		if _, dup := calls[record.Sample][record.Region.Name]; dup {
			slog.Warn("Ignoring duplicate record", "sample", record.Sample, "region", record.Region.Name)
			continue
		}
		call := &model.Call{Record: record, Sample: sample}
		calls[record.Sample][record.Region.Name] = call
		g.Calls = append(g.Calls, call)
	}
	sort.SliceStable(g.Calls, func(i, j int) bool {
		a, b := g.Calls[i], g.Calls[j]
		if pa, pb := position[a.Region.Name], position[b.Region.Name]; pa != pb {
			return pa < pb
		}
		return a.Sample.ID < b.Sample.ID
	})

	for _, trio := range candidates {
		if !retained(samples, trio) {
			slog.Debug("Dropping trio with a filtered member", "trio", trio.ID)
			continue
		}
		g.Trios = append(g.Trios, trio)
		for _, region := range g.Regions {
			child, father, mother := calls[trio.Child][region.Name], calls[trio.Father][region.Name], calls[trio.Mother][region.Name]
			if child == nil || father == nil || mother == nil {
				continue
			}
			g.TrioCalls = append(g.TrioCalls, &model.TrioCall{
				Trio:   trio,
				Region: region,
				Child:  child,
				Father: father,
				Mother: mother,
			})
		}
	}
	sort.Slice(g.Trios, func(i, j int) bool { return g.Trios[i].ID < g.Trios[j].ID })
	sort.SliceStable(g.TrioCalls, func(i, j int) bool {
		a, b := g.TrioCalls[i], g.TrioCalls[j]
		if pa, pb := position[a.Region.Name], position[b.Region.Name]; pa != pb {
			return pa < pb
		}
		return a.Trio.ID < b.Trio.ID
	})

	slog.Info("Aggregated entities", "samples", len(g.Samples), "regions", len(g.Regions), "calls", len(g.Calls), "trios", len(g.Trios), "trio_calls", len(g.TrioCalls))
	return g
}

func retained(samples map[string]model.Sample, trio model.Trio) bool {
	for _, id := range trio.Members() {
		if _, ok := samples[id]; !ok {
			return false
		}
	}
	return true
}
