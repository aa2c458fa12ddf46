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

// Package filter resolves include and exclude directives for regions and
// samples into one immutable inclusion policy.
package filter

import (
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/text/cases"

	"github.com/googlegenomics/paraviewer/internal/report"
)

var (
	errConflictingRegions = errors.New("include-only and exclude directives given for regions")
	errConflictingSamples = errors.New("include-only and exclude directives given for samples")
)

// Directives are the raw filter settings of a run.  Names are matched without
// regard to case.
type Directives struct {
	IncludeRegions []string
	ExcludeRegions []string
	IncludeSamples []string
	ExcludeSamples []string
}

// Check reports a Configuration error when both an include and an exclude
// directive are given for the same axis.  It performs no I/O.
func (d Directives) Check() error {
	if len(d.IncludeRegions) > 0 && len(d.ExcludeRegions) > 0 {
		return report.NewConfigurationError("--include-only-regions/--exclude-regions", "resolving filters", errConflictingRegions)
	}
	if len(d.IncludeSamples) > 0 && len(d.ExcludeSamples) > 0 {
		return report.NewConfigurationError("--include-only-samples/--exclude-samples", "resolving filters", errConflictingSamples)
	}
	return nil
}

// Policy is the resolved inclusion state.  It is never modified after Resolve
// returns it and is safe for concurrent use.
type Policy struct {
	regions map[string]string
	samples map[string]bool
}

// Fold returns the case-folded form of name used for matching.
func Fold(name string) string {
	return cases.Fold().String(name)
}

// Resolve computes the inclusion sets for the known regions and samples.  An
// include directive selects its intersection with the known names; otherwise
// the exclude directive is subtracted from them.  Names that match nothing
// are logged and ignored.
func Resolve(d Directives, knownRegions, knownSamples []string) (Policy, error) {
	if err := d.Check(); err != nil {
		return Policy{}, err
	}

	policy := Policy{
		regions: make(map[string]string),
		samples: make(map[string]bool),
	}
	for _, name := range selectNames("region", knownRegions, d.IncludeRegions, d.ExcludeRegions) {
		policy.regions[Fold(name)] = name
	}
	for _, id := range selectNames("sample", knownSamples, d.IncludeSamples, d.ExcludeSamples) {
		policy.samples[id] = true
	}
	return policy, nil
}

func selectNames(axis string, known, include, exclude []string) []string {
	byKey := make(map[string][]string)
	for _, name := range known {
		key := Fold(name)
		byKey[key] = append(byKey[key], name)
	}
	directive := make(map[string]bool)
	for _, name := range append(append([]string(nil), include...), exclude...) {
		key := Fold(name)
		if _, ok := byKey[key]; !ok {
			slog.Warn("Ignoring unknown name in filter", "axis", axis, "name", name)
			continue
		}
		directive[key] = true
	}

	var selected []string
	for _, name := range known {
		listed := directive[Fold(name)]
		if len(include) > 0 && !listed {
			continue
		}
		if len(include) == 0 && listed {
			continue
		}
		selected = append(selected, name)
	}
	return selected
}

// RegionIncluded reports whether the named region is retained.
func (p Policy) RegionIncluded(name string) bool {
	_, ok := p.regions[Fold(name)]
	return ok
}

// SampleIncluded reports whether the sample is retained.  Sample identifiers
// are compared exactly here; case folding is applied to directives only.
func (p Policy) SampleIncluded(id string) bool {
	return p.samples[id]
}

// Regions returns the retained region names in sorted order.
func (p Policy) Regions() []string {
	out := make([]string, 0, len(p.regions))
	for _, name := range p.regions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Samples returns the retained sample identifiers in sorted order.
func (p Policy) Samples() []string {
	out := make([]string, 0, len(p.samples))
	for id := range p.samples {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
