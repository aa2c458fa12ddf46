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

// Package model defines the entity graph built by a paraviewer run.  Values
// are constructed once per run and not modified afterwards.
package model

import (
	"encoding/json"

	"github.com/googlegenomics/paraviewer/internal/catalog"
)

// Sex as recorded in a pedigree.
type Sex string

const (
	Male    Sex = "Male"
	Female  Sex = "Female"
	Unknown Sex = "Unknown"
)

// Annotation is the pedigree information for one sample.
type Annotation struct {
	FamilyID   string
	PaternalID string
	MaternalID string
	Sex        Sex
	// Phenotype is the raw PED code.
	Phenotype string
}

// Affected returns "affected", "unaffected" or "unknown" from the PED
// phenotype code.
func (a Annotation) Affected() string {
	switch a.Phenotype {
	case "2":
		return "affected"
	case "1":
		return "unaffected"
	}
	return "unknown"
}

// Sample is one analysed individual.
type Sample struct {
	ID     string
	Genome string
	// Pedigree is nil when the sample is not listed in a pedigree.
	Pedigree *Annotation
}

// Record is one discovered sample/region combination with the paths of its
// input files.
type Record struct {
	Sample string
	Region catalog.Region

	BAM string
	BAI string
	// VCF is empty when the variant calls for the region are missing.
	VCF string
	// Metadata is the caller's JSON document for this region.
	Metadata json.RawMessage

	CopyNumber  string
	SpecialInfo string

	// Issues lists why the record is degraded, if it is.
	Issues []string
}

// Degraded reports whether some input of the record was missing.
func (r Record) Degraded() bool {
	return len(r.Issues) > 0
}

// Discovered is the output of input discovery.
type Discovered struct {
	Genome   string
	Pipeline string
	// Regions are all catalog regions in catalog order.
	Regions []catalog.Region
	// Samples are sorted by ID.
	Samples []Sample
	// Records are sorted by sample ID, then catalog order.
	Records []Record
}

// SampleIDs returns the IDs of the discovered samples.
func (d *Discovered) SampleIDs() []string {
	ids := make([]string, len(d.Samples))
	for i, s := range d.Samples {
		ids[i] = s.ID
	}
	return ids
}

// RegionNames returns the names of the catalog regions.
func (d *Discovered) RegionNames() []string {
	names := make([]string, len(d.Regions))
	for i, r := range d.Regions {
		names[i] = r.Name
	}
	return names
}

// Kind distinguishes individual and trio entities.
type Kind string

const (
	SampleKind Kind = "sample"
	TrioKind   Kind = "trio"
)

// Entity is a Call or a TrioCall: one row of the review table.
type Entity interface {
	// Key identifies the entity uniquely within a graph.
	Key() string
	// Owner is the sample or trio ID that owns the entity's assets.
	Owner() string
	Kind() Kind
	RegionName() string
}

// Call joins one Sample and one Region.
type Call struct {
	Record
	Sample Sample
}

// Key returns "<sample>/<region>".
func (c *Call) Key() string        { return c.Sample.ID + "/" + c.Region.Name }
func (c *Call) Owner() string      { return c.Sample.ID }
func (c *Call) Kind() Kind         { return SampleKind }
func (c *Call) RegionName() string { return c.Region.Name }

// Trio is a child and both parents, all retained in the run.
type Trio struct {
	ID     string
	Child  string
	Father string
	Mother string
}

// TrioID returns the identifier of the trio whose child is child.
func TrioID(child string) string {
	return child + "-trio"
}

// Members returns the sample IDs of the trio, parents first.
func (t Trio) Members() []string {
	return []string{t.Father, t.Mother, t.Child}
}

// TrioCall is the per-region view of a Trio.  It references the constituent
// Calls and owns no data of its own.
type TrioCall struct {
	Trio   Trio
	Region catalog.Region
	Child  *Call
	Father *Call
	Mother *Call
}

// Key returns "<trio>/<region>".
func (t *TrioCall) Key() string        { return t.Trio.ID + "/" + t.Region.Name }
func (t *TrioCall) Owner() string      { return t.Trio.ID }
func (t *TrioCall) Kind() Kind         { return TrioKind }
func (t *TrioCall) RegionName() string { return t.Region.Name }

// Calls returns the constituent calls, parents first.
func (t *TrioCall) Calls() []*Call {
	return []*Call{t.Father, t.Mother, t.Child}
}

// Degraded reports whether any constituent call is degraded.
func (t *TrioCall) Degraded() bool {
	for _, c := range t.Calls() {
		if c.Degraded() {
			return true
		}
	}
	return false
}

// Issues returns the issues of the constituent calls, prefixed by sample.
func (t *TrioCall) Issues() []string {
	var issues []string
	for _, c := range t.Calls() {
		for _, issue := range c.Issues {
			issues = append(issues, c.Sample.ID+": "+issue)
		}
	}
	return issues
}

// Graph is the immutable output of aggregation.
type Graph struct {
	Genome   string
	Pipeline string
	// Samples are the retained samples sorted by ID.
	Samples []Sample
	// Regions are the retained regions in catalog order.
	Regions []catalog.Region
	// Calls are ordered by region, then sample ID.
	Calls []*Call
	// Trios are sorted by ID.
	Trios []Trio
	// TrioCalls are ordered by region, then trio ID.
	TrioCalls []*TrioCall
}

// Entities returns every Call and TrioCall in row order: regions in catalog
// order; within a region, calls by sample ID followed by trio calls by trio
// ID.
func (g *Graph) Entities() []Entity {
	var out []Entity
	var i, j int
	for _, region := range g.Regions {
		for ; i < len(g.Calls) && g.Calls[i].Region.Name == region.Name; i++ {
			out = append(out, g.Calls[i])
		}
		for ; j < len(g.TrioCalls) && g.TrioCalls[j].Region.Name == region.Name; j++ {
			out = append(out, g.TrioCalls[j])
		}
	}
	return out
}
