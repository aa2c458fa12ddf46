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

package site

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/googlegenomics/paraviewer/internal/assets"
	"github.com/googlegenomics/paraviewer/internal/catalog"
	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/report"
)

// Version is the dataset schema version.
const Version = 1

// namespace is the UUIDv5 namespace of dataset IDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/googlegenomics/paraviewer/dataset"))

// Row is one line of the review table.  Asset paths are relative to the site
// root and use forward slashes.
type Row struct {
	Key         string     `json:"Key"`
	Chrom       string     `json:"Chrom"`
	Start       uint32     `json:"Start"`
	End         uint32     `json:"End"`
	Region      string     `json:"Region"`
	Sample      string     `json:"Sample"`
	Kind        model.Kind `json:"Kind"`
	CopyNumber  string     `json:"CopyNumber"`
	SpecialInfo string     `json:"SpecialInfo"`

	FamilyID   string `json:"FamilyID"`
	PaternalID string `json:"PaternalID"`
	MaternalID string `json:"MaternalID"`
	Sex        string `json:"Sex"`
	Phenotype  string `json:"Phenotype"`

	Image   string   `json:"Image"`
	Session string   `json:"Session"`
	Bundles []string `json:"Bundles"`

	Degraded bool     `json:"Degraded"`
	Issues   []string `json:"Issues"`
}

// Columns flags the optional pedigree columns that have a value in at least
// one row.
type Columns struct {
	FamilyID   bool `json:"FamilyID"`
	PaternalID bool `json:"PaternalID"`
	MaternalID bool `json:"MaternalID"`
	Sex        bool `json:"Sex"`
	Phenotype  bool `json:"Phenotype"`
}

// Dataset is the document embedded in the site.
type Dataset struct {
	Version  int              `json:"version"`
	ID       string           `json:"id"`
	Genome   string           `json:"genome"`
	Pipeline string           `json:"pipeline"`
	Columns  Columns          `json:"columns"`
	Rows     []Row            `json:"rows"`
	Warnings []report.Warning `json:"warnings"`
}

// NewDataset builds the dataset for g.  Rows follow g.Entities; asset paths
// and asset failures come from m.  The ID is derived from the content, so
// equal inputs give equal datasets.
func NewDataset(g *model.Graph, m assets.Manifest, summary *report.Summary) (*Dataset, error) {
	d := &Dataset{
		Version:  Version,
		Genome:   g.Genome,
		Pipeline: g.Pipeline,
		Rows:     []Row{},
		Warnings: []report.Warning{},
	}
	if summary != nil {
		d.Warnings = append(d.Warnings, summary.Warnings()...)
	}

	for _, e := range g.Entities() {
		var row Row
		switch e := e.(type) {
		case *model.Call:
			row = callRow(e)
		case *model.TrioCall:
			row = trioRow(e)
		default:
			return nil, fmt.Errorf("unsupported entity %T", e)
		}
		entry := m[row.Key]
		row.Image, row.Session, row.Bundles = entry.Image, entry.Session, entry.Bundles
		if row.Bundles == nil {
			row.Bundles = []string{}
		}
		row.Issues = append(row.Issues, entry.Issues...)
		row.Degraded = row.Degraded || entry.Degraded
		if row.Issues == nil {
			row.Issues = []string{}
		}
		d.Columns.add(row)
		d.Rows = append(d.Rows, row)
	}

	content, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	d.ID = uuid.NewSHA1(namespace, content).String()
	return d, nil
}

func (c *Columns) add(row Row) {
	c.FamilyID = c.FamilyID || row.FamilyID != ""
	c.PaternalID = c.PaternalID || row.PaternalID != ""
	c.MaternalID = c.MaternalID || row.MaternalID != ""
	c.Sex = c.Sex || row.Sex != ""
	c.Phenotype = c.Phenotype || row.Phenotype != ""
}

func baseRow(key string, region catalog.Region) Row {
	display := region.Display()
	return Row{
		Key:    key,
		Chrom:  display.Chrom,
		Start:  display.Start,
		End:    display.End,
		Region: region.Name,
	}
}

func annotate(row *Row, a *model.Annotation) {
	if a == nil {
		return
	}
	row.FamilyID = a.FamilyID
	row.PaternalID = a.PaternalID
	row.MaternalID = a.MaternalID
	row.Sex = string(a.Sex)
	row.Phenotype = a.Affected()
}

func callRow(c *model.Call) Row {
	row := baseRow(c.Key(), c.Region)
	row.Sample = c.Sample.ID
	row.Kind = c.Kind()
	row.CopyNumber = c.CopyNumber
	row.SpecialInfo = c.SpecialInfo
	row.Degraded = c.Degraded()
	row.Issues = append([]string(nil), c.Issues...)
	annotate(&row, c.Sample.Pedigree)
	return row
}

// trioRow describes a trio by its child: the trio ID, the child's calls and
// pedigree annotation.
func trioRow(t *model.TrioCall) Row {
	row := baseRow(t.Key(), t.Region)
	row.Sample = t.Trio.ID
	row.Kind = t.Kind()
	row.CopyNumber = t.Child.CopyNumber
	row.SpecialInfo = t.Child.SpecialInfo
	row.Degraded = t.Degraded()
	row.Issues = t.Issues()
	annotate(&row, t.Child.Sample.Pedigree)
	if row.PaternalID == "" {
		row.PaternalID = t.Trio.Father
	}
	if row.MaternalID == "" {
		row.MaternalID = t.Trio.Mother
	}
	return row
}
