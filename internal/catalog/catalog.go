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

// Package catalog provides the regions supported by the upstream caller for
// each genome build and source pipeline.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/googlegenomics/paraviewer/internal/genomics"
	"github.com/googlegenomics/paraviewer/internal/report"
)

// Padding is the number of bases added on each side of a realign region for
// display.
const Padding = 1000

//go:embed data/*/*.yaml
var catalogs embed.FS

var errNotMapping = errors.New("catalog must be a mapping of region names")

// Region is one caller-supported locus.
type Region struct {
	// Name is the region name as written by the caller, for example "smn1".
	Name string
	// DisplayName is a human readable label.  It defaults to Name.
	DisplayName string
	// Realign is the interval the caller realigns reads to.
	Realign genomics.Interval
}

// Display returns the padded interval shown in previews.
func (r Region) Display() genomics.Interval {
	return r.Realign.Pad(Padding)
}

// Catalog is an ordered, read-only set of regions.
type Catalog struct {
	Genome   string
	Pipeline string

	regions []Region
	index   map[string]int
}

// Key returns the case-folded form of a region name used for lookups.
func Key(name string) string {
	return cases.Fold().String(name)
}

// Load returns the embedded catalog for genome and pipeline.  An unknown
// combination is a Configuration error.
func Load(genome, pipeline string) (*Catalog, error) {
	data, err := fs.ReadFile(catalogs, fmt.Sprintf("data/%s/%s.yaml", genome, pipeline))
	if err != nil {
		return nil, report.NewConfigurationError("--genome", fmt.Sprintf("loading %s regions for %s", pipeline, genome), err)
	}
	return Parse(genome, pipeline, data)
}

type entry struct {
	RealignRegion string `yaml:"realign_region"`
	DisplayName   string `yaml:"display_name"`
}

// Parse decodes a catalog document.  Regions keep the order in which they
// appear in data.
func Parse(genome, pipeline string, data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	c := &Catalog{Genome: genome, Pipeline: pipeline, index: make(map[string]int)}
	if len(doc.Content) == 0 {
		return c, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errNotMapping
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var e entry
		if err := root.Content[i+1].Decode(&e); err != nil {
			return nil, fmt.Errorf("region %q: %w", name, err)
		}
		interval, err := genomics.ParseInterval(e.RealignRegion)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", name, err)
		}
		key := Key(name)
		if _, ok := c.index[key]; ok {
			return nil, fmt.Errorf("region %q listed twice", name)
		}
		if e.DisplayName == "" {
			e.DisplayName = name
		}
		c.index[key] = len(c.regions)
		c.regions = append(c.regions, Region{Name: name, DisplayName: e.DisplayName, Realign: interval})
	}
	return c, nil
}

// Lookup returns the region called name, ignoring case.
func (c *Catalog) Lookup(name string) (Region, bool) {
	i, ok := c.index[Key(name)]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

// Position returns the catalog order of name, or -1 if it is unknown.
func (c *Catalog) Position(name string) int {
	if i, ok := c.index[Key(name)]; ok {
		return i
	}
	return -1
}

// Regions returns the regions in catalog order.
func (c *Catalog) Regions() []Region {
	return append([]Region(nil), c.regions...)
}

// Names returns the region names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.regions))
	for i, r := range c.regions {
		names[i] = r.Name
	}
	return names
}
