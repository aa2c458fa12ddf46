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

// Package render defines the capability used to produce the per-entity
// preview assets: a static image, an interactive session descriptor and, for
// individual calls, a regional data bundle.
package render

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/googlegenomics/paraviewer/internal/genomics"
	"github.com/googlegenomics/paraviewer/internal/model"
)

// ErrUnavailable is wrapped by errors that affect every entity, such as a
// renderer that cannot be started.
var ErrUnavailable = errors.New("renderer unavailable")

// Asset names one of the files produced for an entity.
type Asset string

const (
	Image   Asset = "image"
	Session Asset = "session"
	Bundle  Asset = "bundle"
)

// Role is the part a track plays in the preview.
type Role string

const (
	Proband Role = "sample"
	Child   Role = "child"
	Father  Role = "father"
	Mother  Role = "mother"
)

// Track is one alignment shown in the preview.
type Track struct {
	Sample string
	Role   Role
	// BAM and BAI are the caller's alignment files.
	BAM string
	BAI string
	// Bundle is the site relative path of the regional data bundle for the
	// sample and region.
	Bundle string
}

// Request describes the assets wanted for one entity.  Output paths are
// slash separated and relative to the site root.
type Request struct {
	EntityKey string
	Kind      model.Kind
	Owner     string
	Region    string
	Interval  genomics.Interval
	Genome    string
	Tracks    []Track

	ImagePath   string
	SessionPath string
	// BundlePath is empty for trios, which reuse their members' bundles.
	BundlePath string

	// MaxReads caps the reads kept per haplotype in each bundle.
	MaxReads int
}

// Assets lists the files produced for an entity.  A path is empty when the
// asset was not produced; Failed records why.
type Assets struct {
	Image   string
	Session string
	Bundles []string
	Failed  map[Asset]error
}

// Fail records that asset could not be produced.
func (a *Assets) Fail(asset Asset, err error) {
	if a.Failed == nil {
		a.Failed = make(map[Asset]error)
	}
	a.Failed[asset] = err
}

// Err returns the per-asset failures joined in a stable order, or nil.
func (a Assets) Err() error {
	if len(a.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(a.Failed))
	for asset := range a.Failed {
		names = append(names, string(asset))
	}
	sort.Strings(names)
	errs := make([]error, len(names))
	for i, name := range names {
		errs[i] = fmt.Errorf("%s: %w", name, a.Failed[Asset(name)])
	}
	return errors.Join(errs...)
}

// Renderer produces the assets for one entity at a time.  Render may be
// called concurrently; implementations that are single instance serialize
// internally.
type Renderer interface {
	// Start prepares the renderer.  An error here is systemic.
	Start(ctx context.Context) error
	// Render produces the assets described by req.  Asset level failures are
	// reported through Assets.Failed; a returned error fails the entity, or
	// the whole run when it wraps ErrUnavailable.
	Render(ctx context.Context, req Request) (Assets, error)
	Close() error
}

// Paths are the asset locations for one entity.
type Paths struct {
	Image   string
	Session string
}

// EntityPaths returns where the image and session of owner's region go.
func EntityPaths(owner, region string) Paths {
	return Paths{
		Image:   path.Join("data", owner, "images", owner+"_"+region+".png"),
		Session: path.Join("data", owner, "igv_sessions", region+"_igv.json"),
	}
}

// BundlePath returns where the regional data bundle of sample's region goes.
func BundlePath(sample, region string) string {
	return path.Join("data", sample, "bams", sample+"_"+region+".bam")
}

// ForCall returns the request for an individual call.
func ForCall(c *model.Call, genome string, maxReads int) Request {
	paths := EntityPaths(c.Owner(), c.Region.Name)
	bundle := BundlePath(c.Sample.ID, c.Region.Name)
	return Request{
		EntityKey:   c.Key(),
		Kind:        c.Kind(),
		Owner:       c.Owner(),
		Region:      c.Region.Name,
		Interval:    c.Region.Display(),
		Genome:      genome,
		Tracks:      []Track{{Sample: c.Sample.ID, Role: Proband, BAM: c.BAM, BAI: c.BAI, Bundle: bundle}},
		ImagePath:   paths.Image,
		SessionPath: paths.Session,
		BundlePath:  bundle,
		MaxReads:    maxReads,
	}
}

// ForTrio returns the request for a trio call.  The tracks are ordered
// father, mother, child.
func ForTrio(t *model.TrioCall, genome string, maxReads int) Request {
	paths := EntityPaths(t.Owner(), t.Region.Name)
	track := func(c *model.Call, role Role) Track {
		return Track{Sample: c.Sample.ID, Role: role, BAM: c.BAM, BAI: c.BAI, Bundle: BundlePath(c.Sample.ID, t.Region.Name)}
	}
	return Request{
		EntityKey:   t.Key(),
		Kind:        t.Kind(),
		Owner:       t.Owner(),
		Region:      t.Region.Name,
		Interval:    t.Region.Display(),
		Genome:      genome,
		Tracks:      []Track{track(t.Father, Father), track(t.Mother, Mother), track(t.Child, Child)},
		ImagePath:   paths.Image,
		SessionPath: paths.Session,
		MaxReads:    maxReads,
	}
}
