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

package igv

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/render"
)

// GenomeURL is the igv-data genome definition loaded by batch scripts and
// sessions.
const GenomeURL = "https://raw.githubusercontent.com/igvteam/igv-data/refs/heads/main/genomes/json/%s.json"

// Window placement and size of IGV snapshots.  Trio snapshots are three
// panels tall.
const (
	boundsLeft   = 780
	boundsTop    = 128
	boundsWidth  = 1546
	boundsHeight = 300
)

// batchScript returns the IGV batch commands that snapshot req into image.
// Tracks are loaded from the read capped bundles under root.
func batchScript(req render.Request, root, image string) string {
	var b strings.Builder
	fmt.Fprintln(&b, "new")
	fmt.Fprintf(&b, "genome "+GenomeURL+"\n", req.Genome)
	for _, track := range req.Tracks {
		bam := filepath.Join(root, filepath.FromSlash(track.Bundle))
		fmt.Fprintf(&b, "load %s index=%s.bai\n", bam, bam)
	}
	fmt.Fprintf(&b, "goto %s\n", req.Interval)
	fmt.Fprintf(&b, "snapshotDirectory %s\n", filepath.Dir(image))
	fmt.Fprintf(&b, "snapshot %s\n", filepath.Base(image))
	fmt.Fprintln(&b, "exit")
	return b.String()
}

// preferences returns the IGV preferences for req.  Bundles already hold at
// most the capped number of reads per haplotype, so IGV shows all of them.
func preferences(req render.Request) string {
	height := boundsHeight
	if req.Kind == model.TrioKind {
		height *= 3
	}
	var b strings.Builder
	fmt.Fprintf(&b, "IGV.Bounds=%d,%d,%d,%d\n", boundsLeft, boundsTop, boundsWidth, height)
	fmt.Fprintln(&b, "SAM.DOWNSAMPLE_READS=false")
	fmt.Fprintln(&b, "SAM.SHOW_SOFT_CLIPPED=false")
	return b.String()
}
