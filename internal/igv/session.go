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
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/googlegenomics/paraviewer/internal/render"
)

// noDownsampling is an igv.js sampling depth no bundle reaches; the read cap
// is applied when the bundle is written.
const noDownsampling = math.MaxInt32

// Session is an igv.js session document.
type Session struct {
	Genome string  `json:"genome"`
	Locus  string  `json:"locus"`
	Tracks []Track `json:"tracks"`
}

// Track is one igv.js alignment track.  Bundles are small, so the whole file
// is loaded rather than queried through its index.
type Track struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Format        string `json:"format"`
	URL           string `json:"url"`
	Indexed       bool   `json:"indexed"`
	SamplingDepth int    `json:"samplingDepth"`
	DisplayMode   string `json:"displayMode"`
	ColorBy       Tag    `json:"colorBy"`
	GroupBy       Tag    `json:"groupBy"`
}

// Tag selects an alignment tag for coloring or grouping.
type Tag struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
}

// NewSession returns the session for req.  Track URLs are relative to the
// session file.
func NewSession(req render.Request) (*Session, error) {
	s := &Session{
		Genome: req.Genome,
		Locus:  req.Interval.String(),
	}
	dir := path.Dir(req.SessionPath)
	for _, track := range req.Tracks {
		url, err := relative(dir, track.Bundle)
		if err != nil {
			return nil, err
		}
		name := track.Sample
		if track.Role != render.Proband {
			name = fmt.Sprintf("%s (%s)", track.Sample, track.Role)
		}
		s.Tracks = append(s.Tracks, Track{
			Name:          name,
			Type:          "alignment",
			Format:        "bam",
			URL:           url,
			Indexed:       false,
			SamplingDepth: noDownsampling,
			DisplayMode:   "SQUISHED",
			ColorBy:       Tag{Type: "tag", Tag: "YC"},
			GroupBy:       Tag{Type: "tag", Tag: "HP"},
		})
	}
	return s, nil
}

func relative(base, target string) (string, error) {
	rel, err := filepath.Rel(filepath.FromSlash(base), filepath.FromSlash(target))
	if err != nil {
		return "", fmt.Errorf("relative path to %s: %w", target, err)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("relative path to %s: got absolute %s", target, rel)
	}
	return rel, nil
}

func writeSession(file string, req render.Request) error {
	s, err := NewSession(req)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(file, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}
