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

// Package pedigree reads GATK PED files and infers trios among discovered
// samples.
package pedigree

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/report"
)

const (
	fieldCount = 6
	missing    = "0"
)

// Pedigree maps individual IDs to their pedigree annotation.  A nil
// *Pedigree has no entries.
type Pedigree struct {
	entries map[string]model.Annotation
}

// ReadFile parses the PED file at path.  An unreadable file is a
// Configuration error.
func ReadFile(path string) (*Pedigree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, report.NewConfigurationError(path, "opening pedigree", err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, report.NewConfigurationError(path, "reading pedigree", err)
	}
	return p, nil
}

// Parse reads PED rows of family, individual, paternal, maternal, sex and
// phenotype columns separated by white space.  Blank lines and lines starting
// with '#' are ignored; rows with the wrong number of fields are logged and
// skipped.
func Parse(r io.Reader) (*Pedigree, error) {
	p := &Pedigree{entries: make(map[string]model.Annotation)}
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != fieldCount {
			slog.Warn("Skipping malformed PED line", "line", line, "fields", len(fields), "text", text)
			continue
		}
		p.entries[fields[1]] = model.Annotation{
			FamilyID:   fields[0],
			PaternalID: parent(fields[2]),
			MaternalID: parent(fields[3]),
			Sex:        sex(fields[4]),
			Phenotype:  fields[5],
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}
	return p, nil
}

func parent(id string) string {
	if id == missing {
		return ""
	}
	return id
}

func sex(code string) model.Sex {
	switch code {
	case "1":
		return model.Male
	case "2":
		return model.Female
	}
	return model.Unknown
}

// Len returns the number of individuals listed.
func (p *Pedigree) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Annotate returns the annotation for sample, if it is listed.
func (p *Pedigree) Annotate(sample string) (model.Annotation, bool) {
	if p == nil {
		return model.Annotation{}, false
	}
	a, ok := p.entries[sample]
	return a, ok
}

// CandidateTrios returns one trio for each discovered sample whose father and
// mother are both discovered, sorted by child ID.  Individuals that were not
// discovered are ignored.
func (p *Pedigree) CandidateTrios(discovered []string) []model.Trio {
	if p == nil {
		return nil
	}
	present := make(map[string]bool, len(discovered))
	for _, id := range discovered {
		present[id] = true
	}

	var trios []model.Trio
	for child, a := range p.entries {
		if !present[child] || a.PaternalID == "" || a.MaternalID == "" {
			continue
		}
		if !present[a.PaternalID] || !present[a.MaternalID] {
			continue
		}
		trios = append(trios, model.Trio{
			ID:     model.TrioID(child),
			Child:  child,
			Father: a.PaternalID,
			Mother: a.MaternalID,
		})
	}
	sort.Slice(trios, func(i, j int) bool { return trios[i].Child < trios[j].Child })
	return trios
}
