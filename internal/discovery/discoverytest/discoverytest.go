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

// Package discoverytest writes caller output fixtures for tests.
package discoverytest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/googlegenomics/paraviewer/internal/bam"
	"github.com/googlegenomics/paraviewer/internal/bam/bamtest"
	"github.com/googlegenomics/paraviewer/internal/catalog"
)

// References is the reference dictionary of fixture BAM files.
var References = func() []bam.Reference {
	var refs []bam.Reference
	for i := 1; i <= 22; i++ {
		refs = append(refs, bam.Reference{Name: fmt.Sprintf("chr%d", i), Length: 250000000})
	}
	return append(refs, bam.Reference{Name: "chrX", Length: 160000000}, bam.Reference{Name: "chrY", Length: 60000000})
}()

// Sample describes one fixture sample.
type Sample struct {
	ID string
	// Regions are the catalog regions present in the metadata document.
	Regions []string
	// Metadata replaces the generated metadata document when set.
	Metadata string
	// MissingVCF lists regions whose variant call file is not written.
	MissingVCF []string
	// NoBAM leaves out the BAM and its index.
	NoBAM bool
}

func referenceIndex(name string) int32 {
	for i, ref := range References {
		if ref.Name == name {
			return int32(i)
		}
	}
	return -1
}

// WriteParaphase writes the whole-genome layout files of s into dir.  Each
// region gets one read at the start of its realign interval.
func WriteParaphase(t testing.TB, dir string, cat *catalog.Catalog, s Sample) {
	t.Helper()

	doc := make(map[string]interface{})
	var reads []bamtest.Read
	for i, name := range s.Regions {
		region, ok := cat.Lookup(name)
		if !ok {
			t.Fatalf("Unknown fixture region %q", name)
		}
		doc[name] = map[string]interface{}{
			"total_cn": 2 + i%2,
			"genotype": name + "_hap1/" + name + "_hap2",
		}
		ref := referenceIndex(region.Realign.Chrom)
		if ref < 0 {
			t.Fatalf("Fixture has no reference %q", region.Realign.Chrom)
		}
		reads = append(reads, bamtest.Read{
			Reference: ref,
			Start:     region.Realign.Start + 100,
			End:       region.Realign.Start + 250,
			Name:      s.ID + ":" + name,
			Haplotype: name + "_hap1",
		})
	}
	sort.Slice(reads, func(i, j int) bool {
		if reads[i].Reference != reads[j].Reference {
			return reads[i].Reference < reads[j].Reference
		}
		return reads[i].Start < reads[j].Start
	})

	metadata := []byte(s.Metadata)
	if s.Metadata == "" {
		var err error
		if metadata, err = json.Marshal(doc); err != nil {
			t.Fatalf("Encoding metadata: %v", err)
		}
	}
	write(t, filepath.Join(dir, s.ID+".paraphase.json"), metadata)

	if !s.NoBAM {
		bamtest.WriteFiles(t, dir, s.ID+".paraphase.bam", References, reads)
	}

	missing := make(map[string]bool)
	for _, name := range s.MissingVCF {
		missing[name] = true
	}
	vcfDir := filepath.Join(dir, s.ID+"_paraphase_vcfs")
	if err := os.MkdirAll(vcfDir, 0o755); err != nil {
		t.Fatalf("Creating VCF directory: %v", err)
	}
	for _, name := range s.Regions {
		if missing[name] {
			continue
		}
		vcf := "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t" + s.ID + "\n"
		write(t, filepath.Join(vcfDir, s.ID+"_"+name+".vcf"), []byte(vcf))
	}
}

// WritePanel writes s in the PureTarget layout under root: a <sample>_paraphase
// directory plus any sidecar documents given.
func WritePanel(t testing.TB, root string, cat *catalog.Catalog, s Sample, f8, havanno string) {
	t.Helper()
	dir := filepath.Join(root, s.ID+"_paraphase")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Creating sample directory: %v", err)
	}
	WriteParaphase(t, dir, cat, s)
	if f8 != "" {
		write(t, filepath.Join(root, s.ID+".f8inversion.json"), []byte(f8))
	}
	if havanno != "" {
		write(t, filepath.Join(root, s.ID+".havanno.json"), []byte(havanno))
	}
}

func write(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Writing %s: %v", path, err)
	}
}
