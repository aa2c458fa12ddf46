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

// Package discovery scans a caller output directory and enumerates the
// sample/region records it holds.
//
// Two layouts are recognized.  Whole-genome Paraphase output keeps every
// sample in the root directory:
//
//	<sample>.paraphase.json[.gz]
//	<sample>.paraphase.bam
//	<sample>.paraphase.bam.bai
//	<sample>_paraphase_vcfs/<sample>_<region>.vcf[.gz]
//
// PureTarget carrier panel output holds one <sample>_paraphase directory per
// sample in that layout, with optional <sample>.f8inversion.json and
// <sample>.havanno.json annotations next to it.
package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/googlegenomics/paraviewer/internal/bam"
	"github.com/googlegenomics/paraviewer/internal/bgzf"
	"github.com/googlegenomics/paraviewer/internal/callinfo"
	"github.com/googlegenomics/paraviewer/internal/catalog"
	"github.com/googlegenomics/paraviewer/internal/config"
	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/report"
)

const (
	metadataSuffix  = ".paraphase.json"
	bamSuffix       = ".paraphase.bam"
	vcfDirSuffix    = "_paraphase_vcfs"
	sampleDirSuffix = "_paraphase"
	f8Suffix        = ".f8inversion.json"
	havannoSuffix   = ".havanno.json"
)

var (
	errUnrecognized = errors.New("no Paraphase or PureTarget output found")
	errAmbiguous    = errors.New("both Paraphase and PureTarget output found")
	errNoSamples    = errors.New("no samples found")
	errMissingVCF   = errors.New("missing variant calls")
)

// files are the input paths of one sample.
type files struct {
	sample   string
	metadata string
	bam      string
	bai      string
	vcfDir   string
	f8       string
	havanno  string
}

// Detect returns the pipeline whose layout root follows: config.Paraphase or
// config.PureTarget.
func Detect(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", report.NewDiscoveryError(root, "reading input directory", err)
	}
	return detect(root, entries)
}

func detect(root string, entries []os.DirEntry) (string, error) {
	var metadata, sampleDirs bool
	for _, e := range entries {
		switch {
		case e.IsDir() && strings.HasSuffix(e.Name(), sampleDirSuffix):
			sampleDirs = true
		case !e.IsDir() && isMetadata(e.Name()):
			metadata = true
		}
	}
	switch {
	case metadata && sampleDirs:
		return "", report.NewDiscoveryError(root, "detecting layout", errAmbiguous)
	case metadata:
		return config.Paraphase, nil
	case sampleDirs:
		return config.PureTarget, nil
	}
	return "", report.NewDiscoveryError(root, "detecting layout", errUnrecognized)
}

func isMetadata(name string) bool {
	return strings.HasSuffix(name, metadataSuffix) || strings.HasSuffix(name, metadataSuffix+".gz")
}

// SampleName returns the sample a caller output file belongs to by removing
// extensions up to and including ".paraphase".
func SampleName(path string) string {
	name := filepath.Base(path)
	for {
		ext := filepath.Ext(name)
		if ext == "" || ext == name {
			return name
		}
		name = strings.TrimSuffix(name, ext)
		if ext == ".paraphase" {
			return name
		}
	}
}

// Discover enumerates the records under root.  The detected layout must match
// pipeline.  Samples and records with missing or malformed files are recorded
// in summary and either degraded or left out; only an unreadable or
// unrecognizable root is an error.
func Discover(root, pipeline string, cat *catalog.Catalog, summary *report.Summary) (*model.Discovered, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, report.NewDiscoveryError(root, "reading input directory", err)
	}
	layout, err := detect(root, entries)
	if err != nil {
		return nil, err
	}
	if layout != pipeline {
		return nil, report.NewDiscoveryError(root, "detecting layout", fmt.Errorf("found %s output but %s was configured", layout, pipeline))
	}

	rec := newRecorder(root, summary)
	var samples []files
	if layout == config.Paraphase {
		samples = scan(root, entries)
	} else {
		samples = scanPanel(root, entries, rec)
	}
	if len(samples) == 0 {
		return nil, report.NewDiscoveryError(root, "scanning", errNoSamples)
	}

	d := &model.Discovered{
		Genome:   cat.Genome,
		Pipeline: pipeline,
		Regions:  cat.Regions(),
	}
	for _, f := range samples {
		d.Samples = append(d.Samples, model.Sample{ID: f.sample, Genome: cat.Genome})
		d.Records = append(d.Records, records(f, cat, rec)...)
	}
	slog.Info("Discovered input", "root", root, "layout", layout, "samples", len(d.Samples), "records", len(d.Records))
	return d, nil
}

// scan returns the samples of a whole-genome layout directory sorted by name.
func scan(dir string, entries []os.DirEntry) []files {
	seen := make(map[string]bool)
	var out []files
	for _, e := range entries {
		if e.IsDir() || !isMetadata(e.Name()) {
			continue
		}
		sample := SampleName(e.Name())
		if seen[sample] {
			slog.Warn("Ignoring duplicate metadata file", "path", filepath.Join(dir, e.Name()))
			continue
		}
		seen[sample] = true
		out = append(out, files{
			sample:   sample,
			metadata: filepath.Join(dir, e.Name()),
			bam:      filepath.Join(dir, sample+bamSuffix),
			bai:      filepath.Join(dir, sample+bamSuffix+".bai"),
			vcfDir:   filepath.Join(dir, sample+vcfDirSuffix),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sample < out[j].sample })
	return out
}

// scanPanel returns the samples of every per-sample directory of a panel
// layout, with the paths of their annotation files.
func scanPanel(root string, entries []os.DirEntry, rec recorder) []files {
	seen := make(map[string]bool)
	var out []files
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), sampleDirSuffix) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		base := filepath.Join(root, strings.TrimSuffix(e.Name(), sampleDirSuffix))
		sub, err := os.ReadDir(dir)
		if err != nil {
			slog.Warn("Skipping unreadable sample directory", "path", dir, "err", err)
			rec.add(strings.TrimSuffix(e.Name(), sampleDirSuffix), report.AnyRegion, err)
			continue
		}
		for _, f := range scan(dir, sub) {
			if seen[f.sample] {
				slog.Warn("Ignoring sample found in more than one directory", "sample", f.sample, "path", dir)
				continue
			}
			seen[f.sample] = true
			f.f8 = base + f8Suffix
			f.havanno = base + havannoSuffix
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sample < out[j].sample })
	return out
}

// recorder adds partial record warnings to a summary, with the paths in their
// messages made relative to the input root.
type recorder struct {
	prefix  string
	summary *report.Summary
}

func newRecorder(root string, summary *report.Summary) recorder {
	prefix := filepath.Clean(root)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return recorder{prefix: prefix, summary: summary}
}

// add records err against subject and region and returns the error as it was
// recorded.
func (r recorder) add(subject, region string, err error) error {
	if msg := strings.ReplaceAll(err.Error(), r.prefix, ""); msg != err.Error() {
		err = &relativeError{msg: msg, err: err}
	}
	r.summary.Add(report.PartialRecord, subject, region, err)
	return err
}

// relativeError replaces the message of err.
type relativeError struct {
	msg string
	err error
}

func (e *relativeError) Error() string { return e.msg }
func (e *relativeError) Unwrap() error { return e.err }

// checkAlignments verifies that the BAM is BGZF with a BAM header and that
// the index has the BAI magic.
func checkAlignments(bamPath, baiPath string) error {
	f, err := os.Open(bamPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := bgzf.Sniff(f); err != nil {
		return fmt.Errorf("%s: %w", bamPath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := bam.ReadHeader(f); err != nil {
		return fmt.Errorf("%s: %w", bamPath, err)
	}

	index, err := os.Open(baiPath)
	if err != nil {
		return err
	}
	defer index.Close()
	if err := bam.CheckIndex(index); err != nil {
		return fmt.Errorf("%s: %w", baiPath, err)
	}
	return nil
}

func findVCF(dir, sample, region string) string {
	for _, ext := range []string{".vcf", ".vcf.gz"} {
		path := filepath.Join(dir, sample+"_"+region+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func readSidecars(f files, rec recorder) callinfo.Sidecars {
	var side callinfo.Sidecars
	if f.f8 != "" {
		inv, err := callinfo.ReadF8Inversion(f.f8)
		if err != nil {
			slog.Warn("Ignoring F8 inversion annotations", "sample", f.sample, "err", err)
			rec.add(f.sample, report.AnyRegion, err)
		}
		side.F8Inversion = inv
	}
	if f.havanno != "" {
		annotations, err := callinfo.ReadHavanno(f.havanno)
		if err != nil {
			slog.Warn("Ignoring haplotype annotations", "sample", f.sample, "err", err)
			rec.add(f.sample, report.AnyRegion, err)
		}
		side.Havanno = annotations
	}
	return side
}

// records returns the records of one sample in catalog order.
func records(f files, cat *catalog.Catalog, rec recorder) []model.Record {
	data, err := callinfo.ReadFile(f.metadata)
	if err != nil {
		slog.Warn("Skipping sample with unreadable metadata", "sample", f.sample, "err", err)
		rec.add(f.sample, report.AnyRegion, err)
		return nil
	}
	doc, err := callinfo.Decode(data)
	if err != nil {
		err = fmt.Errorf("%s is empty or malformed: %w", f.metadata, err)
		slog.Warn("Skipping sample with malformed metadata", "sample", f.sample, "err", err)
		rec.add(f.sample, report.AnyRegion, err)
		return nil
	}

	var regions []catalog.Region
	for name := range doc {
		region, ok := cat.Lookup(name)
		if !ok {
			slog.Debug("Skipping region missing from the catalog", "sample", f.sample, "region", name)
			continue
		}
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		return cat.Position(regions[i].Name) < cat.Position(regions[j].Name)
	})

	if err := checkAlignments(f.bam, f.bai); err != nil {
		slog.Warn("Skipping sample with unusable alignments", "sample", f.sample, "err", err)
		for _, region := range regions {
			rec.add(f.sample, region.Name, err)
		}
		return nil
	}

	side := readSidecars(f, rec)
	var out []model.Record
	for _, region := range regions {
		raw := doc[metadataKey(doc, region.Name)]
		metadata, err := callinfo.DecodeRegion(raw)
		if err != nil {
			err = fmt.Errorf("region metadata is malformed: %w", err)
			slog.Warn("Skipping region", "sample", f.sample, "region", region.Name, "err", err)
			rec.add(f.sample, region.Name, err)
			continue
		}
		record := model.Record{
			Sample:      f.sample,
			Region:      region,
			BAM:         f.bam,
			BAI:         f.bai,
			VCF:         findVCF(f.vcfDir, f.sample, region.Name),
			Metadata:    raw,
			CopyNumber:  callinfo.CopyNumber(metadata),
			SpecialInfo: callinfo.SpecialInfo(region.Name, metadata, side),
		}
		if record.VCF == "" {
			err := fmt.Errorf("%w in %s", errMissingVCF, f.vcfDir)
			slog.Warn("Degrading record", "sample", f.sample, "region", region.Name, "err", err)
			record.Issues = append(record.Issues, rec.add(f.sample, region.Name, err).Error())
		}
		out = append(out, record)
	}
	return out
}

// metadataKey returns the document key for a catalog region, which may differ
// from the catalog name in case.
func metadataKey(doc map[string]json.RawMessage, name string) string {
	if _, ok := doc[name]; ok {
		return name
	}
	for key := range doc {
		if catalog.Key(key) == catalog.Key(name) {
			return key
		}
	}
	return name
}
