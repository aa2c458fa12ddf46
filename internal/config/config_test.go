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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/googlegenomics/paraviewer/internal/report"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	c := Default()
	c.OutDir = filepath.Join(dir, "site")
	c.ParaphaseDir = dir
	return c
}

func TestRegisterFlags(t *testing.T) {
	c := Default()
	fs := flag.NewFlagSet("paraviewer", flag.ContinueOnError)
	c.RegisterFlags(fs)
	args := []string{
		"--outdir", "out",
		"--ptcp-dir", "in",
		"--genome", "hg19",
		"--include-only-regions", "smn1,hba",
		"--include-only-regions", "f8 rccx",
		"--exclude-samples", "S3",
		"--max-reads-per-haplotype", "50",
		"--asset-timeout", "90s",
		"--verbose",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"smn1", "hba", "f8", "rccx"}, c.Filters.IncludeRegions); diff != "" {
		t.Errorf("IncludeRegions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"S3"}, c.Filters.ExcludeSamples); diff != "" {
		t.Errorf("ExcludeSamples mismatch (-want +got):\n%s", diff)
	}
	if got, want := c.Pipeline(), PureTarget; got != want {
		t.Errorf("Pipeline(): got %q, want %q", got, want)
	}
	if got, want := c.InputDir(), "in"; got != want {
		t.Errorf("InputDir(): got %q, want %q", got, want)
	}
	if got, want := c.MaxReadsPerHaplotype, 50; got != want {
		t.Errorf("MaxReadsPerHaplotype: got %d, want %d", got, want)
	}
	if got, want := c.AssetTimeout, 90*time.Second; got != want {
		t.Errorf("AssetTimeout: got %v, want %v", got, want)
	}
	if !c.Verbose {
		t.Errorf("Verbose: got false, want true")
	}
	if got, want := c.IGVPath, "igv"; got != want {
		t.Errorf("IGVPath default: got %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("Validate() of a valid config failed: %v", err)
	}

	testCases := []struct {
		name    string
		modify  func(c *Config)
		subject string
	}{
		{"both inputs", func(c *Config) { c.PTCPDir = c.ParaphaseDir }, "--paraphase-dir/--ptcp-dir"},
		{"no input", func(c *Config) { c.ParaphaseDir = "" }, "--paraphase-dir/--ptcp-dir"},
		{"no outdir", func(c *Config) { c.OutDir = "" }, "--outdir"},
		{"bad genome", func(c *Config) { c.Genome = "hg37" }, "--genome"},
		{"zero reads", func(c *Config) { c.MaxReadsPerHaplotype = 0 }, "--max-reads-per-haplotype"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "--workers"},
		{"zero timeout", func(c *Config) { c.AssetTimeout = 0 }, "--asset-timeout"},
		{"bad profile", func(c *Config) { c.Profile = "block" }, "--profile"},
		{"bad publish", func(c *Config) { c.PublishURL = "https://example.com/site" }, "--publish"},
		{"root output", func(c *Config) { c.OutDir = "/" }, "/"},
		{"missing parent", func(c *Config) { c.OutDir = filepath.Join(c.ParaphaseDir, "a", "b") }, ""},
		{"missing pedigree", func(c *Config) { c.Pedigree = filepath.Join(c.ParaphaseDir, "none.ped") }, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig(t)
			tc.modify(&c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("Validate(): expected error, not success")
			}
			if kind, ok := report.KindOf(err); !ok || kind != report.Configuration {
				t.Errorf("Wrong error kind: got %v (%v), want %v", kind, ok, report.Configuration)
			}
			if tc.subject != "" && !strings.Contains(err.Error(), tc.subject) {
				t.Errorf("Error %q does not name %q", err, tc.subject)
			}
		})
	}
}

func TestValidate_ConflictBeforeIO(t *testing.T) {
	c := Config{
		OutDir:       "/nonexistent/parent/site",
		ParaphaseDir: "/nonexistent/input",
		Pedigree:     "/nonexistent/family.ped",
	}
	c.Filters.IncludeRegions = []string{"smn1"}
	c.Filters.ExcludeRegions = []string{"hba"}
	err := c.Validate()
	if err == nil {
		t.Fatalf("Validate(): expected error, not success")
	}
	if !strings.Contains(err.Error(), "--include-only-regions/--exclude-regions") {
		t.Errorf("Wrong error: %v", err)
	}
}

func TestValidate_Clobber(t *testing.T) {
	c := validConfig(t)
	if err := os.MkdirAll(c.DataDir(), 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("Validate() without --clobber: expected error, not success")
	}
	c.Clobber = true
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() with --clobber failed: %v", err)
	}
}

func TestParsePublishURL(t *testing.T) {
	testCases := []struct {
		input                  string
		scheme, bucket, prefix string
		fail                   bool
	}{
		{input: "gs://reviews/run-1/", scheme: "gs", bucket: "reviews", prefix: "run-1"},
		{input: "s3://reviews", scheme: "s3", bucket: "reviews"},
		{input: "s3:///prefix", fail: true},
		{input: "file:///tmp", fail: true},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			scheme, bucket, prefix, err := ParsePublishURL(tc.input)
			if tc.fail {
				if err == nil {
					t.Fatalf("ParsePublishURL(): expected error, not success")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePublishURL() failed: %v", err)
			}
			if scheme != tc.scheme || bucket != tc.bucket || prefix != tc.prefix {
				t.Errorf("Got (%q, %q, %q), want (%q, %q, %q)", scheme, bucket, prefix, tc.scheme, tc.bucket, tc.prefix)
			}
		})
	}
}
