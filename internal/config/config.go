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

// Package config holds the resolved settings of a paraviewer run.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/googlegenomics/paraviewer/internal/filter"
	"github.com/googlegenomics/paraviewer/internal/report"
)

// Source pipelines.  Each maps to a discovery layout and a region catalog.
const (
	Paraphase  = "paraphase"
	PureTarget = "puretarget"
)

var (
	errMissing         = errors.New("required value missing")
	errBothInputs      = errors.New("only one of --paraphase-dir and --ptcp-dir may be given")
	errNoInput         = errors.New("one of --paraphase-dir or --ptcp-dir is required")
	errUnsafeOutput    = errors.New("refusing to write into / or $HOME")
	errOutputExists    = errors.New("output data directory exists and --clobber is not set")
	errNotPositive     = errors.New("must be greater than zero")
	errUnknownGenome   = errors.New("genome must be hg19 or hg38")
	errUnknownProfile  = errors.New("profile must be cpu or mem")
	errUnknownPublish  = errors.New("publish URL must start with gs:// or s3://")
	errPublishNoBucket = errors.New("publish URL has no bucket")
)

// Config is the immutable configuration of one run.
type Config struct {
	OutDir       string
	ParaphaseDir string
	PTCPDir      string
	Genome       string
	Pedigree     string

	Filters filter.Directives

	MaxReadsPerHaplotype int
	Verbose              bool
	Clobber              bool
	Workers              int
	AssetTimeout         time.Duration
	SkipImages           bool
	IGVPath              string

	// Display is the X display IGV draws on.  When empty on Linux a virtual
	// display is started.
	Display string

	SQLitePath  string
	MetricsFile string
	PublishURL  string
	Profile     string
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		Genome:               "hg38",
		MaxReadsPerHaplotype: 500,
		Workers:              runtime.NumCPU(),
		AssetTimeout:         20 * time.Minute,
		IGVPath:              "igv",
	}
}

// List is a flag.Value collecting names from repeated flags.  Each value may
// hold several names separated by commas or white space.
type List []string

func (l *List) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

// Set appends the names in value.
func (l *List) Set(value string) error {
	for _, name := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}) {
		*l = append(*l, name)
	}
	return nil
}

// RegisterFlags binds the fields of c to flags in fs.  Values already in c
// are the defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.OutDir, "outdir", c.OutDir, "output directory for the review site")
	fs.StringVar(&c.ParaphaseDir, "paraphase-dir", c.ParaphaseDir, "Paraphase result directory")
	fs.StringVar(&c.PTCPDir, "ptcp-dir", c.PTCPDir, "PureTarget carrier panel result directory")
	fs.StringVar(&c.Genome, "genome", c.Genome, "genome build (hg19 or hg38)")
	fs.StringVar(&c.Pedigree, "pedigree", c.Pedigree, "GATK PED file with family relationships")

	fs.Var((*List)(&c.Filters.IncludeRegions), "include-only-regions", "region names to include; all others are excluded")
	fs.Var((*List)(&c.Filters.ExcludeRegions), "exclude-regions", "region names to exclude")
	fs.Var((*List)(&c.Filters.IncludeSamples), "include-only-samples", "sample IDs to include; all others are excluded")
	fs.Var((*List)(&c.Filters.ExcludeSamples), "exclude-samples", "sample IDs to exclude")

	fs.IntVar(&c.MaxReadsPerHaplotype, "max-reads-per-haplotype", c.MaxReadsPerHaplotype, "maximum reads kept per HP tag value in each regional bundle")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "debug logging")
	fs.BoolVar(&c.Clobber, "clobber", c.Clobber, "overwrite an existing output data directory")
	fs.IntVar(&c.Workers, "workers", c.Workers, "parallel asset tasks")
	fs.DurationVar(&c.AssetTimeout, "asset-timeout", c.AssetTimeout, "time limit for the assets of one entity")
	fs.BoolVar(&c.SkipImages, "skip-images", c.SkipImages, "do not render static preview images")
	fs.StringVar(&c.IGVPath, "igv", c.IGVPath, "IGV executable")
	fs.StringVar(&c.Display, "display", c.Display, "existing X display for IGV, such as :0; by default Xvfb is started on Linux")

	fs.StringVar(&c.SQLitePath, "sqlite", c.SQLitePath, "if set, also export the table to this SQLite database")
	fs.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "if set, write run metrics in Prometheus text format")
	fs.StringVar(&c.PublishURL, "publish", c.PublishURL, "if set, upload the site to gs://bucket/prefix or s3://bucket/prefix")
	fs.StringVar(&c.Profile, "profile", c.Profile, "write a cpu or mem profile")
}

// Pipeline returns the source pipeline selected by the input directory flag.
func (c Config) Pipeline() string {
	if c.PTCPDir != "" {
		return PureTarget
	}
	return Paraphase
}

// InputDir returns the configured caller output directory.
func (c Config) InputDir() string {
	if c.PTCPDir != "" {
		return c.PTCPDir
	}
	return c.ParaphaseDir
}

// DataDir returns the directory holding per-entity assets.
func (c Config) DataDir() string {
	return filepath.Join(c.OutDir, "data")
}

// Validate checks c and returns a Configuration error naming the offending
// flag or path.  Directive conflicts are detected before the file system is
// touched.
func (c Config) Validate() error {
	if err := c.Filters.Check(); err != nil {
		return err
	}
	if c.ParaphaseDir != "" && c.PTCPDir != "" {
		return report.NewConfigurationError("--paraphase-dir/--ptcp-dir", "selecting input", errBothInputs)
	}
	if c.ParaphaseDir == "" && c.PTCPDir == "" {
		return report.NewConfigurationError("--paraphase-dir/--ptcp-dir", "selecting input", errNoInput)
	}
	if c.OutDir == "" {
		return report.NewConfigurationError("--outdir", "checking output", errMissing)
	}
	if c.Genome != "hg19" && c.Genome != "hg38" {
		return report.NewConfigurationError("--genome", c.Genome, errUnknownGenome)
	}
	if c.MaxReadsPerHaplotype <= 0 {
		return report.NewConfigurationError("--max-reads-per-haplotype", fmt.Sprint(c.MaxReadsPerHaplotype), errNotPositive)
	}
	if c.Workers <= 0 {
		return report.NewConfigurationError("--workers", fmt.Sprint(c.Workers), errNotPositive)
	}
	if c.AssetTimeout <= 0 {
		return report.NewConfigurationError("--asset-timeout", c.AssetTimeout.String(), errNotPositive)
	}
	if c.Profile != "" && c.Profile != "cpu" && c.Profile != "mem" {
		return report.NewConfigurationError("--profile", c.Profile, errUnknownProfile)
	}
	if c.PublishURL != "" {
		if _, _, _, err := ParsePublishURL(c.PublishURL); err != nil {
			return report.NewConfigurationError("--publish", c.PublishURL, err)
		}
	}
	return c.checkPaths()
}

func (c Config) checkPaths() error {
	out, err := filepath.Abs(c.OutDir)
	if err != nil {
		return report.NewConfigurationError(c.OutDir, "resolving output", err)
	}
	home, _ := os.UserHomeDir()
	if out == string(filepath.Separator) || (home != "" && out == filepath.Clean(home)) {
		return report.NewConfigurationError(c.OutDir, "checking output", errUnsafeOutput)
	}
	if _, err := os.Stat(filepath.Dir(out)); err != nil {
		return report.NewConfigurationError(filepath.Dir(out), "checking output parent", err)
	}
	if _, err := os.Stat(c.DataDir()); err == nil && !c.Clobber {
		return report.NewConfigurationError(c.DataDir(), "checking output", errOutputExists)
	}
	if c.Pedigree != "" {
		if _, err := os.Stat(c.Pedigree); err != nil {
			return report.NewConfigurationError(c.Pedigree, "checking pedigree", err)
		}
	}
	return nil
}

// ParsePublishURL splits a gs:// or s3:// URL into scheme, bucket and object
// prefix.
func ParsePublishURL(raw string) (scheme, bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", err
	}
	if u.Scheme != "gs" && u.Scheme != "s3" {
		return "", "", "", errUnknownPublish
	}
	if u.Host == "" {
		return "", "", "", errPublishNoBucket
	}
	return u.Scheme, u.Host, strings.Trim(u.Path, "/"), nil
}
