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

// Package site writes the static review site: index.html with the embedded
// dataset, the client script and style sheet, and a summary chart page.
package site

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/googlegenomics/paraviewer/internal/assets"
	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/report"
)

// DataElementID is the id of the script element that holds the dataset.
const DataElementID = "paraviewer-data"

var (
	//go:embed templates/index.html
	templates embed.FS
	//go:embed static
	static embed.FS

	index = template.Must(template.ParseFS(templates, "templates/index.html"))

	errNoDataset = errors.New("no embedded dataset")
)

// Options configures Emit.
type Options struct {
	// Title is the page title.
	Title string
}

// Column is a header cell of the review table.
type Column struct {
	Field string
	Label string
}

// columns returns the table columns for d in display order.
func columns(d *Dataset) []Column {
	out := []Column{
		{"Chrom", "Chrom"},
		{"Start", "Start"},
		{"End", "End"},
		{"Region", "Region"},
		{"Sample", "Sample"},
		{"CopyNumber", "Copy number"},
		{"SpecialInfo", "Special info"},
	}
	optional := []struct {
		show bool
		Column
	}{
		{d.Columns.FamilyID, Column{"FamilyID", "Family"}},
		{d.Columns.PaternalID, Column{"PaternalID", "Father"}},
		{d.Columns.MaternalID, Column{"MaternalID", "Mother"}},
		{d.Columns.Sex, Column{"Sex", "Sex"}},
		{d.Columns.Phenotype, Column{"Phenotype", "Phenotype"}},
	}
	for _, c := range optional {
		if c.show {
			out = append(out, c.Column)
		}
	}
	return out
}

type page struct {
	Title    string
	Dataset  *Dataset
	Columns  []Column
	Degraded int
	Data     template.JS
}

// Emit writes the site for g into outDir and returns the embedded dataset.
// It must run after every asset of m has been produced or recorded as
// failed.  Output is a function of its inputs only.
func Emit(outDir string, g *model.Graph, m assets.Manifest, summary *report.Summary, opts Options) (*Dataset, error) {
	if opts.Title == "" {
		opts.Title = "Paraviewer"
	}
	d, err := NewDataset(g, m, summary)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	p := page{
		Title:   opts.Title,
		Dataset: d,
		Columns: columns(d),
		Data:    template.JS(data),
	}
	for _, row := range d.Rows {
		if row.Degraded {
			p.Degraded++
		}
	}

	var buf bytes.Buffer
	if err := index.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("rendering index.html: %w", err)
	}
	if err := writeFile(filepath.Join(outDir, "index.html"), buf.Bytes()); err != nil {
		return nil, err
	}
	if err := copyStatic(outDir); err != nil {
		return nil, err
	}

	buf.Reset()
	if err := renderSummary(&buf, d, opts.Title); err != nil {
		return nil, fmt.Errorf("rendering summary.html: %w", err)
	}
	if err := writeFile(filepath.Join(outDir, "summary.html"), buf.Bytes()); err != nil {
		return nil, err
	}

	slog.Info("Wrote site", "path", filepath.Join(outDir, "index.html"), "rows", len(d.Rows), "degraded", p.Degraded, "id", d.ID)
	return d, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func copyStatic(outDir string) error {
	root, err := fs.Sub(static, "static")
	if err != nil {
		return err
	}
	return fs.WalkDir(root, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		data, err := fs.ReadFile(root, path)
		if err != nil {
			return err
		}
		return writeFile(filepath.Join(outDir, filepath.FromSlash(path)), data)
	})
}

// Extract returns the dataset embedded in a generated index.html.
func Extract(r io.Reader) (*Dataset, error) {
	html, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	open := []byte(`<script type="application/json" id="` + DataElementID + `">`)
	start := bytes.Index(html, open)
	if start < 0 {
		return nil, errNoDataset
	}
	html = html[start+len(open):]
	end := bytes.Index(html, []byte("</script>"))
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated script element", errNoDataset)
	}

	var d Dataset
	if err := json.Unmarshal(html[:end], &d); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	if d.Version != Version {
		return nil, fmt.Errorf("unsupported dataset version %d", d.Version)
	}
	return &d, nil
}
