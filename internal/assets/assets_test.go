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

package assets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/googlegenomics/paraviewer/internal/catalog"
	"github.com/googlegenomics/paraviewer/internal/genomics"
	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/render"
	"github.com/googlegenomics/paraviewer/internal/render/rendertest"
	"github.com/googlegenomics/paraviewer/internal/report"
)

// testGraph returns S1, S2 and S3 called on smn1 and hba with S1 the child of
// S2 and S3.
func testGraph() *model.Graph {
	regions := []catalog.Region{
		{Name: "smn1", Realign: genomics.Interval{Chrom: "chr5", Start: 70039000, End: 71200000}},
		{Name: "hba", Realign: genomics.Interval{Chrom: "chr16", Start: 170000, End: 177000}},
	}
	g := &model.Graph{Genome: "hg38", Pipeline: "paraphase", Regions: regions}
	for _, id := range []string{"S1", "S2", "S3"} {
		g.Samples = append(g.Samples, model.Sample{ID: id, Genome: "hg38"})
	}
	trio := model.Trio{ID: "S1-trio", Child: "S1", Father: "S2", Mother: "S3"}
	g.Trios = []model.Trio{trio}
	for _, region := range regions {
		byID := make(map[string]*model.Call)
		for _, s := range g.Samples {
			c := &model.Call{
				Record: model.Record{Sample: s.ID, Region: region, BAM: s.ID + ".bam", BAI: s.ID + ".bam.bai"},
				Sample: s,
			}
			byID[s.ID] = c
			g.Calls = append(g.Calls, c)
		}
		g.TrioCalls = append(g.TrioCalls, &model.TrioCall{Trio: trio, Region: region, Child: byID["S1"], Father: byID["S2"], Mother: byID["S3"]})
	}
	return g
}

func allKeys(g *model.Graph) []string {
	var keys []string
	for _, e := range g.Entities() {
		keys = append(keys, e.Key())
	}
	sort.Strings(keys)
	return keys
}

func manifestKeys(m Manifest) []string {
	var keys []string
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestOrchestrate(t *testing.T) {
	g := testGraph()
	fake := &rendertest.Fake{}
	summary := &report.Summary{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	m, err := Orchestrate(context.Background(), g, fake, Options{Workers: 4, Timeout: time.Minute, MaxReads: 300, Summary: summary, Metrics: metrics})
	if err != nil {
		t.Fatalf("Orchestrate() failed: %v", err)
	}
	if diff := cmp.Diff(allKeys(g), manifestKeys(m)); diff != "" {
		t.Errorf("Manifest keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(allKeys(g), fake.Keys()); diff != "" {
		t.Errorf("Rendered keys mismatch (-want +got):\n%s", diff)
	}

	want := Entry{
		Image:   "data/S2/images/S2_smn1.png",
		Session: "data/S2/igv_sessions/smn1_igv.json",
		Bundles: []string{"data/S2/bams/S2_smn1.bam"},
	}
	if diff := cmp.Diff(want, m["S2/smn1"]); diff != "" {
		t.Errorf("Call entry mismatch (-want +got):\n%s", diff)
	}
	want = Entry{
		Image:   "data/S1-trio/images/S1-trio_hba.png",
		Session: "data/S1-trio/igv_sessions/hba_igv.json",
		Bundles: []string{"data/S2/bams/S2_hba.bam", "data/S3/bams/S3_hba.bam", "data/S1/bams/S1_hba.bam"},
	}
	if diff := cmp.Diff(want, m["S1-trio/hba"]); diff != "" {
		t.Errorf("Trio entry mismatch (-want +got):\n%s", diff)
	}

	for _, req := range fake.Requests() {
		if got, want := req.MaxReads, 300; got != want {
			t.Errorf("Wrong read cap for %s: got %d, want %d", req.EntityKey, got, want)
		}
	}
	if got, want := summary.Len(), 0; got != want {
		t.Errorf("Wrong warning count: got %d, want %d", got, want)
	}
	if got, want := testutil.ToFloat64(metrics.Entities.WithLabelValues("sample", "ok")), 6.0; got != want {
		t.Errorf("Wrong ok sample count: got %v, want %v", got, want)
	}
	if got, want := testutil.ToFloat64(metrics.Entities.WithLabelValues("trio", "ok")), 2.0; got != want {
		t.Errorf("Wrong ok trio count: got %v, want %v", got, want)
	}
}

func TestOrchestrate_TriosAfterCalls(t *testing.T) {
	fake := &rendertest.Fake{Delay: 5 * time.Millisecond}
	if _, err := Orchestrate(context.Background(), testGraph(), fake, Options{Workers: 8}); err != nil {
		t.Fatalf("Orchestrate() failed: %v", err)
	}
	requests := fake.Requests()
	if got, want := len(requests), 8; got != want {
		t.Fatalf("Wrong request count: got %d, want %d", got, want)
	}
	for i, req := range requests {
		if got, want := req.Kind == model.TrioKind, i >= 6; got != want {
			t.Errorf("Request %d (%s) arrived out of phase", i, req.EntityKey)
		}
	}
}

func TestOrchestrate_Bounded(t *testing.T) {
	for _, workers := range []int{1, 2, 3} {
		t.Run(fmt.Sprint(workers), func(t *testing.T) {
			fake := &rendertest.Fake{Delay: 10 * time.Millisecond}
			if _, err := Orchestrate(context.Background(), testGraph(), fake, Options{Workers: workers}); err != nil {
				t.Fatalf("Orchestrate() failed: %v", err)
			}
			if got := fake.Peak(); got > workers {
				t.Errorf("Too many concurrent renders: got %d, want at most %d", got, workers)
			}
		})
	}
}

func TestOrchestrate_EntityFailures(t *testing.T) {
	fake := &rendertest.Fake{
		Errors:      map[string]error{"S2/smn1": errors.New("igv exited with status 1")},
		AssetErrors: map[string]map[render.Asset]error{"S1/hba": {render.Image: errors.New("no snapshot")}},
		Block:       map[string]bool{"S3/hba": true},
	}
	summary := &report.Summary{}
	m, err := Orchestrate(context.Background(), testGraph(), fake, Options{Workers: 2, Timeout: 50 * time.Millisecond, Summary: summary})
	if err != nil {
		t.Fatalf("Orchestrate() failed: %v", err)
	}
	if got, want := len(m), 8; got != want {
		t.Errorf("Wrong manifest size: got %d, want %d", got, want)
	}

	testCases := []struct {
		key   string
		issue string
	}{
		{"S2/smn1", "igv exited with status 1"},
		{"S1/hba", "image: no snapshot"},
		{"S3/hba", "timed out after 50ms"},
	}
	for _, tc := range testCases {
		entry := m[tc.key]
		if !entry.Degraded {
			t.Errorf("%s is not degraded", tc.key)
			continue
		}
		if len(entry.Issues) != 1 || !strings.Contains(entry.Issues[0], tc.issue) {
			t.Errorf("Wrong issues for %s: got %q, want one containing %q", tc.key, entry.Issues, tc.issue)
		}
	}
	if got := m["S1/hba"]; got.Image != "" || got.Session == "" {
		t.Errorf("Image failure should keep the session only: %+v", got)
	}
	if m["S1/smn1"].Degraded || m["S1-trio/smn1"].Degraded {
		t.Errorf("Failures leaked into other entities")
	}

	var got []string
	for _, w := range summary.Warnings() {
		if w.Kind != report.AssetGeneration {
			t.Errorf("Wrong warning kind: got %v, want %v", w.Kind, report.AssetGeneration)
		}
		got = append(got, w.Subject+"/"+w.Region)
	}
	if diff := cmp.Diff([]string{"S1/hba", "S2/smn1", "S3/hba"}, got); diff != "" {
		t.Errorf("Warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrate_Unavailable(t *testing.T) {
	fake := &rendertest.Fake{
		Errors: map[string]error{"S1/smn1": fmt.Errorf("%w: display closed", render.ErrUnavailable)},
	}
	m, err := Orchestrate(context.Background(), testGraph(), fake, Options{Workers: 1})
	if err == nil {
		t.Fatal("expected error, not success")
	}
	if m != nil {
		t.Errorf("Got a manifest after a systemic failure: %v", m)
	}
	if kind, ok := report.KindOf(err); !ok || kind != report.RendererUnavailable {
		t.Errorf("Wrong error kind: got %v, want %v", kind, report.RendererUnavailable)
	}
	if !errors.Is(err, render.ErrUnavailable) {
		t.Errorf("Error does not wrap ErrUnavailable: %v", err)
	}
	if diff := cmp.Diff([]string{"S1/smn1"}, fake.Keys()); diff != "" {
		t.Errorf("Requests after the systemic failure (-want +got):\n%s", diff)
	}
}

func TestOrchestrate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &rendertest.Fake{}
	if _, err := Orchestrate(ctx, testGraph(), fake, Options{Workers: 2}); !errors.Is(err, context.Canceled) {
		t.Errorf("Wrong error: got %v, want %v", err, context.Canceled)
	}
	if got := len(fake.Requests()); got != 0 {
		t.Errorf("Got %d requests after cancellation, want 0", got)
	}
}
