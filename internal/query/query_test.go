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

package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/googlegenomics/paraviewer/internal/model"
	"github.com/googlegenomics/paraviewer/internal/site"
)

func dataset() *site.Dataset {
	return &site.Dataset{Rows: []site.Row{
		{Key: "S1/smn1", Region: "smn1", Sample: "S1", Kind: model.SampleKind, Start: 70924941, CopyNumber: "4", Session: "data/S1/igv_sessions/smn1_igv.json", Bundles: []string{"data/S1/bams/S1_smn1.bam"}},
		{Key: "S2/smn1", Region: "smn1", Sample: "S2", Kind: model.SampleKind, Start: 70924941, CopyNumber: "2"},
		{Key: "S1/hba", Region: "hba", Sample: "S1", Kind: model.SampleKind, Start: 172876, CopyNumber: "None"},
		{Key: "S2/hba", Region: "hba", Sample: "S2", Kind: model.SampleKind, Start: 172876, CopyNumber: "10", Degraded: true},
		{Key: "FAM1_S3/smn1", Region: "smn1", Sample: "FAM1_S3", Kind: model.TrioKind, Start: 70924941, CopyNumber: "3"},
	}}
}

func TestDetectEnv(t *testing.T) {
	testCases := []struct {
		location string
		want     Env
	}{
		{"out/index.html", Local},
		{"/tmp/out/index.html", Local},
		{"file:///tmp/out/index.html", Local},
		{"https://example.org/run1/index.html", Hosted},
		{"HTTP://localhost:8080/", Hosted},
	}
	for _, tc := range testCases {
		if got := DetectEnv(tc.location); got != tc.want {
			t.Errorf("DetectEnv(%q): got %v, want %v", tc.location, got, tc.want)
		}
	}
}

func TestParsePredicate(t *testing.T) {
	p, err := ParsePredicate("SpecialInfo contains smn1 deletion")
	if err != nil {
		t.Fatalf("ParsePredicate() failed: %v", err)
	}
	if diff := cmp.Diff(Predicate{Field: "SpecialInfo", Op: Contains, Value: "smn1 deletion"}, p); diff != "" {
		t.Errorf("Predicate mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", "Region eq", "Region like smn1"} {
		if _, err := ParsePredicate(bad); err == nil {
			t.Errorf("ParsePredicate(%q): expected error, not success", bad)
		}
	}
}

func TestFilter(t *testing.T) {
	testCases := []struct {
		name  string
		preds []Predicate
		want  []int
	}{
		{"none", nil, []int{0, 1, 2, 3, 4}},
		{"eq", []Predicate{{"Region", Eq, "smn1"}}, []int{0, 1, 4}},
		{"ne", []Predicate{{"Sample", Ne, "S1"}}, []int{1, 3, 4}},
		{"contains folds case", []Predicate{{"Sample", Contains, "fam1"}}, []int{4}},
		{"gt numeric", []Predicate{{"CopyNumber", Gt, "3"}}, []int{0, 2, 3}},
		{"lt numeric", []Predicate{{"CopyNumber", Lt, "3"}}, []int{1}},
		{"lt start", []Predicate{{"Start", Lt, "1000000"}}, []int{2, 3}},
		{"and", []Predicate{{"Region", Eq, "smn1"}, {"Kind", Eq, "sample"}}, []int{0, 1}},
		{"degraded", []Predicate{{"Degraded", Eq, "true"}}, []int{3}},
		{"same field combines", []Predicate{{"Region", Eq, "smn1"}, {"Region", Eq, "hba"}}, []int{}},
		{"numeric range", []Predicate{{"CopyNumber", Gt, "2"}, {"CopyNumber", Lt, "5"}}, []int{0, 4}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := Load(dataset(), Local)
			for _, p := range tc.preds {
				if err := e.Filter(p); err != nil {
					t.Fatalf("Filter(%v) failed: %v", p, err)
				}
			}
			if diff := cmp.Diff(tc.want, e.Rows()); diff != "" {
				t.Errorf("Rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_Range(t *testing.T) {
	d := &site.Dataset{Rows: []site.Row{
		{Key: "S1/smn1", CopyNumber: "1"},
		{Key: "S2/smn1", CopyNumber: "3"},
		{Key: "S3/smn1", CopyNumber: "6"},
	}}
	e := Load(d, Local)
	for _, p := range []Predicate{{"CopyNumber", Gt, "2"}, {"CopyNumber", Lt, "5"}} {
		if err := e.Filter(p); err != nil {
			t.Fatalf("Filter(%v) failed: %v", p, err)
		}
	}
	if diff := cmp.Diff([]int{1}, e.Rows()); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}

	e.Remove(Predicate{"CopyNumber", Lt, "5"})
	if diff := cmp.Diff([]int{1, 2}, e.Rows()); diff != "" {
		t.Errorf("Rows after removing one bound mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Predicate{{"CopyNumber", Gt, "2"}}, e.Filters()); diff != "" {
		t.Errorf("Filters mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_Duplicate(t *testing.T) {
	e := Load(dataset(), Local)
	for _, p := range []Predicate{{"Region", Eq, "smn1"}, {"Sample", Ne, "S1"}, {"Region", Eq, "smn1"}} {
		if err := e.Filter(p); err != nil {
			t.Fatalf("Filter(%v) failed: %v", p, err)
		}
	}
	want := []Predicate{{"Region", Eq, "smn1"}, {"Sample", Ne, "S1"}}
	if diff := cmp.Diff(want, e.Filters()); diff != "" {
		t.Errorf("Filters mismatch (-want +got):\n%s", diff)
	}

	// One removal clears a filter that was added twice.
	e.Remove(Predicate{"Region", Eq, "smn1"})
	if diff := cmp.Diff([]int{1, 3, 4}, e.Rows()); diff != "" {
		t.Errorf("Rows after Remove mismatch (-want +got):\n%s", diff)
	}
	e.Remove(Predicate{"Region", Eq, "hba"})
	if got, want := len(e.Filters()), 1; got != want {
		t.Errorf("Removing an inactive filter changed the filters: got %d, want %d", got, want)
	}
}

func TestFilter_Errors(t *testing.T) {
	e := Load(dataset(), Local)
	if err := e.Filter(Predicate{Field: "Colour", Op: Eq, Value: "red"}); err == nil {
		t.Errorf("Filter with unknown field: expected error, not success")
	}
	if err := e.Filter(Predicate{Field: "Region", Op: "like", Value: "smn"}); err == nil {
		t.Errorf("Filter with unknown operator: expected error, not success")
	}
	if got, want := e.State(), Idle; got != want {
		t.Errorf("State after failed filters: got %v, want %v", got, want)
	}
}

func TestStates(t *testing.T) {
	e := Load(dataset(), Hosted)
	if got, want := e.State(), Idle; got != want {
		t.Fatalf("Initial state: got %v, want %v", got, want)
	}
	if err := e.ClickFilter(2, "Region"); err != nil {
		t.Fatalf("ClickFilter() failed: %v", err)
	}
	if got, want := e.State(), Filtered; got != want {
		t.Errorf("State after click: got %v, want %v", got, want)
	}
	if diff := cmp.Diff([]Predicate{{"Region", Eq, "hba"}}, e.Filters()); diff != "" {
		t.Errorf("Filters mismatch (-want +got):\n%s", diff)
	}
	if err := e.Filter(Predicate{"Sample", Eq, "S2"}); err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}
	if diff := cmp.Diff([]int{3}, e.Rows()); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
	e.Remove(Predicate{"Sample", Eq, "S2"})
	if diff := cmp.Diff([]int{2, 3}, e.Rows()); diff != "" {
		t.Errorf("Rows after Remove mismatch (-want +got):\n%s", diff)
	}
	e.Clear()
	if got, want := e.State(), Idle; got != want {
		t.Errorf("State after Clear: got %v, want %v", got, want)
	}
	if got, want := len(e.Rows()), 5; got != want {
		t.Errorf("Rows after Clear: got %d, want %d", got, want)
	}
}

func TestSort(t *testing.T) {
	testCases := []struct {
		field      string
		descending bool
		want       []int
	}{
		// "None" sorts after the numbers.
		{"CopyNumber", false, []int{1, 4, 0, 3, 2}},
		{"CopyNumber", true, []int{2, 3, 0, 4, 1}},
		// Ties keep dataset order in both directions.
		{"Start", false, []int{2, 3, 0, 1, 4}},
		{"Start", true, []int{0, 1, 4, 2, 3}},
		{"Sample", false, []int{4, 0, 2, 1, 3}},
	}
	for _, tc := range testCases {
		e := Load(dataset(), Local)
		if err := e.Sort(tc.field, tc.descending); err != nil {
			t.Fatalf("Sort(%s) failed: %v", tc.field, err)
		}
		if diff := cmp.Diff(tc.want, e.Rows()); diff != "" {
			t.Errorf("Sort(%s, %v) mismatch (-want +got):\n%s", tc.field, tc.descending, diff)
		}
	}

	if err := Load(dataset(), Local).Sort("Colour", false); err == nil {
		t.Errorf("Sort by unknown field: expected error, not success")
	}
}

func TestSortAfterFilter(t *testing.T) {
	e := Load(dataset(), Local)
	if err := e.Filter(Predicate{"Region", Eq, "smn1"}); err != nil {
		t.Fatalf("Filter() failed: %v", err)
	}
	if err := e.Sort("CopyNumber", false); err != nil {
		t.Fatalf("Sort() failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 4, 0}, e.Rows()); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect(t *testing.T) {
	testCases := []struct {
		env      Env
		download bool
	}{
		{Local, true},
		{Hosted, false},
	}
	for _, tc := range testCases {
		t.Run(tc.env.String(), func(t *testing.T) {
			e := Load(dataset(), tc.env)
			d, err := e.Select(0)
			if err != nil {
				t.Fatalf("Select() failed: %v", err)
			}
			if got, want := d.SessionAsDownload, tc.download; got != want {
				t.Errorf("SessionAsDownload: got %v, want %v", got, want)
			}
			if got, want := d.Session, "data/S1/igv_sessions/smn1_igv.json"; got != want {
				t.Errorf("Session: got %q, want %q", got, want)
			}
			if diff := cmp.Diff([]string{"data/S1/bams/S1_smn1.bam"}, d.Bundles); diff != "" {
				t.Errorf("Bundles mismatch (-want +got):\n%s", diff)
			}

			d, err = e.Select(1)
			if err != nil {
				t.Fatalf("Select() failed: %v", err)
			}
			if d.Bundles == nil {
				t.Errorf("Bundles: got nil, want empty")
			}
		})
	}

	if _, err := Load(dataset(), Local).Select(5); err == nil {
		t.Errorf("Select out of range: expected error, not success")
	}
}
