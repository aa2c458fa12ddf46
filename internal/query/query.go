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

// Package query implements the review table semantics of the generated site:
// field filters combined by AND, stable sorting and row selection.  The
// browser engine in paraviewer.js follows the same rules.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/googlegenomics/paraviewer/internal/site"
)

// Env is the environment the site was opened from.
type Env int

const (
	// Local sites are read from disk and cannot fetch sibling files.
	Local Env = iota
	// Hosted sites are served over HTTP.
	Hosted
)

func (e Env) String() string {
	if e == Hosted {
		return "Hosted"
	}
	return "Local"
}

// DetectEnv returns Hosted for http and https locations and Local for
// anything else.
func DetectEnv(location string) Env {
	l := strings.ToLower(location)
	if strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") {
		return Hosted
	}
	return Local
}

// State is Filtered while at least one filter is active.
type State int

const (
	Idle State = iota
	Filtered
)

func (s State) String() string {
	if s == Filtered {
		return "Filtered"
	}
	return "Idle"
}

// Op is a predicate operator.
type Op string

const (
	Eq       Op = "eq"
	Ne       Op = "ne"
	Contains Op = "contains"
	Gt       Op = "gt"
	Lt       Op = "lt"
)

var ops = []Op{Eq, Ne, Contains, Gt, Lt}

// ParseOp returns the operator named s.
func ParseOp(s string) (Op, error) {
	for _, op := range ops {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Predicate restricts one field.
type Predicate struct {
	Field string
	Op    Op
	Value string
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Value)
}

// ParsePredicate parses "field op value", for example "Region eq smn1".  The
// value may contain spaces.
func ParsePredicate(s string) (Predicate, error) {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 3)
	if len(parts) != 3 {
		return Predicate{}, fmt.Errorf("invalid predicate %q: want \"field op value\"", s)
	}
	op, err := ParseOp(parts[1])
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Field: parts[0], Op: op, Value: parts[2]}, nil
}

// Fields lists the row fields in table order.
var Fields = []string{
	"Key", "Chrom", "Start", "End", "Region", "Sample", "Kind", "CopyNumber",
	"SpecialInfo", "FamilyID", "PaternalID", "MaternalID", "Sex", "Phenotype",
	"Image", "Session", "Bundles", "Degraded", "Issues",
}

var numericFields = map[string]bool{"Start": true, "End": true, "CopyNumber": true}

var errUnknownField = errors.New("unknown field")

// Value returns the text of field in row, as the site displays it.
func Value(row site.Row, field string) (string, error) {
	switch field {
	case "Key":
		return row.Key, nil
	case "Chrom":
		return row.Chrom, nil
	case "Start":
		return strconv.FormatUint(uint64(row.Start), 10), nil
	case "End":
		return strconv.FormatUint(uint64(row.End), 10), nil
	case "Region":
		return row.Region, nil
	case "Sample":
		return row.Sample, nil
	case "Kind":
		return string(row.Kind), nil
	case "CopyNumber":
		return row.CopyNumber, nil
	case "SpecialInfo":
		return row.SpecialInfo, nil
	case "FamilyID":
		return row.FamilyID, nil
	case "PaternalID":
		return row.PaternalID, nil
	case "MaternalID":
		return row.MaternalID, nil
	case "Sex":
		return row.Sex, nil
	case "Phenotype":
		return row.Phenotype, nil
	case "Image":
		return row.Image, nil
	case "Session":
		return row.Session, nil
	case "Bundles":
		return strings.Join(row.Bundles, ","), nil
	case "Degraded":
		return strconv.FormatBool(row.Degraded), nil
	case "Issues":
		return strings.Join(row.Issues, ","), nil
	}
	return "", fmt.Errorf("%w %q", errUnknownField, field)
}

func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// compare orders a and b.  Numeric fields order numbers before other values.
func compare(field, a, b string) int {
	if numericFields[field] {
		x, xok := number(a)
		y, yok := number(b)
		switch {
		case xok && yok:
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		case xok:
			return -1
		case yok:
			return 1
		}
	}
	return strings.Compare(a, b)
}

func (p Predicate) matches(v string) bool {
	switch p.Op {
	case Eq:
		return v == p.Value
	case Ne:
		return v != p.Value
	case Contains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(p.Value))
	case Gt:
		return compare(p.Field, v, p.Value) > 0
	case Lt:
		return compare(p.Field, v, p.Value) < 0
	}
	return false
}

// Detail is the expanded view of a selected row.
type Detail struct {
	Row     site.Row
	Image   string
	Session string
	Bundles []string
	// SessionAsDownload is set in Local mode, where the session is offered
	// as a link instead of being loaded.
	SessionAsDownload bool
}

// Engine answers queries over one dataset.
type Engine struct {
	dataset    *site.Dataset
	env        Env
	filters    []Predicate
	sortField  string
	descending bool
}

// Load returns an engine over d in the Idle state.
func Load(d *site.Dataset, env Env) *Engine {
	return &Engine{dataset: d, env: env}
}

// Env returns the environment the engine was loaded in.
func (e *Engine) Env() Env { return e.env }

// State reports whether any filter is active.
func (e *Engine) State() State {
	if len(e.filters) > 0 {
		return Filtered
	}
	return Idle
}

// Filter adds p to the active filters, which all must hold.  Adding a filter
// that is already active has no effect.
func (e *Engine) Filter(p Predicate) error {
	if _, err := Value(site.Row{}, p.Field); err != nil {
		return err
	}
	if _, err := ParseOp(string(p.Op)); err != nil {
		return err
	}
	for _, active := range e.filters {
		if active == p {
			return nil
		}
	}
	e.filters = append(e.filters, p)
	return nil
}

// ClickFilter restricts field to the exact value it has in row index.
func (e *Engine) ClickFilter(index int, field string) error {
	row, err := e.row(index)
	if err != nil {
		return err
	}
	v, err := Value(row, field)
	if err != nil {
		return err
	}
	return e.Filter(Predicate{Field: field, Op: Eq, Value: v})
}

// Remove drops the active filter equal to p, if any.  Other filters on the
// same field stay active.
func (e *Engine) Remove(p Predicate) {
	for i, active := range e.filters {
		if active == p {
			e.filters = append(e.filters[:i:i], e.filters[i+1:]...)
			return
		}
	}
}

// Clear drops every filter.
func (e *Engine) Clear() {
	e.filters = nil
}

// Filters returns the active filters in the order they were added.
func (e *Engine) Filters() []Predicate {
	return append([]Predicate(nil), e.filters...)
}

// Sort orders Rows by field.  Rows with equal values keep dataset order.
func (e *Engine) Sort(field string, descending bool) error {
	if _, err := Value(site.Row{}, field); err != nil {
		return err
	}
	e.sortField, e.descending = field, descending
	return nil
}

// Rows returns the indexes of the rows that pass every filter, in display
// order.
func (e *Engine) Rows() []int {
	out := []int{}
	for i, row := range e.dataset.Rows {
		if e.keep(row) {
			out = append(out, i)
		}
	}
	if e.sortField == "" {
		return out
	}
	values := make(map[int]string, len(out))
	for _, i := range out {
		values[i], _ = Value(e.dataset.Rows[i], e.sortField)
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(e.sortField, values[out[i]], values[out[j]])
		if e.descending {
			c = -c
		}
		return c < 0
	})
	return out
}

func (e *Engine) keep(row site.Row) bool {
	for _, p := range e.filters {
		v, _ := Value(row, p.Field)
		if !p.matches(v) {
			return false
		}
	}
	return true
}

// Select returns the detail view of row index.
func (e *Engine) Select(index int) (*Detail, error) {
	row, err := e.row(index)
	if err != nil {
		return nil, err
	}
	bundles := row.Bundles
	if bundles == nil {
		bundles = []string{}
	}
	return &Detail{
		Row:               row,
		Image:             row.Image,
		Session:           row.Session,
		Bundles:           bundles,
		SessionAsDownload: e.env == Local,
	}, nil
}

func (e *Engine) row(index int) (site.Row, error) {
	if index < 0 || index >= len(e.dataset.Rows) {
		return site.Row{}, fmt.Errorf("row %d out of range [0, %d)", index, len(e.dataset.Rows))
	}
	return e.dataset.Rows[index], nil
}
