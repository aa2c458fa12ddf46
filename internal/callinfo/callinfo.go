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

// Package callinfo summarizes the caller's per-region JSON metadata into the
// copy number and special information columns of the review table.
package callinfo

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Fields of region metadata that carry region-specific call details.
var specialFields = []string{
	"alleles_final",
	"annotated_alleles",
	"annotated_haplotypes",
	"deletion_haplotypes",
	"ending_hap",
	"fusions_called",
	"genotype",
	"smn1_cn",
	"smn2_cn",
	"smn2_del78_cn",
	"sv_called",
}

// Copy number fields in order of preference.
var copyNumberFields = []string{"gene_cn", "total_cn", "highest_total_cn"}

// Region is the decoded metadata of one region.
type Region map[string]interface{}

// Sidecars are the optional per-sample annotation files of the targeted panel
// layout.
type Sidecars struct {
	// F8Inversion is the inversion genotype summary, empty if none.
	F8Inversion string
	// Havanno maps region names to haplotype annotations.
	Havanno map[string]string
}

// Decode parses the caller's metadata document, which maps region names to
// region metadata.  Region values are left undecoded.
func Decode(data []byte) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("document is not an object")
	}
	return doc, nil
}

// DecodeRegion parses the metadata of one region.  Numbers keep their
// textual form.
func DecodeRegion(data json.RawMessage) (Region, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var r Region
	if err := d.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}

// ReadFile returns the contents of a JSON file, decompressing it if its name
// ends in .gz.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := io.Reader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s is named as gzipped but is not: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

// CopyNumber returns the first non-null of gene_cn, total_cn and
// highest_total_cn, or the empty string.
func CopyNumber(r Region) string {
	for _, field := range copyNumberFields {
		if v, ok := r[field]; ok && v != nil {
			return format(v)
		}
	}
	return ""
}

// SpecialInfo summarizes the region-specific fields of r.  Lists are written
// as "field: a, b", objects as "field,key1, key2" and scalars as
// "field,value"; entries are separated by ';'.  F8 regions report only the
// inversion sidecar.  Otherwise the region's havanno annotation is appended.
func SpecialInfo(name string, r Region, side Sidecars) string {
	var info []string
	for _, field := range specialFields {
		v, ok := r[field]
		if !ok || v == nil {
			continue
		}
		switch v := v.(type) {
		case []interface{}:
			if len(v) == 0 {
				continue
			}
			items := make([]string, len(v))
			for i, item := range v {
				if nested, ok := item.([]interface{}); ok {
					parts := make([]string, len(nested))
					for j, part := range nested {
						parts[j] = format(part)
					}
					items[i] = strings.Join(parts, " | ")
					continue
				}
				items[i] = format(item)
			}
			info = append(info, field+": "+strings.Join(items, ", "))
		case map[string]interface{}:
			if len(v) == 0 {
				continue
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			info = append(info, field+","+strings.Join(keys, ", "))
		default:
			s := format(v)
			if s == "" || s == "NA" {
				continue
			}
			info = append(info, field+","+s)
		}
	}

	isF8 := strings.Contains(strings.ToLower(name), "f8")
	if isF8 {
		info = nil
	}
	if side.F8Inversion != "" {
		info = append(info, side.F8Inversion)
	} else if annotation := side.Havanno[name]; !isF8 && annotation != "" {
		info = append(info, annotation)
	}
	return strings.Trim(strings.Join(info, ";"), ", ")
}

func format(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// ReadF8Inversion reads an f8inversion sidecar and returns the genotypes of
// the detected inversions, each followed by a comma.  A missing file yields
// the empty string.
func ReadF8Inversion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var doc map[string]struct {
		HasInversion bool        `json:"has_inversion"`
		Genotype     interface{} `json:"inversion_genotype"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	var out strings.Builder
	for _, key := range []string{"f8inv1", "f8inv22"} {
		if inv, ok := doc[key]; ok && inv.HasInversion {
			out.WriteString(format(inv.Genotype) + ",")
		}
	}
	return out.String(), nil
}

type havannoHaplotype struct {
	PathogenicVariants *int64 `json:"num_pathogenic_variants"`
	InsertionSize      *int64 `json:"total_insertion_size"`
	DeletionSize       *int64 `json:"total_deletion_size"`
}

// ReadHavanno reads a havanno sidecar and returns one annotation per region:
// "<haplotype>,<n> possible pathogenic vars, <n>bp INS, <n>bp DEL" for every
// haplotype with something to report, joined by ';'.  A missing file yields
// no annotations.
func ReadHavanno(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc struct {
		Annotations map[string]map[string]havannoHaplotype `json:"annotations"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	results := make(map[string]string)
	for region, haplotypes := range doc.Annotations {
		names := make([]string, 0, len(haplotypes))
		for name := range haplotypes {
			if !strings.Contains(name, "hba_homology") {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		var annotations []string
		for _, name := range names {
			h := haplotypes[name]
			var parts []string
			if h.PathogenicVariants != nil && *h.PathogenicVariants > 0 {
				parts = append(parts, fmt.Sprintf("%d possible pathogenic vars", *h.PathogenicVariants))
			}
			if h.InsertionSize != nil && *h.InsertionSize > 0 {
				parts = append(parts, fmt.Sprintf("%dbp INS", *h.InsertionSize))
			}
			if h.DeletionSize != nil && *h.DeletionSize > 0 {
				parts = append(parts, fmt.Sprintf("%dbp DEL", *h.DeletionSize))
			}
			if len(parts) > 0 {
				annotations = append(annotations, name+","+strings.Join(parts, ", "))
			}
		}
		if len(annotations) > 0 {
			results[region] = strings.Join(annotations, ";")
		}
	}
	return results, nil
}
