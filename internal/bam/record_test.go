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

package bam_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/googlegenomics/paraviewer/internal/bam"
	"github.com/googlegenomics/paraviewer/internal/bam/bamtest"
	"github.com/googlegenomics/paraviewer/internal/bgzf"
	"github.com/googlegenomics/paraviewer/internal/genomics"
)

// withTags appends raw auxiliary data to an encoded record.
func withTags(record []byte, tags ...byte) []byte {
	out := append(append([]byte(nil), record...), tags...)
	binary.LittleEndian.PutUint32(out, uint32(len(out)-4))
	return out
}

func TestParseRecord(t *testing.T) {
	plain := bamtest.Record(bamtest.Read{Reference: 1, Start: 70900000, End: 70900150, Name: "r1"})
	int32Tag := []byte{'H', 'P', 'i', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(int32Tag[3:], 2)

	testCases := []struct {
		name   string
		record []byte
		want   string
	}{
		{"string tag", bamtest.Record(bamtest.Read{Reference: 1, Start: 70900000, End: 70900150, Name: "r1", Haplotype: "smn1_hap2"}), "smn1_hap2"},
		{"no tags", plain, ""},
		{"integer tag", withTags(plain, int32Tag...), "2"},
		{"after other tags", withTags(plain, 'N', 'M', 'C', 3, 'X', 'A', 'Z', 'x', 0, 'H', 'P', 'c', 0xff), "-1"},
		{"after array tag", withTags(plain, 'Z', 'B', 'B', 'S', 2, 0, 0, 0, 1, 0, 2, 0, 'H', 'P', 'A', 'h'), "h"},
		{"other tags only", withTags(plain, 'Y', 'C', 'Z', '1', '0', 0), ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := bam.ParseRecord(append(tc.record, "trailing"...))
			if err != nil {
				t.Fatalf("ParseRecord() failed: %v", err)
			}
			want := bam.Record{
				ReferenceID: 1,
				Position:    70900000,
				End:         70900150,
				Bin:         uint16(4681 + 70900000>>14),
				Haplotype:   tc.want,
				Size:        len(tc.record),
			}
			if diff := cmp.Diff(want, r); diff != "" {
				t.Errorf("ParseRecord() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRecord_Errors(t *testing.T) {
	plain := bamtest.Record(bamtest.Read{Reference: 0, Start: 10, End: 20, Name: "r1"})
	testCases := []struct {
		name   string
		record []byte
	}{
		{"empty", nil},
		{"truncated", plain[:len(plain)-2]},
		{"short block size", []byte{4, 0, 0, 0, 1, 2, 3, 4}},
		{"unknown tag type", withTags(plain, 'X', 'X', 'q', 1)},
		{"unterminated string", withTags(plain, 'H', 'P', 'Z', 'a')},
		{"short integer", withTags(plain, 'H', 'P', 'i', 1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := bam.ParseRecord(tc.record); err == nil {
				t.Fatalf("ParseRecord(): expected error, not success")
			}
		})
	}
}

func TestHeaderLength(t *testing.T) {
	data, _, err := bamtest.Build(testReferences, nil)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	header, _, err := bgzf.DecodeBlock(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeBlock() failed: %v", err)
	}

	n, refs, err := bam.HeaderLength(append(header, "records"...))
	if err != nil {
		t.Fatalf("HeaderLength() failed: %v", err)
	}
	if got, want := n, len(header); got != want {
		t.Errorf("Wrong header length: got %d, want %d", got, want)
	}
	if got, want := refs, int32(len(testReferences)); got != want {
		t.Errorf("Wrong reference count: got %d, want %d", got, want)
	}

	for _, bad := range [][]byte{[]byte("BAI\x01"), header[:len(header)-3]} {
		if _, _, err := bam.HeaderLength(bad); err == nil {
			t.Errorf("HeaderLength(%q): expected error, not success", bad)
		}
	}
}

func TestIndexBuilder(t *testing.T) {
	reads := []bamtest.Read{
		{Reference: 1, Start: 70900000, End: 70900150, Name: "r1"},
		{Reference: 1, Start: 70900100, End: 70900250, Name: "r2"},
		{Reference: 1, Start: 90000000, End: 90000150, Name: "r3"},
	}

	var out bytes.Buffer
	w := bgzf.NewWriter(&out)
	if _, err := w.Write([]byte("header")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	b := bam.NewIndexBuilder(int32(len(testReferences)))
	var addresses []bgzf.Address
	for _, read := range reads {
		record := bamtest.Record(read)
		r, err := bam.ParseRecord(record)
		if err != nil {
			t.Fatalf("ParseRecord() failed: %v", err)
		}
		start := w.Address()
		if _, err := w.Write(record); err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
		if err := b.Add(r, start, w.Address()); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
		addresses = append(addresses, start)
	}
	addresses = append(addresses, w.Address())

	if err := b.Add(bam.Record{ReferenceID: 7}, 0, 0); err == nil {
		t.Errorf("Add() on an unknown reference: expected error, not success")
	}
	if err := b.Add(bam.Record{ReferenceID: -1, Position: -1}, 0, 0); err != nil {
		t.Errorf("Add() of an unmapped record failed: %v", err)
	}

	var index bytes.Buffer
	if _, err := b.WriteTo(&index); err != nil {
		t.Fatalf("WriteTo() failed: %v", err)
	}

	// The two overlapping reads share a bin and form one chunk.
	region := genomics.Region{ReferenceID: 1, Start: 70900000, End: 70900300}
	chunks, err := bam.Read(bytes.NewReader(index.Bytes()), region)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	var got []string
	for _, chunk := range chunks[1:] {
		got = append(got, chunk.String())
	}
	want := []string{(&bgzf.Chunk{Start: addresses[0], End: addresses[2]}).String()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Chunks mismatch (-want +got):\n%s", diff)
	}
	if got, want := chunks[0].End, addresses[0]; got != want {
		t.Errorf("Wrong header chunk end: got %s, want %s", got, want)
	}
}
