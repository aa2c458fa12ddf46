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

package bundle

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/googlegenomics/paraviewer/internal/bam"
	"github.com/googlegenomics/paraviewer/internal/bam/bamtest"
	"github.com/googlegenomics/paraviewer/internal/bgzf"
	"github.com/googlegenomics/paraviewer/internal/genomics"
)

var (
	testReferences = []bam.Reference{
		{Name: "chr1", Length: 248956422},
		{Name: "chr5", Length: 181538259},
	}
	testReads = []bamtest.Read{
		{Reference: 0, Start: 1000, End: 1150, Name: "read-A"},
		{Reference: 1, Start: 70900000, End: 70900150, Name: "read-B", Haplotype: "smn1_hap1"},
		{Reference: 1, Start: 70950000, End: 70950150, Name: "read-C", Haplotype: "smn1_hap2"},
		{Reference: 1, Start: 90000000, End: 90000150, Name: "read-D"},
	}
)

type memorySource []byte

func (m memorySource) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return io.NopCloser(io.NewSectionReader(bytes.NewReader(m), offset, length)), nil
}

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip.NewReader() failed: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Decompressing: %v", err)
	}
	return out
}

func records(reads ...bamtest.Read) string {
	var out []byte
	for _, read := range reads {
		out = append(out, bamtest.Record(read)...)
	}
	return string(out)
}

func TestSlice(t *testing.T) {
	dir := t.TempDir()
	bamPath, baiPath := bamtest.WriteFiles(t, dir, "S1.paraphase.bam", testReferences, testReads)

	original, err := os.ReadFile(bamPath)
	if err != nil {
		t.Fatalf("Reading BAM: %v", err)
	}
	header, _, err := bgzf.DecodeBlock(bytes.NewReader(original))
	if err != nil {
		t.Fatalf("Decoding header block: %v", err)
	}

	testCases := []struct {
		name     string
		interval genomics.Interval
		reads    []bamtest.Read
	}{
		{"two reads", genomics.Interval{Chrom: "chr5", Start: 70895669, End: 70958942}, testReads[1:3]},
		{"one read", genomics.Interval{Chrom: "chr5", Start: 70949000, End: 70951000}, testReads[2:3]},
		{"alias", genomics.Interval{Chrom: "1", Start: 900, End: 1200}, testReads[:1]},
		{"no reads", genomics.Interval{Chrom: "chr5", Start: 10000000, End: 10001000}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out, index bytes.Buffer
			stats, err := Slice(context.Background(), bamPath, baiPath, tc.interval, 500, &out, &index)
			if err != nil {
				t.Fatalf("Slice() failed: %v", err)
			}
			if got, want := stats.Bytes, int64(out.Len()); got != want {
				t.Errorf("Wrong byte count: got %d, want %d", got, want)
			}
			if got, want := stats.Reads, len(tc.reads); got != want {
				t.Errorf("Wrong read count: got %d, want %d", got, want)
			}
			if !bytes.HasSuffix(out.Bytes(), bgzf.EOFMarker) {
				t.Errorf("Output does not end with the BGZF EOF marker")
			}
			if err := bgzf.Sniff(bytes.NewReader(out.Bytes())); err != nil {
				t.Errorf("Output is not BGZF: %v", err)
			}
			if got, want := string(inflate(t, out.Bytes())), string(header)+records(tc.reads...); got != want {
				t.Errorf("Wrong content: got %q, want %q", got, want)
			}
			if err := bam.CheckIndex(bytes.NewReader(index.Bytes())); err != nil {
				t.Errorf("Output index is not BAI: %v", err)
			}
		})
	}
}

func TestSlice_ReadCap(t *testing.T) {
	dir := t.TempDir()
	read := func(start uint32, name, haplotype string) bamtest.Read {
		return bamtest.Read{Reference: 1, Start: start, End: start + 150, Name: name, Haplotype: haplotype}
	}
	reads := []bamtest.Read{
		read(70900000, "a1", "smn1_hap1"),
		read(70900100, "u1", ""),
		read(70900200, "a2", "smn1_hap1"),
		read(70900300, "b1", "smn1_hap2"),
		read(70900400, "a3", "smn1_hap1"),
		read(70900500, "u2", ""),
		read(70900600, "u3", ""),
	}
	bamPath, baiPath := bamtest.WriteFiles(t, dir, "S1.paraphase.bam", testReferences, reads)
	interval := genomics.Interval{Chrom: "chr5", Start: 70899000, End: 70901000}

	testCases := []struct {
		name   string
		limit  int
		kept   []bamtest.Read
		capped int
	}{
		{"no cap", 0, reads, 0},
		{"cap above counts", 5, reads, 0},
		{"cap of two", 2, []bamtest.Read{reads[0], reads[1], reads[2], reads[3], reads[5]}, 2},
		{"cap of one", 1, []bamtest.Read{reads[0], reads[1], reads[3]}, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			stats, err := Slice(context.Background(), bamPath, baiPath, interval, tc.limit, &out, nil)
			if err != nil {
				t.Fatalf("Slice() failed: %v", err)
			}
			if got, want := stats.Reads, len(tc.kept); got != want {
				t.Errorf("Wrong read count: got %d, want %d", got, want)
			}
			if got, want := stats.Capped, tc.capped; got != want {
				t.Errorf("Wrong capped count: got %d, want %d", got, want)
			}
			content := inflate(t, out.Bytes())
			header, _, err := bam.HeaderLength(content)
			if err != nil {
				t.Fatalf("HeaderLength() failed: %v", err)
			}
			if got, want := string(content[header:]), records(tc.kept...); got != want {
				t.Errorf("Wrong reads: got %q, want %q", got, want)
			}
		})
	}
}

func TestSlice_IndexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bamPath, baiPath := bamtest.WriteFiles(t, dir, "S1.paraphase.bam", testReferences, testReads)

	out := filepath.Join(dir, "S1_all.bam")
	whole := genomics.Interval{Chrom: "chr5", Start: 1, End: 181538259}
	if _, err := SliceFile(context.Background(), bamPath, baiPath, whole, 0, out); err != nil {
		t.Fatalf("SliceFile() failed: %v", err)
	}

	// Slicing the bundle through its own index selects the same reads as
	// slicing the source.
	interval := genomics.Interval{Chrom: "chr5", Start: 70949000, End: 70951000}
	var got bytes.Buffer
	if _, err := Slice(context.Background(), out, out+".bai", interval, 0, &got, nil); err != nil {
		t.Fatalf("Slice() of bundle failed: %v", err)
	}
	content := inflate(t, got.Bytes())
	header, _, err := bam.HeaderLength(content)
	if err != nil {
		t.Fatalf("HeaderLength() failed: %v", err)
	}
	if got, want := string(content[header:]), records(testReads[2]); got != want {
		t.Errorf("Wrong reads: got %q, want %q", got, want)
	}
}

func TestSlice_Errors(t *testing.T) {
	dir := t.TempDir()
	bamPath, baiPath := bamtest.WriteFiles(t, dir, "S1.paraphase.bam", testReferences, testReads)
	interval := genomics.Interval{Chrom: "chr5", Start: 1, End: 2}

	testCases := []struct {
		name     string
		bam, bai string
		interval genomics.Interval
	}{
		{"missing BAM", filepath.Join(dir, "missing.bam"), baiPath, interval},
		{"missing index", bamPath, filepath.Join(dir, "missing.bai"), interval},
		{"unknown reference", bamPath, baiPath, genomics.Interval{Chrom: "chr9", Start: 1, End: 2}},
		{"index is not BAI", bamPath, bamPath, interval},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Slice(context.Background(), tc.bam, tc.bai, tc.interval, 500, io.Discard, nil); err == nil {
				t.Fatalf("Slice(): expected error, not success")
			}
		})
	}
}

func TestSliceFile(t *testing.T) {
	dir := t.TempDir()
	bamPath, baiPath := bamtest.WriteFiles(t, dir, "S1.paraphase.bam", testReferences, testReads)

	out := filepath.Join(dir, "S1_smn1.bam")
	interval := genomics.Interval{Chrom: "chr5", Start: 70895669, End: 70958942}
	stats, err := SliceFile(context.Background(), bamPath, baiPath, interval, 500, out)
	if err != nil {
		t.Fatalf("SliceFile() failed: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if got, want := info.Size(), stats.Bytes; got != want {
		t.Errorf("Wrong file size: got %d, want %d", got, want)
	}
	index, err := os.Open(out + ".bai")
	if err != nil {
		t.Fatalf("Opening bundle index: %v", err)
	}
	defer index.Close()
	if err := bam.CheckIndex(index); err != nil {
		t.Errorf("Bundle index is not BAI: %v", err)
	}

	bad := filepath.Join(dir, "S1_bad.bam")
	if _, err := SliceFile(context.Background(), bamPath, baiPath, genomics.Interval{Chrom: "chrZ"}, 500, bad); err == nil {
		t.Fatalf("SliceFile(): expected error, not success")
	}
	for _, path := range []string{bad, bad + ".bai"} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Partial output %s was not removed: %v", path, err)
		}
	}
}

func TestReadChunk(t *testing.T) {
	first, err := bgzf.EncodeBlock([]byte("abcdef"))
	if err != nil {
		t.Fatalf("EncodeBlock() failed: %v", err)
	}
	second, err := bgzf.EncodeBlock([]byte("ghijkl"))
	if err != nil {
		t.Fatalf("EncodeBlock() failed: %v", err)
	}
	third, err := bgzf.EncodeBlock([]byte("mnopqr"))
	if err != nil {
		t.Fatalf("EncodeBlock() failed: %v", err)
	}
	src := memorySource(bytes.Join([][]byte{first, second, third}, nil))
	b2 := uint64(len(first))
	b3 := b2 + uint64(len(second))

	testCases := []struct {
		name  string
		chunk bgzf.Chunk
		want  string
	}{
		{"within one block", bgzf.Chunk{Start: bgzf.NewAddress(0, 1), End: bgzf.NewAddress(0, 4)}, "bcd"},
		{"across two blocks", bgzf.Chunk{Start: bgzf.NewAddress(0, 2), End: bgzf.NewAddress(b2, 3)}, "cdefghi"},
		{"whole middle block", bgzf.Chunk{Start: bgzf.NewAddress(b2, 0), End: bgzf.NewAddress(b3, 0)}, "ghijkl"},
		{"three blocks", bgzf.Chunk{Start: bgzf.NewAddress(0, 5), End: bgzf.NewAddress(b3, 1)}, "fghijklm"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got bytes.Buffer
			if err := readChunk(context.Background(), src, tc.chunk, &got); err != nil {
				t.Fatalf("readChunk() failed: %v", err)
			}
			if got.String() != tc.want {
				t.Errorf("Wrong data: got %q, want %q", got.String(), tc.want)
			}
		})
	}

	t.Run("offset past block end", func(t *testing.T) {
		chunk := bgzf.Chunk{Start: bgzf.NewAddress(0, 0), End: bgzf.NewAddress(0, 9)}
		if err := readChunk(context.Background(), src, chunk, &bytes.Buffer{}); err == nil {
			t.Fatalf("readChunk(): expected error, not success")
		}
	})
}
