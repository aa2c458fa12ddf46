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

// Package bamtest builds small synthetic BAM and BAI files for tests.  Each
// alignment record is stored in its own BGZF block, so that index chunks line
// up with block boundaries.
package bamtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/googlegenomics/paraviewer/internal/bam"
	"github.com/googlegenomics/paraviewer/internal/bgzf"
)

// Read is an alignment without sequence occupying [Start, End) on Reference.
// A non-empty Haplotype is stored as an HP:Z tag.
type Read struct {
	Reference int32
	Start     uint32
	End       uint32
	Name      string
	Haplotype string
}

// Record returns the encoded alignment record of read, including its
// block_size prefix.
func Record(read Read) []byte {
	name := read.Name
	if name == "" {
		name = "*"
	}
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, read.Reference)
	binary.Write(&body, binary.LittleEndian, int32(read.Start))
	body.WriteByte(byte(len(name) + 1))
	body.WriteByte(60) // mapq
	binary.Write(&body, binary.LittleEndian, uint16(regionToBin(read.Start, read.End)))
	binary.Write(&body, binary.LittleEndian, uint16(1)) // one CIGAR operation
	binary.Write(&body, binary.LittleEndian, uint16(0)) // flag
	binary.Write(&body, binary.LittleEndian, int32(0))  // no sequence
	binary.Write(&body, binary.LittleEndian, int32(-1))
	binary.Write(&body, binary.LittleEndian, int32(-1))
	binary.Write(&body, binary.LittleEndian, int32(0))
	body.WriteString(name)
	body.WriteByte(0)
	binary.Write(&body, binary.LittleEndian, (read.End-read.Start)<<4) // M
	if read.Haplotype != "" {
		body.WriteString("HPZ")
		body.WriteString(read.Haplotype)
		body.WriteByte(0)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, int32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

type indexedChunk struct {
	bin        uint32
	start, end bgzf.Address
}

// Build returns the encoded BAM and BAI for refs and reads.  Reads must be
// sorted by reference and start.
func Build(refs []bam.Reference, reads []Read) ([]byte, []byte, error) {
	var header bytes.Buffer
	header.WriteString("BAM\x01")
	text := "@HD\tVN:1.6\tSO:coordinate\n"
	binary.Write(&header, binary.LittleEndian, int32(len(text)))
	header.WriteString(text)
	binary.Write(&header, binary.LittleEndian, int32(len(refs)))
	for _, ref := range refs {
		binary.Write(&header, binary.LittleEndian, int32(len(ref.Name)+1))
		header.WriteString(ref.Name)
		header.WriteByte(0)
		binary.Write(&header, binary.LittleEndian, ref.Length)
	}

	var out bytes.Buffer
	block, err := bgzf.EncodeBlock(header.Bytes())
	if err != nil {
		return nil, nil, err
	}
	out.Write(block)

	perReference := make([][]indexedChunk, len(refs))
	linear := make([]map[uint32]bgzf.Address, len(refs))
	for i := range linear {
		linear[i] = make(map[uint32]bgzf.Address)
	}
	for _, read := range reads {
		start := bgzf.NewAddress(uint64(out.Len()), 0)
		block, err := bgzf.EncodeBlock(Record(read))
		if err != nil {
			return nil, nil, err
		}
		out.Write(block)
		end := bgzf.NewAddress(uint64(out.Len()), 0)
		perReference[read.Reference] = append(perReference[read.Reference], indexedChunk{
			bin:   regionToBin(read.Start, read.End),
			start: start,
			end:   end,
		})
		for w := read.Start >> 14; w <= (read.End-1)>>14; w++ {
			if current, ok := linear[read.Reference][w]; !ok || start < current {
				linear[read.Reference][w] = start
			}
		}
	}
	out.Write(bgzf.EOFMarker)

	var index bytes.Buffer
	index.WriteString("BAI\x01")
	binary.Write(&index, binary.LittleEndian, int32(len(refs)))
	for i := range refs {
		chunks := perReference[i]
		binary.Write(&index, binary.LittleEndian, int32(len(chunks)))
		for _, chunk := range chunks {
			binary.Write(&index, binary.LittleEndian, chunk.bin)
			binary.Write(&index, binary.LittleEndian, int32(1))
			binary.Write(&index, binary.LittleEndian, uint64(chunk.start))
			binary.Write(&index, binary.LittleEndian, uint64(chunk.end))
		}
		var windows uint32
		for w := range linear[i] {
			if w+1 > windows {
				windows = w + 1
			}
		}
		binary.Write(&index, binary.LittleEndian, int32(windows))
		for w := uint32(0); w < windows; w++ {
			binary.Write(&index, binary.LittleEndian, uint64(linear[i][w]))
		}
	}
	return out.Bytes(), index.Bytes(), nil
}

// WriteFiles builds a BAM and writes it to dir/name with its index at
// dir/name.bai, returning both paths.
func WriteFiles(t testing.TB, dir, name string, refs []bam.Reference, reads []Read) (string, string) {
	t.Helper()
	data, index, err := Build(refs, reads)
	if err != nil {
		t.Fatalf("Building BAM: %v", err)
	}
	bamPath := filepath.Join(dir, name)
	if err := os.WriteFile(bamPath, data, 0o644); err != nil {
		t.Fatalf("Writing BAM: %v", err)
	}
	if err := os.WriteFile(bamPath+".bai", index, 0o644); err != nil {
		t.Fatalf("Writing BAI: %v", err)
	}
	return bamPath, bamPath + ".bai"
}

// regionToBin is reg2bin from the SAM specification.
func regionToBin(start, end uint32) uint32 {
	end--
	switch {
	case start>>14 == end>>14:
		return ((1<<15)-1)/7 + start>>14
	case start>>17 == end>>17:
		return ((1<<12)-1)/7 + start>>17
	case start>>20 == end>>20:
		return ((1<<9)-1)/7 + start>>20
	case start>>23 == end>>23:
		return ((1<<6)-1)/7 + start>>23
	case start>>26 == end>>26:
		return ((1<<3)-1)/7 + start>>26
	}
	return 0
}
