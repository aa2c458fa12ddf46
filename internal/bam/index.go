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

package bam

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/googlegenomics/paraviewer/internal/bgzf"
)

// IndexBuilder accumulates the BAI index of a coordinate sorted BAM file as
// its records are written.
type IndexBuilder struct {
	references []referenceIndex
}

type referenceIndex struct {
	bins   map[uint32][]bgzf.Chunk
	linear []bgzf.Address
}

// NewIndexBuilder returns a builder for a file with the given number of
// references.
func NewIndexBuilder(references int32) *IndexBuilder {
	b := &IndexBuilder{references: make([]referenceIndex, references)}
	for i := range b.references {
		b.references[i].bins = make(map[uint32][]bgzf.Chunk)
	}
	return b
}

// Add records that r occupies [start, end) in the compressed file.  Unmapped
// records are not indexed.
func (b *IndexBuilder) Add(r Record, start, end bgzf.Address) error {
	if r.ReferenceID < 0 || r.Position < 0 {
		return nil
	}
	if int(r.ReferenceID) >= len(b.references) {
		return fmt.Errorf("record on reference %d of %d", r.ReferenceID, len(b.references))
	}
	ref := &b.references[r.ReferenceID]

	bin := uint32(r.Bin)
	chunks := ref.bins[bin]
	if n := len(chunks); n > 0 && chunks[n-1].End == start {
		chunks[n-1].End = end
	} else {
		chunks = append(chunks, bgzf.Chunk{Start: start, End: end})
	}
	ref.bins[bin] = chunks

	last := r.End
	if last <= r.Position {
		last = r.Position + 1
	}
	for w := int(r.Position / linearWindowSize); w <= int((last-1)/linearWindowSize); w++ {
		for len(ref.linear) <= w {
			ref.linear = append(ref.linear, 0)
		}
		if ref.linear[w] == 0 || start < ref.linear[w] {
			ref.linear[w] = start
		}
	}
	return nil
}

// WriteTo writes the index in BAI format.  Empty linear index windows take
// the offset of the next populated window.
func (b *IndexBuilder) WriteTo(w io.Writer) (int64, error) {
	var out bytes.Buffer
	out.WriteString(baiMagic)
	binary.Write(&out, binary.LittleEndian, int32(len(b.references)))
	for _, ref := range b.references {
		ids := make([]uint32, 0, len(ref.bins))
		for id := range ref.bins {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		binary.Write(&out, binary.LittleEndian, int32(len(ids)))
		for _, id := range ids {
			chunks := ref.bins[id]
			binary.Write(&out, binary.LittleEndian, id)
			binary.Write(&out, binary.LittleEndian, int32(len(chunks)))
			for _, chunk := range chunks {
				binary.Write(&out, binary.LittleEndian, uint64(chunk.Start))
				binary.Write(&out, binary.LittleEndian, uint64(chunk.End))
			}
		}

		linear := append([]bgzf.Address(nil), ref.linear...)
		for i := len(linear) - 2; i >= 0; i-- {
			if linear[i] == 0 {
				linear[i] = linear[i+1]
			}
		}
		binary.Write(&out, binary.LittleEndian, int32(len(linear)))
		for _, offset := range linear {
			binary.Write(&out, binary.LittleEndian, uint64(offset))
		}
	}
	n, err := w.Write(out.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("writing index: %w", err)
	}
	return int64(n), nil
}
