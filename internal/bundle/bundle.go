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

// Package bundle slices the reads overlapping one genomic interval out of an
// indexed BAM file into a standalone indexed BAM file.  The BAI chunks
// covering the interval are read at BGZF block granularity, the way htsget
// serves block ranges, and their records are re-encoded subject to a per
// haplotype read cap.
package bundle

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/googlegenomics/paraviewer/internal/bam"
	"github.com/googlegenomics/paraviewer/internal/bgzf"
	"github.com/googlegenomics/paraviewer/internal/genomics"
)

// RangeReader opens length bytes of an object starting at offset.  Reads
// past the end of the object are truncated.
type RangeReader interface {
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// File adapts an open file to RangeReader.
type File struct {
	*os.File
}

// NewRangeReader returns a reader over a section of the file.  Closing it does
// not close the underlying file.
func (f File) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(io.NewSectionReader(f.File, offset, length)), nil
}

// UnknownHaplotype groups the reads that carry no HP tag for the read cap.
const UnknownHaplotype = "unknown"

// Stats describes a written bundle.
type Stats struct {
	// Bytes is the size of the BAM file.
	Bytes int64
	// Reads is the number of records kept.
	Reads int
	// Capped is the number of records dropped by the read cap.
	Capped int
}

// Slice writes a BAM file to w holding the header of the BAM at bamPath and
// the reads in every BGZF chunk that the index at baiPath lists for interval.
// When limit is positive only the first limit reads of each HP tag value are
// kept; reads without the tag count against UnknownHaplotype.  The BAI of the
// output is written to index unless it is nil.  Reads are not trimmed to the
// interval, so the output may contain some reads that only overlap
// neighbouring bins.
func Slice(ctx context.Context, bamPath, baiPath string, interval genomics.Interval, limit int, w, index io.Writer) (Stats, error) {
	var stats Stats
	data, err := os.Open(bamPath)
	if err != nil {
		return stats, fmt.Errorf("opening BAM: %w", err)
	}
	defer data.Close()

	id, err := bam.GetReferenceID(data, interval.Chrom)
	if err != nil {
		return stats, fmt.Errorf("resolving %s in %s: %w", interval.Chrom, bamPath, err)
	}

	bai, err := os.Open(baiPath)
	if err != nil {
		return stats, fmt.Errorf("opening index: %w", err)
	}
	defer bai.Close()

	region := genomics.Region{ReferenceID: id, Start: interval.Start, End: interval.End}
	// An empty interval would select the whole reference.
	if region.End <= region.Start {
		region.End = region.Start + 1
	}
	chunks, err := bam.Read(bufio.NewReader(bai), region)
	if err != nil {
		return stats, fmt.Errorf("reading index %s: %w", baiPath, err)
	}

	var payload bytes.Buffer
	if chunks[0].End == bgzf.LastAddress {
		// The index lists no reads at all, so the file is only a header.
		if err := readAll(data, &payload); err != nil {
			return stats, err
		}
	} else {
		src := File{data}
		for _, chunk := range bgzf.Merge(chunks, math.MaxUint64) {
			if err := readChunk(ctx, src, *chunk, &payload); err != nil {
				return stats, fmt.Errorf("reading chunk %s: %w", chunk, err)
			}
		}
	}

	header, references, err := bam.HeaderLength(payload.Bytes())
	if err != nil {
		return stats, fmt.Errorf("decoding header of %s: %w", bamPath, err)
	}
	out := bgzf.NewWriter(w)
	if _, err := out.Write(payload.Bytes()[:header]); err != nil {
		return stats, err
	}
	builder := bam.NewIndexBuilder(references)
	counts := make(map[string]int)
	for rest := payload.Bytes()[header:]; len(rest) > 0; {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		record, err := bam.ParseRecord(rest)
		if err != nil {
			return stats, fmt.Errorf("decoding read %d of %s: %w", stats.Reads+stats.Capped+1, bamPath, err)
		}
		raw := rest[:record.Size]
		rest = rest[record.Size:]

		if limit > 0 {
			key := record.Haplotype
			if key == "" {
				key = UnknownHaplotype
			}
			if counts[key] >= limit {
				stats.Capped++
				continue
			}
			counts[key]++
		}
		start := out.Address()
		if _, err := out.Write(raw); err != nil {
			return stats, err
		}
		if err := builder.Add(record, start, out.Address()); err != nil {
			return stats, err
		}
		stats.Reads++
	}
	if err := out.Close(); err != nil {
		return stats, err
	}
	stats.Bytes = out.Written()

	if index != nil {
		if _, err := builder.WriteTo(index); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// SliceFile is Slice writing to a new file at outPath with its index at
// outPath.bai.  Partially written files are removed on error.
func SliceFile(ctx context.Context, bamPath, baiPath string, interval genomics.Interval, limit int, outPath string) (Stats, error) {
	indexPath := outPath + ".bai"
	out, err := os.Create(outPath)
	if err != nil {
		return Stats{}, fmt.Errorf("creating bundle: %w", err)
	}
	index, err := os.Create(indexPath)
	if err != nil {
		out.Close()
		os.Remove(outPath)
		return Stats{}, fmt.Errorf("creating bundle index: %w", err)
	}
	stats, err := Slice(ctx, bamPath, baiPath, interval, limit, out, index)
	for _, f := range []*os.File{out, index} {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		os.Remove(outPath)
		os.Remove(indexPath)
		return Stats{}, err
	}
	return stats, nil
}

// readAll appends the whole uncompressed content of data to dst.
func readAll(data io.ReadSeeker, dst *bytes.Buffer) error {
	if _, err := data.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding BAM: %w", err)
	}
	r, err := gzip.NewReader(data)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("decompressing BAM: %w", err)
	}
	return nil
}

// readChunk appends the uncompressed bytes of chunk to dst.  The first and
// last blocks are cut at the chunk's data offsets; blocks in between are
// copied whole.
func readChunk(ctx context.Context, src RangeReader, chunk bgzf.Chunk, dst *bytes.Buffer) error {
	start, end := chunk.Start, chunk.End
	head, tail := int64(start.BlockOffset()), int64(end.BlockOffset())
	if tail < head {
		return fmt.Errorf("invalid chunk %s", &chunk)
	}

	r, err := src.NewRangeReader(ctx, head, tail-head+bgzf.MaximumBlockSize)
	if err != nil {
		return fmt.Errorf("opening range: %w", err)
	}
	defer r.Close()

	// DecodeBlock must not read past the end of each block.
	br := bufio.NewReader(r)
	for offset := head; offset <= tail; {
		if err := ctx.Err(); err != nil {
			return err
		}
		if offset == tail && end.DataOffset() == 0 {
			break
		}
		decoded, length, err := bgzf.DecodeBlock(br)
		if err != nil {
			return fmt.Errorf("decoding block at %d: %w", offset, err)
		}

		lo, hi := 0, len(decoded)
		if offset == tail {
			hi = int(end.DataOffset())
		}
		if offset == head {
			lo = int(start.DataOffset())
		}
		if lo > hi || hi > len(decoded) {
			return fmt.Errorf("block at %d: offsets [%d:%d] out of range (%d bytes)", offset, lo, hi, len(decoded))
		}
		dst.Write(decoded[lo:hi])
		offset += int64(length)
	}
	return nil
}
