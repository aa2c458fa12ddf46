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

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"fmt"
	"strconv"
	"strings"
)

// AllMappedReads defines a Region that matches all mapped reads.
var AllMappedReads = Region{ReferenceID: -1}

// Region defines a region of genomic interest inside an indexed file.
type Region struct {
	// ReferenceID specifies the reference to match.  If it is negative, any
	// reference matches the region.
	ReferenceID int32
	// Start and End specify the open range (in base pairs) relative to the
	// reference.  If End is zero, it is treated as though it was set to the last
	// possible read position.
	Start, End uint32
}

func (region Region) String() string {
	return fmt.Sprintf("[region:%d, start:%d, end:%d]", region.ReferenceID, region.Start, region.End)
}

// Interval is a named-reference coordinate range such as chr5:70895669-70958942.
type Interval struct {
	Chrom      string
	Start, End uint32
}

// ParseInterval parses "chrom:start-end".  Thousands separators in the
// coordinates are accepted.
func ParseInterval(input string) (Interval, error) {
	chrom, span, ok := strings.Cut(strings.TrimSpace(input), ":")
	if !ok || chrom == "" {
		return Interval{}, fmt.Errorf("interval %q: want chrom:start-end", input)
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return Interval{}, fmt.Errorf("interval %q: want chrom:start-end", input)
	}
	start, err := strconv.ParseUint(strings.ReplaceAll(first, ",", ""), 10, 32)
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: parsing start: %w", input, err)
	}
	end, err := strconv.ParseUint(strings.ReplaceAll(last, ",", ""), 10, 32)
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q: parsing end: %w", input, err)
	}
	if end < start {
		return Interval{}, fmt.Errorf("interval %q: start > end", input)
	}
	return Interval{Chrom: chrom, Start: uint32(start), End: uint32(end)}, nil
}

// Pad widens the interval by n bases on each side, flooring the start at 0.
func (i Interval) Pad(n uint32) Interval {
	start := uint32(0)
	if i.Start > n {
		start = i.Start - n
	}
	return Interval{Chrom: i.Chrom, Start: start, End: i.End + n}
}

func (i Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", i.Chrom, i.Start, i.End)
}

// Less orders intervals by chromosome name, then start, then end.
func (i Interval) Less(other Interval) bool {
	if i.Chrom != other.Chrom {
		return i.Chrom < other.Chrom
	}
	if i.Start != other.Start {
		return i.Start < other.Start
	}
	return i.End < other.End
}
