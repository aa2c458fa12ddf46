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
	"errors"
	"fmt"
	"math"
	"strconv"
)

// The fixed length part of an alignment record, after block_size.
const fixedRecordLength = 32

var errShortRecord = errors.New("record is truncated")

// Record holds the fields of one alignment record needed to index it and to
// group it by haplotype.  Size counts the block_size prefix.
type Record struct {
	ReferenceID int32
	Position    int32
	// End is one past the last reference base covered by the alignment.
	End       int32
	Bin       uint16
	Haplotype string
	Size      int
}

// HeaderLength returns the length of the uncompressed BAM header at the start
// of data and the number of references it declares.
func HeaderLength(data []byte) (int, int32, error) {
	if !bytes.HasPrefix(data, []byte(bamMagic)) {
		return 0, 0, errors.New("missing BAM magic")
	}
	offset := len(bamMagic)
	text, err := int32At(data, offset)
	if err != nil || text < 0 || text > maximumTextLength {
		return 0, 0, fmt.Errorf("invalid SAM header length %d", text)
	}
	offset += 4 + int(text)
	count, err := int32At(data, offset)
	if err != nil || count < 0 {
		return 0, 0, fmt.Errorf("invalid reference count %d", count)
	}
	offset += 4
	for i := int32(0); i < count; i++ {
		name, err := int32At(data, offset)
		if err != nil || name < 1 || name > maximumNameLength {
			return 0, 0, fmt.Errorf("invalid reference %d name length %d", i, name)
		}
		offset += 4 + int(name) + 4
		if offset > len(data) {
			return 0, 0, fmt.Errorf("reference %d: %w", i, errShortRecord)
		}
	}
	return offset, count, nil
}

// ParseRecord decodes the alignment record at the start of data.  The HP tag
// is read whatever its value type; numeric values are formatted in decimal.
func ParseRecord(data []byte) (Record, error) {
	size, err := int32At(data, 0)
	if err != nil {
		return Record{}, err
	}
	if size < fixedRecordLength || int(size) > len(data)-4 {
		return Record{}, fmt.Errorf("invalid record length %d with %d bytes left", size, len(data)-4)
	}
	body := data[4 : 4+size]
	r := Record{
		ReferenceID: int32(binary.LittleEndian.Uint32(body[0:])),
		Position:    int32(binary.LittleEndian.Uint32(body[4:])),
		Bin:         binary.LittleEndian.Uint16(body[10:]),
		Size:        int(size) + 4,
	}
	nameLength := int(body[8])
	cigarCount := int(binary.LittleEndian.Uint16(body[12:]))
	seqLength := int(int32(binary.LittleEndian.Uint32(body[16:])))
	if seqLength < 0 {
		return Record{}, fmt.Errorf("invalid sequence length %d", seqLength)
	}

	cigar := fixedRecordLength + nameLength
	aux := cigar + 4*cigarCount
	if aux > len(body) {
		return Record{}, errShortRecord
	}
	var span int32
	for i := cigar; i < aux; i += 4 {
		op := binary.LittleEndian.Uint32(body[i:])
		switch op & 0xf {
		case 0, 2, 3, 7, 8: // M, D, N, = and X consume the reference.
			span += int32(op >> 4)
		}
	}
	r.End = r.Position + span

	aux += (seqLength+1)/2 + seqLength
	if aux > len(body) {
		return Record{}, errShortRecord
	}
	hp, err := findTag(body[aux:], "HP")
	if err != nil {
		return Record{}, fmt.Errorf("reading tags: %w", err)
	}
	r.Haplotype = hp
	return r, nil
}

// findTag returns the value of tag in the auxiliary data of a record, or the
// empty string when the tag is absent.
func findTag(aux []byte, tag string) (string, error) {
	for len(aux) > 0 {
		if len(aux) < 3 {
			return "", errShortRecord
		}
		name, kind := string(aux[:2]), aux[2]
		aux = aux[3:]

		var n int
		switch kind {
		case 'Z', 'H':
			end := bytes.IndexByte(aux, 0)
			if end < 0 {
				return "", fmt.Errorf("tag %s: unterminated string", name)
			}
			if name == tag {
				return string(aux[:end]), nil
			}
			n = end + 1
		case 'B':
			if len(aux) < 5 {
				return "", errShortRecord
			}
			width := valueWidth(aux[0])
			if width == 0 {
				return "", fmt.Errorf("tag %s: invalid array type %q", name, aux[0])
			}
			n = 5 + width*int(binary.LittleEndian.Uint32(aux[1:]))
		default:
			n = valueWidth(kind)
			if n == 0 {
				return "", fmt.Errorf("tag %s: invalid type %q", name, kind)
			}
		}
		if n > len(aux) {
			return "", errShortRecord
		}
		if name == tag {
			return formatValue(kind, aux[:n]), nil
		}
		aux = aux[n:]
	}
	return "", nil
}

func valueWidth(kind byte) int {
	switch kind {
	case 'A', 'c', 'C':
		return 1
	case 's', 'S':
		return 2
	case 'i', 'I', 'f':
		return 4
	}
	return 0
}

func formatValue(kind byte, value []byte) string {
	switch kind {
	case 'A':
		return string(value)
	case 'c':
		return strconv.Itoa(int(int8(value[0])))
	case 'C':
		return strconv.Itoa(int(value[0]))
	case 's':
		return strconv.Itoa(int(int16(binary.LittleEndian.Uint16(value))))
	case 'S':
		return strconv.Itoa(int(binary.LittleEndian.Uint16(value)))
	case 'i':
		return strconv.Itoa(int(int32(binary.LittleEndian.Uint32(value))))
	case 'I':
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(value)), 10)
	case 'f':
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(value))), 'g', -1, 32)
	}
	return fmt.Sprintf("%x", value)
}

func int32At(data []byte, offset int) (int32, error) {
	if offset < 0 || offset+4 > len(data) {
		return 0, errShortRecord
	}
	return int32(binary.LittleEndian.Uint32(data[offset:])), nil
}
