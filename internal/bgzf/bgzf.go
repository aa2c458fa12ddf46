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

// Package bgzf reads and writes the blocked gzip container used by BAM files.
package bgzf

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// LastAddress is the maximum valid BGZF address.
const LastAddress = Address(0xffffffffffffffff)

// MaximumBlockSize is the maximum BGZF block size.
const MaximumBlockSize = 65536

// maximumPayload keeps the compressed form of incompressible data under
// MaximumBlockSize once the gzip framing is added.
const maximumPayload = 0xff00

// EOFMarker is the empty block that terminates every well-formed BGZF file.
var EOFMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// ErrNotBGZF is returned by Sniff when the input does not start with a BGZF
// block header.
var ErrNotBGZF = errors.New("not a BGZF file")

// Address stores a BGZF "virtual address".  The lower 16 bits store the data
// offset inside the uncompressed stream and upper 48 bits store the block
// offset inside the compressed archive set.
type Address uint64

// BlockOffset returns the offset to the start of the compressed block.
func (v Address) BlockOffset() uint64 {
	return uint64(v >> 16)
}

// DataOffset returns the offset to the data in the uncompressed block.
func (v Address) DataOffset() uint16 {
	return uint16(v & 0xffff)
}

func (v Address) String() string {
	return strconv.FormatUint(uint64(v), 16)
}

// ParseAddress parses the hexadecimal form produced by Address.String.
func ParseAddress(input string) (Address, error) {
	v, err := strconv.ParseUint(input, 16, 64)
	return Address(v), err
}

// NewAddress returns a new Address with the provided offsets.
func NewAddress(blockOffset uint64, dataOffset uint16) Address {
	return Address(blockOffset<<16 | uint64(dataOffset))
}

// Chunk specifies a region from Start to End (inclusive) inside a BGZF file.
type Chunk struct {
	Start, End Address
}

func (v *Chunk) String() string {
	return fmt.Sprintf("[%s-%s]", v.Start, v.End)
}

// Merge sorts input and joins intersecting chunks, never producing a chunk
// whose estimated compressed size exceeds sizeLimit.
func Merge(input []*Chunk, sizeLimit uint64) []*Chunk {
	if len(input) == 0 {
		return nil
	}
	sort.Slice(input, func(i, j int) bool {
		return input[i].Start < input[j].Start
	})

	var (
		merged = []*Chunk{input[0]}
		output = merged[0]
	)
	for _, next := range input[1:] {
		var size uint64
		if next.End.BlockOffset() == output.Start.BlockOffset() {
			size = uint64(next.End.DataOffset() - output.Start.DataOffset())
		} else {
			// Estimate using the maximum size for the last block.
			size = next.End.BlockOffset() - output.Start.BlockOffset() + MaximumBlockSize
		}

		if next.Start <= output.End && size <= sizeLimit {
			if output.End < next.End {
				output.End = next.End
			}
			continue
		}
		merged = append(merged, next)
		output = next
	}
	return merged
}

// Sniff reports whether r starts with a BGZF block header.  It consumes at
// most 16 bytes.
func Sniff(r io.Reader) error {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("%w: reading block header: %v", ErrNotBGZF, err)
	}
	if header[0] != 0x1f || header[1] != 0x8b || header[3]&0x04 == 0 {
		return ErrNotBGZF
	}
	if header[12] != 0x42 || header[13] != 0x43 {
		return ErrNotBGZF
	}
	return nil
}

// DecodeBlock decodes a single BGZF block from r and returns the uncompressed
// data and the original block size (or an error).  Note that DecodeBlock may
// read bytes past the end of the block if r does not implement io.ByteReader.
func DecodeBlock(r io.Reader) ([]byte, uint16, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("initializing gzip reader: %w", err)
	}
	defer gzr.Close()

	extra := gzr.Header.Extra
	if len(extra) < 6 {
		return nil, 0, fmt.Errorf("short extra field (%d bytes)", len(extra))
	}
	if extra[0] != 0x42 || extra[1] != 0x43 {
		return nil, 0, fmt.Errorf("unexpected extra ID: %x", extra[0:2])
	}
	if extra[2] != 2 || extra[3] != 0 {
		return nil, 0, fmt.Errorf("unexpected extra length: %x", extra[2:4])
	}

	gzr.Multistream(false)
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, gzr); err != nil {
		return nil, 0, fmt.Errorf("decompressing data: %w", err)
	}
	return buffer.Bytes(), (uint16(extra[4]) | uint16(extra[5])<<8) + 1, nil
}

// EncodeBlock returns a single BGZF block that encodes the bytes in data.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaximumBlockSize {
		return nil, errors.New("data exceeds maximum block size")
	}

	var buffer bytes.Buffer
	gzw := gzip.NewWriter(&buffer)

	gzw.Header.Extra = []byte{
		0x42, 0x43, // Extra ID.
		0x02, 0x00, // Length of extra data (2 bytes).
		0x88, 0x88, // BSIZE (filled in after writing the archive).
	}
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}
	bsize := buffer.Len() - 1
	if bsize > 0xffff {
		return nil, fmt.Errorf("compressed block too large (%d bytes)", bsize+1)
	}
	encoded := buffer.Bytes()
	encoded[16] = byte(bsize)
	encoded[17] = byte(bsize >> 8)
	return encoded, nil
}

// Writer encodes a stream as BGZF blocks of at most maximumPayload bytes.
// Close must be called to flush the last block and append the EOF marker.
type Writer struct {
	w       io.Writer
	buf     []byte
	written int64
}

// NewWriter returns a Writer that writes blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, maximumPayload)}
}

// Address returns the virtual address of the next byte written.
func (w *Writer) Address() Address {
	return NewAddress(uint64(w.written), uint16(len(w.buf)))
}

// Written returns the number of compressed bytes written so far.
func (w *Writer) Written() int64 {
	return w.written
}

// Write buffers p, emitting a block each time the buffer fills.
func (w *Writer) Write(p []byte) (int, error) {
	var n int
	for len(p) > 0 {
		m := copy(w.buf[len(w.buf):cap(w.buf)], p)
		w.buf = w.buf[:len(w.buf)+m]
		n += m
		p = p[m:]
		if len(w.buf) == cap(w.buf) {
			if err := w.Flush(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush writes any buffered data as one block.  Nothing is written when the
// buffer is empty.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	block, err := EncodeBlock(w.buf)
	if err != nil {
		return err
	}
	m, err := w.w.Write(block)
	w.written += int64(m)
	if err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}

// Close flushes the buffer and writes the EOF marker.  It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	m, err := w.w.Write(EOFMarker)
	w.written += int64(m)
	if err != nil {
		return fmt.Errorf("writing EOF marker: %w", err)
	}
	return nil
}
