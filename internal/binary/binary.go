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

// Package binary provides little endian helpers for reading the binary
// structures found in BAM headers and BAI indexes.
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ExpectBytes reads len(want) bytes from r and reports an error unless they
// match want exactly.
func ExpectBytes(r io.Reader, want []byte) error {
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return fmt.Errorf("reading %d bytes: %w", len(want), err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("wrong bytes %q (wanted %q)", got, want)
	}
	return nil
}

// Read reads a little endian value from r into v using binary.Read.
func Read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// ReadSized reads a little endian int32 length followed by that many bytes.
// Lengths outside [0, limit] are rejected before anything is allocated.
func ReadSized(r io.Reader, limit int32) ([]byte, error) {
	var length int32
	if err := Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading length: %w", err)
	}
	if length < 0 || length > limit {
		return nil, fmt.Errorf("invalid length (%d bytes)", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("reading %d bytes: %w", length, err)
	}
	return data, nil
}
