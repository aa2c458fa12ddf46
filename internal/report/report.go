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

// Package report defines the error taxonomy of a paraviewer run and the
// end-of-run summary of recovered failures.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
)

// Kind classifies an Error.
type Kind int

const (
	// Configuration errors are fatal and reported before any input is read.
	Configuration Kind = iota
	// Discovery errors are fatal and reported before aggregation.
	Discovery
	// RendererUnavailable is a fatal, systemic renderer failure.
	RendererUnavailable
	// PartialRecord marks a sample/region combination with missing or
	// malformed input files.  The run continues.
	PartialRecord
	// AssetGeneration marks one entity whose assets could not be produced.
	// The run continues.
	AssetGeneration
)

var kindNames = [...]string{
	Configuration:       "ConfigurationError",
	Discovery:           "DiscoveryError",
	RendererUnavailable: "RendererUnavailable",
	PartialRecord:       "PartialRecordWarning",
	AssetGeneration:     "AssetGenerationFailure",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind encoded by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", text)
}

// Fatal reports whether errors of this kind halt the run.
func (k Kind) Fatal() bool {
	return k <= RendererUnavailable
}

// Error is an error with a Kind and the path or identifier it concerns.
type Error struct {
	Kind    Kind
	Subject string
	cause   error
}

func (err *Error) Error() string {
	if err.Subject == "" {
		return fmt.Sprintf("%s: %v", err.Kind, err.cause)
	}
	return fmt.Sprintf("%s (%s): %v", err.Kind, err.Subject, err.cause)
}

func (err *Error) Unwrap() error {
	return err.cause
}

func newError(kind Kind, subject, context string, err error) error {
	return &Error{kind, subject, fmt.Errorf("%s: %w", context, err)}
}

// NewConfigurationError returns a Configuration error naming the offending
// flag or path.
func NewConfigurationError(subject, context string, err error) error {
	return newError(Configuration, subject, context, err)
}

// NewDiscoveryError returns a Discovery error for path.
func NewDiscoveryError(path, context string, err error) error {
	return newError(Discovery, path, context, err)
}

// NewRendererUnavailableError returns a RendererUnavailable error for the
// named renderer component.
func NewRendererUnavailableError(subject, context string, err error) error {
	return newError(RendererUnavailable, subject, context, err)
}

// KindOf returns the kind of the first Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsFatal reports whether err should halt the run.  Errors without a Kind are
// treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := KindOf(err)
	return !ok || kind.Fatal()
}

// AnyRegion is the region recorded for warnings that concern a whole sample.
const AnyRegion = "*"

// Warning is one recovered failure.
type Warning struct {
	Kind    Kind   `json:"kind"`
	Subject string `json:"subject"`
	Region  string `json:"region"`
	Message string `json:"message"`
}

func (w Warning) less(other Warning) bool {
	if w.Subject != other.Subject {
		return w.Subject < other.Subject
	}
	if w.Region != other.Region {
		return w.Region < other.Region
	}
	if w.Kind != other.Kind {
		return w.Kind < other.Kind
	}
	return w.Message < other.Message
}

// Summary collects recovered failures from concurrent stages.  The zero value
// is ready to use.
type Summary struct {
	mu       sync.Mutex
	warnings []Warning
}

// Add records a warning of kind for subject (a sample or trio identifier) and
// region.
func (s *Summary) Add(kind Kind, subject, region string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, Warning{
		Kind:    kind,
		Subject: subject,
		Region:  region,
		Message: err.Error(),
	})
}

// Warnings returns the recorded warnings ordered by subject, region, kind and
// message, independent of the order in which they were added.
func (s *Summary) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Warning(nil), s.warnings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// Count returns the number of warnings of kind.
func (s *Summary) Count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, w := range s.warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Retain drops every warning for which keep returns false.
func (s *Summary) Retain(keep func(Warning) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.warnings[:0]
	for _, w := range s.warnings {
		if keep(w) {
			kept = append(kept, w)
		}
	}
	s.warnings = kept
}

// Len returns the number of recorded warnings.
func (s *Summary) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.warnings)
}

// Write prints the warnings as an aligned table.
func (s *Summary) Write(w io.Writer) error {
	warnings := s.Warnings()
	if len(warnings) == 0 {
		_, err := fmt.Fprintln(w, "No degraded entries.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%d degraded entries:\n", len(warnings))
	fmt.Fprintln(tw, "KIND\tSUBJECT\tREGION\tREASON")
	for _, warning := range warnings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", warning.Kind, warning.Subject, warning.Region, warning.Message)
	}
	return tw.Flush()
}
