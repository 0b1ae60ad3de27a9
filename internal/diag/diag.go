// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package diag implements the diagnostic taxonomy and rendering described in
// spec.md §7: error kinds, severities, and the
// "<source-chain>: Error|Warning: <message>" output format.
package diag

import (
	"fmt"
	"io"

	"github.com/clrx-go/gcnasm/internal/srcpos"
)

// Kind classifies a diagnostic per spec.md §7.
type Kind int

const (
	KindParse Kind = iota
	KindSemantic
	KindArithmetic
	KindResource
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindSemantic:
		return "semantic"
	case KindArithmetic:
		return "arithmetic"
	case KindResource:
		return "resource"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Severity distinguishes a hard error from a warning.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "Error"
	}
	return "Warning"
}

// Diagnostic is one reported problem, anchored at a source-position chain.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Chain    srcpos.Chain
	Message  string
}

// Error implements the error interface, rendering spec.md §6's format.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Chain.String(), d.Severity, d.Message)
}

// Sink accumulates diagnostics for a run and tracks whether any error
// (as opposed to warning) was reported. Per spec.md §5, a fatal error
// surfaces as a "not good" flag but parsing continues (diagnostics mode).
type Sink struct {
	Diagnostics []Diagnostic
	warningsOn  bool
}

// NewSink returns an empty diagnostic sink. warningsOn mirrors the -W flag:
// when false, warning-only diagnostics (e.g. value-out-of-range) are
// suppressed per spec.md §7's policy.
func NewSink(warningsOn bool) *Sink {
	return &Sink{warningsOn: warningsOn}
}

// Report records a diagnostic unconditionally. Warning suppression (warnings
// off, except forced kinds) is decided by Warnf before it calls Report.
func (s *Sink) Report(d Diagnostic) {
	s.Diagnostics = append(s.Diagnostics, d)
}

// Errorf records an error-severity diagnostic.
func (s *Sink) Errorf(chain srcpos.Chain, kind Kind, format string, args ...any) {
	s.Report(Diagnostic{Severity: SeverityError, Kind: kind, Chain: chain, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning-severity diagnostic, honoring the warningsOn gate
// unless force is true (used for division/shift diagnostics that are always
// surfaced regardless of -W per spec.md §7).
func (s *Sink) Warnf(chain srcpos.Chain, kind Kind, force bool, format string, args ...any) {
	if !s.warningsOn && !force {
		return
	}
	s.Report(Diagnostic{Severity: SeverityWarning, Kind: kind, Chain: chain, Message: fmt.Sprintf(format, args...)})
}

// Failed reports whether any error-severity diagnostic was recorded.
func (s *Sink) Failed() bool {
	for _, d := range s.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// WriteTo prints every diagnostic to w, one per line, in report order.
func (s *Sink) WriteTo(w io.Writer) {
	for _, d := range s.Diagnostics {
		fmt.Fprintln(w, d.Error())
	}
}
