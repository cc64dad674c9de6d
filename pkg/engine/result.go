// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import "fmt"

// 🎭 Mode selects between copying and moving the source
type Mode int

const (
	ModeCopy Mode = iota
	ModeMove
)

// String returns a string representation of Mode
func (m Mode) String() string {
	if m == ModeMove {
		return "MOVE"
	}
	return "COPY"
}

// 🏷️ ErrorKind classifies what went wrong with a request or an item
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidPath
	KindUnsafeDestination
	KindSameLocation
	KindDestinationInsideSource
	KindDestinationExists
	KindPermissionDenied
	KindVerificationFailed
	KindTimeout
	KindCancelled
	KindIO
)

// String returns a string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidPath:
		return "invalid path"
	case KindUnsafeDestination:
		return "unsafe destination"
	case KindSameLocation:
		return "same location"
	case KindDestinationInsideSource:
		return "destination inside source"
	case KindDestinationExists:
		return "destination exists"
	case KindPermissionDenied:
		return "permission denied"
	case KindVerificationFailed:
		return "verification failed"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindIO:
		return "io error"
	default:
		return "unknown"
	}
}

// severity orders kinds for aggregation: the aggregate ErrorKind of a partial
// failure is the most severe item kind, ties broken by first occurrence.
func (k ErrorKind) severity() int {
	switch k {
	case KindVerificationFailed:
		return 5
	case KindPermissionDenied:
		return 4
	case KindTimeout:
		return 3
	case KindDestinationExists:
		return 2
	case KindIO:
		return 1
	default:
		return 0
	}
}

// 🎯 Outcome is the caller-facing classification of a finished request
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePartialSuccess
	OutcomeFailure
	OutcomeCancelled
)

// String returns a string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartialSuccess:
		return "partial-success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ⚠️ ItemError records one per-item failure inside an otherwise continuing
// operation
type ItemError struct {
	Path string
	Kind ErrorKind
	Err  error
}

// Error implements error
func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

// 📊 Result is produced once per transfer request
type Result struct {
	Outcome        Outcome
	ItemsProcessed int
	ItemsFailed    int
	ErrorKind      ErrorKind
	Message        string
	ItemErrors     []ItemError

	// LogErr reports an audit-log write failure. It is a secondary channel:
	// it never changes Outcome.
	LogErr error
}

// Success reports whether the whole request completed cleanly
func (r Result) Success() bool {
	return r.Outcome == OutcomeSuccess
}

// outcomeLine renders the record appended to the operation log
func (r Result) outcomeLine() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return fmt.Sprintf("success (%d items)", r.ItemsProcessed)
	case OutcomePartialSuccess:
		return fmt.Sprintf("partial-success (%d ok, %d failed, first: %s)",
			r.ItemsProcessed, r.ItemsFailed, r.ErrorKind)
	case OutcomeCancelled:
		return fmt.Sprintf("cancelled (%d items done)", r.ItemsProcessed)
	default:
		return fmt.Sprintf("failure (%s)", r.ErrorKind)
	}
}

// aggregateKind picks the most severe item kind, first occurrence winning ties
func aggregateKind(items []ItemError) ErrorKind {
	kind := KindNone
	best := -1
	for _, it := range items {
		if s := it.Kind.severity(); s > best {
			best = s
			kind = it.Kind
		}
	}
	return kind
}
