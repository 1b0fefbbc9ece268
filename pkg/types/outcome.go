// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FailureKind classifies why a target or a collection did not complete.
type FailureKind string

const (
	// FailureTransient means the retry budget ran out on network, 5xx,
	// 429, or unparseable-body errors.
	FailureTransient FailureKind = "transient_transport"

	// FailurePermanent means the server rejected the request (4xx other
	// than 404) or the body never decoded.
	FailurePermanent FailureKind = "permanent_request"

	// FailureNotFound means the identifier does not exist, or a name
	// resolved to nothing.
	FailureNotFound FailureKind = "not_found"

	// FailurePartial marks a record whose profile succeeded but at least
	// one collection did not. It is never the kind of a FailureRecord.
	FailurePartial FailureKind = "partial_assembly"
)

// FailureRecord explains why a requested target produced no record.
type FailureRecord struct {
	Target   ResolvedTarget `json:"target" yaml:"target"`
	Kind     FailureKind    `json:"kind" yaml:"kind"`
	Cause    string         `json:"cause" yaml:"cause"`
	Attempts int            `json:"attempts,omitempty" yaml:"attempts,omitempty"`

	// Queries lists every search string tried when the target came from
	// name resolution.
	Queries []string `json:"queries,omitempty" yaml:"queries,omitempty"`
}

// OutcomeStatus summarizes a FetchOutcome for counters and sinks.
type OutcomeStatus string

const (
	StatusOK      OutcomeStatus = "ok"
	StatusPartial OutcomeStatus = "partial"
	StatusFailed  OutcomeStatus = "failed"
)

// FetchOutcome is the single result a target yields. Exactly one of Record
// and Failure is set.
type FetchOutcome struct {
	Target  ResolvedTarget `json:"target" yaml:"target"`
	Record  *EntityRecord  `json:"record,omitempty" yaml:"record,omitempty"`
	Failure *FailureRecord `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Status reports ok, partial, or failed.
func (o FetchOutcome) Status() OutcomeStatus {
	switch {
	case o.Failure != nil:
		return StatusFailed
	case o.Record != nil && o.Record.Partial():
		return StatusPartial
	}
	return StatusOK
}

// Failed builds a failure outcome.
func Failed(f FailureRecord) FetchOutcome {
	return FetchOutcome{Target: f.Target, Failure: &f}
}
