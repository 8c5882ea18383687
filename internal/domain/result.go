package domain

import "errors"

// Provenance tags which backing mechanism produced a conversion value.
type Provenance string

const (
	// ProvenanceDemo marks values served from the curated demo table.
	ProvenanceDemo Provenance = "demo"
	// ProvenanceML marks values produced by a learned model.
	ProvenanceML Provenance = "ml"
	// ProvenanceTool marks values produced by a rule-based tool.
	ProvenanceTool Provenance = "tool"
)

// Valid reports whether p is one of the known provenance tags.
func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceDemo, ProvenanceML, ProvenanceTool:
		return true
	}
	return false
}

// Outcome identifies the active variant of a Result.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeNotImplemented Outcome = "not_implemented"
	OutcomeFailure        Outcome = "failure"
)

// Result is what a conversion capability returns. Exactly one variant is
// active; use the constructors below rather than building the struct
// directly.
//
// NotImplemented is an expected outcome ("capability not built yet"), not an
// error, and is kept apart from Failure so callers can tell the two apart.
type Result struct {
	outcome    Outcome
	value      string
	provenance Provenance
	err        error
}

// Success returns a successful result carrying value and its provenance.
func Success(value string, p Provenance) Result {
	return Result{outcome: OutcomeSuccess, value: value, provenance: p}
}

// NotImplemented returns the sentinel "capability absent" result.
func NotImplemented() Result {
	return Result{outcome: OutcomeNotImplemented}
}

// errUnknownFailure stands in when Failure is called with a nil error.
var errUnknownFailure = errors.New("conversion failed")

// Failure wraps a fault raised while converting.
func Failure(err error) Result {
	if err == nil {
		err = errUnknownFailure
	}
	return Result{outcome: OutcomeFailure, err: err}
}

// Outcome returns the active variant. The zero Result reports a failure.
func (r Result) Outcome() Outcome {
	if r.outcome == "" {
		return OutcomeFailure
	}
	return r.outcome
}

// Value returns the converted value; empty unless the result is a success.
func (r Result) Value() string { return r.value }

// Provenance returns the provenance tag; empty unless the result is a success.
func (r Result) Provenance() Provenance { return r.provenance }

// Err returns the fault for failures and nil otherwise.
func (r Result) Err() error {
	if r.Outcome() == OutcomeFailure && r.err == nil {
		return errUnknownFailure
	}
	return r.err
}
