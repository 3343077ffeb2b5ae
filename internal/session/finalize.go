package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmynk/tabsplit/internal/calculator"
)

// Valid is a draft that passed validation together with its allocation. It
// can only be obtained from Draft.Validate.
type Valid struct {
	draft  Draft
	result *calculator.AllocationResult
	digest string
}

// Result returns a copy of the validated allocation.
func (v Valid) Result() *calculator.AllocationResult {
	return v.result.Clone()
}

// Digest returns the input digest of the validated draft.
func (v Valid) Digest() string {
	return v.digest
}

// Draft returns the draft that was validated.
func (v Valid) Draft() Draft {
	return v.draft.clone()
}

// Meta describes a session beyond its computation inputs.
type Meta struct {
	ID       string
	Name     string
	Currency string
	PayerID  string
	GroupID  string
}

// Finalized is the authoritative, immutable record of a settled session.
type Finalized struct {
	Meta
	Items        []calculator.LineItem
	Participants []calculator.Participant
	Assignments  map[string]calculator.Assignment
	Result       *calculator.AllocationResult
	InputDigest  string
	FinalizedAt  time.Time
}

// Finalize freezes a validated session.
func (v Valid) Finalize(meta Meta, now time.Time) *Finalized {
	return &Finalized{
		Meta:         meta,
		Items:        v.draft.Items(),
		Participants: v.draft.Participants(),
		Assignments:  v.draft.Assignments(),
		Result:       v.result.Clone(),
		InputDigest:  v.digest,
		FinalizedAt:  now.UTC(),
	}
}

// ReplayReport compares a stored record with a fresh computation from its
// stored inputs.
type ReplayReport struct {
	DigestMatch bool
	ResultMatch bool
	Digest      string
	Result      *calculator.AllocationResult
}

// Verified reports whether both the inputs and the output match.
func (r ReplayReport) Verified() bool {
	return r.DigestMatch && r.ResultMatch
}

// Replay recomputes the allocation from the stored inputs and checks it is
// byte-identical to the stored result.
func (f *Finalized) Replay() (ReplayReport, error) {
	report := ReplayReport{
		Digest: calculator.InputDigest(f.Items, f.Assignments, f.Participants),
	}
	report.DigestMatch = report.Digest == f.InputDigest

	result, err := calculator.ComputeReceiptTotals(f.Items, f.Assignments, f.Participants)
	if err != nil {
		return report, fmt.Errorf("failed to recompute session %s: %w", f.ID, err)
	}
	report.Result = result

	stored, err := json.Marshal(f.Result)
	if err != nil {
		return report, fmt.Errorf("failed to encode stored result: %w", err)
	}
	fresh, err := json.Marshal(result)
	if err != nil {
		return report, fmt.Errorf("failed to encode recomputed result: %w", err)
	}
	report.ResultMatch = bytes.Equal(stored, fresh)
	return report, nil
}
