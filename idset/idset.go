// Package idset implements a reference-counted materialization cache for
// integer id sets.
//
// Large queries join against a compact persisted set instead of embedding
// thousands of literal values. An in-memory id set is materialized as
// (key, member_id) rows keyed by a deterministic content hash; overlapping
// callers share one persisted copy via reference counting, and the rows are
// deleted when the last reference is released.
package idset

import (
	"sort"
)

// IDSet is an unordered collection of integer identifiers owned by an
// evaluation. It is ephemeral and caller-constructed; it is never persisted
// directly, only via its derived key.
type IDSet struct {
	evaluationID string
	members      []int64 // sorted, deduplicated
}

// New creates an id set for the given evaluation. Members are deduplicated;
// order does not matter.
func New(evaluationID string, members []int64) *IDSet {
	sorted := make([]int64, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	deduped := sorted[:0]
	for i, m := range sorted {
		if i == 0 || m != sorted[i-1] {
			deduped = append(deduped, m)
		}
	}

	return &IDSet{
		evaluationID: evaluationID,
		members:      deduped,
	}
}

// EvaluationID returns the owning evaluation identifier.
func (s *IDSet) EvaluationID() string {
	return s.evaluationID
}

// Members returns the member ids in sorted order. The returned slice is a
// copy.
func (s *IDSet) Members() []int64 {
	out := make([]int64, len(s.members))
	copy(out, s.members)
	return out
}

// Size returns the number of distinct members.
func (s *IDSet) Size() int {
	return len(s.members)
}

// IsEmpty reports whether the set has no members.
func (s *IDSet) IsEmpty() bool {
	return s == nil || len(s.members) == 0
}
