// Package eval provides the evaluation context consumed by the id set
// materialization cache: a uniquely-identified evaluation holding named id
// sets that queries evaluated within it may join against.
package eval

import (
	"github.com/google/uuid"
)

// Context identifies one evaluation session and its named base id sets.
// It implements idset.ContextSets. A Context is built by a single caller
// before evaluation begins; it is not safe for concurrent mutation.
type Context struct {
	evaluationID string
	idSets       map[string][]int64
}

// NewContext creates a context with a generated evaluation id.
func NewContext() *Context {
	return NewContextWithID(uuid.NewString())
}

// NewContextWithID creates a context owned by the given evaluation id.
// Contexts sharing an evaluation id derive the same keys for identical
// sets, which is what lets nested evaluations share materialized rows.
func NewContextWithID(evaluationID string) *Context {
	return &Context{
		evaluationID: evaluationID,
		idSets:       make(map[string][]int64),
	}
}

// EvaluationID returns the evaluation identifier.
func (c *Context) EvaluationID() string {
	return c.evaluationID
}

// SetIDSet stores the named id set, replacing any previous value.
func (c *Context) SetIDSet(name string, members []int64) {
	copied := make([]int64, len(members))
	copy(copied, members)
	c.idSets[name] = copied
}

// RemoveIDSet drops the named id set.
func (c *Context) RemoveIDSet(name string) {
	delete(c.idSets, name)
}

// BaseIDSets returns a copy of the name-to-members mapping.
func (c *Context) BaseIDSets() map[string][]int64 {
	out := make(map[string][]int64, len(c.idSets))
	for name, members := range c.idSets {
		copied := make([]int64, len(members))
		copy(copied, members)
		out[name] = copied
	}
	return out
}
