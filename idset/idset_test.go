package idset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeduplicatesAndSorts(t *testing.T) {
	set := New("eval-1", []int64{5, 3, 5, 1, 3})

	assert.Equal(t, []int64{1, 3, 5}, set.Members())
	assert.Equal(t, 3, set.Size())
	assert.False(t, set.IsEmpty())
}

func TestNewEmpty(t *testing.T) {
	assert.True(t, New("eval-1", nil).IsEmpty())
	assert.True(t, New("eval-1", []int64{}).IsEmpty())
}

func TestIsEmptyNilReceiver(t *testing.T) {
	var set *IDSet
	assert.True(t, set.IsEmpty())
}

func TestMembersReturnsCopy(t *testing.T) {
	set := New("eval-1", []int64{1, 2, 3})

	members := set.Members()
	members[0] = 99

	assert.Equal(t, []int64{1, 2, 3}, set.Members(), "mutating the returned slice must not affect the set")
}

func TestNewCopiesInput(t *testing.T) {
	input := []int64{3, 1, 2}
	set := New("eval-1", input)

	input[0] = 99

	assert.Equal(t, []int64{1, 2, 3}, set.Members(), "mutating the input slice must not affect the set")
}

func TestKeyDeterministic(t *testing.T) {
	a := New("eval-1", []int64{1, 2, 3})
	b := New("eval-1", []int64{3, 2, 1})

	require.NotEmpty(t, a.Key())
	assert.Equal(t, a.Key(), b.Key(), "same content in different order should yield the same key")
	assert.Equal(t, a.Key(), a.Key(), "key must be stable across calls")
}

func TestKeyIgnoresDuplicates(t *testing.T) {
	a := New("eval-1", []int64{1, 2, 3})
	b := New("eval-1", []int64{1, 1, 2, 2, 3})

	assert.Equal(t, a.Key(), b.Key())
}

func TestKeyVariesWithEvaluationID(t *testing.T) {
	a := New("eval-1", []int64{1, 2, 3})
	b := New("eval-2", []int64{1, 2, 3})

	assert.NotEqual(t, a.Key(), b.Key(), "same members under different evaluations are different sets")
}

func TestKeyVariesWithMembers(t *testing.T) {
	a := New("eval-1", []int64{1, 2, 3})
	b := New("eval-1", []int64{1, 2, 4})

	assert.NotEqual(t, a.Key(), b.Key())
}

func TestKeyNilSet(t *testing.T) {
	var set *IDSet
	assert.Equal(t, "", set.Key())
}

func TestKeyNegativeMembers(t *testing.T) {
	a := New("eval-1", []int64{-1, -2})
	b := New("eval-1", []int64{1, 2})

	require.NotEmpty(t, a.Key())
	assert.NotEqual(t, a.Key(), b.Key())
}
