package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_PushBelowCapacity(t *testing.T) {
	r := newRing[int](3)
	r.push(1)
	r.push(2)

	assert.Equal(t, 2, r.len())
	assert.Equal(t, []int{1, 2}, r.snapshot())
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 7; i++ {
		r.push(i)
		assert.LessOrEqual(t, r.len(), 3)
	}

	assert.Equal(t, []int{5, 6, 7}, r.snapshot())
}

func TestRing_SnapshotIsCopy(t *testing.T) {
	r := newRing[string](2)
	r.push("a")
	snap := r.snapshot()
	snap[0] = "z"

	assert.Equal(t, []string{"a"}, r.snapshot())
}

func TestRing_Reset(t *testing.T) {
	r := newRing[int](2)
	r.push(1)
	r.push(2)
	r.push(3)
	r.reset()

	assert.Equal(t, 0, r.len())
	assert.Empty(t, r.snapshot())

	r.push(9)
	assert.Equal(t, []int{9}, r.snapshot())
}

func TestRing_ZeroCapacity(t *testing.T) {
	r := newRing[int](0)
	r.push(1)
	r.push(2)
	assert.Equal(t, []int{2}, r.snapshot())
}
