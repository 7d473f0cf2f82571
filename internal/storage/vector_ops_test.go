package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeVector(t *testing.T) {
	vec := []float32{1.5, -2, 0, float32(math.Pi)}
	blob := SerializeVector(vec)
	assert.Len(t, blob, 16)

	got, err := DeserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = DeserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestL2Distance(t *testing.T) {
	assert.InDelta(t, 0, l2Distance([]float32{1, 2}, []float32{1, 2}), 1e-9)
	assert.InDelta(t, 5, l2Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
}

func TestSortNeighbors(t *testing.T) {
	ns := []Neighbor{{"c", 0.5}, {"b", 0.1}, {"a", 0.5}}
	sortNeighbors(ns)
	assert.Equal(t, []Neighbor{{"b", 0.1}, {"a", 0.5}, {"c", 0.5}}, ns)
}
