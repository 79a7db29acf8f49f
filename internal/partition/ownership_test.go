package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xnautical/enc-compose/internal/types"
)

func TestComputeZoomOwnershipLargestWins(t *testing.T) {
	got := ComputeZoomOwnership([]int{3, 4, 5})

	assert.Equal(t, types.ZoomRange{Lo: 4, Hi: 5}, got[3])
	assert.Equal(t, types.ZoomRange{Lo: 6, Hi: 15}, got[5])
	_, ok := got[4]
	assert.False(t, ok, "scale 4 is fully shadowed by scale 5 and should own no zoom")
}

func TestComputeZoomOwnershipSingleScale(t *testing.T) {
	got := ComputeZoomOwnership([]int{1})
	assert.Equal(t, types.ZoomRange{Lo: 0, Hi: 8}, got[1])
	assert.Len(t, got, 1)
}

func TestOwnershipCacheMemoizes(t *testing.T) {
	c := NewOwnershipCache()
	a := c.Get([]int{3, 4, 5})
	b := c.Get([]int{5, 4, 3}) // same set, different order
	assert.Equal(t, a, b)
}
