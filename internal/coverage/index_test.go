package coverage

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xnautical/enc-compose/internal/types"
)

func coverageFeature(chartID string, scale int, ring orb.Ring) types.Feature {
	return types.Feature{
		ChartID:  chartID,
		Geometry: orb.Polygon{ring},
		Props: types.Properties{
			OBJL: types.OBJLCoverage, ScaleNum: scale, CATCOV: 1,
			Extra: map[string]any{},
		},
	}
}

func square(minX, minY, maxX, maxY float64) orb.Ring {
	return orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}
}

func TestCoverageUnionPerScale(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(coverageFeature("C1", 4, square(0, 0, 1, 1))))
	require.NoError(t, ix.Add(coverageFeature("C2", 4, square(1, 0, 2, 1))))
	require.NoError(t, ix.Add(coverageFeature("C3", 5, square(0, 0, 0.5, 0.5))))

	assert.Equal(t, []int{4, 5}, ix.Scales())

	_, ok := ix.Region(4)
	assert.True(t, ok)
	_, ok = ix.Region(6)
	assert.False(t, ok)
}

func TestClipEntirelyInside(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(coverageFeature("C1", 4, square(0, 0, 10, 10))))

	mask, ok := ix.HigherScaleMask(3)
	require.True(t, ok)

	inner := orb.Polygon{square(1, 1, 2, 2)}
	res, err := Clip(inner, mask)
	require.NoError(t, err)
	assert.True(t, res.EntirelyInside)
	assert.False(t, res.Crosses)
}

func TestClipNoIntersection(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(coverageFeature("C1", 4, square(0, 0, 1, 1))))

	mask, _ := ix.HigherScaleMask(3)
	far := orb.Polygon{square(100, 100, 101, 101)}

	res, err := Clip(far, mask)
	require.NoError(t, err)
	assert.False(t, res.EntirelyInside)
	assert.False(t, res.Crosses)
}

func TestClipCrossesBoundary(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(coverageFeature("C1", 4, square(0, 0, 1, 1))))

	mask, _ := ix.HigherScaleMask(3)
	straddling := orb.Polygon{square(0.5, 0.5, 1.5, 1.5)}

	res, err := Clip(straddling, mask)
	require.NoError(t, err)
	assert.False(t, res.EntirelyInside)
	assert.True(t, res.Crosses)
	assert.NotNil(t, res.Outside)
	assert.NotNil(t, res.Inside)
}

func TestClipEntirelyInsidePopulatesInside(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(coverageFeature("C1", 4, square(0, 0, 10, 10))))

	mask, ok := ix.HigherScaleMask(3)
	require.True(t, ok)

	inner := orb.Polygon{square(1, 1, 2, 2)}
	res, err := Clip(inner, mask)
	require.NoError(t, err)
	require.True(t, res.EntirelyInside)
	assert.NotNil(t, res.Inside)
}

func TestHigherScalesSkipsImmediateWhenNoCoverage(t *testing.T) {
	ix := New()
	require.NoError(t, ix.Add(coverageFeature("C1", 5, square(0, 0, 1, 1))))
	require.NoError(t, ix.Add(coverageFeature("C2", 6, square(0, 0, 1, 1))))

	assert.Equal(t, []int{5, 6}, ix.HigherScales(3))
	assert.Equal(t, []int{6}, ix.HigherScales(5))
	assert.Empty(t, ix.HigherScales(6))

	_, ok := ix.Mask(5)
	assert.True(t, ok)
	_, ok = ix.Mask(4)
	assert.False(t, ok)
}
