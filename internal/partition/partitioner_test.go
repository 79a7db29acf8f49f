package partition

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xnautical/enc-compose/internal/coverage"
	"github.com/xnautical/enc-compose/internal/dedup"
	"github.com/xnautical/enc-compose/internal/types"
)

func square(minX, minY, maxX, maxY float64) orb.Ring {
	return orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}
}

func depthContour(chartID string, scale int, a, b orb.Point, scamin float64) types.Feature {
	p := types.Properties{OBJL: types.OBJLDepthContour, ScaleNum: scale, Extra: map[string]any{}}
	if scamin > 0 {
		p.SCAMIN = scamin
		p.HasSCAMIN = true
	}
	return types.Feature{ChartID: chartID, Geometry: orb.LineString{a, b}, Props: p}
}

func lightPointFeature(chartID string, scale int, pt orb.Point) types.Feature {
	return types.Feature{
		ChartID:  chartID,
		Geometry: pt,
		Props: types.Properties{
			OBJL: types.OBJLLights, ScaleNum: scale, SECTR1: 10, SECTR2: 20, HasSector: true,
			Extra: map[string]any{},
		},
	}
}

func TestDecideSingleScaleNotPartitioned(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	f := depthContour("C1", 1, orb.Point{0, 0}, orb.Point{1, 1}, 0)
	d.Add(f)

	dec, err := e.Decide(f)
	require.NoError(t, err)
	require.Equal(t, SingleScale, dec.Kind)
	assert.Equal(t, 0, dec.Single.MinZoom) // skin-of-earth, native lo of band 1
	assert.Equal(t, 8, dec.Single.MaxZoom)
}

func TestDecideDroppedForDedupLoser(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	pt := orb.Point{1, 1}
	loser := lightPointFeature("C3", 3, pt)
	winner := lightPointFeature("C4", 4, pt)
	d.Add(loser)
	d.Add(winner)

	dec, err := e.Decide(loser)
	require.NoError(t, err)
	assert.Equal(t, Dropped, dec.Kind)
}

func TestDecideNullGeometryDropped(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	f := types.Feature{ChartID: "C1", Props: types.Properties{OBJL: 99999, ScaleNum: 3, Extra: map[string]any{}}}
	dec, err := e.Decide(f)
	require.NoError(t, err)
	assert.Equal(t, Dropped, dec.Kind)
}

func TestDecidePartitionedAcrossScales(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	a, b := orb.Point{0, 0}, orb.Point{1, 1}
	f3 := depthContour("C3", 3, a, b, 0)
	f4 := depthContour("C4", 4, a, b, 0)
	f5 := depthContour("C5", 5, a, b, 0)
	d.Add(f3)
	d.Add(f4)
	d.Add(f5)

	dec, err := e.Decide(f5) // winner: largest scale
	require.NoError(t, err)
	require.Equal(t, PartitionedDedup, dec.Kind)

	byScale := map[int]types.ZoomRange{}
	for _, s := range dec.Slices {
		byScale[s.Scale] = s.ZoomRange
	}
	assert.Equal(t, types.ZoomRange{Lo: 4, Hi: 5}, byScale[3])
	assert.Equal(t, types.ZoomRange{Lo: 6, Hi: 15}, byScale[5])
	_, ok := byScale[4]
	assert.False(t, ok)
}

func TestDecideClippedEntirelyInside(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	cov := types.Feature{
		ChartID:  "CV4",
		Geometry: orb.Polygon{square(0, 0, 10, 10)},
		Props:    types.Properties{OBJL: types.OBJLCoverage, ScaleNum: 4, CATCOV: 1, Extra: map[string]any{}},
	}
	require.NoError(t, c.Add(cov))

	f := depthContour("C3", 3, orb.Point{1, 1}, orb.Point{2, 2}, 0)
	d.Add(f)

	dec, err := e.Decide(f)
	require.NoError(t, err)
	require.Equal(t, ClippedEntirelyInside, dec.Kind)
	require.NotNil(t, dec.Gap)
	require.NotNil(t, dec.Filler)
	assert.Equal(t, 4, dec.Gap.MinZoom)
	assert.Equal(t, 5, dec.Gap.MaxZoom)
	assert.Equal(t, 6, dec.Filler.MinZoom)
	assert.Equal(t, 13, dec.Filler.MaxZoom) // no scale-4 depth contour recorded: filler runs to native(3).Hi
}

func TestDecideClippedPartialFallsThroughToSingleScale(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	cov := types.Feature{
		ChartID:  "CV4",
		Geometry: orb.Polygon{square(0, 0, 1, 1)},
		Props:    types.Properties{OBJL: types.OBJLCoverage, ScaleNum: 4, CATCOV: 1, Extra: map[string]any{}},
	}
	require.NoError(t, c.Add(cov))

	f := depthContour("C3", 3, orb.Point{0.5, 0.5}, orb.Point{1.5, 1.5}, 0)
	d.Add(f)

	dec, err := e.Decide(f)
	require.NoError(t, err)
	// Not a multi-scale dedup winner and no hint override: the trimmed
	// remainder falls through to the ordinary single-scale case.
	require.Equal(t, SingleScale, dec.Kind)
	assert.NotNil(t, dec.Outside)
	assert.NotNil(t, dec.Inside)
	require.NotNil(t, dec.Single)
	assert.Equal(t, 4, dec.Single.MinZoom)
	assert.Equal(t, 13, dec.Single.MaxZoom)
	require.NotNil(t, dec.Gap)
	require.NotNil(t, dec.Filler)
}

func TestDecideClippedPartialFallsThroughToPartitionedDedup(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	cov := types.Feature{
		ChartID:  "CV4",
		Geometry: orb.Polygon{square(0, 0, 1, 1)},
		Props:    types.Properties{OBJL: types.OBJLCoverage, ScaleNum: 5, CATCOV: 1, Extra: map[string]any{}},
	}
	require.NoError(t, c.Add(cov))

	a, b := orb.Point{0.5, 0.5}, orb.Point{1.5, 1.5}
	f3 := depthContour("C3", 3, a, b, 0)
	f4 := depthContour("C4", 4, a, b, 0)
	d.Add(f3)
	d.Add(f4)

	// f4 is the winner and straddles scale 5's coverage mask, but its dedup
	// key was also seen at scale 3: the trimmed remainder must still be
	// split across zoom ownership rather than written as one single-scale
	// copy for the whole native(4) range.
	dec, err := e.Decide(f4)
	require.NoError(t, err)
	require.Equal(t, PartitionedDedup, dec.Kind)
	assert.NotNil(t, dec.Outside)
	assert.NotNil(t, dec.Inside)
	// Scales 4 and 5 share native floor 6, so the gap window [6,5] is empty.
	require.Nil(t, dec.Gap)
	require.NotNil(t, dec.Filler)
	assert.NotEmpty(t, dec.Slices)
}

func TestDecideUsesTightestHigherScamin(t *testing.T) {
	d := dedup.New(0, nil)
	c := coverage.New()
	e := NewEngine(d, c, 2)

	cov := types.Feature{
		ChartID:  "CV4",
		Geometry: orb.Polygon{square(0, 0, 10, 10)},
		Props:    types.Properties{OBJL: types.OBJLCoverage, ScaleNum: 4, CATCOV: 1, Extra: map[string]any{}},
	}
	require.NoError(t, c.Add(cov))

	f3 := depthContour("C3", 3, orb.Point{1, 1}, orb.Point{2, 2}, 0)
	f4 := depthContour("C4", 4, orb.Point{3, 3}, orb.Point{4, 4}, 40000)
	d.Add(f3)
	d.Add(f4)

	dec, err := e.Decide(f3)
	require.NoError(t, err)
	require.Equal(t, ClippedEntirelyInside, dec.Kind)
	assert.Equal(t, 6, dec.Filler.MinZoom)
	assert.Equal(t, 10, dec.Filler.MaxZoom) // scamin_to_minzoom(40000, 6, 2) == 11, filler ends at 10
}
