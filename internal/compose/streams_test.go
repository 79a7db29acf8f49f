package compose

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/xnautical/enc-compose/internal/types"
)

func TestStreamSetLazyCreatesOnlyUsedWriters(t *testing.T) {
	streams, err := newStreamSet(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, streams.activeScales())

	f := types.Feature{
		ChartID:  "US5AK9ABC",
		Geometry: orb.Point{-150.0, 61.0},
		Props:    types.Properties{OBJL: types.OBJLDepthContour, ScaleNum: 4},
		Out:      &types.Tippecanoe{MinZoom: 6, MaxZoom: 14, Layer: "depcnt"},
	}
	require.NoError(t, writeScale(f, 4, streams))
	require.Equal(t, []int{4}, streams.activeScales())

	nav, err := streams.navAids()
	require.NoError(t, err)
	require.NotNil(t, nav)
	require.FileExists(t, streams.navAidsPath())

	require.NoError(t, streams.close())
}

func TestStreamSetRejectsOutOfRangeScale(t *testing.T) {
	streams, err := newStreamSet(t.TempDir())
	require.NoError(t, err)
	_, err = streams.scale(0)
	require.Error(t, err)
	_, err = streams.scale(7)
	require.Error(t, err)
}
