package geojson

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xnautical/enc-compose/internal/types"
)

const sampleCollection = `{
	"type": "FeatureCollection",
	"features": [
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-123.45678,48.12345]},
		 "properties":{"OBJL":75,"_scaleNum":4,"SECTR1":90,"SECTR2":270,"COLOUR":"3","SCAMIN":25000}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]},
		 "properties":{"OBJL":43,"_scaleNum":3,"OBJNAM":"Contour A"}}
	]
}`

func TestStreamFeatures(t *testing.T) {
	var got []types.Feature
	err := StreamFeatures(strings.NewReader(sampleCollection), "CHART1", func(f types.Feature) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 75, got[0].Props.OBJL)
	assert.Equal(t, 4, got[0].Props.ScaleNum)
	assert.True(t, got[0].Props.HasSector)
	assert.Equal(t, 90.0, got[0].Props.SECTR1)
	assert.True(t, got[0].IsPoint())

	assert.Equal(t, "Contour A", got[1].Props.OBJNAM)
	assert.False(t, got[1].IsPoint())
	assert.Equal(t, "CHART1", got[1].ChartID)
	assert.Equal(t, 1, got[1].Index)
}

func TestStreamFeaturesMissingOBJL(t *testing.T) {
	bad := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"_scaleNum":3}}]}`
	err := StreamFeatures(strings.NewReader(bad), "CHART2", func(types.Feature) error { return nil })
	assert.Error(t, err)
}

func TestToGeoJSONFeatureRoundTrip(t *testing.T) {
	f := types.Feature{
		ChartID: "C1",
		Props: types.Properties{
			OBJL: 30, ScaleNum: 4, Extra: map[string]any{},
		},
		Out: &types.Tippecanoe{MinZoom: 6, MaxZoom: 12, Layer: "charts"},
	}
	gf, err := ToGeoJSONFeature(f)
	require.NoError(t, err)
	assert.Equal(t, 30, gf.Properties["OBJL"])
	hint, ok := gf.Properties["tippecanoe"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 6, hint["minzoom"])
	assert.Equal(t, 12, hint["maxzoom"])
}

func TestToGeoJSONFeatureRequiresOut(t *testing.T) {
	f := types.Feature{Props: types.Properties{Extra: map[string]any{}}}
	_, err := ToGeoJSONFeature(f)
	assert.Error(t, err)
}
