// Package geojson converts between the wire GeoJSON representation
// (paulmach/orb/geojson) and the compose core's internal types.Feature, and
// streams both chart-input collections and per-scale ndjson output.
package geojson

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/xnautical/enc-compose/internal/types"
)

// ToFeature converts a raw GeoJSON feature into the typed internal record.
// chartID and index identify its source for dedup tie-breaking.
func ToFeature(gf *geojson.Feature, chartID string, index int) (types.Feature, error) {
	props, err := extractProperties(gf.Properties)
	if err != nil {
		return types.Feature{}, fmt.Errorf("chart %s feature %d: %w", chartID, index, err)
	}

	f := types.Feature{
		ChartID:  chartID,
		Index:    index,
		Geometry: gf.Geometry,
		Props:    props,
	}

	if hint, ok := gf.Properties["tippecanoe"].(map[string]any); ok {
		f.Hint = hintFromMap(hint)
	}

	return f, nil
}

func extractProperties(raw geojson.Properties) (types.Properties, error) {
	p := types.Properties{Extra: map[string]any{}}

	objl := raw.MustInt("OBJL", -1)
	if objl < 0 {
		return p, fmt.Errorf("missing OBJL")
	}
	p.OBJL = objl

	scaleNum := raw.MustInt("_scaleNum", -1)
	if scaleNum < 1 || scaleNum > 6 {
		return p, fmt.Errorf("missing or invalid _scaleNum")
	}
	p.ScaleNum = scaleNum

	if v, ok := numericProp(raw, "SCAMIN"); ok {
		p.SCAMIN = v
		p.HasSCAMIN = v > 0
	}
	if v, ok := raw["OBJNAM"].(string); ok {
		p.OBJNAM = v
	}
	s1, ok1 := numericProp(raw, "SECTR1")
	s2, ok2 := numericProp(raw, "SECTR2")
	if ok1 && ok2 {
		p.SECTR1, p.SECTR2 = s1, s2
		p.HasSector = true
	}
	if v, ok := raw["COLOUR"].(string); ok {
		p.COLOUR = v
	}
	if v, ok := numericProp(raw, "CATCOV"); ok {
		p.CATCOV = int(v)
	}
	if v, ok := numericProp(raw, "VALNMR"); ok {
		p.VALNMR = v
	}

	recognized := map[string]bool{
		"OBJL": true, "_scaleNum": true, "SCAMIN": true, "OBJNAM": true,
		"SECTR1": true, "SECTR2": true, "COLOUR": true, "CATCOV": true,
		"VALNMR": true, "tippecanoe": true,
	}
	for k, v := range raw {
		if !recognized[k] {
			p.Extra[k] = v
		}
	}

	return p, nil
}

func numericProp(raw geojson.Properties, key string) (float64, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func hintFromMap(m map[string]any) *types.Tippecanoe {
	h := &types.Tippecanoe{Layer: "charts"}
	if v, ok := numericFromAny(m["minzoom"]); ok {
		h.MinZoom = int(v)
	}
	if v, ok := numericFromAny(m["maxzoom"]); ok {
		h.MaxZoom = int(v)
	}
	if v, ok := m["layer"].(string); ok {
		h.Layer = v
	}
	return h
}

func numericFromAny(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// ToGeoJSONFeature serializes a typed feature back to wire form, writing its
// output tippecanoe hint (f.Out) as the "tippecanoe" property, matching the
// per-scale intermediate format tile generators expect.
func ToGeoJSONFeature(f types.Feature) (*geojson.Feature, error) {
	if f.Out == nil {
		return nil, fmt.Errorf("feature has no output zoom range assigned")
	}

	gf := geojson.NewFeature(f.Geometry)
	gf.Properties = make(map[string]any, len(f.Props.Extra)+8)
	for k, v := range f.Props.Extra {
		gf.Properties[k] = v
	}
	gf.Properties["OBJL"] = f.Props.OBJL
	gf.Properties["_scaleNum"] = f.Props.ScaleNum
	if f.Props.HasSCAMIN {
		gf.Properties["SCAMIN"] = f.Props.SCAMIN
	}
	if f.Props.OBJNAM != "" {
		gf.Properties["OBJNAM"] = f.Props.OBJNAM
	}
	if f.Props.HasSector {
		gf.Properties["SECTR1"] = f.Props.SECTR1
		gf.Properties["SECTR2"] = f.Props.SECTR2
	}
	if f.Props.COLOUR != "" {
		gf.Properties["COLOUR"] = f.Props.COLOUR
	}
	if f.Props.CATCOV != 0 {
		gf.Properties["CATCOV"] = f.Props.CATCOV
	}

	gf.Properties["tippecanoe"] = map[string]any{
		"minzoom": f.Out.MinZoom,
		"maxzoom": f.Out.MaxZoom,
		"layer":   f.Out.Layer,
	}

	return gf, nil
}
