// Package types holds the data model shared across the compose core: the
// feature record read from chart GeoJSON, its property bag, and the
// tippecanoe zoom hint attached during partitioning.
package types

import (
	"github.com/paulmach/orb"
)

// Properties is the typed subset of S-57 attributes the compose core
// actually reasons about, plus an opaque bag for everything else. We do not
// attempt to schematize every possible S-57 attribute.
type Properties struct {
	OBJL     int
	ScaleNum int

	SCAMIN    float64
	HasSCAMIN bool

	OBJNAM string

	SECTR1, SECTR2 float64
	HasSector      bool

	COLOUR string
	CATCOV int
	VALNMR float64

	// Extra carries every property not recognized above, so round-tripping
	// a feature through the compose core never silently drops attributes
	// the tile generator or a downstream consumer might want.
	Extra map[string]any
}

// Tippecanoe is the zoom-hint object attached to every emitted feature, and
// is also how a feature may arrive from ingest with a pre-existing range.
type Tippecanoe struct {
	MinZoom int
	MaxZoom int
	Layer   string
}

// Valid reports whether the hint satisfies 0 <= minzoom <= maxzoom <= 15.
func (t Tippecanoe) Valid() bool {
	return t.MinZoom >= 0 && t.MinZoom <= t.MaxZoom && t.MaxZoom <= 15
}

// Feature is one ENC feature as read from a chart's GeoJSON collection.
type Feature struct {
	ChartID string
	Index   int // position within the chart's feature array, for tie-breaks

	Geometry orb.Geometry
	Props    Properties

	// Hint is the pre-existing tippecanoe object from ingest, if any.
	Hint *Tippecanoe

	// Out is populated during partitioning; nil until then.
	Out *Tippecanoe
}

// IsPoint reports whether the feature's geometry is a point (not a
// multi-point — those are treated as ordinary geometries in this pipeline
// since the spec only diverts single points).
func (f Feature) IsPoint() bool {
	_, ok := f.Geometry.(orb.Point)
	return ok
}

// ParticipatesInDedup reports whether this feature's OBJL is in the dedup
// set (see DedupSet); all other OBJLs are pass-through.
func (f Feature) ParticipatesInDedup() bool {
	return DedupSet[f.Props.OBJL]
}

// IsSkinOfEarth reports whether this feature's OBJL is exempt from SCAMIN
// suppression.
func (f Feature) IsSkinOfEarth() bool {
	return SkinOfEarth[f.Props.OBJL]
}
