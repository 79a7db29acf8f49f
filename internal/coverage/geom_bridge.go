// geom_bridge.go converts between paulmach/orb (the representation used
// everywhere else in the compose core) and peterstace/simplefeatures (the
// one geometry engine in this module with boolean-operation and
// make-valid primitives — see DESIGN.md for why no pack example supplies
// one). orb has no Union/Intersection/Difference/MakeValid of its own, so
// every set operation crosses this bridge via WKT.
package coverage

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	sfgeom "github.com/peterstace/simplefeatures/geom"
)

func orbToSF(g orb.Geometry) (sfgeom.Geometry, error) {
	if g == nil {
		return sfgeom.Geometry{}, fmt.Errorf("nil geometry")
	}
	text := wkt.MarshalString(g)
	sg, err := sfgeom.UnmarshalWKT(text, sfgeom.NoValidate{})
	if err != nil {
		return sfgeom.Geometry{}, fmt.Errorf("wkt -> simplefeatures: %w", err)
	}
	return makeValid(sg)
}

func sfToOrb(g sfgeom.Geometry) (orb.Geometry, error) {
	text := g.AsText()
	out, err := wkt.Unmarshal([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("simplefeatures -> wkt: %w", err)
	}
	return out, nil
}

// makeValid repairs a topologically invalid geometry. Invalid ENC coverage
// polygons are not rare (self-touching rings at chart-boundary stitches),
// so every geometry entering a boolean operation passes through here first.
func makeValid(g sfgeom.Geometry) (sfgeom.Geometry, error) {
	if g.IsValid() {
		return g, nil
	}
	// Unioning a geometry with itself forces the engine to resolve
	// self-intersections and normalize ring orientation.
	fixed, err := sfgeom.Union(g, g)
	if err != nil {
		return sfgeom.Geometry{}, fmt.Errorf("make-valid: %w", err)
	}
	return fixed, nil
}
