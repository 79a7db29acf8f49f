package coverage

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	sfgeom "github.com/peterstace/simplefeatures/geom"
	"github.com/xnautical/enc-compose/internal/types"
)

// Index unions per-scale M_COVR coverage polygons and builds the
// higher-scale clip mask table: for scale S, the mask is the coverage
// geometry of scale S+1 only, not the union of everything above it.
type Index struct {
	regions map[int]sfgeom.Geometry
}

// New creates an empty coverage index.
func New() *Index {
	return &Index{regions: map[int]sfgeom.Geometry{}}
}

// Add folds one feature's coverage polygon in, if it is an authoritative
// M_COVR (OBJL=302, CATCOV=1). Any other feature is ignored.
func (ix *Index) Add(f types.Feature) error {
	if f.Props.OBJL != types.OBJLCoverage || f.Props.CATCOV != 1 {
		return nil
	}

	sg, err := orbToSF(f.Geometry)
	if err != nil {
		return fmt.Errorf("coverage polygon chart %s: %w", f.ChartID, err)
	}

	cur, ok := ix.regions[f.Props.ScaleNum]
	if !ok {
		ix.regions[f.Props.ScaleNum] = sg
		return nil
	}
	merged, err := sfgeom.Union(cur, sg)
	if err != nil {
		return fmt.Errorf("union coverage scale %d: %w", f.Props.ScaleNum, err)
	}
	ix.regions[f.Props.ScaleNum] = merged
	return nil
}

// Scales returns, sorted ascending, every scale that had at least one
// coverage polygon.
func (ix *Index) Scales() []int {
	out := make([]int, 0, len(ix.regions))
	for s := range ix.regions {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// Region returns scale S's coverage union, as an orb geometry, if any.
func (ix *Index) Region(scale int) (orb.Geometry, bool) {
	sg, ok := ix.regions[scale]
	if !ok {
		return nil, false
	}
	g, err := sfToOrb(sg)
	if err != nil {
		return nil, false
	}
	return g, true
}

// HigherScaleMask returns the clip mask for scale: the coverage region of
// scale+1, if any chart at that scale declared coverage.
func (ix *Index) HigherScaleMask(scale int) (sfgeom.Geometry, bool) {
	sg, ok := ix.regions[scale+1]
	return sg, ok
}

// HigherScales returns, ascending, every scale strictly greater than scale
// that has at least one coverage polygon — every candidate the usage-band
// cap must check, not just scale+1.
func (ix *Index) HigherScales(scale int) []int {
	var out []int
	for s := range ix.regions {
		if s > scale {
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

// Mask returns scale's coverage union as a simplefeatures geometry, if any.
func (ix *Index) Mask(scale int) (sfgeom.Geometry, bool) {
	sg, ok := ix.regions[scale]
	return sg, ok
}

// ClipResult is the outcome of clipping a feature's geometry against a
// higher-scale mask.
type ClipResult struct {
	// EntirelyInside is true when the feature geometry is fully covered by
	// the mask: no "normal" copy should be emitted, only gap/filler copies.
	EntirelyInside bool
	// Crosses is true when part of the geometry lies outside the mask.
	// Outside holds that remainder, to be emitted as the normal feature.
	Crosses bool
	Outside orb.Geometry
	// Inside holds the portion of g that falls within mask — the whole
	// geometry when EntirelyInside, the intersection when Crosses. The gap
	// and SCAMIN filler copies are drawn from this, not from the full
	// original geometry, so the outside remainder is never double-drawn.
	Inside orb.Geometry
}

// Clip subtracts mask from g. If g does not intersect mask at all, Clip
// returns a zero-value ClipResult (neither EntirelyInside nor Crosses),
// signaling the caller to treat the feature as unaffected by this scale's
// higher-scale coverage.
func Clip(g orb.Geometry, mask sfgeom.Geometry) (ClipResult, error) {
	sg, err := orbToSF(g)
	if err != nil {
		return ClipResult{}, err
	}

	if !sfgeom.Intersects(sg, mask) {
		return ClipResult{}, nil
	}

	diff, err := sfgeom.Difference(sg, mask)
	if err != nil {
		return ClipResult{}, fmt.Errorf("difference: %w", err)
	}

	if diff.IsEmpty() {
		inside, err := sfToOrb(sg)
		if err != nil {
			return ClipResult{}, err
		}
		return ClipResult{EntirelyInside: true, Inside: inside}, nil
	}

	outside, err := sfToOrb(diff)
	if err != nil {
		return ClipResult{}, err
	}

	inter, err := sfgeom.Intersection(sg, mask)
	if err != nil {
		return ClipResult{}, fmt.Errorf("intersection: %w", err)
	}
	inside, err := sfToOrb(inter)
	if err != nil {
		return ClipResult{}, err
	}

	return ClipResult{Crosses: true, Outside: outside, Inside: inside}, nil
}

// Contains reports whether pt falls inside mask.
func Contains(pt orb.Point, mask sfgeom.Geometry) (bool, error) {
	sg, err := orbToSF(pt)
	if err != nil {
		return false, err
	}
	return sfgeom.Intersects(sg, mask), nil
}

// Simplify reduces a coverage region to within tolerance (degrees,
// approximating the spec's "~100m tolerance" for the coverage_boundaries
// metadata export).
func Simplify(g orb.Geometry, toleranceDegrees float64) (orb.Geometry, error) {
	sg, err := orbToSF(g)
	if err != nil {
		return nil, err
	}
	simplified, err := sfgeom.Simplify(sg, toleranceDegrees)
	if err != nil {
		return nil, fmt.Errorf("simplify: %w", err)
	}
	return sfToOrb(simplified)
}
