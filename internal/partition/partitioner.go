package partition

import (
	"sort"

	"github.com/samber/lo"

	"github.com/xnautical/enc-compose/internal/coverage"
	"github.com/xnautical/enc-compose/internal/dedup"
	"github.com/xnautical/enc-compose/internal/types"
)

const defaultLayer = "charts"

// Engine runs pass 2: it consumes the dedup winner table and the coverage
// index built in pass 1, and turns each surviving feature into a Decision.
// Engine is not safe for concurrent use; pass 2 runs single-threaded per
// scale stream.
type Engine struct {
	dedup     *dedup.Index
	coverage  *coverage.Index
	headroom  float64
	ownership *OwnershipCache
}

// NewEngine builds a partitioning engine over the given dedup and coverage
// indexes. headroom is the SCAMIN-to-minzoom shift (see ScaminToMinzoom).
func NewEngine(d *dedup.Index, c *coverage.Index, headroom float64) *Engine {
	return &Engine{dedup: d, coverage: c, headroom: headroom, ownership: NewOwnershipCache()}
}

// Decide runs one non-Point feature through the full pass-2 pipeline. Point
// features must be routed to the point extractor before ever reaching here;
// callers that see f.IsPoint() should skip Decide entirely.
func (e *Engine) Decide(f types.Feature) (Decision, error) {
	if !e.dedup.IsWinner(f) {
		return Decision{Kind: Dropped}, nil
	}
	if f.Geometry == nil {
		return Decision{Kind: Dropped}, nil
	}

	scale := f.Props.ScaleNum
	native, ok := types.ScaleBand(scale).NativeRange()
	if !ok {
		return Decision{Kind: Dropped}, nil
	}

	layer := normalizeLayer(f.Hint)

	if mask, ok := e.coverage.HigherScaleMask(scale); ok {
		clip, err := coverage.Clip(f.Geometry, mask)
		if err != nil {
			return Decision{}, err
		}
		if clip.EntirelyInside {
			gap, filler := e.gapAndFiller(f, scale, native, layer)
			return Decision{Kind: ClippedEntirelyInside, Gap: gap, Filler: filler, Inside: clip.Inside}, nil
		}
		if clip.Crosses {
			gap, filler := e.gapAndFiller(f, scale, native, layer)

			// The trimmed remainder still goes through ownership
			// partitioning: a clipped feature that is also a multi-scale
			// dedup winner must not be emitted across its whole native
			// range on one scale, stepping on a higher scale's owned zooms.
			// The decision is made on the unclipped feature so its dedup key
			// matches the one pass 1 indexed; Outside carries the remainder.
			d, err := e.partitionOrSingle(f, scale, native, layer)
			if err != nil {
				return Decision{}, err
			}
			d.Outside = clip.Outside
			d.Inside = clip.Inside
			d.Gap = gap
			d.Filler = filler
			return d, nil
		}
	}

	return e.partitionOrSingle(f, scale, native, layer)
}

// gapAndFiller computes the [myMinzoom, higherFloor-1] gap copy and the
// [max(myMinzoom,higherFloor), higherFeatureMinzoom-1] filler copy for a
// feature clipped by scale+1's coverage. Either may come back nil if its
// range is empty.
func (e *Engine) gapAndFiller(f types.Feature, scale int, native types.ZoomRange, layer string) (*types.Tippecanoe, *types.Tippecanoe) {
	higherScale := scale + 1
	higherNative, ok := types.ScaleBand(higherScale).NativeRange()
	if !ok {
		return nil, nil
	}
	higherFloor := higherNative.Lo

	myMinzoom := e.featureMinzoom(f, native.Lo)

	var higherFeatureMinzoom int
	if scamin, ok := e.dedup.TightestScamin(higherScale, f.Props.OBJL); ok {
		higherFeatureMinzoom = ScaminToMinzoom(scamin, higherFloor, e.headroom)
	} else if e.dedup.HasObjlAtScale(higherScale, f.Props.OBJL) {
		higherFeatureMinzoom = higherFloor
	} else {
		higherFeatureMinzoom = native.Hi + 1
	}

	var gap *types.Tippecanoe
	if myMinzoom <= higherFloor-1 {
		gap = &types.Tippecanoe{MinZoom: myMinzoom, MaxZoom: higherFloor - 1, Layer: layer}
	}

	fillerLo := myMinzoom
	if higherFloor > fillerLo {
		fillerLo = higherFloor
	}
	var filler *types.Tippecanoe
	if fillerLo <= higherFeatureMinzoom-1 {
		filler = &types.Tippecanoe{MinZoom: fillerLo, MaxZoom: higherFeatureMinzoom - 1, Layer: layer}
	}

	return gap, filler
}

// featureMinzoom is the feature's own SCAMIN-derived minzoom, exempting
// skin-of-earth OBJLs (always visible from their native floor).
func (e *Engine) featureMinzoom(f types.Feature, nativeLow int) int {
	if f.IsSkinOfEarth() {
		return nativeLow
	}
	return ScaminToMinzoom(f.Props.SCAMIN, nativeLow, e.headroom)
}

func (e *Engine) singleScaleHint(f types.Feature, scale int, native types.ZoomRange, layer string) types.Tippecanoe {
	return types.Tippecanoe{
		MinZoom: e.featureMinzoom(f, native.Lo),
		MaxZoom: native.Hi,
		Layer:   layer,
	}
}

func (e *Engine) partitionOrSingle(f types.Feature, scale int, native types.ZoomRange, layer string) (Decision, error) {
	key, inDedup := dedup.Key(f)

	var candidateScales []int
	var desired types.ZoomRange
	partitioned := false
	viaDedup := false

	if inDedup {
		if scales := e.dedup.Scales(key); len(scales) > 1 {
			partitioned = true
			viaDedup = true
			candidateScales = lo.Keys(scales)
			desired = unionNativeRange(candidateScales)
		}
	}
	if !partitioned && f.Hint != nil {
		if f.Hint.MinZoom < native.Lo || f.Hint.MaxZoom > native.Hi {
			partitioned = true
			desired = types.ZoomRange{Lo: f.Hint.MinZoom, Hi: f.Hint.MaxZoom}
			candidateScales = allScaleBands()
		}
	}

	if !partitioned {
		single := e.singleScaleHint(f, scale, native, layer)
		return Decision{Kind: SingleScale, Single: &single}, nil
	}

	scaminFloor := e.featureMinzoom(f, desired.Lo)
	if scaminFloor > desired.Lo {
		desired.Lo = scaminFloor
	}

	ownership := e.ownership.Get(candidateScales)
	sort.Ints(candidateScales)

	var slices []Slice
	for _, s := range candidateScales {
		owned, ok := ownership[s]
		if !ok {
			continue
		}
		r := intersect(owned, desired)
		if r.Empty() {
			continue
		}
		slices = append(slices, Slice{Scale: s, ZoomRange: r, Layer: layer})
	}
	if len(slices) == 0 {
		single := e.singleScaleHint(f, scale, native, layer)
		return Decision{Kind: SingleScale, Single: &single}, nil
	}

	kind := PartitionedHint
	if viaDedup {
		kind = PartitionedDedup
	}
	return Decision{Kind: kind, Slices: slices}, nil
}

func unionNativeRange(scales []int) types.ZoomRange {
	var out types.ZoomRange
	first := true
	for _, s := range scales {
		r, ok := types.ScaleBand(s).NativeRange()
		if !ok {
			continue
		}
		if first {
			out = r
			first = false
			continue
		}
		if r.Lo < out.Lo {
			out.Lo = r.Lo
		}
		if r.Hi > out.Hi {
			out.Hi = r.Hi
		}
	}
	return out
}

func allScaleBands() []int {
	return []int{1, 2, 3, 4, 5, 6}
}

func normalizeLayer(hint *types.Tippecanoe) string {
	if hint == nil {
		return defaultLayer
	}
	switch hint.Layer {
	case "charts", "arcs":
		return hint.Layer
	default:
		return defaultLayer
	}
}
