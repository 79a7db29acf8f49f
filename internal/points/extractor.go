package points

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/xnautical/enc-compose/internal/coverage"
	"github.com/xnautical/enc-compose/internal/dedup"
	"github.com/xnautical/enc-compose/internal/partition"
	"github.com/xnautical/enc-compose/internal/types"
)

// Extractor runs the Point half of pass 2: SCAMIN-derived minzoom, usage-band
// capping against every higher scale's coverage mask, sub-stream routing, and
// sector-light indexing. Not safe for concurrent use.
type Extractor struct {
	coverage *coverage.Index
	dedup    *dedup.Index
	headroom float64

	sectorLights []SectorLightEntry
}

// NewExtractor builds a point extractor over the already-populated dedup and
// coverage indexes from pass 1. headroom is the SCAMIN-to-minzoom shift (see
// partition.ScaminToMinzoom).
func NewExtractor(cov *coverage.Index, ded *dedup.Index, headroom float64) *Extractor {
	return &Extractor{coverage: cov, dedup: ded, headroom: headroom}
}

// Extract decides the fate of one Point feature. Callers route every
// f.IsPoint() feature here instead of partition.Engine.Decide.
func (e *Extractor) Extract(f types.Feature) (Decision, error) {
	if !e.dedup.IsWinner(f) {
		return Decision{Kind: Dropped}, nil
	}

	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Decision{}, fmt.Errorf("points: feature geometry is not a Point (objl=%d)", f.Props.OBJL)
	}

	native, ok := types.ScaleBand(f.Props.ScaleNum).NativeRange()
	if !ok {
		return Decision{Kind: Dropped}, nil
	}

	scamin, _ := e.attachedScamin(f)
	minZoom := partition.ScaminToMinzoom(scamin, 0, e.headroom)
	maxZoom := native.Hi

	for _, s := range e.coverage.HigherScales(f.Props.ScaleNum) {
		mask, ok := e.coverage.Mask(s)
		if !ok {
			continue
		}
		inside, err := coverage.Contains(pt, mask)
		if err != nil {
			return Decision{}, err
		}
		if !inside {
			continue
		}
		higherNative, ok := types.ScaleBand(s).NativeRange()
		if ok {
			maxZoom = higherNative.Lo - 1
		}
		break
	}

	if maxZoom < minZoom {
		return Decision{Kind: Dropped}, nil
	}

	if f.Props.OBJL == types.OBJLLights && f.Props.HasSector {
		e.sectorLights = append(e.sectorLights, SectorLightEntry{
			Lon: round6(pt[0]), Lat: round6(pt[1]),
			Sectr1: f.Props.SECTR1, Sectr2: f.Props.SECTR2,
			Colour:   f.Props.COLOUR,
			Scamin:   scamin,
			ScaleNum: f.Props.ScaleNum,
			MaxZoom:  maxZoom,
			Valnmr:   f.Props.VALNMR,
		})
	}

	stream := NavAids
	if f.Props.OBJL == types.OBJLSounding {
		stream = Soundings
	}

	return Decision{
		Kind:   Diverted,
		Stream: stream,
		Out:    types.Tippecanoe{MinZoom: minZoom, MaxZoom: maxZoom, Layer: stream.String()},
	}, nil
}

// SectorLights returns every sector-light index entry collected so far, in
// the order features were extracted.
func (e *Extractor) SectorLights() []SectorLightEntry {
	return e.sectorLights
}

// attachedScamin resolves the SCAMIN value to carry on this point: the
// dedup key's best (most permissive) SCAMIN across all copies if the point
// participates in dedup, otherwise its own.
func (e *Extractor) attachedScamin(f types.Feature) (float64, bool) {
	if key, ok := dedup.Key(f); ok {
		if entry, found := e.dedup.Entry(key); found {
			return entry.BestSCAMIN, entry.HasBestSCAMIN
		}
	}
	return f.Props.SCAMIN, f.Props.HasSCAMIN
}
