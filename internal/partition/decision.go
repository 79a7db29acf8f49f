// Package partition implements pass 2 of the compose core: for every
// surviving feature it decides whether it is dropped, diverted to the point
// stream, clipped against a higher-scale coverage mask, split across zoom
// ownership, or simply written through at its native scale band.
package partition

import (
	"github.com/paulmach/orb"
	"github.com/xnautical/enc-compose/internal/types"
)

// Kind discriminates the shape of a Decision.
type Kind int

const (
	// Dropped means the feature is a dedup loser or carries no geometry.
	Dropped Kind = iota
	// PointDiverted means the feature was handed to the point extractor
	// instead of the per-scale partitioner; Decide never returns this
	// itself, it exists so callers can record it uniformly.
	PointDiverted
	// ClippedEntirelyInside means a higher-scale coverage polygon fully
	// covers the feature: only the gap and filler copies are emitted.
	ClippedEntirelyInside
	// PartitionedDedup means the feature is a dedup winner whose key was
	// seen at more than one scale, and is split across zoom ownership.
	PartitionedDedup
	// PartitionedHint means the feature's pre-existing tippecanoe hint
	// range extends beyond its native scale band, and is split the same way.
	PartitionedHint
	// SingleScale is the ordinary case: one copy, SCAMIN-derived minzoom,
	// native-band maxzoom.
	SingleScale
)

// Slice is one zoom-ownership-owned output copy of a partitioned feature.
type Slice struct {
	Scale int
	types.ZoomRange
	Layer string
}

// Decision is the outcome of running a feature through the partitioner.
type Decision struct {
	Kind Kind

	// Single is set for SingleScale.
	Single *types.Tippecanoe

	// Outside is set whenever a higher-scale coverage mask trims the
	// feature's geometry: the remainder, which replaces the feature's
	// original geometry before it is written at any Kind below (the trimmed
	// feature still goes through ownership partitioning, it does not stop
	// at SingleScale).
	Outside orb.Geometry

	// Inside is set alongside Gap/Filler: the mask-covered portion of the
	// geometry (the whole feature when ClippedEntirelyInside, the
	// intersection when trimmed), used to draw the gap and SCAMIN filler
	// copies instead of the full original geometry.
	Inside orb.Geometry

	// Gap and Filler are set whenever a higher-scale coverage mask affects
	// the feature, regardless of the Kind the trimmed remainder ultimately
	// took.
	Gap    *types.Tippecanoe
	Filler *types.Tippecanoe

	// Slices is set for PartitionedDedup and PartitionedHint.
	Slices []Slice
}
