// Package points implements the point extractor: every Point geometry is
// diverted out of the per-scale feature streams and into one of two
// sub-streams feeding the separate point archive.
package points

import "github.com/xnautical/enc-compose/internal/types"

// Kind discriminates the outcome of Extract.
type Kind int

const (
	// Dropped means the point lost the dedup race, or the usage-band cap
	// clamped its visible range to nothing.
	Dropped Kind = iota
	// Diverted means the point is written to its sub-stream.
	Diverted
)

// SubStream is which of the two point sub-streams a diverted point belongs
// to.
type SubStream int

const (
	NavAids SubStream = iota
	Soundings
)

func (s SubStream) String() string {
	if s == Soundings {
		return "soundings"
	}
	return "nav_aids"
}

// Decision is the outcome of running one Point feature through the
// extractor.
type Decision struct {
	Kind   Kind
	Stream SubStream
	Out    types.Tippecanoe
}
