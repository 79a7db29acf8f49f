package partition

import "math"

// ScaminToMinzoom converts a SCAMIN (the chart-plotted minimum display scale)
// into the tippecanoe minzoom at which the feature should start appearing,
// never lower than nativeLow. headroom shifts the whole curve by a constant
// number of zoom levels, letting an operator show features slightly earlier
// than their nominal SCAMIN implies.
//
// scamin <= 0 means no SCAMIN was recorded; the feature is visible from its
// native floor.
func ScaminToMinzoom(scamin float64, nativeLow int, headroom float64) int {
	if scamin <= 0 {
		return nativeLow
	}
	mz := int(math.Round(28 - headroom - math.Log2(scamin)))
	if mz < nativeLow {
		return nativeLow
	}
	return mz
}
