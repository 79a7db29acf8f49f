package partition

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xnautical/enc-compose/internal/types"
)

// ComputeZoomOwnership assigns every zoom 0..15 to the largest scale among
// candidates whose native range contains it, then collapses each scale's
// assigned zooms into one contiguous ZoomRange. A scale with no assigned
// zoom is absent from the result.
func ComputeZoomOwnership(candidates []int) map[int]types.ZoomRange {
	const maxZoom = 15
	owner := make([]int, maxZoom+1)
	for z := 0; z <= maxZoom; z++ {
		best := 0
		for _, s := range candidates {
			r, ok := types.ScaleBand(s).NativeRange()
			if !ok || !r.Contains(z) {
				continue
			}
			if s > best {
				best = s
			}
		}
		owner[z] = best
	}

	out := map[int]types.ZoomRange{}
	for z := 0; z <= maxZoom; z++ {
		s := owner[z]
		if s == 0 {
			continue
		}
		if r, ok := out[s]; ok {
			if z < r.Lo {
				r.Lo = z
			}
			if z > r.Hi {
				r.Hi = z
			}
			out[s] = r
		} else {
			out[s] = types.ZoomRange{Lo: z, Hi: z}
		}
	}
	return out
}

// OwnershipCache memoizes ComputeZoomOwnership by the frozen set of
// participating scales, since the same scale combinations recur across
// thousands of features in a single run.
type OwnershipCache struct {
	memo map[string]map[int]types.ZoomRange
}

// NewOwnershipCache creates an empty cache.
func NewOwnershipCache() *OwnershipCache {
	return &OwnershipCache{memo: map[string]map[int]types.ZoomRange{}}
}

// Get returns the memoized ownership table for candidates, computing and
// storing it on first use. Pass-2 runs single-threaded, so no locking.
func (c *OwnershipCache) Get(candidates []int) map[int]types.ZoomRange {
	key := cacheKey(candidates)
	if v, ok := c.memo[key]; ok {
		return v
	}
	v := ComputeZoomOwnership(candidates)
	c.memo[key] = v
	return v
}

func cacheKey(scales []int) string {
	sorted := append([]int(nil), scales...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

// intersect returns the overlap of a and b, which may be Empty.
func intersect(a, b types.ZoomRange) types.ZoomRange {
	lo := a.Lo
	if b.Lo > lo {
		lo = b.Lo
	}
	hi := a.Hi
	if b.Hi < hi {
		hi = b.Hi
	}
	return types.ZoomRange{Lo: lo, Hi: hi}
}
