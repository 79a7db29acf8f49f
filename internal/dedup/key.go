// Package dedup computes cross-scale dedup fingerprints and tracks, per
// fingerprint, which chart's copy wins and what every other scale knew
// about it — the pass-1 indexer described in the component design.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/xnautical/enc-compose/internal/types"
)

// Key computes the dedup fingerprint for f. ok is false if f's OBJL is not
// in the dedup set, meaning f is pass-through and never fingerprinted.
func Key(f types.Feature) (key string, ok bool) {
	if !f.ParticipatesInDedup() {
		return "", false
	}
	if pt, isPoint := f.Geometry.(orb.Point); isPoint {
		return pointKey(f.Props, pt), true
	}
	return geometryKey(f.Props, f.Geometry), true
}

func pointKey(p types.Properties, pt orb.Point) string {
	lon, lat := pt[0], pt[1]

	if p.OBJL == types.OBJLLights && p.HasSector {
		// Sector bearings distinguish multi-sector lights sharing a coordinate.
		return fmt.Sprintf("%d:%s:%s:%g:%g:%s",
			p.OBJL, round(lon, 5), round(lat, 5), p.SECTR1, p.SECTR2, p.COLOUR)
	}
	if p.OBJNAM != "" {
		// Name is a strong identifier; coordinates stay coarse (~11m) to
		// catch cross-scale drift.
		return fmt.Sprintf("%d:%s:%s:%s", p.OBJL, p.OBJNAM, round(lon, 4), round(lat, 4))
	}
	return fmt.Sprintf("%d:%s:%s", p.OBJL, round(lon, 5), round(lat, 5))
}

func geometryKey(p types.Properties, g orb.Geometry) string {
	pts := flattenCoords(g)
	rounded := make([]string, len(pts))
	for i, pt := range pts {
		rounded[i] = round(pt[0], 5) + "," + round(pt[1], 5)
	}
	sort.Strings(rounded)

	sum := md5.Sum([]byte(strings.Join(rounded, ";")))
	hash := hex.EncodeToString(sum[:])[:12]

	if p.OBJNAM != "" {
		return fmt.Sprintf("%d:%s:%s", p.OBJL, p.OBJNAM, hash)
	}
	return fmt.Sprintf("%d:%s", p.OBJL, hash)
}

func round(v float64, places int) string {
	return fmt.Sprintf("%.*f", places, v)
}

func flattenCoords(g orb.Geometry) []orb.Point {
	switch t := g.(type) {
	case orb.Point:
		return []orb.Point{t}
	case orb.MultiPoint:
		return t
	case orb.LineString:
		return t
	case orb.MultiLineString:
		var pts []orb.Point
		for _, ls := range t {
			pts = append(pts, ls...)
		}
		return pts
	case orb.Ring:
		return t
	case orb.Polygon:
		var pts []orb.Point
		for _, r := range t {
			pts = append(pts, r...)
		}
		return pts
	case orb.MultiPolygon:
		var pts []orb.Point
		for _, poly := range t {
			for _, r := range poly {
				pts = append(pts, r...)
			}
		}
		return pts
	case orb.Collection:
		var pts []orb.Point
		for _, gg := range t {
			pts = append(pts, flattenCoords(gg)...)
		}
		return pts
	default:
		return nil
	}
}
