package compose

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"github.com/xnautical/enc-compose/internal/coverage"
	"github.com/xnautical/enc-compose/internal/mbtiles"
	"github.com/xnautical/enc-compose/internal/points"
)

// coverageSimplifyToleranceDegrees approximates the spec's "~100m tolerance"
// for the coverage_boundaries export; 1 degree of latitude is ~111km.
const coverageSimplifyToleranceDegrees = 100.0 / 111_000.0

// injectPointMetadata writes the two extra metadata rows the point archive
// needs beyond what the external tile generator already wrote: the
// sector-light index and the per-scale coverage boundary polygons.
func injectPointMetadata(path string, cov *coverage.Index, extractor *points.Extractor) error {
	lights, err := json.Marshal(extractor.SectorLights())
	if err != nil {
		return fmt.Errorf("marshal sector lights: %w", err)
	}
	if err := mbtiles.SetMetadataValue(path, "sector_lights", string(lights)); err != nil {
		return err
	}

	boundaries := map[string]json.RawMessage{}
	for _, scale := range cov.Scales() {
		region, ok := cov.Region(scale)
		if !ok {
			continue
		}
		simplified, err := coverage.Simplify(region, coverageSimplifyToleranceDegrees)
		if err != nil {
			return fmt.Errorf("simplify coverage scale %d: %w", scale, err)
		}
		gj, err := geojson.NewGeometry(simplified).MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal coverage scale %d: %w", scale, err)
		}
		boundaries[strconv.Itoa(scale)] = gj
	}
	boundariesJSON, err := json.Marshal(boundaries)
	if err != nil {
		return fmt.Errorf("marshal coverage boundaries: %w", err)
	}
	return mbtiles.SetMetadataValue(path, "coverage_boundaries", string(boundariesJSON))
}
