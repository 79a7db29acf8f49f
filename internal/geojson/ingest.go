package geojson

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
	"github.com/xnautical/enc-compose/internal/types"
)

// StreamFeatures walks the "features" array of a chart's GeoJSON
// FeatureCollection one element at a time, converting and handing each to
// fn as it is decoded. The collection is never materialized in full: at any
// point only the current feature's raw bytes are held, satisfying the
// two-pass streaming design (never load all charts into memory).
func StreamFeatures(r io.Reader, chartID string, fn func(types.Feature) error) error {
	dec := json.NewDecoder(r)

	if err := seekFeaturesArray(dec); err != nil {
		return fmt.Errorf("chart %s: %w", chartID, err)
	}

	index := 0
	for dec.More() {
		var raw geojson.Feature
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("chart %s feature %d: decode: %w", chartID, index, err)
		}
		f, err := ToFeature(&raw, chartID, index)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
		index++
	}

	// consume the closing ']'
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("chart %s: %w", chartID, err)
	}

	return nil
}

// seekFeaturesArray advances dec past every token up to and including the
// opening '[' of the top-level "features" key.
func seekFeaturesArray(dec *json.Decoder) error {
	// top-level '{'
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read opening token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected feature collection object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key, _ := keyTok.(string)

		if key == "features" {
			arrTok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("read features array: %w", err)
			}
			if d, ok := arrTok.(json.Delim); !ok || d != '[' {
				return fmt.Errorf("features is not an array")
			}
			return nil
		}

		// skip the value for any other top-level key (type, crs, etc.)
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return fmt.Errorf("skip key %q: %w", key, err)
		}
	}

	return fmt.Errorf("no \"features\" key found")
}
