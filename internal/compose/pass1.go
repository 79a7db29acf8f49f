package compose

import (
	"fmt"
	"os"

	"github.com/xnautical/enc-compose/internal/coverage"
	"github.com/xnautical/enc-compose/internal/dedup"
	"github.com/xnautical/enc-compose/internal/geojson"
	"github.com/xnautical/enc-compose/internal/ingest"
	"github.com/xnautical/enc-compose/internal/tracer"
	"github.com/xnautical/enc-compose/internal/types"
)

// runPass1 streams every chart's features once, in chart-ID order, folding
// each into the dedup index and, for M_COVR features, the coverage index.
// Charts are read one at a time and never held in memory in full.
func runPass1(charts []ingest.Chart, dedupIdx *dedup.Index, covIdx *coverage.Index, tr *tracer.Tracer) error {
	for _, chart := range charts {
		if err := streamChart(chart, func(f types.Feature) error {
			dedupIdx.Add(f)
			if err := covIdx.Add(f); err != nil {
				return fmt.Errorf("coverage index chart %s: %w", chart.ID, err)
			}
			tr.Event(f, tracer.Found, "pass", 1)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func streamChart(chart ingest.Chart, fn func(types.Feature) error) error {
	f, err := os.Open(chart.Path)
	if err != nil {
		return fmt.Errorf("open chart %s: %w", chart.ID, err)
	}
	defer f.Close()
	return geojson.StreamFeatures(f, chart.ID, fn)
}
