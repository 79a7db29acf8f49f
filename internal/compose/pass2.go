package compose

import (
	"fmt"

	"github.com/xnautical/enc-compose/internal/ingest"
	"github.com/xnautical/enc-compose/internal/partition"
	"github.com/xnautical/enc-compose/internal/points"
	"github.com/xnautical/enc-compose/internal/tracer"
	"github.com/xnautical/enc-compose/internal/types"
)

// runPass2 re-reads every chart's features a second time, in the same
// chart-ID order as pass 1, and writes each surviving feature to its
// target stream: a per-scale ndjson file for ordinary features, or one of
// the two point sub-streams for every Point geometry. Nothing here mutates
// the pass-1 indexes; they are read-only from here on.
func runPass2(charts []ingest.Chart, engine *partition.Engine, extractor *points.Extractor, streams *streamSet, tr *tracer.Tracer) error {
	for _, chart := range charts {
		if err := streamChart(chart, func(f types.Feature) error {
			if f.IsPoint() {
				return writePoint(f, extractor, streams, tr)
			}
			return writeFeature(f, engine, streams, tr)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writePoint(f types.Feature, extractor *points.Extractor, streams *streamSet, tr *tracer.Tracer) error {
	d, err := extractor.Extract(f)
	if err != nil {
		return fmt.Errorf("point extract chart %s feature %d: %w", f.ChartID, f.Index, err)
	}
	if d.Kind == points.Dropped {
		tr.Event(f, tracer.WriteSkipped, "reason", "point-dropped")
		return nil
	}

	var w interface {
		Write(types.Feature) error
	}
	switch d.Stream {
	case points.Soundings:
		w, err = streams.soundings()
	default:
		w, err = streams.navAids()
	}
	if err != nil {
		return err
	}

	out := d.Out
	f.Out = &out
	tr.Event(f, tracer.PointExtract, "substream", d.Stream.String(), "minzoom", out.MinZoom, "maxzoom", out.MaxZoom)
	return w.Write(f)
}

func writeFeature(f types.Feature, engine *partition.Engine, streams *streamSet, tr *tracer.Tracer) error {
	d, err := engine.Decide(f)
	if err != nil {
		return fmt.Errorf("partition decide chart %s feature %d: %w", f.ChartID, f.Index, err)
	}

	scale := f.Props.ScaleNum

	if d.Kind == partition.Dropped {
		tr.Event(f, tracer.WriteSkipped, "reason", "dedup-or-null-geometry")
		return nil
	}

	// A higher-scale mask trimmed this feature's geometry: the outside
	// remainder replaces the original geometry for every copy written
	// below, whatever Kind the trimmed remainder ultimately took.
	if d.Outside != nil {
		tr.Event(f, tracer.MCovrTrimmed, "scale", scale)
		f.Geometry = d.Outside
	}

	switch d.Kind {
	case partition.ClippedEntirelyInside:
		tr.Event(f, tracer.MCovrClipped, "scale", scale)

	case partition.PartitionedDedup, partition.PartitionedHint:
		tr.Event(f, tracer.WritePartitioned, "slices", len(d.Slices))
		for _, slice := range d.Slices {
			copyF := f
			out := types.Tippecanoe{MinZoom: slice.Lo, MaxZoom: slice.Hi, Layer: slice.Layer}
			copyF.Out = &out
			if err := writeScale(copyF, slice.Scale, streams); err != nil {
				return err
			}
		}

	case partition.SingleScale:
		tr.Event(f, tracer.WriteSingle, "minzoom", d.Single.MinZoom, "maxzoom", d.Single.MaxZoom)
		single := f
		out := *d.Single
		single.Out = &out
		if err := writeScale(single, scale, streams); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unhandled partition decision kind %v", d.Kind)
	}

	return writeGapFiller(f, scale, streams, d)
}

// writeGapFiller emits the zoom-range bridge copies that keep a clipped
// feature from disappearing between its own visibility and the higher
// scale's. Both are drawn from d.Inside — the mask-covered portion of the
// geometry — never from the feature's full original geometry, so the
// outside remainder already written above is never double-drawn.
func writeGapFiller(f types.Feature, scale int, streams *streamSet, d partition.Decision) error {
	if d.Gap == nil && d.Filler == nil {
		return nil
	}
	base := f
	if d.Inside != nil {
		base.Geometry = d.Inside
	}
	if d.Gap != nil {
		gap := base
		out := *d.Gap
		gap.Out = &out
		if err := writeScale(gap, scale, streams); err != nil {
			return err
		}
	}
	if d.Filler != nil {
		filler := base
		out := *d.Filler
		filler.Out = &out
		if err := writeScale(filler, scale, streams); err != nil {
			return err
		}
	}
	return nil
}

func writeScale(f types.Feature, scale int, streams *streamSet) error {
	w, err := streams.scale(scale)
	if err != nil {
		return err
	}
	return w.Write(f)
}
