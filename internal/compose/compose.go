// Package compose implements the chart-compose pipeline end to end: ingest
// chart GeoJSON, build the dedup and coverage indexes in a first pass,
// partition surviving features into per-scale streams in a second pass, fan
// the streams out to an external tile generator, tree-merge the results,
// inject point metadata, validate, and publish.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xnautical/enc-compose/internal/config"
	"github.com/xnautical/enc-compose/internal/coverage"
	"github.com/xnautical/enc-compose/internal/dedup"
	"github.com/xnautical/enc-compose/internal/ingest"
	"github.com/xnautical/enc-compose/internal/merge"
	"github.com/xnautical/enc-compose/internal/partition"
	"github.com/xnautical/enc-compose/internal/points"
	"github.com/xnautical/enc-compose/internal/storage"
	"github.com/xnautical/enc-compose/internal/tracer"
	"github.com/xnautical/enc-compose/internal/validate"
	"github.com/xnautical/enc-compose/internal/worker"
)

// Orchestrator runs one end-to-end compose job against a backing Store.
type Orchestrator struct {
	Store  storage.Store
	Logger *slog.Logger

	// TileGeneratorBin and TileJoinBin override the subprocess binaries the
	// fan-out and tree-merge stages launch. Empty means "use PATH lookup of
	// the default binary name" (see worker.SubprocessLauncher, merge.TileJoinJoiner).
	TileGeneratorBin string
	TileJoinBin      string
}

// Run executes one full compose job for cfg.DistrictID and returns the
// final summary. Every phase transition is logged with elapsed time; on
// failure the last log line names the failed phase/gate.
func (o *Orchestrator) Run(ctx context.Context, cfg config.RunConfig) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, fmt.Errorf("compose: invalid config: %w", err)
	}
	start := time.Now()
	runID := uuid.New().String()
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("district_id", cfg.DistrictID, "run_id", runID)

	phase := func(name string, fn func() error) error {
		t0 := time.Now()
		log.Info("phase start", "phase", name)
		if err := fn(); err != nil {
			log.Error("phase failed", "phase", name, "elapsed", time.Since(t0).String(), "error", err)
			return err
		}
		log.Info("phase complete", "phase", name, "elapsed", time.Since(t0).String())
		return nil
	}

	var (
		ingestResult ingest.Result
		dedupIdx     *dedup.Index
		covIdx       *coverage.Index
		tr           *tracer.Tracer
		streams      *streamSet
		chartsPath   string
		pointsPath   string
		cleanupKeys  []string
	)

	if err := phase("ingest", func() error {
		var err error
		ingestResult, err = ingest.Run(ctx, o.Store, cfg.DistrictID, cfg.WorkDir, cfg.IngestConcurrency)
		if err != nil {
			return err
		}
		if len(ingestResult.Dropped) > 0 {
			log.Warn("charts dropped (present in listing, absent from manifest)", "count", len(ingestResult.Dropped))
		}
		paths := make([]string, len(ingestResult.Charts))
		for i, c := range ingestResult.Charts {
			paths[i] = c.Path
		}
		return validate.Gate2PostIngest(paths)
	}); err != nil {
		return Summary{}, err
	}

	tr = tracer.New(cfg.TraceMatchers, log)
	dedupIdx = dedup.New(cfg.CoordinateDriftTolerance, log)
	covIdx = coverage.New()

	if err := phase("pass1-index", func() error {
		return runPass1(ingestResult.Charts, dedupIdx, covIdx, tr)
	}); err != nil {
		return Summary{}, err
	}

	engine := partition.NewEngine(dedupIdx, covIdx, cfg.Headroom)
	extractor := points.NewExtractor(covIdx, dedupIdx, cfg.Headroom)

	if err := phase("pass2-partition", func() error {
		var err error
		streams, err = newStreamSet(cfg.WorkDir)
		if err != nil {
			return err
		}
		if err := runPass2(ingestResult.Charts, engine, extractor, streams, tr); err != nil {
			return err
		}
		return streams.close()
	}); err != nil {
		return Summary{}, err
	}

	launcher := worker.SubprocessLauncher{
		BinPath:       o.TileGeneratorBin,
		DistrictLabel: cfg.DistrictLabel,
		BucketName:    cfg.BucketName,
	}
	joiner := merge.TileJoinJoiner{BinPath: o.TileJoinBin}

	if err := phase("fan-out-and-merge", func() error {
		var err error
		chartsPath, pointsPath, cleanupKeys, err = runFanOut(ctx, o.Store, cfg.DistrictID, streams, fanOutConfig{
			workDir:          cfg.WorkDir,
			runID:            runID,
			launcher:         launcher,
			joiner:           joiner,
			mergeConcurrency: cfg.MergeConcurrency,
			pollInterval:     cfg.PollInterval,
			pollTimeout:      cfg.PollTimeout,
			queueBound:       cfg.DownloadQueueBound,
		}, log)
		if err != nil {
			return err
		}
		if chartsPath != "" {
			if err := validate.Gate4PostTreeMerge(chartsPath); err != nil {
				return fmt.Errorf("charts archive: %w", err)
			}
		}
		if pointsPath != "" {
			if err := validate.Gate4PostTreeMerge(pointsPath); err != nil {
				return fmt.Errorf("points archive (pre-metadata): %w", err)
			}
		}
		return nil
	}); err != nil {
		return Summary{}, err
	}

	if pointsPath != "" {
		if err := phase("point-metadata", func() error {
			if err := injectPointMetadata(pointsPath, covIdx, extractor); err != nil {
				return err
			}
			return validate.Gate4PostTreeMerge(pointsPath)
		}); err != nil {
			return Summary{}, err
		}
	}

	chartsKey := chartsRawKey(cfg.DistrictID, cfg.DistrictLabel)
	pointsKey := ""
	if err := phase("publish", func() error {
		if chartsPath != "" {
			if err := publishArchive(ctx, o.Store, chartsPath, chartsKey, chartsEntryName(cfg.DistrictLabel)); err != nil {
				return fmt.Errorf("publish charts archive: %w", err)
			}
		}
		if pointsPath != "" {
			pointsKey = pointsRawKey(cfg.DistrictID)
			if err := publishArchive(ctx, o.Store, pointsPath, pointsKey, pointsEntryName()); err != nil {
				return fmt.Errorf("publish points archive: %w", err)
			}
		}
		return nil
	}); err != nil {
		return Summary{}, err
	}

	// Best-effort cleanup of temp/compose/ uploads; never fails the run.
	for _, key := range cleanupKeys {
		if err := o.Store.Delete(ctx, key); err != nil {
			log.Warn("cleanup: failed to delete temp object", "key", key, "error", err)
		}
	}

	elapsed := time.Since(start)
	summary := newSummary(summaryInput{
		districtID:    cfg.DistrictID,
		districtLabel: cfg.DistrictLabel,
		chartsKey:     chartsKey,
		pointsKey:     pointsKey,
	}, ingestResult, streams.activeScales(), elapsed, time.Now())

	if cfg.MetadataGeneratorURL != "" {
		if err := postSummary(ctx, cfg.MetadataGeneratorURL, summary); err != nil {
			log.Warn("failed to post run summary to metadata generator", "error", err)
		}
	}

	log.Info("run complete", "elapsed", elapsed.String())
	return summary, nil
}
