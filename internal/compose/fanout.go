package compose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xnautical/enc-compose/internal/merge"
	"github.com/xnautical/enc-compose/internal/storage"
	"github.com/xnautical/enc-compose/internal/types"
	"github.com/xnautical/enc-compose/internal/validate"
	"github.com/xnautical/enc-compose/internal/worker"
)

const composeTempPrefix = "charts/temp/compose"

// streamUploadKey and workerOutputKey are namespaced under a per-run UUID so
// two concurrent runs for the same district (a re-run kicked off before a
// prior one's cleanup finished) never collide in temp/compose/.
func streamUploadKey(district, runID, label string) string {
	return fmt.Sprintf("%s/%s/%s/%s.geojson", district, composeTempPrefix, runID, label)
}

func workerOutputKey(district, runID string, t worker.Task) string {
	return fmt.Sprintf("%s/%s/%s/%s_z%d-%d.mbtiles", district, composeTempPrefix, runID, t.Label, t.ZoomLow, t.ZoomHigh)
}

// archiveGroup is one of the two output archives (charts or points); each
// gets its own Merger since they become separate MBTiles files.
type archiveGroup struct {
	name   string
	merger *merge.Merger
	labels map[string]bool // task labels routed to this group
}

// runFanOut plans worker tasks for every active stream, uploads the stream
// files, launches and polls the tasks, and routes each completed output
// into the charts or points tree-merger as it arrives.
func runFanOut(ctx context.Context, store storage.Store, district string, streams *streamSet, cfg fanOutConfig, logger *slog.Logger) (chartsPath, pointsPath string, cleanupKeys []string, err error) {
	var tasks []worker.Task
	charts := &archiveGroup{name: "charts", labels: map[string]bool{}}
	pts := &archiveGroup{name: "points", labels: map[string]bool{}}

	for _, scale := range streams.activeScales() {
		label := scaleLabel(scale)
		native, _ := types.ScaleBand(scale).NativeRange()
		scaleTasks := worker.PlanTasks(label, scale, native)
		tasks = append(tasks, scaleTasks...)
		charts.labels[label] = true
		if err := uploadStream(ctx, store, district, cfg.runID, label, streams.scalePath(scale)); err != nil {
			return "", "", nil, err
		}
		cleanupKeys = append(cleanupKeys, streamUploadKey(district, cfg.runID, label))
	}

	if streams.sound != nil {
		tasks = append(tasks, worker.PlanTasks("soundings", 0, types.ZoomRange{Lo: 0, Hi: 15})...)
		pts.labels["soundings"] = true
		if err := uploadStream(ctx, store, district, cfg.runID, "soundings", streams.soundingsPath()); err != nil {
			return "", "", nil, err
		}
		cleanupKeys = append(cleanupKeys, streamUploadKey(district, cfg.runID, "soundings"))
	}
	if streams.nav != nil {
		tasks = append(tasks, worker.PlanTasks("nav_aids", 0, types.ZoomRange{Lo: 0, Hi: 15})...)
		pts.labels["nav_aids"] = true
		if err := uploadStream(ctx, store, district, cfg.runID, "nav_aids", streams.navAidsPath()); err != nil {
			return "", "", nil, err
		}
		cleanupKeys = append(cleanupKeys, streamUploadKey(district, cfg.runID, "nav_aids"))
	}

	if len(tasks) == 0 {
		return "", "", nil, fmt.Errorf("compose: no active streams to fan out")
	}

	downloadDir := filepath.Join(cfg.workDir, "downloads")
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return "", "", nil, fmt.Errorf("compose: create download dir: %w", err)
	}
	mergeDir := filepath.Join(cfg.workDir, "merge")
	if err := os.MkdirAll(filepath.Join(mergeDir, "charts"), 0o755); err != nil {
		return "", "", nil, fmt.Errorf("compose: create merge dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(mergeDir, "points"), 0o755); err != nil {
		return "", "", nil, fmt.Errorf("compose: create merge dir: %w", err)
	}

	charts.merger = merge.New(ctx, cfg.joiner, filepath.Join(mergeDir, "charts"), cfg.mergeConcurrency)
	pts.merger = merge.New(ctx, cfg.joiner, filepath.Join(mergeDir, "points"), cfg.mergeConcurrency)

	prog := worker.NewProgress(len(tasks), true)
	pool := worker.New(worker.Config{
		Launcher:     cfg.launcher,
		Watcher:      worker.StorageWatcher{Store: store, OutputKey: func(t worker.Task) string { return workerOutputKey(district, cfg.runID, t) }},
		PollInterval: cfg.pollInterval,
		PollTimeout:  cfg.pollTimeout,
		QueueBound:   cfg.queueBound,
		OnProgress: func(completed, total, failed int) {
			prog.Update(completed, total, failed)
			logger.Info("worker fan-out progress", "completed", completed, "total", total, "failed", failed)
		},
	})

	results, errCh := pool.Run(ctx, tasks)
	n := 0
	for r := range results {
		n++
		group := charts
		if pts.labels[r.Task.Label] {
			group = pts
		}
		local := filepath.Join(downloadDir, fmt.Sprintf("%s_z%d-%d.mbtiles", r.Task.Label, r.Task.ZoomLow, r.Task.ZoomHigh))
		if err := downloadTo(ctx, store, r.Info.Key, local); err != nil {
			return "", "", nil, err
		}
		if err := validate.Gate3BPostDownload(local); err != nil {
			return "", "", nil, err
		}
		group.merger.Add(local, r.Info.Size)
		cleanupKeys = append(cleanupKeys, r.Info.Key)
	}
	if err := <-errCh; err != nil {
		return "", "", nil, fmt.Errorf("worker fan-out: %w", err)
	}
	prog.Done()
	logger.Info("worker fan-out complete", "summary", prog.Summary())

	if len(charts.labels) > 0 {
		chartsPath, err = charts.merger.Finish(ctx)
		if err != nil {
			return "", "", nil, fmt.Errorf("tree-merge charts: %w", err)
		}
	}
	if len(pts.labels) > 0 {
		pointsPath, err = pts.merger.Finish(ctx)
		if err != nil {
			return "", "", nil, fmt.Errorf("tree-merge points: %w", err)
		}
	}

	return chartsPath, pointsPath, cleanupKeys, nil
}

func scaleLabel(scale int) string { return fmt.Sprintf("scale_%d", scale) }

func uploadStream(ctx context.Context, store storage.Store, district, runID, label, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("compose: open stream %q: %w", path, err)
	}
	defer f.Close()
	if err := store.Put(ctx, streamUploadKey(district, runID, label), f); err != nil {
		return fmt.Errorf("compose: upload stream %q: %w", label, err)
	}
	return nil
}

func downloadTo(ctx context.Context, store storage.Store, key, dest string) error {
	r, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("compose: download %q: %w", key, err)
	}
	defer r.Close()
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("compose: create %q: %w", dest, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("compose: write %q: %w", dest, err)
	}
	return nil
}

// fanOutConfig is the subset of RunConfig the fan-out stage needs, plus the
// pluggable Launcher/Joiner (subprocess by default, in-process stubs in
// tests).
type fanOutConfig struct {
	workDir          string
	runID            string
	launcher         worker.Launcher
	joiner           merge.Joiner
	mergeConcurrency int
	pollInterval     time.Duration
	pollTimeout      time.Duration
	queueBound       int
}
