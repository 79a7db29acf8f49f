package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paulmach/orb"

	"github.com/xnautical/enc-compose/internal/mbtiles"
	"github.com/xnautical/enc-compose/internal/storage"
	"github.com/xnautical/enc-compose/internal/types"
	"github.com/xnautical/enc-compose/internal/worker"
)

func sampleDepthContourFeature() types.Feature {
	return types.Feature{
		ChartID:  "US5AK9ABC",
		Geometry: orb.LineString{{-150.1, 61.1}, {-150.0, 61.2}},
		Props:    types.Properties{OBJL: types.OBJLDepthContour, ScaleNum: 4},
		Out:      &types.Tippecanoe{MinZoom: 6, MaxZoom: 15, Layer: "charts"},
	}
}

// stubLauncher "runs" a worker task by writing a minimal valid mbtiles
// archive straight to the store at the key the watcher expects.
type stubLauncher struct {
	store    storage.Store
	district string
	runID    string
}

func (l stubLauncher) Launch(ctx context.Context, t worker.Task) error {
	dir, err := os.MkdirTemp("", "fanout-stub-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "out.mbtiles")
	w, err := mbtiles.New(path, mbtiles.Metadata{
		Name: t.Label, Format: "pbf", MinZoom: t.ZoomLow, MaxZoom: t.ZoomHigh,
		Bounds: [4]float64{-1, -1, 1, 1},
	})
	if err != nil {
		return err
	}
	if err := w.WriteTile(t.ZoomLow, 0, 0, []byte("tile")); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return l.store.Put(ctx, workerOutputKey(l.district, l.runID, t), f)
}

type passthroughJoiner struct{}

func (passthroughJoiner) Join(_ context.Context, inputs []string, output string, _ bool) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs to join")
	}
	data, err := os.ReadFile(inputs[0])
	if err != nil {
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

func TestRunFanOutSingleScaleProducesChartsArchive(t *testing.T) {
	storeRoot := t.TempDir()
	store, err := storage.NewLocalStore(storeRoot)
	require.NoError(t, err)

	workDir := t.TempDir()
	streams, err := newStreamSet(workDir)
	require.NoError(t, err)
	w, err := streams.scale(4)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleDepthContourFeature()))
	require.NoError(t, streams.close())

	runID := "test-run"
	launcher := stubLauncher{store: store, district: "us5ak9", runID: runID}

	chartsPath, pointsPath, cleanupKeys, err := runFanOut(context.Background(), store, "us5ak9", streams, fanOutConfig{
		workDir:          workDir,
		runID:            runID,
		launcher:         launcher,
		joiner:           passthroughJoiner{},
		mergeConcurrency: 2,
		pollInterval:     time.Millisecond,
		pollTimeout:      time.Second,
		queueBound:       4,
	}, slog.Default())

	require.NoError(t, err)
	require.NotEmpty(t, chartsPath)
	require.Empty(t, pointsPath)
	require.FileExists(t, chartsPath)
	require.NotEmpty(t, cleanupKeys)
}
