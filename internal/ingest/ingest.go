// Package ingest pulls the per-chart feature files for one district out of
// object storage, validates their gross structure, and hands back a
// deterministic, sorted list of local files for the two compose passes to
// read. Nothing here parses a feature; that is pass 1's job.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/xnautical/enc-compose/internal/storage"
)

// Manifest is the district's source-of-truth chart list, read from
// "{district}/chart-geojson/_manifest.json".
type Manifest struct {
	ChartIDs []string `json:"chartIds"`
}

// Chart is one validated, downloaded chart feature file.
type Chart struct {
	ID   string
	Path string // local path under the ingest work directory
}

// Result is the outcome of Run: the sorted chart list plus the keys of the
// listed-but-unmanifested files that were silently dropped.
type Result struct {
	Charts  []Chart
	Dropped []string // storage keys present in the listing but not in the manifest
}

// manifestKey and chartPrefix match the object-storage layout in the
// external-interfaces section: charts live under
// "{district}/chart-geojson/{chartId}/{chartId}.geojson", the manifest
// alongside them.
func manifestKey(district string) string {
	return fmt.Sprintf("%s/chart-geojson/_manifest.json", district)
}

func chartPrefix(district string) string {
	return fmt.Sprintf("%s/chart-geojson/", district)
}

func chartKey(district, chartID string) string {
	return fmt.Sprintf("%s/chart-geojson/%s/%s.geojson", district, chartID, chartID)
}

// Run fetches the manifest, downloads every manifest-listed chart file in
// parallel (bounded by concurrency), validates each one (gate 2: non-empty,
// bracket-bounded), and writes it to workDir/ingest/{chartId}.geojson.
//
// A listed chart that is empty or not bracket-bounded is fatal (the
// manifest vouched for it); a chart present in the storage listing but
// absent from the manifest is silently dropped, per the ingest & validation
// design.
func Run(ctx context.Context, store storage.Store, district, workDir string, concurrency int) (Result, error) {
	manifest, err := fetchManifest(ctx, store, district)
	if err != nil {
		return Result{}, err
	}

	listed, err := store.List(ctx, chartPrefix(district))
	if err != nil {
		return Result{}, fmt.Errorf("ingest: list charts: %w", err)
	}

	wanted := make(map[string]bool, len(manifest.ChartIDs))
	for _, id := range manifest.ChartIDs {
		wanted[id] = true
	}

	var dropped []string
	for _, obj := range listed {
		id := chartIDFromKey(obj.Key)
		if id == "" {
			continue
		}
		if !wanted[id] {
			dropped = append(dropped, obj.Key)
		}
	}

	destDir := filepath.Join(workDir, "ingest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ingest: create work dir: %w", err)
	}

	if concurrency <= 0 {
		concurrency = 16
	}

	charts := make([]Chart, len(manifest.ChartIDs))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for i, id := range manifest.ChartIDs {
		i, id := i, id
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			dest := filepath.Join(destDir, id+".geojson")
			if err := downloadAndValidate(gctx, store, chartKey(district, id), dest); err != nil {
				return fmt.Errorf("ingest chart %s: %w", id, err)
			}
			charts[i] = Chart{ID: id, Path: dest}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	sort.Slice(charts, func(i, j int) bool { return charts[i].ID < charts[j].ID })
	return Result{Charts: charts, Dropped: dropped}, nil
}

func fetchManifest(ctx context.Context, store storage.Store, district string) (Manifest, error) {
	r, err := store.Get(ctx, manifestKey(district))
	if err != nil {
		return Manifest{}, fmt.Errorf("ingest: fetch manifest: %w", err)
	}
	defer r.Close()

	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("ingest: decode manifest: %w", err)
	}
	if len(m.ChartIDs) == 0 {
		return Manifest{}, fmt.Errorf("ingest: manifest lists no charts")
	}
	return m, nil
}

// downloadAndValidate copies the object at key to dest and applies gate 2:
// the file must be non-empty and bracket-bounded ('{' ... '}').
func downloadAndValidate(ctx context.Context, store storage.Store, key, dest string) error {
	r, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return ValidateStructure(dest)
}

// ValidateStructure is gate 2: the file must be non-empty and must open
// with '{' and close with '}' once surrounding whitespace is trimmed. This
// is a structural sanity check, not a JSON parse -- pass 1 does the real
// parsing, one chart at a time.
func ValidateStructure(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%q is empty", path)
	}
	if trimmed[0] != '{' || trimmed[len(trimmed)-1] != '}' {
		return fmt.Errorf("%q is not bracket-bounded", path)
	}
	return nil
}

// chartIDFromKey extracts {chartId} from "{district}/chart-geojson/{chartId}/{chartId}.geojson".
// Returns "" for keys that don't match that shape (e.g. the manifest itself).
func chartIDFromKey(key string) string {
	dir := filepath.Dir(key)
	id := filepath.Base(dir)
	if id == "." || id == "/" {
		return ""
	}
	base := filepath.Base(key)
	if base != id+".geojson" {
		return ""
	}
	return id
}
