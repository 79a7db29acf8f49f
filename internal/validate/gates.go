// Package validate implements the pipeline's five validation gates. Every
// gate failure is fatal: the compose core never publishes a partial result.
package validate

import (
	"context"
	"fmt"
	"os"

	"github.com/xnautical/enc-compose/internal/ingest"
	"github.com/xnautical/enc-compose/internal/mbtiles"
	"github.com/xnautical/enc-compose/internal/storage"
)

// MinArchiveBytes is the sanity floor a merged archive must clear (gate 4):
// a corrupt or truncated merge can still open as valid SQLite while holding
// almost nothing.
const MinArchiveBytes = 1024

// Gate2PostIngest checks every ingested chart file: non-empty and
// bracket-bounded. Ingest already runs this per-file as it downloads; this
// re-check is the gate proper, run once over the whole batch before pass 1
// starts.
func Gate2PostIngest(paths []string) error {
	for _, p := range paths {
		if err := ingest.ValidateStructure(p); err != nil {
			return fmt.Errorf("gate 2 (post-ingest): %w", err)
		}
	}
	return nil
}

// archiveSanity is the shared core of gates 3A/3B/4: the file must open as
// a tile archive with a non-empty tiles table and a metadata table.
func archiveSanity(path string) error {
	r, err := mbtiles.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer r.Close()

	hasMeta, err := r.HasMetadataTable()
	if err != nil {
		return err
	}
	if !hasMeta {
		return fmt.Errorf("%q has no metadata table", path)
	}

	n, err := r.TileCount()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%q has an empty tiles table", path)
	}

	meta, err := r.Metadata()
	if err != nil {
		return err
	}
	if meta.Bounds == [4]float64{} {
		return fmt.Errorf("%q metadata missing bounds", path)
	}
	return nil
}

// Gate3APerWorkerOutput validates one worker's raw tile archive output
// before it is handed to the tree-merger.
func Gate3APerWorkerOutput(path string) error {
	if err := archiveSanity(path); err != nil {
		return fmt.Errorf("gate 3A (per-worker-output): %w", err)
	}
	return nil
}

// Gate3BPostDownload re-runs gate 3A against the local copy of a worker
// output after it has been downloaded from storage, guarding against
// truncation or corruption in transit.
func Gate3BPostDownload(localPath string) error {
	if err := archiveSanity(localPath); err != nil {
		return fmt.Errorf("gate 3B (post-download): %w", err)
	}
	return nil
}

// Gate4PostTreeMerge validates the final merged archive: gate 3A plus a
// size sanity floor plus a readable zoom range.
func Gate4PostTreeMerge(path string) error {
	if err := archiveSanity(path); err != nil {
		return fmt.Errorf("gate 4 (post-tree-merge): %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("gate 4 (post-tree-merge): stat %q: %w", path, err)
	}
	if info.Size() < MinArchiveBytes {
		return fmt.Errorf("gate 4 (post-tree-merge): %q is %d bytes, below the %d byte sanity floor", path, info.Size(), MinArchiveBytes)
	}

	r, err := mbtiles.OpenReader(path)
	if err != nil {
		return fmt.Errorf("gate 4 (post-tree-merge): %w", err)
	}
	defer r.Close()
	meta, err := r.Metadata()
	if err != nil {
		return fmt.Errorf("gate 4 (post-tree-merge): %w", err)
	}
	if meta.MinZoom > meta.MaxZoom {
		return fmt.Errorf("gate 4 (post-tree-merge): %q has minzoom %d > maxzoom %d", path, meta.MinZoom, meta.MaxZoom)
	}
	return nil
}

// Gate5PostUpload confirms the uploaded blob's size matches the local
// file's size exactly.
func Gate5PostUpload(ctx context.Context, store storage.Store, key, localPath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("gate 5 (post-upload): stat %q: %w", localPath, err)
	}
	remote, err := store.Stat(ctx, key)
	if err != nil {
		return fmt.Errorf("gate 5 (post-upload): stat remote %q: %w", key, err)
	}
	if remote.Size != info.Size() {
		return fmt.Errorf("gate 5 (post-upload): %q uploaded as %d bytes, local is %d bytes", key, remote.Size, info.Size())
	}
	return nil
}
