package compose

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xnautical/enc-compose/internal/storage"
	"github.com/xnautical/enc-compose/internal/validate"
)

// publishArchive uploads localPath as both the raw archive at rawKey and a
// zip wrapper (single inner entry named entryName) at rawKey+".zip", then
// runs gate 5 against both uploads.
func publishArchive(ctx context.Context, store storage.Store, localPath, rawKey, entryName string) error {
	if err := uploadFile(ctx, store, localPath, rawKey); err != nil {
		return err
	}
	if err := validate.Gate5PostUpload(ctx, store, rawKey, localPath); err != nil {
		return err
	}

	zipPath := localPath + ".zip"
	if err := zipSingleEntry(localPath, entryName, zipPath); err != nil {
		return err
	}
	zipKey := rawKey + ".zip"
	if err := uploadFile(ctx, store, zipPath, zipKey); err != nil {
		return err
	}
	return validate.Gate5PostUpload(ctx, store, zipKey, zipPath)
}

func uploadFile(ctx context.Context, store storage.Store, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("compose: open %q: %w", localPath, err)
	}
	defer f.Close()
	if err := store.Put(ctx, key, f); err != nil {
		return fmt.Errorf("compose: upload %q: %w", key, err)
	}
	return nil
}

// zipSingleEntry packages localPath as the sole entry (named entryName) of
// a zip archive at zipPath, matching the "{prefix}_charts.mbtiles.zip" /
// "points.mbtiles.zip" wire format.
func zipSingleEntry(localPath, entryName, zipPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("zip: open %q: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("zip: create %q: %w", zipPath, err)
	}
	defer dst.Close()

	zw := zip.NewWriter(dst)
	w, err := zw.Create(entryName)
	if err != nil {
		zw.Close()
		return fmt.Errorf("zip: create entry %q: %w", entryName, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		zw.Close()
		return fmt.Errorf("zip: write entry %q: %w", entryName, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zip: close %q: %w", zipPath, err)
	}
	return nil
}

func chartsRawKey(district, prefix string) string {
	return fmt.Sprintf("%s/charts/%s_charts.mbtiles", district, prefix)
}

func pointsRawKey(district string) string {
	return fmt.Sprintf("%s/charts/points.mbtiles", district)
}

func chartsEntryName(prefix string) string { return fmt.Sprintf("%s_charts.mbtiles", prefix) }
func pointsEntryName() string              { return "points.mbtiles" }
