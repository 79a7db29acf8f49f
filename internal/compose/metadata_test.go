package compose

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/xnautical/enc-compose/internal/coverage"
	"github.com/xnautical/enc-compose/internal/dedup"
	"github.com/xnautical/enc-compose/internal/mbtiles"
	"github.com/xnautical/enc-compose/internal/points"
)

// readMetadataValue is a test-only helper mirroring mbtiles.SetMetadataValue's
// access pattern, used to assert injectPointMetadata's writes landed.
func readMetadataValue(path, key string) (string, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", err
	}
	defer db.Close()
	var value string
	if err := db.QueryRow("SELECT value FROM metadata WHERE name = ?", key).Scan(&value); err != nil {
		return "", fmt.Errorf("read metadata %q: %w", key, err)
	}
	return value, nil
}

func TestInjectPointMetadataWritesEmptyCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.mbtiles")
	w, err := mbtiles.New(path, mbtiles.Metadata{
		Name: "points", Format: "pbf", MinZoom: 0, MaxZoom: 15,
		Bounds: [4]float64{-1, -1, 1, 1},
	})
	require.NoError(t, err)
	require.NoError(t, w.WriteTile(0, 0, 0, []byte("x")))
	require.NoError(t, w.Close())

	cov := coverage.New()
	extractor := points.NewExtractor(cov, dedup.New(50, nil), 2)

	require.NoError(t, injectPointMetadata(path, cov, extractor))

	r, err := mbtiles.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	meta, err := r.Metadata()
	require.NoError(t, err)
	_ = meta // metadata row presence confirmed via SetMetadataValue not erroring

	var lights []points.SectorLightEntry
	raw, err := readMetadataValue(path, "sector_lights")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &lights))
	require.Empty(t, lights)

	raw, err = readMetadataValue(path, "coverage_boundaries")
	require.NoError(t, err)
	var boundaries map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &boundaries))
	require.Empty(t, boundaries)
}
