package mbtiles

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// TileCount returns the number of rows in the tiles table, used by the
// validation gates to confirm an archive is non-empty.
func (r *Reader) TileCount() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("count tiles: %w", err)
	}
	return n, nil
}

// HasMetadataTable reports whether the metadata table exists at all (an
// archive produced by a crashed tile generator may have a tiles table but
// no metadata table). It does not check that the table holds any rows.
func (r *Reader) HasMetadataTable() (bool, error) {
	var n int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='metadata'",
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check metadata table: %w", err)
	}
	return n > 0, nil
}

// SetMetadataValue upserts one metadata row, used to inject the point
// archive's sector_lights and coverage_boundaries rows after the tile
// generator has already produced the archive's tiles/standard metadata.
func SetMetadataValue(path, key, value string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec("DELETE FROM metadata WHERE name = ?", key); err != nil {
		return fmt.Errorf("clear metadata %q: %w", key, err)
	}
	if _, err := db.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("insert metadata %q: %w", key, err)
	}
	return nil
}
