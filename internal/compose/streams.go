package compose

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xnautical/enc-compose/internal/geojson"
)

// streamSet owns the six per-scale ndjson writers plus the two point
// sub-stream writers, lazily opened so a scale with no surviving features
// never produces an (empty) output stream or a fan-out task.
type streamSet struct {
	dir     string
	scales  [7]*geojson.StreamWriter // index 1..6
	sound   *geojson.StreamWriter
	nav     *geojson.StreamWriter
}

func newStreamSet(workDir string) (*streamSet, error) {
	dir := filepath.Join(workDir, "streams")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("compose: create stream dir: %w", err)
	}
	return &streamSet{dir: dir}, nil
}

func (s *streamSet) scalePath(scale int) string {
	return filepath.Join(s.dir, fmt.Sprintf("scale_%d.geojson", scale))
}

func (s *streamSet) soundingsPath() string { return filepath.Join(s.dir, "soundings.geojson") }
func (s *streamSet) navAidsPath() string   { return filepath.Join(s.dir, "nav_aids.geojson") }

func (s *streamSet) scale(n int) (*geojson.StreamWriter, error) {
	if n < 1 || n > 6 {
		return nil, fmt.Errorf("compose: invalid scale %d", n)
	}
	if s.scales[n] == nil {
		w, err := geojson.NewStreamWriter(s.scalePath(n))
		if err != nil {
			return nil, err
		}
		s.scales[n] = w
	}
	return s.scales[n], nil
}

func (s *streamSet) soundings() (*geojson.StreamWriter, error) {
	if s.sound == nil {
		w, err := geojson.NewStreamWriter(s.soundingsPath())
		if err != nil {
			return nil, err
		}
		s.sound = w
	}
	return s.sound, nil
}

func (s *streamSet) navAids() (*geojson.StreamWriter, error) {
	if s.nav == nil {
		w, err := geojson.NewStreamWriter(s.navAidsPath())
		if err != nil {
			return nil, err
		}
		s.nav = w
	}
	return s.nav, nil
}

// activeScales returns every scale (1..6) that received at least one
// feature, in ascending order.
func (s *streamSet) activeScales() []int {
	var out []int
	for n := 1; n <= 6; n++ {
		if s.scales[n] != nil {
			out = append(out, n)
		}
	}
	return out
}

func (s *streamSet) close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, w := range s.scales {
		if w != nil {
			record(w.Close())
		}
	}
	if s.sound != nil {
		record(s.sound.Close())
	}
	if s.nav != nil {
		record(s.nav.Close())
	}
	return firstErr
}
