package geojson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xnautical/enc-compose/internal/types"
)

// DefaultStreamBatch is the number of ndjson lines buffered before a flush,
// mirroring the mbtiles writer's batching discipline.
const DefaultStreamBatch = 2000

// StreamWriter appends newline-delimited GeoJSON features (each carrying a
// "tippecanoe" hint) to one per-scale or per-substream output file.
type StreamWriter struct {
	f         *os.File
	buf       *bufio.Writer
	enc       *json.Encoder
	batch     int
	batchSize int
}

// NewStreamWriter creates (or truncates) the ndjson stream at path.
func NewStreamWriter(path string) (*StreamWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create stream %q: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	return &StreamWriter{
		f:         f,
		buf:       buf,
		enc:       json.NewEncoder(buf),
		batchSize: DefaultStreamBatch,
	}, nil
}

// Write appends one feature as a line. f must already carry an Out hint.
func (w *StreamWriter) Write(f types.Feature) error {
	gf, err := ToGeoJSONFeature(f)
	if err != nil {
		return err
	}
	if err := w.enc.Encode(gf); err != nil {
		return fmt.Errorf("encode feature: %w", err)
	}
	w.batch++
	if w.batch >= w.batchSize {
		if err := w.buf.Flush(); err != nil {
			return fmt.Errorf("flush stream: %w", err)
		}
		w.batch = 0
	}
	return nil
}

// Close flushes any buffered lines and closes the underlying file.
func (w *StreamWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush stream: %w", err)
	}
	return w.f.Close()
}
