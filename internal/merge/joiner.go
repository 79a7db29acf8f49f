package merge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// TileJoinJoiner runs the compose core's default Joiner: an invocation of
// tippecanoe's "tile-join" binary, the ecosystem tool this module's MBTiles
// archives must stay bit-exact with. Intermediate merges pass
// "--no-tile-compression" (pure concatenation); the final merge omits it so
// tile-join recompresses.
type TileJoinJoiner struct {
	// BinPath defaults to "tile-join" resolved via PATH.
	BinPath string
}

// Join concatenates inputs' tiles into output via tile-join. It fails if
// tile-join exits non-zero or its output reports "Skipping this tile".
func (j TileJoinJoiner) Join(ctx context.Context, inputs []string, output string, compress bool) error {
	bin := j.BinPath
	if bin == "" {
		bin = "tile-join"
	}

	args := []string{"--force", "-o", output}
	if !compress {
		args = append(args, "--no-tile-compression")
	}
	args = append(args, inputs...)

	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tile-join %v: %w: %s", inputs, err, out)
	}
	if bytes.Contains(out, []byte("Skipping this tile")) {
		return fmt.Errorf("tile-join %v dropped tiles: %s", inputs, out)
	}
	return nil
}
