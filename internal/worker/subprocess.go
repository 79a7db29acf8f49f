package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/xnautical/enc-compose/internal/storage"
)

// env keys exported to every external tile-generator invocation, per the
// worker task environment in the external-interfaces design.
const (
	envDistrictLabel = "DISTRICT_LABEL"
	envBucketName    = "BUCKET_NAME"
	envScaleNum      = "SCALE_NUM"
	envZoomMin       = "ZOOM_MIN"
	envZoomMax       = "ZOOM_MAX"
	envJobType       = "JOB_TYPE"
)

// SubprocessLauncher launches one tile-generator task as an external
// process (e.g. a wrapper script invoking tippecanoe), per the spec's
// explicit design choice to never run tile generators in-process.
type SubprocessLauncher struct {
	// BinPath is the executable to invoke; defaults to "tippecanoe-worker".
	BinPath string
	// DistrictLabel and BucketName are exported to every task's environment.
	DistrictLabel string
	BucketName    string
}

// Launch starts t's subprocess and returns once it exits. A non-zero exit
// (failure, dropped tiles) is a fatal subprocess error per the error
// taxonomy; there is no retry.
func (l SubprocessLauncher) Launch(ctx context.Context, t Task) error {
	bin := l.BinPath
	if bin == "" {
		bin = "tippecanoe-worker"
	}

	cmd := exec.CommandContext(ctx, bin)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", envDistrictLabel, l.DistrictLabel),
		fmt.Sprintf("%s=%s", envBucketName, l.BucketName),
		fmt.Sprintf("%s=%d", envScaleNum, t.Scale),
		fmt.Sprintf("%s=%d", envZoomMin, t.ZoomLow),
		fmt.Sprintf("%s=%d", envZoomMax, t.ZoomHigh),
		fmt.Sprintf("%s=tippecanoe", envJobType),
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("worker task %s: %w: %s", taskLabel(t), err, out)
	}
	return nil
}

// StorageWatcher polls Store for a task's expected output object, named by
// OutputKey.
type StorageWatcher struct {
	Store     storage.Store
	OutputKey func(Task) string
}

// Poll checks whether t's output object exists yet.
func (w StorageWatcher) Poll(ctx context.Context, t Task) (storage.ObjectInfo, bool, error) {
	info, err := w.Store.Stat(ctx, w.OutputKey(t))
	if err != nil {
		// Stat on a not-yet-uploaded object is the expected not-ready case,
		// not a poll failure; only surface errors once the object might
		// plausibly exist is left to the caller's timeout budget.
		return storage.ObjectInfo{}, false, nil
	}
	return info, true, nil
}
