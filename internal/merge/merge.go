// Package merge implements the tree-merger: a bounded-concurrency pairwise
// reduction of worker tile-archive outputs into one final archive. Smallest
// files merge first so the reduction tree stays balanced regardless of the
// order worker outputs complete in.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/alitto/pond"
)

// Joiner performs one external tile-join: concatenating the tile tables of
// inputs into output. Intermediate merges skip tile-level recompression
// (compress=false, pure concatenation); the final merge recompresses
// (compress=true). The mechanism (an external "tile-join"-style subprocess)
// is outside this package, matching the spec's external-process model for
// tile generation.
type Joiner interface {
	Join(ctx context.Context, inputs []string, output string, compress bool) error
}

type entry struct {
	path string
	size int64
}

// Merger holds the ready queue and active-merge count described in the
// concurrency design: Add and the background merge goroutines share one
// mutex, held only for queue bookkeeping, never across a Join call.
type Merger struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ready  []entry
	active int
	max    int

	joiner Joiner
	outDir string
	pool   *pond.WorkerPool

	seq      int
	anyMerge bool
	err      error
}

// New creates a Merger. maxConcurrent <= 0 falls back to the spec default
// of 2. outDir holds intermediate and final merge output; it must already
// exist.
func New(ctx context.Context, joiner Joiner, outDir string, maxConcurrent int) *Merger {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	m := &Merger{
		joiner: joiner,
		outDir: outDir,
		max:    maxConcurrent,
		pool:   pond.New(maxConcurrent, 0, pond.MinWorkers(maxConcurrent), pond.Context(ctx)),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Add enqueues one worker output (or, internally, one merge result) onto
// the ready queue and launches merges while the queue holds >= 2 files and
// fewer than max are active.
func (m *Merger) Add(path string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(entry{path: path, size: size})
	m.tryLaunchLocked()
}

func (m *Merger) insertLocked(e entry) {
	i := sort.Search(len(m.ready), func(i int) bool { return m.ready[i].size >= e.size })
	m.ready = append(m.ready, entry{})
	copy(m.ready[i+1:], m.ready[i:])
	m.ready[i] = e
}

// tryLaunchLocked must be called with m.mu held. It dequeues the two
// smallest ready files and submits a merge task for as long as the queue
// and concurrency budget allow.
func (m *Merger) tryLaunchLocked() {
	for m.err == nil && len(m.ready) >= 2 && m.active < m.max {
		a, b := m.ready[0], m.ready[1]
		m.ready = m.ready[2:]
		m.active++
		m.anyMerge = true
		m.seq++
		out := filepath.Join(m.outDir, fmt.Sprintf("merge_%04d.mbtiles", m.seq))

		m.pool.Submit(func() {
			m.runMerge(a, b, out)
		})
	}
}

func (m *Merger) runMerge(a, b entry, out string) {
	err := m.joiner.Join(context.Background(), []string{a.path, b.path}, out, false)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--

	if err != nil {
		if m.err == nil {
			m.err = fmt.Errorf("merge %s + %s: %w", a.path, b.path, err)
		}
		m.cond.Broadcast()
		return
	}

	os.Remove(a.path)
	os.Remove(b.path)

	var size int64
	if info, statErr := os.Stat(out); statErr == nil {
		size = info.Size()
	}
	m.insertLocked(entry{path: out, size: size})
	m.tryLaunchLocked()
	m.cond.Broadcast()
}

// Finish blocks until the ready queue holds exactly one file and no merge
// is active, then, if any merge ever ran, performs a final single-input
// compression pass and returns its path. If only one output was ever
// added, that file is promoted directly as the final output with no
// merge at all. Returns the first merge error encountered, if any.
func (m *Merger) Finish(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.err == nil && !(len(m.ready) == 1 && m.active == 0) {
		if len(m.ready) == 0 && m.active == 0 {
			m.err = fmt.Errorf("tree-merge: no worker output was ever added")
			break
		}
		m.cond.Wait()
	}
	if m.err != nil {
		m.pool.StopAndWait()
		return "", m.err
	}

	final := m.ready[0]
	m.pool.StopAndWait()

	if !m.anyMerge {
		return final.path, nil
	}

	out := filepath.Join(m.outDir, "final.mbtiles")
	if err := m.joiner.Join(ctx, []string{final.path}, out, true); err != nil {
		return "", fmt.Errorf("tree-merge: final compression pass: %w", err)
	}
	os.Remove(final.path)
	return out, nil
}
