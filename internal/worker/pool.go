package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xnautical/enc-compose/internal/storage"
)

// Launcher starts one external tile-generator task (a subprocess, a cloud
// function invocation — the mechanism is outside this package).
type Launcher interface {
	Launch(ctx context.Context, t Task) error
}

// Watcher checks whether a task's output has appeared in storage yet.
type Watcher interface {
	Poll(ctx context.Context, t Task) (info storage.ObjectInfo, ready bool, err error)
}

// ProgressFunc is called after each task's output is observed ready.
type ProgressFunc func(completed, total, failed int)

// Result pairs a completed task with its output object.
type Result struct {
	Task Task
	Info storage.ObjectInfo
}

// Config configures a Pool.
type Config struct {
	Launcher     Launcher
	Watcher      Watcher
	PollInterval time.Duration
	PollTimeout  time.Duration
	QueueBound   int
	OnProgress   ProgressFunc
}

// Pool launches a batch of tasks, then polls storage until every output
// appears or the poll budget runs out. Results are delivered on a channel
// bounded by QueueBound, which throttles how far ahead polling can run of
// whatever is consuming completed outputs (the tree-merger's ready queue).
type Pool struct {
	cfg Config
}

// New builds a Pool. Zero PollInterval/PollTimeout/QueueBound fall back to
// sane defaults (10s, 90m, 8).
func New(cfg Config) *Pool {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 90 * time.Minute
	}
	if cfg.QueueBound <= 0 {
		cfg.QueueBound = 8
	}
	return &Pool{cfg: cfg}
}

// Run launches every task then polls for completion. The returned channel
// yields one Result per task as its output becomes ready, in poll order
// (not task order); it is closed when every task has completed or an error
// occurs. The error channel carries at most one error: a launch failure, a
// poll failure, a poll-timeout naming the still-missing tasks, or context
// cancellation.
func (p *Pool) Run(ctx context.Context, tasks []Task) (<-chan Result, <-chan error) {
	out := make(chan Result, p.cfg.QueueBound)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)

		for _, t := range tasks {
			if err := p.cfg.Launcher.Launch(ctx, t); err != nil {
				errCh <- fmt.Errorf("launch %s: %w", taskLabel(t), err)
				return
			}
		}

		pending := make(map[Task]bool, len(tasks))
		for _, t := range tasks {
			pending[t] = true
		}

		deadline := time.Now().Add(p.cfg.PollTimeout)
		completed, failed := 0, 0

		for len(pending) > 0 {
			if time.Now().After(deadline) {
				errCh <- fmt.Errorf("poll timeout after %s waiting on: %s", p.cfg.PollTimeout, pendingLabels(pending))
				return
			}

			progressed := false
			for t := range pending {
				info, ready, err := p.cfg.Watcher.Poll(ctx, t)
				if err != nil {
					errCh <- fmt.Errorf("poll %s: %w", taskLabel(t), err)
					return
				}
				if !ready {
					continue
				}
				delete(pending, t)
				progressed = true
				completed++
				if p.cfg.OnProgress != nil {
					p.cfg.OnProgress(completed, len(tasks), failed)
				}
				select {
				case out <- Result{Task: t, Info: info}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}

			if !progressed {
				select {
				case <-time.After(p.cfg.PollInterval):
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errCh
}

func taskLabel(t Task) string {
	return fmt.Sprintf("%s[%d-%d]", t.Label, t.ZoomLow, t.ZoomHigh)
}

func pendingLabels(pending map[Task]bool) string {
	labels := make([]string, 0, len(pending))
	for t := range pending {
		labels = append(labels, taskLabel(t))
	}
	return strings.Join(labels, ", ")
}
