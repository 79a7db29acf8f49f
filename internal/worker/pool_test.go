package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xnautical/enc-compose/internal/storage"
)

// fakeLauncher records every launched task; it never fails unless told to.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []Task
	failOn   string
}

func (f *fakeLauncher) Launch(ctx context.Context, t Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && t.Label == f.failOn {
		return errors.New("simulated launch failure")
	}
	f.launched = append(f.launched, t)
	return nil
}

// fakeWatcher reports a task ready after a fixed number of polls.
type fakeWatcher struct {
	mu        sync.Mutex
	pollsLeft map[Task]int
	pollCount atomic.Int32
}

func newFakeWatcher(tasks []Task, pollsBeforeReady int) *fakeWatcher {
	left := make(map[Task]int, len(tasks))
	for _, t := range tasks {
		left[t] = pollsBeforeReady
	}
	return &fakeWatcher{pollsLeft: left}
}

func (f *fakeWatcher) Poll(ctx context.Context, t Task) (storage.ObjectInfo, bool, error) {
	f.pollCount.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.pollsLeft[t]
	if n > 0 {
		f.pollsLeft[t] = n - 1
		return storage.ObjectInfo{}, false, nil
	}
	return storage.ObjectInfo{Key: taskLabel(t), Size: 123}, true, nil
}

func drain(t *testing.T, out <-chan Result, errCh <-chan error) ([]Result, error) {
	t.Helper()
	var results []Result
	for out != nil || errCh != nil {
		select {
		case r, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			results = append(results, r)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			return results, err
		}
	}
	return results, nil
}

func TestPoolRunCompletesImmediatelyReady(t *testing.T) {
	tasks := []Task{
		{Label: "scale-4", Scale: 4, ZoomLow: 6, ZoomHigh: 14},
		{Label: "scale-4", Scale: 4, ZoomLow: 15, ZoomHigh: 15},
	}
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher(tasks, 0)

	pool := New(Config{Launcher: launcher, Watcher: watcher, PollInterval: time.Millisecond, PollTimeout: time.Second})
	out, errCh := pool.Run(context.Background(), tasks)
	results, err := drain(t, out, errCh)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(results))
	}
	if len(launcher.launched) != len(tasks) {
		t.Fatalf("expected %d launches, got %d", len(tasks), len(launcher.launched))
	}
}

func TestPoolRunPollsUntilReady(t *testing.T) {
	tasks := []Task{{Label: "soundings", ZoomLow: 6, ZoomHigh: 15}}
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher(tasks, 3)

	pool := New(Config{Launcher: launcher, Watcher: watcher, PollInterval: time.Millisecond, PollTimeout: time.Second})
	out, errCh := pool.Run(context.Background(), tasks)
	results, err := drain(t, out, errCh)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if watcher.pollCount.Load() < 4 {
		t.Fatalf("expected at least 4 polls, got %d", watcher.pollCount.Load())
	}
}

func TestPoolRunLaunchFailure(t *testing.T) {
	tasks := []Task{{Label: "scale-5", ZoomLow: 6, ZoomHigh: 15}}
	launcher := &fakeLauncher{failOn: "scale-5"}
	watcher := newFakeWatcher(tasks, 0)

	pool := New(Config{Launcher: launcher, Watcher: watcher, PollInterval: time.Millisecond, PollTimeout: time.Second})
	out, errCh := pool.Run(context.Background(), tasks)
	_, err := drain(t, out, errCh)

	if err == nil {
		t.Fatal("expected launch failure error")
	}
}

func TestPoolRunTimeout(t *testing.T) {
	tasks := []Task{{Label: "scale-6", ZoomLow: 6, ZoomHigh: 15}}
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher(tasks, 1_000_000) // never becomes ready within the test

	pool := New(Config{Launcher: launcher, Watcher: watcher, PollInterval: time.Millisecond, PollTimeout: 20 * time.Millisecond})
	out, errCh := pool.Run(context.Background(), tasks)
	_, err := drain(t, out, errCh)

	if err == nil {
		t.Fatal("expected poll timeout error")
	}
}

func TestPoolRunProgressCallback(t *testing.T) {
	tasks := []Task{
		{Label: "scale-4", ZoomLow: 6, ZoomHigh: 14},
		{Label: "scale-4", ZoomLow: 15, ZoomHigh: 15},
	}
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher(tasks, 0)

	var calls atomic.Int32
	var lastCompleted int
	pool := New(Config{
		Launcher: launcher, Watcher: watcher,
		PollInterval: time.Millisecond, PollTimeout: time.Second,
		OnProgress: func(completed, total, failed int) {
			calls.Add(1)
			lastCompleted = completed
		},
	})
	out, errCh := pool.Run(context.Background(), tasks)
	_, err := drain(t, out, errCh)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != int32(len(tasks)) {
		t.Fatalf("expected %d progress calls, got %d", len(tasks), calls.Load())
	}
	if lastCompleted != len(tasks) {
		t.Fatalf("expected final completed=%d, got %d", len(tasks), lastCompleted)
	}
}

func TestPoolRunEmptyTasks(t *testing.T) {
	launcher := &fakeLauncher{}
	watcher := newFakeWatcher(nil, 0)
	pool := New(Config{Launcher: launcher, Watcher: watcher})
	out, errCh := pool.Run(context.Background(), nil)
	results, err := drain(t, out, errCh)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}
