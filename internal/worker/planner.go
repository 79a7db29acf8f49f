// Package worker fans a partitioned scale (or a point sub-stream) out into
// external tile-generator tasks, launches them, and polls storage until
// every task's output appears or the poll budget is exhausted.
package worker

import "github.com/xnautical/enc-compose/internal/types"

// highZoomFloor is the zoom level from which every level gets its own task;
// tiles at 15+ are strictly more expensive than the low-zoom pyramid below
// them, so isolating each one lets workers parallelize without redundant
// low-zoom regeneration.
const highZoomFloor = 15

// Task is one (label, zoom-low, zoom-high) unit of tile-generation work.
// Label identifies the source stream: a scale ("scale_4") or a point
// sub-stream ("soundings", "nav_aids").
type Task struct {
	Label     string
	Scale     int
	ZoomLow   int
	ZoomHigh  int
}

// PlanTasks splits native into tasks per the high-zoom-isolation rule: a
// single task when native.Hi <= 14, otherwise one task for [native.Lo, 14]
// plus one task per zoom level from max(15, native.Lo) through native.Hi.
func PlanTasks(label string, scale int, native types.ZoomRange) []Task {
	if native.Empty() {
		return nil
	}
	if native.Hi <= 14 {
		return []Task{{Label: label, Scale: scale, ZoomLow: native.Lo, ZoomHigh: native.Hi}}
	}

	tasks := []Task{{Label: label, Scale: scale, ZoomLow: native.Lo, ZoomHigh: 14}}
	lo := native.Lo
	if highZoomFloor > lo {
		lo = highZoomFloor
	}
	for z := lo; z <= native.Hi; z++ {
		tasks = append(tasks, Task{Label: label, Scale: scale, ZoomLow: z, ZoomHigh: z})
	}
	return tasks
}
