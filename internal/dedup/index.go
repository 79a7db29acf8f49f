package dedup

import (
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/xnautical/enc-compose/internal/types"
)

// Entry is what the indexer keeps per dedup key.
type Entry struct {
	WinnerChartID string
	WinnerIndex   int
	WinnerScale   int

	Scales map[int]bool

	BestSCAMIN    float64 // largest (most permissive) SCAMIN seen across all copies
	HasBestSCAMIN bool

	winnerPoint orb.Point
	hasPoint    bool
}

// scaleObjl identifies one (scaleNum, OBJL) pair for the tightest-SCAMIN table.
type scaleObjl struct {
	scale int
	objl  int
}

// Index is the pass-1 indexer: dedup winners plus the tightest-SCAMIN table
// used later for SCAMIN-gap filler selection.
type Index struct {
	entries  map[string]*Entry
	tightest map[scaleObjl]float64
	present  map[scaleObjl]bool

	driftTolerance float64
	logger         *slog.Logger
}

// New creates an empty Index. driftTolerance is the approximate distance in
// meters beyond which a coordinate mismatch between a winner and a losing
// copy is logged as a warning (see the coordinate-drift open question).
func New(driftTolerance float64, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		entries:        map[string]*Entry{},
		tightest:       map[scaleObjl]float64{},
		present:        map[scaleObjl]bool{},
		driftTolerance: driftTolerance,
		logger:         logger,
	}
}

// Add folds one feature into the index. It is safe to call for every
// feature seen in pass 1, including pass-through (non-dedup) features,
// which Add silently ignores beyond the tightest-SCAMIN bookkeeping.
func (ix *Index) Add(f types.Feature) {
	if !f.IsPoint() {
		so := scaleObjl{scale: f.Props.ScaleNum, objl: f.Props.OBJL}
		ix.present[so] = true
		if f.Props.HasSCAMIN && f.Props.SCAMIN > 0 {
			if cur, ok := ix.tightest[so]; !ok || f.Props.SCAMIN < cur {
				ix.tightest[so] = f.Props.SCAMIN
			}
		}
	}

	key, ok := Key(f)
	if !ok {
		return
	}

	e, exists := ix.entries[key]
	if !exists {
		e = &Entry{Scales: map[int]bool{}}
		ix.entries[key] = e
	}
	e.Scales[f.Props.ScaleNum] = true

	if f.Props.HasSCAMIN && (!e.HasBestSCAMIN || f.Props.SCAMIN > e.BestSCAMIN) {
		e.BestSCAMIN = f.Props.SCAMIN
		e.HasBestSCAMIN = true
	}

	isNewWinner := !exists ||
		f.Props.ScaleNum > e.WinnerScale ||
		(f.Props.ScaleNum == e.WinnerScale && f.ChartID < e.WinnerChartID)

	if pt, isPoint := f.Geometry.(orb.Point); isPoint && exists && e.hasPoint && !isNewWinner {
		ix.checkDrift(key, e.winnerPoint, pt)
	}

	if isNewWinner {
		e.WinnerChartID = f.ChartID
		e.WinnerIndex = f.Index
		e.WinnerScale = f.Props.ScaleNum
		if pt, isPoint := f.Geometry.(orb.Point); isPoint {
			e.winnerPoint = pt
			e.hasPoint = true
		}
	}
}

func (ix *Index) checkDrift(key string, winner, other orb.Point) {
	if ix.driftTolerance <= 0 {
		return
	}
	if metersBetween(winner, other) > ix.driftTolerance {
		ix.logger.Warn("dedup coordinate drift",
			"key", key,
			"winner_lon", winner[0], "winner_lat", winner[1],
			"other_lon", other[0], "other_lat", other[1],
		)
	}
}

func metersBetween(a, b orb.Point) float64 {
	const degreeMeters = 111320.0
	dLat := (a[1] - b[1]) * degreeMeters
	dLon := (a[0] - b[0]) * degreeMeters * math.Cos(a[1]*math.Pi/180)
	return math.Hypot(dLat, dLon)
}

// Entry returns the indexed entry for key, if any.
func (ix *Index) Entry(key string) (Entry, bool) {
	e, ok := ix.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// IsWinner reports whether f is the recorded winner for its dedup key. Not
// in the dedup set returns true (pass-through features are never dropped).
func (ix *Index) IsWinner(f types.Feature) bool {
	key, ok := Key(f)
	if !ok {
		return true
	}
	e, exists := ix.entries[key]
	if !exists {
		return true
	}
	return e.WinnerChartID == f.ChartID && e.WinnerIndex == f.Index
}

// Scales returns the set of scales a dedup key was seen in, used to decide
// whether a winner needs zoom-ownership partitioning.
func (ix *Index) Scales(key string) map[int]bool {
	e, ok := ix.entries[key]
	if !ok {
		return nil
	}
	return e.Scales
}

// TightestScamin returns the smallest non-zero SCAMIN observed for
// (scaleNum, objl) among non-Point features.
func (ix *Index) TightestScamin(scaleNum, objl int) (float64, bool) {
	v, ok := ix.tightest[scaleObjl{scale: scaleNum, objl: objl}]
	return v, ok
}

// HasObjlAtScale reports whether any non-Point feature of objl was seen at
// scaleNum at all, regardless of whether it carried a SCAMIN. Used to tell
// "no SCAMIN recorded" apart from "this OBJL doesn't exist at that scale" when
// picking a filler's upper zoom bound.
func (ix *Index) HasObjlAtScale(scaleNum, objl int) bool {
	return ix.present[scaleObjl{scale: scaleNum, objl: objl}]
}
