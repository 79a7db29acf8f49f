// Package tracer implements the feature tracer: an observability feature
// carried through both compose passes that emits one structured log event
// per decision point for every feature matching an operator-supplied
// property matcher. It is on by default whenever TRACE_FEATURES names at
// least one matcher, and a silent no-op otherwise.
package tracer

import (
	"log/slog"

	"github.com/xnautical/enc-compose/internal/config"
	"github.com/xnautical/enc-compose/internal/types"
)

// Event names, one per pass-1/pass-2 decision point.
const (
	Found             = "FOUND"
	DedupReplace      = "DEDUP-REPLACE"
	DedupSkip         = "DEDUP-SKIP"
	MCovrClipped      = "MCOVR-CLIPPED"
	MCovrTrimmed      = "MCOVR-TRIMMED"
	PointExtract      = "POINT-EXTRACT"
	WritePartitioned  = "WRITE-PARTITIONED"
	WriteSingle       = "WRITE-SINGLE"
	WriteSkipped      = "WRITE-SKIPPED"
)

// Tracer holds the matcher list carried through pass 1 and pass 2.
type Tracer struct {
	matchers []config.TraceMatcher
	logger   *slog.Logger
}

// New builds a Tracer. A nil or empty matcher list produces a Tracer whose
// Matches always returns false, so Event never logs and the hot loop pays
// only the cost of a slice-length check.
func New(matchers []config.TraceMatcher, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{matchers: matchers, logger: logger}
}

// Matches reports whether f satisfies at least one matcher. A matcher
// matches when every one of its non-zero fields equals f's corresponding
// property: an OBJL-only matcher matches any feature of that class; an
// OBJNAM-only matcher matches any feature with that name regardless of
// OBJL; both set requires both to agree.
func (t *Tracer) Matches(f types.Feature) bool {
	for _, m := range t.matchers {
		if m.OBJL != 0 && m.OBJL != f.Props.OBJL {
			continue
		}
		if m.OBJNAM != "" && m.OBJNAM != f.Props.OBJNAM {
			continue
		}
		return true
	}
	return false
}

// Event logs one decision-point event for f, if f matches. attrs are
// appended slog key/value pairs (e.g. "scale", 4, "reason", "scamin-gap").
func (t *Tracer) Event(f types.Feature, event string, attrs ...any) {
	if len(t.matchers) == 0 || !t.Matches(f) {
		return
	}
	args := append([]any{
		"event", event,
		"chart", f.ChartID,
		"index", f.Index,
		"objl", f.Props.OBJL,
		"scale", f.Props.ScaleNum,
	}, attrs...)
	if f.Props.OBJNAM != "" {
		args = append(args, "objnam", f.Props.OBJNAM)
	}
	t.logger.Info("feature trace", args...)
}
