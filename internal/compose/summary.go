package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xnautical/enc-compose/internal/ingest"
)

// Summary is the final JSON report a successful run prints to stdout and,
// if configured, POSTs to the metadata generator.
type Summary struct {
	DistrictID      string        `json:"district_id"`
	DistrictLabel   string        `json:"district_label"`
	ChartsIngested  int           `json:"charts_ingested"`
	ChartsDropped   []string      `json:"charts_dropped,omitempty"`
	ScalesActive    []int         `json:"scales_active"`
	ChartsArchive   string        `json:"charts_archive_key"`
	PointsArchive   string        `json:"points_archive_key,omitempty"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	ElapsedHuman    string        `json:"elapsed"`
	CompletedAtUnix int64         `json:"completed_at_unix"`
}

// newSummary assembles the final report from the run's intermediate state.
func newSummary(cfg summaryInput, result ingest.Result, scales []int, elapsed time.Duration, completedAt time.Time) Summary {
	return Summary{
		DistrictID:      cfg.districtID,
		DistrictLabel:   cfg.districtLabel,
		ChartsIngested:  len(result.Charts),
		ChartsDropped:   result.Dropped,
		ScalesActive:    scales,
		ChartsArchive:   cfg.chartsKey,
		PointsArchive:   cfg.pointsKey,
		Elapsed:         elapsed,
		ElapsedHuman:    elapsed.Round(time.Second).String(),
		CompletedAtUnix: completedAt.Unix(),
	}
}

type summaryInput struct {
	districtID    string
	districtLabel string
	chartsKey     string
	pointsKey     string
}

// postSummary best-effort POSTs the summary to the metadata generator. A
// failure here never fails the run; the caller only logs it.
func postSummary(ctx context.Context, url string, s Summary) error {
	if url == "" {
		return nil
	}
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post summary: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post summary: status %d", resp.StatusCode)
	}
	return nil
}
