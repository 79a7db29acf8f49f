// Package config defines RunConfig, its defaults, its validation and the
// TRACE_FEATURES parser. It does not read viper itself: the cmd layer fills
// a RunConfig from viper-bound flags/env under one env prefix.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RunConfig is the full set of tunables for one compose run, assembled by
// the cmd layer from flags/env/config-file and passed by value into the
// orchestrator. Nothing in internal/compose reads viper directly.
type RunConfig struct {
	DistrictID    string
	DistrictLabel string
	BucketName    string

	// IngestConcurrency bounds parallel chart-file downloads (spec default 16).
	IngestConcurrency int

	// PollInterval and PollTimeout govern the worker wait loop.
	PollInterval time.Duration
	PollTimeout  time.Duration

	// MergeConcurrency bounds simultaneous tree-merge subprocess calls.
	MergeConcurrency int

	// DownloadQueueBound caps ready-queue + in-flight files on disk during
	// the worker wait loop (spec default 4 queued + 4 in-flight).
	DownloadQueueBound int

	// Headroom is the SCAMIN-to-minzoom constant: minzoom = 28 - Headroom -
	// log2(SCAMIN), rounded. Exposed as config per the Design Notes' open
	// question ("if the client policy changes, this constant must change in
	// lockstep — treat it as a tunable").
	Headroom float64

	// CoordinateDriftTolerance is the distance (meters, approximate) beyond
	// which a dedup winner's coordinates differing from a losing copy's
	// triggers a warning log line rather than silent replacement.
	CoordinateDriftTolerance float64

	// TraceMatchers, if non-empty, turns on per-feature trace logging for
	// features whose properties match any entry.
	TraceMatchers []TraceMatcher

	// MetadataGeneratorURL, if set, receives one best-effort POST of the
	// run summary (compose.Summary) after a successful run.
	MetadataGeneratorURL string

	// WorkDir is the local scratch directory for streams, downloads, and
	// merge intermediates.
	WorkDir string
}

// TraceMatcher is one property-matcher entry from TRACE_FEATURES: a feature
// matches if every non-zero field here equals the feature's corresponding
// property.
type TraceMatcher struct {
	OBJL   int
	OBJNAM string
}

// ParseTraceMatchers parses the TRACE_FEATURES configuration value. raw may
// be a JSON array of {"objl":..,"objnam":".."} objects, or a plain
// comma-separated list of object names, matched against OBJNAM. An empty
// (or whitespace-only) raw yields a nil slice: tracing off.
func ParseTraceMatchers(raw string) ([]TraceMatcher, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var matchers []TraceMatcher
		if err := json.Unmarshal([]byte(raw), &matchers); err != nil {
			return nil, fmt.Errorf("config: parse TRACE_FEATURES JSON: %w", err)
		}
		return matchers, nil
	}
	var matchers []TraceMatcher
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		matchers = append(matchers, TraceMatcher{OBJNAM: name})
	}
	return matchers, nil
}

// Default returns the spec's documented defaults.
func Default() RunConfig {
	return RunConfig{
		IngestConcurrency:        16,
		PollInterval:             10 * time.Second,
		PollTimeout:              90 * time.Minute,
		MergeConcurrency:         2,
		DownloadQueueBound:       8,
		Headroom:                 2,
		CoordinateDriftTolerance: 50,
		WorkDir:                  "./work",
	}
}

// Validate checks the configuration-error taxonomy from the error-handling
// design: missing/invalid district identifier, missing bucket name.
func (c RunConfig) Validate() error {
	if c.DistrictID == "" {
		return errConfig("DISTRICT_ID is required")
	}
	if c.BucketName == "" {
		return errConfig("BUCKET_NAME is required")
	}
	if c.IngestConcurrency <= 0 {
		return errConfig("ingest concurrency must be positive")
	}
	if c.MergeConcurrency <= 0 {
		return errConfig("merge concurrency must be positive")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errConfig(msg string) error { return configError(msg) }
