package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xnautical/enc-compose/internal/compose"
	"github.com/xnautical/enc-compose/internal/config"
	"github.com/xnautical/enc-compose/internal/storage"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Run one end-to-end chart-compose job for a district",
	Long: `compose ingests a district's chart extracts, dedupes and
partitions features, fans the work out to the tile generator, tree-merges
the results, and publishes the resulting MBTiles archive(s).`,
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)

	composeCmd.Flags().String("district-id", "", "District identifier to compose (required)")
	composeCmd.Flags().String("district-label", "", "Human-readable district label used in output filenames (defaults to district-id)")
	composeCmd.Flags().Int("workers", 0, "Parallel chart-file ingest concurrency (0 = default)")
	composeCmd.Flags().Int("merge-concurrency", 0, "Simultaneous tree-merge subprocess calls (0 = default)")
	composeCmd.Flags().Int("download-queue-bound", 0, "Cap on ready-queue + in-flight worker downloads (0 = default)")
	composeCmd.Flags().Duration("poll-interval", 0, "Worker completion poll interval (0 = default)")
	composeCmd.Flags().Duration("poll-timeout", 0, "Worker completion poll timeout (0 = default)")
	composeCmd.Flags().Float64("headroom", 0, "SCAMIN-to-minzoom headroom constant (0 = default)")
	composeCmd.Flags().Float64("coordinate-drift-tolerance", 0, "Dedup coordinate drift warning threshold in meters (0 = default)")
	composeCmd.Flags().String("trace-features", "", "JSON array of property matchers, or a comma-separated OBJNAM list, to enable per-feature trace logging")
	composeCmd.Flags().String("metadata-generator-url", "", "URL to best-effort POST the run summary to after completion")
	composeCmd.Flags().String("tile-generator-bin", "", "Path to the external tile-generator subprocess binary (PATH lookup if empty)")
	composeCmd.Flags().String("tile-join-bin", "", "Path to the external tile-join subprocess binary (PATH lookup if empty)")

	for _, b := range []struct{ key, flag string }{
		{"district-id", "district-id"},
		{"district-label", "district-label"},
		{"workers", "workers"},
		{"merge-concurrency", "merge-concurrency"},
		{"download-queue-bound", "download-queue-bound"},
		{"poll-interval", "poll-interval"},
		{"poll-timeout", "poll-timeout"},
		{"headroom", "headroom"},
		{"coordinate-drift-tolerance", "coordinate-drift-tolerance"},
		{"trace-features", "trace-features"},
		{"metadata-generator-url", "metadata-generator-url"},
		{"tile-generator-bin", "tile-generator-bin"},
		{"tile-join-bin", "tile-join-bin"},
	} {
		if err := viper.BindPFlag(b.key, composeCmd.Flags().Lookup(b.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func runCompose(_ *cobra.Command, _ []string) error {
	cfg := config.Default()
	cfg.DistrictID = viper.GetString("district-id")
	cfg.DistrictLabel = viper.GetString("district-label")
	if cfg.DistrictLabel == "" {
		cfg.DistrictLabel = cfg.DistrictID
	}
	cfg.BucketName = viper.GetString("bucket")
	cfg.WorkDir = viper.GetString("work-dir")
	if v := viper.GetInt("workers"); v > 0 {
		cfg.IngestConcurrency = v
	}
	if v := viper.GetInt("merge-concurrency"); v > 0 {
		cfg.MergeConcurrency = v
	}
	if v := viper.GetInt("download-queue-bound"); v > 0 {
		cfg.DownloadQueueBound = v
	}
	if v := viper.GetDuration("poll-interval"); v > 0 {
		cfg.PollInterval = v
	}
	if v := viper.GetDuration("poll-timeout"); v > 0 {
		cfg.PollTimeout = v
	}
	if v := viper.GetFloat64("headroom"); v > 0 {
		cfg.Headroom = v
	}
	if v := viper.GetFloat64("coordinate-drift-tolerance"); v > 0 {
		cfg.CoordinateDriftTolerance = v
	}
	matchers, err := config.ParseTraceMatchers(viper.GetString("trace-features"))
	if err != nil {
		return err
	}
	cfg.TraceMatchers = matchers
	cfg.MetadataGeneratorURL = viper.GetString("metadata-generator-url")

	store, err := storage.NewLocalStore(cfg.WorkDir + "/store")
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}

	orch := &compose.Orchestrator{
		Store:            store,
		Logger:           logger,
		TileGeneratorBin: viper.GetString("tile-generator-bin"),
		TileJoinBin:      viper.GetString("tile-join-bin"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := orch.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("compose run failed after %s: %w", time.Since(start), err)
	}

	if err := json.NewEncoder(os.Stdout).Encode(summary); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}
