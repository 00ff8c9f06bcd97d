package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewandler/passage-go/adapters/bolt"
	promadapter "github.com/codewandler/passage-go/adapters/prometheus"
	"github.com/codewandler/passage-go/core/runloop"
	"github.com/codewandler/passage-go/core/timeline"
)

// === Config ===

// Load-shape knobs; the engine itself is configured through the PASSAGE_*
// environment variables parsed by timeline.LoadConfig.
var (
	numEntities   = getEnvInt("N", 500)
	numDetections = getEnvInt("D", 50_000)
	metricsAddr   = getEnv("METRICS_ADDR", "")
	withStocks    = getEnvBool("STOCKS", true)
)

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, fmt.Sprintf("%t", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

//

func main() {
	log := slog.Default()

	if err := run(context.Background(), log); err != nil {
		log.Error("loadtest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	cfg, err := timeline.LoadConfig()
	if err != nil {
		return err
	}

	_ = os.Remove(cfg.Path)

	s, err := bolt.Open(cfg.Path, timeline.Tables()...)
	if err != nil {
		return err
	}
	defer s.Close()

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Info("serving metrics", slog.String("addr", metricsAddr))
			_ = http.ListenAndServe(metricsAddr, nil)
		}()
	}

	tl := timeline.New(s,
		timeline.WithLogger(log),
		timeline.WithMode(cfg.Mode),
		timeline.WithCommitBudget(cfg.CommitBudget),
		timeline.WithMetrics(promadapter.NewTimelineMetrics(reg)),
	)
	if err := tl.Load(ctx); err != nil {
		return err
	}

	loop := runloop.New(runloop.Options{Logger: log})
	defer loop.Stop()

	log.Info("starting",
		slog.Int("entities", numEntities),
		slog.Int("detections", numDetections),
		slog.String("db", cfg.Path),
	)

	start := time.Now()
	for i := 0; i < numDetections; i++ {
		var (
			id  = fmt.Sprintf("entity-%d", i%numEntities)
			det *timeline.Detection
		)
		if withStocks {
			det = &timeline.Detection{StockID: fmt.Sprintf("stock-%d", i%numEntities%10)}
		}
		err := loop.Do(ctx, func() error {
			return tl.HandleDetected(ctx, id, det)
		})
		if err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	log.Info("done",
		slog.Duration("elapsed", elapsed),
		slog.Float64("detections_per_sec", float64(numDetections)/elapsed.Seconds()),
		slog.Int("count_inside", tl.CountInside()),
		slog.Int("max_count_inside", tl.MaxCountInside()),
		slog.Int("entries", tl.CumulativeEntries()),
		slog.Int("exits", tl.CumulativeExits()),
	)

	// restart check: replay must reproduce the incrementally maintained state
	replayStart := time.Now()
	tl2 := timeline.New(s, timeline.WithLogger(log))
	if err := tl2.Load(ctx); err != nil {
		return err
	}
	if tl2.CountInside() != tl.CountInside() ||
		tl2.CumulativeEntries() != tl.CumulativeEntries() ||
		tl2.CumulativeExits() != tl.CumulativeExits() {
		return fmt.Errorf("replay mismatch: got %d/%d/%d want %d/%d/%d",
			tl2.CountInside(), tl2.CumulativeEntries(), tl2.CumulativeExits(),
			tl.CountInside(), tl.CumulativeEntries(), tl.CumulativeExits())
	}
	log.Info("replay verified", slog.Duration("elapsed", time.Since(replayStart)))

	return nil
}
