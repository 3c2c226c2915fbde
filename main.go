// go_chart — YouTube channel leaderboard pipeline.
//
// Builds ranked leaderboards for three time horizons from two
// complementary sources: the free per-channel syndication feed and the
// quota-limited metadata API. Daily runs fetch, normalize, filter,
// score and fairly allocate slots across channels, then append a
// snapshot to the history log; rollup runs aggregate the trailing 7 and
// 30 days of snapshots into windowed leaderboards. Triggered by cron;
// one mode per invocation.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go_chart/internal/chart"
	"github.com/anatolykoptev/go_chart/internal/chart/sources"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "all", "daily | rollup | all")
	flag.Parse()

	initLogging()

	cfg := chart.Config{
		ChannelsCSV:    env.Str("CHANNELS_CSV", "channels.csv"),
		DataDir:        env.Str("DATA_DIR", "public/data"),
		RulesPath:      env.Str("RULES_JSON", ""),
		Allowlist:      env.List("ALLOWLIST", ""),
		FetchTimeout:   env.Duration("FETCH_TIMEOUT", 15*time.Second),
		FetchWorkers:   env.Int("FETCH_WORKERS", 16),
		FeedEntryCap:   env.Int("FEED_ENTRY_CAP", 20),
		BatchInterval:  env.Duration("BATCH_INTERVAL", 100*time.Millisecond),
		MinDurationSec: env.Int("MIN_DURATION_SEC", chart.MinLongformSec),
		MaxTotal:       env.Int("MAX_TOTAL", 500),
		RollupScoring:  chart.RollupScoring(env.Str("ROLLUP_SCORING", "median")),
		RedisURL:       env.Str("REDIS_URL", ""),
		ViewTTL:        env.Duration("VIEW_TTL", 12*time.Hour),
		LedgerPath:     env.Str("LEDGER_DB", ""),
		HTTPClient: &http.Client{
			Timeout: env.Duration("FETCH_TIMEOUT", 15*time.Second),
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	feed := sources.NewFeedClient(cfg.HTTPClient)

	var meta chart.MetadataFetcher
	if key := env.Str("YT_API_KEY", ""); key != "" {
		meta = sources.NewMetadataClient(key, env.Str("YT_API_KEY_FALLBACK", ""), cfg.HTTPClient, cfg.BatchInterval)
	} else {
		slog.Warn("YT_API_KEY not set, running feed-only: durations stay unknown")
	}

	p, err := chart.New(cfg, feed, meta)
	if err != nil {
		slog.Error("pipeline init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer p.Close()

	ctx := context.Background()

	runDaily := func() {
		channels, err := sources.LoadChannels(cfg.ChannelsCSV)
		if err != nil {
			// the channel list is the one input we cannot degrade around
			slog.Error("channel list unreadable", slog.Any("error", err))
			os.Exit(1)
		}
		if err := p.RunDaily(ctx, channels); err != nil {
			slog.Error("daily run failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
	runRollups := func() {
		for _, w := range []chart.Window{chart.Window7d, chart.Window30d} {
			if err := p.RunRollup(ctx, w); err != nil {
				slog.Error("rollup failed", slog.String("window", string(w)), slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	switch *mode {
	case "daily":
		runDaily()
	case "rollup":
		runRollups()
	case "all":
		runDaily()
		runRollups()
	default:
		slog.Error("unknown mode", slog.String("mode", *mode))
		os.Exit(2)
	}

	chart.LogMetrics()
}

func initLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(env.Str("LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
