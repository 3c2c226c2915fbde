package chart

import (
	"net/http"
	"time"
)

// Config holds all pipeline configuration, injected from main.
// There is no package-level config: every run gets an explicitly
// constructed Pipeline so tests can swap in source doubles.
type Config struct {
	ChannelsCSV string // channel list path; unreadable list is run-fatal
	DataDir     string // artifacts + history log live here

	RulesPath string   // optional JSON rule table; empty = compiled-in defaults
	Allowlist []string // channel/video ids exempt from the text gate

	FetchTimeout  time.Duration // per-call bound, feed and metadata alike
	FetchWorkers  int           // concurrent feed fetches
	FeedEntryCap  int           // newest entries considered per channel
	BatchInterval time.Duration // pacing between metadata API batches

	MinDurationSec int // long-form threshold
	MaxTotal       int // global leaderboard cap

	RollupScoring RollupScoring // median (default) or growth

	RedisURL   string        // optional enrichment cache L2
	ViewTTL    time.Duration // how long cached view counts stay fresh
	LedgerPath string        // optional sqlite run ledger; empty = disabled

	HTTPClient *http.Client
	Now        func() time.Time // injectable clock; nil = time.Now
}

// withDefaults fills zero values with production defaults.
func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = "public/data"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = 16
	}
	if c.FeedEntryCap <= 0 {
		c.FeedEntryCap = 20
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 100 * time.Millisecond
	}
	if c.MinDurationSec <= 0 {
		c.MinDurationSec = MinLongformSec
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = 500
	}
	if c.RollupScoring == "" {
		c.RollupScoring = ScoringMedian
	}
	if c.ViewTTL <= 0 {
		c.ViewTTL = 12 * time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.FetchTimeout}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
