package chart

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// FeedFetcher pulls a channel's most recent raw entries. Implementations
// fail locally: an error means this channel contributes nothing this
// run, never that the run aborts.
type FeedFetcher interface {
	Fetch(ctx context.Context, ch ChannelRef) ([]map[string]any, error)
}

// MetadataFetcher enriches candidates via the quota-limited API.
// Both calls take batches of ids and return whatever subset resolved;
// a missing id simply stays unenriched.
type MetadataFetcher interface {
	Videos(ctx context.Context, ids []string) (map[string]VideoMeta, error)
	Channels(ctx context.Context, ids []string) (map[string]ChannelMeta, error)
}

// Artifact file names under DataDir.
const (
	artifactDaily   = "top500.json"
	artifact7d      = "top500_7d.json"
	artifact30d     = "top500_30d.json"
	historyFileName = "history.ndjson"
)

// Pipeline wires the stages together for one or more runs. Construct
// one per process; everything it holds is either read-only or guarded.
type Pipeline struct {
	cfg     Config
	feed    FeedFetcher
	meta    MetadataFetcher // nil = feed-only, durations stay unknown
	rules   *Ruleset
	history *HistoryStore
	cache   *EnrichCache
	ledger  *RunLedger // nil = ledger disabled
}

// New builds a Pipeline from config plus injected source readers.
// meta may be nil when no API credential is configured; the pipeline
// then degrades to feed-only mode under the lenient duration policy.
func New(cfg Config, feed FeedFetcher, meta MetadataFetcher) (*Pipeline, error) {
	cfg = cfg.withDefaults()

	rules := DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	rs, err := CompileRules(rules, cfg.MinDurationSec, cfg.Allowlist)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		feed:    feed,
		meta:    meta,
		rules:   rs,
		history: NewHistoryStore(filepath.Join(cfg.DataDir, historyFileName)),
		cache:   NewEnrichCache(cfg.RedisURL, cfg.ViewTTL),
	}
	if cfg.LedgerPath != "" {
		ledger, err := OpenLedger(cfg.LedgerPath)
		if err != nil {
			slog.Warn("run ledger disabled", slog.Any("error", err))
		} else {
			p.ledger = ledger
		}
	}
	return p, nil
}

// Close releases the ledger handle.
func (p *Pipeline) Close() error {
	if p.ledger != nil {
		return p.ledger.Close()
	}
	return nil
}

// channelResult is one channel's normalized candidates, newest first.
type channelResult struct {
	ref        ChannelRef
	candidates []CandidateVideo
	err        error
}

// RunDaily executes a full daily build: fetch feeds across a bounded
// worker pool, normalize, enrich durations/views under quota, classify
// leniently, pick the newest qualifying video per channel, score,
// allocate, write the artifact and append the snapshot. Only a failed
// artifact write is fatal.
func (p *Pipeline) RunDaily(ctx context.Context, channels []ChannelRef) error {
	started := p.cfg.Now()
	slog.Info("daily run started", slog.Int("channels", len(channels)))

	results := p.fetchAll(ctx, channels)

	var failed, fetched int
	for _, r := range results {
		if r.err != nil {
			failed++
		}
		fetched += len(r.candidates)
	}

	p.enrich(ctx, results)

	// Walk each channel newest→older and keep the first accepted
	// candidate: daily considers only the latest long-form video.
	now := p.cfg.Now()
	var cands []ScoredCandidate
	for _, r := range results {
		for _, c := range r.candidates {
			v := p.rules.Classify(c, PolicyLenient)
			if !v.Accept {
				IncrRejected(v.Reason)
				continue
			}
			cands = append(cands, ScoredCandidate{CandidateVideo: c, Score: LiveScore(c, now)})
			break
		}
	}

	p.enrichSubscribers(ctx, cands)

	items := Allocate(cands, WindowDaily.PerChannelCap(), p.cfg.MaxTotal)

	genAt := p.cfg.Now().UTC()
	artifact := Artifact{
		GeneratedAtUTC: genAt.Format(time.RFC3339),
		Window:         WindowDaily,
		Items:          items,
	}
	if err := WriteArtifact(filepath.Join(p.cfg.DataDir, artifactDaily), artifact); err != nil {
		return fmt.Errorf("daily: %w", err)
	}

	// The snapshot is a side-channel: a failed append degrades rollups
	// but the daily artifact already shipped, so the run still counts.
	if err := p.history.Append(Snapshot{Date: genAt, Items: items}); err != nil {
		slog.Error("daily: snapshot append failed", slog.Any("error", err))
	}

	status := StatusOK
	switch {
	case len(items) > 0:
	case fetched == 0:
		status = StatusInsufficientData
	default:
		status = StatusEmptyFiltered
	}
	p.record(ctx, RunRecord{
		Window:         WindowDaily,
		StartedAt:      started,
		FinishedAt:     p.cfg.Now(),
		ChannelsOK:     len(results) - failed,
		ChannelsFailed: failed,
		Items:          len(items),
		Status:         status,
	})
	slog.Info("daily run finished",
		slog.Int("items", len(items)),
		slog.Int("channels_failed", failed),
		slog.String("status", status),
	)
	return nil
}

// RunRollup builds one windowed leaderboard from the history log.
// An empty window still produces a valid empty artifact.
func (p *Pipeline) RunRollup(ctx context.Context, w Window) error {
	if w.Days() == 0 {
		return fmt.Errorf("rollup: %q is not a windowed horizon", w)
	}
	started := p.cfg.Now()
	from := started.AddDate(0, 0, -w.Days())

	snaps, err := p.history.ReadWindow(from, started)
	if err != nil {
		// valid prefix already loaded; a torn tail is not run-fatal
		slog.Warn("rollup: history read incomplete", slog.Any("error", err))
	}

	items, stats := Aggregate(snaps, p.rules, p.cfg.RollupScoring, w, p.cfg.MaxTotal)

	out := artifact7d
	if w == Window30d {
		out = artifact30d
	}
	artifact := Artifact{
		GeneratedAtUTC: p.cfg.Now().UTC().Format(time.RFC3339),
		Window:         w,
		Items:          items,
	}
	if err := WriteArtifact(filepath.Join(p.cfg.DataDir, out), artifact); err != nil {
		return fmt.Errorf("rollup %s: %w", w, err)
	}

	status := StatusOK
	switch {
	case len(items) > 0:
	case stats.Observations == 0:
		status = StatusInsufficientData
	default:
		status = StatusEmptyFiltered
	}
	p.record(ctx, RunRecord{
		Window:     w,
		StartedAt:  started,
		FinishedAt: p.cfg.Now(),
		Items:      len(items),
		Status:     status,
	})
	slog.Info("rollup finished", slog.String("window", string(w)), slog.Int("items", len(items)), slog.String("status", status))
	return nil
}

// fetchAll runs feed fetches across channels with a bounded worker
// pool. Each call gets its own timeout; one slow channel cannot block
// the rest, and a failing channel is logged and skipped.
func (p *Pipeline) fetchAll(ctx context.Context, channels []ChannelRef) []channelResult {
	results := make([]channelResult, len(channels))
	sem := make(chan struct{}, p.cfg.FetchWorkers)
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch ChannelRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
			defer cancel()

			IncrFeedRequests()
			raws, err := p.feed.Fetch(callCtx, ch)
			if err != nil {
				IncrFeedErrors()
				slog.Warn("feed fetch failed", slog.String("channel", ch.ChannelID), slog.Any("error", err))
				results[i] = channelResult{ref: ch, err: err}
				return
			}
			if len(raws) > p.cfg.FeedEntryCap {
				raws = raws[:p.cfg.FeedEntryCap]
			}
			var cands []CandidateVideo
			for _, raw := range raws {
				c, err := Normalize(raw)
				if err != nil {
					IncrNormalizeRejects()
					continue
				}
				if c.ChannelID == "" {
					c.ChannelID = ch.ChannelID
				}
				if c.ChannelName == "" {
					c.ChannelName = ch.ChannelName
				}
				c.Source = SourceFeed
				cands = append(cands, c)
			}
			results[i] = channelResult{ref: ch, candidates: cands}
		}(i, ch)
	}
	wg.Wait()
	return results
}

// enrich fills durations and view counts for candidates that need them:
// duration unknown or below the long-form threshold. Cache first, then
// batched metadata calls. Any failure leaves durations unknown — the
// lenient policy keeps those candidates alive.
func (p *Pipeline) enrich(ctx context.Context, results []channelResult) {
	var need []string
	byID := make(map[string][]*CandidateVideo)
	for i := range results {
		for j := range results[i].candidates {
			c := &results[i].candidates[j]
			if c.DurationSec != Unknown && c.DurationSec >= p.cfg.MinDurationSec {
				continue
			}
			if meta, ok := p.cache.Lookup(ctx, c.VideoID); ok {
				apply(c, meta)
				continue
			}
			if len(byID[c.VideoID]) == 0 {
				need = append(need, c.VideoID)
			}
			byID[c.VideoID] = append(byID[c.VideoID], c)
		}
	}
	if len(need) == 0 || p.meta == nil {
		if len(need) > 0 {
			slog.Info("no metadata credential, durations stay unknown", slog.Int("candidates", len(need)))
		}
		return
	}

	fetched, err := p.meta.Videos(ctx, need)
	if err != nil {
		IncrMetadataErrors()
		slog.Warn("metadata enrichment degraded", slog.Any("error", err))
	}
	for id, meta := range fetched {
		p.cache.Store(ctx, id, meta)
		for _, c := range byID[id] {
			apply(c, meta)
		}
	}
	slog.Info("enrichment done", slog.Int("requested", len(need)), slog.Int("resolved", len(fetched)))
}

func apply(c *CandidateVideo, meta VideoMeta) {
	if meta.DurationSec != Unknown {
		c.DurationSec = meta.DurationSec
	}
	if meta.ViewCount != Unknown {
		c.ViewCount = meta.ViewCount
	}
	c.Source = SourceAPI
}

// enrichSubscribers decorates the selected candidates with channel
// statistics. Purely cosmetic for the artifact; failures are ignored.
func (p *Pipeline) enrichSubscribers(ctx context.Context, cands []ScoredCandidate) {
	if p.meta == nil || len(cands) == 0 {
		return
	}
	var ids []string
	seen := make(map[string]bool)
	for _, c := range cands {
		if c.Subscribers == Unknown && !seen[c.ChannelID] {
			seen[c.ChannelID] = true
			ids = append(ids, c.ChannelID)
		}
	}
	if len(ids) == 0 {
		return
	}
	stats, err := p.meta.Channels(ctx, ids)
	if err != nil {
		slog.Warn("channel stats enrichment skipped", slog.Any("error", err))
		return
	}
	for i := range cands {
		if s, ok := stats[cands[i].ChannelID]; ok {
			cands[i].Subscribers = s.Subscribers
		}
	}
}

func (p *Pipeline) record(ctx context.Context, r RunRecord) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Record(ctx, r); err != nil {
		slog.Warn("run ledger write failed", slog.Any("error", err))
	}
}
