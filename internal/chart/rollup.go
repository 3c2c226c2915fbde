package chart

import (
	"log/slog"
	"time"
)

// AggStats reports what the aggregator saw, so an empty result can be
// told apart from an empty window. The old pipeline silently returned
// the unfiltered set when filtering emptied the result; that fallback
// masked filter bugs and is gone — operators get the distinction
// instead.
type AggStats struct {
	Snapshots    int
	Observations int // items seen across all snapshots in the window
	Kept         int // observations surviving the strict re-filter
}

// observation is one appearance of a video inside the window.
type observation struct {
	cand CandidateVideo
	rank int
	date time.Time
}

// Aggregate flattens the window's snapshots, re-applies the classifier
// in strict mode (snapshots may have been written under the lenient
// daily policy), groups repeated observations of the same video, scores
// each group, and runs fair allocation. Group iteration follows
// first-seen order so the result is deterministic for a fixed history.
func Aggregate(snaps []SnapshotRecord, rules *Ruleset, scoring RollupScoring, w Window, maxTotal int) ([]RankedItem, AggStats) {
	var stats AggStats
	stats.Snapshots = len(snaps)

	var order []string // video ids in first-seen order
	groups := make(map[string][]observation)
	for _, snap := range snaps {
		for _, raw := range snap.Items {
			stats.Observations++
			cand, err := Normalize(raw)
			if err != nil {
				IncrNormalizeRejects()
				continue
			}
			if v := rules.Classify(cand, PolicyStrict); !v.Accept {
				IncrRejected(v.Reason)
				continue
			}
			stats.Kept++
			rank := Unknown
			if r, ok := raw["rank"]; ok {
				if n, ok := asInt(r); ok && n > 0 {
					rank = n
				}
			}
			if _, seen := groups[cand.VideoID]; !seen {
				order = append(order, cand.VideoID)
			}
			groups[cand.VideoID] = append(groups[cand.VideoID], observation{cand: cand, rank: rank, date: snap.Date})
		}
	}

	cands := make([]ScoredCandidate, 0, len(order))
	for _, vid := range order {
		obs := groups[vid]
		cands = append(cands, ScoredCandidate{
			CandidateVideo: latestObservation(obs).cand,
			Score:          scoreGroup(obs, scoring),
		})
	}

	items := Allocate(cands, w.PerChannelCap(), maxTotal)
	slog.Info("rollup aggregated",
		slog.String("window", string(w)),
		slog.Int("snapshots", stats.Snapshots),
		slog.Int("observations", stats.Observations),
		slog.Int("kept", stats.Kept),
		slog.Int("items", len(items)),
	)
	return items, stats
}

// latestObservation picks the freshest metadata for a video; snapshot
// order in the file is chronological but not assumed.
func latestObservation(obs []observation) observation {
	best := obs[0]
	for _, o := range obs[1:] {
		if o.date.After(best.date) {
			best = o
		}
	}
	return best
}

func scoreGroup(obs []observation, scoring RollupScoring) float64 {
	if scoring == ScoringGrowth {
		first, last := obs[0], obs[0]
		for _, o := range obs[1:] {
			if o.date.Before(first.date) {
				first = o
			}
			if o.date.After(last.date) {
				last = o
			}
		}
		return growthScore(first.cand.ViewCount, last.cand.ViewCount, len(obs))
	}

	ranks := make([]int, 0, len(obs))
	for _, o := range obs {
		if o.rank != Unknown {
			ranks = append(ranks, o.rank)
		}
	}
	if len(ranks) == 0 {
		// snapshot rows without a usable rank still count for presence
		return float64(len(obs)) * 1e-6
	}
	return medianScore(ranks)
}
