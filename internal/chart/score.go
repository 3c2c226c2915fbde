package chart

import (
	"math"
	"sort"
	"time"
)

// RollupScoring selects how windowed rollups rank repeated observations.
type RollupScoring string

const (
	ScoringMedian RollupScoring = "median" // median rank across appearances
	ScoringGrowth RollupScoring = "growth" // max view-count delta in window
)

// viewBonusWeight keeps the log-scaled view term subordinate to recency.
const viewBonusWeight = 0.5

// LiveScore ranks a freshly fetched candidate: inverse age in days is
// the dominant term, with a log-scaled view bonus when view data
// exists. View-less candidates rank purely on recency.
func LiveScore(c CandidateVideo, now time.Time) float64 {
	ageDays := 0.0
	if !c.PublishedAt.IsZero() {
		if age := now.Sub(c.PublishedAt); age > 0 {
			ageDays = age.Hours() / 24
		}
	} else {
		ageDays = 365 // undated candidates sink
	}
	score := 10.0 / (1.0 + ageDays)
	if c.ViewCount != Unknown {
		score += viewBonusWeight * math.Log10(float64(c.ViewCount)+1)
	}
	return score
}

// medianRank returns the median of ranks; lower is better. Even-length
// inputs average the middle pair.
func medianRank(ranks []int) float64 {
	if len(ranks) == 0 {
		return 0
	}
	sorted := make([]int, len(ranks))
	copy(sorted, ranks)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

// medianScore inverts a median rank so that higher scores are better.
func medianScore(ranks []int) float64 {
	m := medianRank(ranks)
	if m <= 0 {
		return 0
	}
	return 1.0 / m
}

// growthScore scores a video by the view-count delta between its first
// and last appearance inside the window, falling back to appearance
// count when view data never showed up.
func growthScore(firstViews, lastViews, appearances int) float64 {
	if firstViews != Unknown && lastViews != Unknown && lastViews >= firstViews {
		return float64(lastViews - firstViews)
	}
	return float64(appearances)
}
