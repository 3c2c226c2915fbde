package chart

import "sort"

// ScoredCandidate pairs a candidate with its ranking score before
// allocation.
type ScoredCandidate struct {
	CandidateVideo
	Score float64
}

// Allocate selects at most maxTotal items with no channel occupying
// more than perChannelCap slots. Candidates are grouped per channel in
// input order; each group is drained best-first by a round-robin scan
// over the groups, so every channel places its best candidate before
// any channel places its second. The final output is re-sorted by score
// descending, ties broken by publish recency descending, then by
// original input order. Ranks are dense and 1-based.
func Allocate(cands []ScoredCandidate, perChannelCap, maxTotal int) []RankedItem {
	if perChannelCap <= 0 {
		perChannelCap = 1
	}
	if maxTotal <= 0 || len(cands) == 0 {
		return nil
	}

	type indexed struct {
		ScoredCandidate
		pos int // original input order, last-resort tiebreak
	}

	var order []string // channel ids in first-seen order
	groups := make(map[string][]indexed)
	for i, c := range cands {
		if _, seen := groups[c.ChannelID]; !seen {
			order = append(order, c.ChannelID)
		}
		groups[c.ChannelID] = append(groups[c.ChannelID], indexed{c, i})
	}

	// Best-first within each channel; stable so exact ties keep
	// insertion order.
	for _, id := range order {
		g := groups[id]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Score > g[j].Score })
	}

	taken := make(map[string]int, len(order))
	var picked []indexed
	for len(picked) < maxTotal {
		progressed := false
		for _, id := range order {
			if len(picked) >= maxTotal {
				break
			}
			g := groups[id]
			if len(g) == 0 || taken[id] >= perChannelCap {
				continue
			}
			picked = append(picked, g[0])
			groups[id] = g[1:]
			taken[id]++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].Score != picked[j].Score {
			return picked[i].Score > picked[j].Score
		}
		if !picked[i].PublishedAt.Equal(picked[j].PublishedAt) {
			return picked[i].PublishedAt.After(picked[j].PublishedAt)
		}
		return picked[i].pos < picked[j].pos
	})

	items := make([]RankedItem, len(picked))
	for i, c := range picked {
		items[i] = RankedItem{CandidateVideo: c.CandidateVideo, Rank: i + 1, Score: c.Score}
	}
	return items
}
