package chart

import "time"

// Unknown marks a numeric field whose value was never observed.
// Distinct from zero: a video with zero views is scored, a video with
// unknown views is ranked on recency alone.
const Unknown = -1

// MinLongformSec is the long-form threshold: videos shorter than this
// are rejected by the duration gate (11 minutes).
const MinLongformSec = 660

// Source identifies which reader produced a candidate.
type Source string

const (
	SourceFeed Source = "feed"
	SourceAPI  Source = "api"
)

// Window selects the leaderboard time horizon.
type Window string

const (
	WindowDaily Window = "daily"
	Window7d    Window = "7d"
	Window30d   Window = "30d"
)

// Days returns the trailing window length in days (0 for daily).
func (w Window) Days() int {
	switch w {
	case Window7d:
		return 7
	case Window30d:
		return 30
	}
	return 0
}

// PerChannelCap returns how many slots a single channel may occupy.
func (w Window) PerChannelCap() int {
	switch w {
	case Window7d:
		return 3
	case Window30d:
		return 5
	}
	return 1 // daily: latest video only
}

// ChannelRef is one entry of the externally supplied channel list.
type ChannelRef struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	RankHint    int    `json:"rank_hint,omitempty"` // Unknown when absent
}

// CandidateVideo is the canonical normalized record. Only VideoID and
// ChannelID are guaranteed; every other field may be empty or Unknown.
type CandidateVideo struct {
	ChannelID    string    `json:"channel_id"`
	ChannelName  string    `json:"channel_name,omitempty"`
	ChannelURL   string    `json:"channel_url,omitempty"`
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitzero"`
	DurationSec  int       `json:"duration_sec"`
	ViewCount    int       `json:"view_count"`
	Tags         []string  `json:"tags,omitempty"`
	Subscribers  int       `json:"subscribers"`
	Source       Source    `json:"source,omitempty"`
}

// RankedItem is a CandidateVideo with its final slot. Immutable once
// written to an artifact or snapshot.
type RankedItem struct {
	CandidateVideo
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// Snapshot is one immutable daily observation, appended to the history log.
type Snapshot struct {
	Date  time.Time    `json:"date"`
	Items []RankedItem `json:"items"`
}

// Artifact is the only thing external readers ever see.
type Artifact struct {
	GeneratedAtUTC string       `json:"generated_at_utc"`
	Window         Window       `json:"window"`
	Items          []RankedItem `json:"items"`
}

// VideoMeta is what the metadata endpoint knows about a video.
type VideoMeta struct {
	DurationSec int
	ViewCount   int
}

// ChannelMeta is what the metadata endpoint knows about a channel.
type ChannelMeta struct {
	Subscribers int
}
