package chart

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalization collapses every historical record shape — live feed
// entries, metadata API responses, archived snapshot rows from older
// pipeline revisions — into one CandidateVideo. Each field probes its
// alias list in priority order; the first non-empty value wins.

var (
	videoIDAliases     = []string{"video_id", "videoId", "latest_video_id", "latestVideoId", "id"}
	titleAliases       = []string{"title", "video_title", "latest_video_title", "latestVideoTitle"}
	channelIDAliases   = []string{"channel_id", "channelId", "channel.id"}
	channelNameAliases = []string{"channel_name", "channelName", "channel_title", "channel.name"}
	channelURLAliases  = []string{"channel_url", "channelUrl", "channel.url"}
	thumbnailAliases   = []string{"thumbnail_url", "thumbnail", "latest_video_thumbnail", "latestVideoThumbnail"}
	publishedAliases   = []string{"published_at", "publishedAt", "latest_video_published_at", "latestVideoPublishedAt"}
	durationAliases    = []string{"duration_sec", "durationSec", "latest_video_duration_sec", "latestVideoDurationSec"}
	viewsAliases       = []string{"view_count", "viewCount", "views"}
	subscriberAliases  = []string{"subscribers", "subscriber_count", "subscriberCount"}
)

// Normalize converts a raw record into the canonical schema.
// Records lacking both a video id and a channel id are rejected;
// everything else degrades to empty/Unknown fields.
func Normalize(raw map[string]any) (CandidateVideo, error) {
	c := CandidateVideo{
		VideoID:      probeString(raw, videoIDAliases),
		ChannelID:    probeString(raw, channelIDAliases),
		ChannelName:  probeString(raw, channelNameAliases),
		ChannelURL:   probeString(raw, channelURLAliases),
		Title:        probeString(raw, titleAliases),
		ThumbnailURL: probeString(raw, thumbnailAliases),
		PublishedAt:  probeTime(raw, publishedAliases),
		DurationSec:  probeInt(raw, durationAliases),
		ViewCount:    probeInt(raw, viewsAliases),
		Subscribers:  probeInt(raw, subscriberAliases),
		Tags:         probeTags(raw),
	}
	if c.VideoID == "" && c.ChannelID == "" {
		return CandidateVideo{}, fmt.Errorf("record has neither video_id nor channel_id")
	}
	if c.ChannelURL == "" && c.ChannelID != "" {
		c.ChannelURL = "https://www.youtube.com/channel/" + c.ChannelID
	}
	if s := probeString(raw, []string{"source"}); s != "" {
		c.Source = Source(s)
	}
	return c, nil
}

// probe resolves one alias, following a single "a.b" dotted path into a
// nested object.
func probe(raw map[string]any, key string) (any, bool) {
	if v, ok := raw[key]; ok && v != nil {
		return v, true
	}
	parent, child, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	nested, ok := raw[parent].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := nested[child]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func probeString(raw map[string]any, aliases []string) string {
	for _, key := range aliases {
		v, ok := probe(raw, key)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// probeInt parses permissively: numbers, or strings with thousands
// separators. Unparsable values stay Unknown, never become zero — a
// false zero would wrongly reject records downstream.
func probeInt(raw map[string]any, aliases []string) int {
	for _, key := range aliases {
		v, ok := probe(raw, key)
		if !ok {
			continue
		}
		if n, ok := asInt(v); ok {
			return n
		}
	}
	return Unknown
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func probeTime(raw map[string]any, aliases []string) time.Time {
	for _, key := range aliases {
		v, ok := probe(raw, key)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			return t
		case string:
			s := strings.TrimSpace(t)
			for _, layout := range timeLayouts {
				if parsed, err := time.Parse(layout, s); err == nil {
					return parsed
				}
			}
		}
	}
	return time.Time{}
}

// probeTags accepts a list of strings or one comma-separated string.
func probeTags(raw map[string]any) []string {
	v, ok := probe(raw, "tags")
	if !ok {
		return nil
	}
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch tags := v.(type) {
	case []string:
		for _, t := range tags {
			add(t)
		}
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				add(s)
			}
		}
	case string:
		for _, t := range strings.Split(tags, ",") {
			add(t)
		}
	}
	return out
}
