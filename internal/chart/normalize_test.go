package chart

import (
	"testing"
	"time"
)

func TestNormalizeAliasPriority(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string // expected title
	}{
		{
			name: "canonical name wins over legacy",
			raw:  map[string]any{"video_id": "v1", "title": "canonical", "latest_video_title": "legacy"},
			want: "canonical",
		},
		{
			name: "legacy snapshot shape",
			raw:  map[string]any{"latest_video_id": "v1", "latest_video_title": "legacy"},
			want: "legacy",
		},
		{
			name: "camelCase variant",
			raw:  map[string]any{"videoId": "v1", "latestVideoTitle": "camel"},
			want: "camel",
		},
		{
			name: "empty string does not shadow later alias",
			raw:  map[string]any{"video_id": "v1", "title": "  ", "video_title": "fallback"},
			want: "fallback",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if c.Title != tt.want {
				t.Errorf("Title = %q, want %q", c.Title, tt.want)
			}
		})
	}
}

func TestNormalizeNestedChannel(t *testing.T) {
	raw := map[string]any{
		"video_id": "v1",
		"channel":  map[string]any{"id": "c1", "name": "Channel One"},
	}
	c, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if c.ChannelID != "c1" {
		t.Errorf("ChannelID = %q, want c1", c.ChannelID)
	}
	if c.ChannelName != "Channel One" {
		t.Errorf("ChannelName = %q, want Channel One", c.ChannelName)
	}
	if c.ChannelURL != "https://www.youtube.com/channel/c1" {
		t.Errorf("ChannelURL = %q", c.ChannelURL)
	}
}

func TestNormalizePermissiveNumbers(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want int // expected view count
	}{
		{"plain number", map[string]any{"video_id": "v", "view_count": 42}, 42},
		{"json float", map[string]any{"video_id": "v", "view_count": float64(1200)}, 1200},
		{"string with separators", map[string]any{"video_id": "v", "viewCount": "1,234,567"}, 1234567},
		{"unparsable stays unknown not zero", map[string]any{"video_id": "v", "views": "n/a"}, Unknown},
		{"absent stays unknown", map[string]any{"video_id": "v"}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if c.ViewCount != tt.want {
				t.Errorf("ViewCount = %d, want %d", c.ViewCount, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsWithoutIDs(t *testing.T) {
	if _, err := Normalize(map[string]any{"title": "orphan record"}); err == nil {
		t.Fatal("expected rejection for record with neither id")
	}
	// one of the two ids is enough to progress
	if _, err := Normalize(map[string]any{"channel_id": "c1"}); err != nil {
		t.Fatalf("channel-only record rejected: %v", err)
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	tests := []struct {
		name string
		val  any
		zero bool
	}{
		{"rfc3339", "2025-09-23T10:00:00Z", false},
		{"date only", "2025-09-23", false},
		{"native time", time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC), false},
		{"garbage", "yesterday-ish", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Normalize(map[string]any{"video_id": "v", "published_at": tt.val})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if c.PublishedAt.IsZero() != tt.zero {
				t.Errorf("PublishedAt.IsZero() = %v, want %v", c.PublishedAt.IsZero(), tt.zero)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want int
	}{
		{"string list", []any{"podcast", "interview"}, 2},
		{"comma string", "podcast, interview, ", 2},
		{"blank entries dropped", []any{" ", "podcast"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Normalize(map[string]any{"video_id": "v", "tags": tt.val})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(c.Tags) != tt.want {
				t.Errorf("len(Tags) = %d, want %d", len(c.Tags), tt.want)
			}
		})
	}
}
