package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_chart/internal/chart"
	"github.com/mmcdole/gofeed"
)

// defaultFeedBase is the public per-channel syndication feed. It is
// free (no quota) but carries no duration or view data.
const defaultFeedBase = "https://www.youtube.com/feeds/videos.xml?channel_id="

const feedUserAgent = "go_chart/1.0"

// FeedClient fetches a channel's Atom feed. The HTTP client is injected
// so tests can point BaseURL at a local server.
type FeedClient struct {
	Client  *http.Client
	BaseURL string
}

// NewFeedClient builds a feed client over the given HTTP client.
func NewFeedClient(client *http.Client) *FeedClient {
	return &FeedClient{Client: client, BaseURL: defaultFeedBase}
}

// Fetch returns the channel's entries newest-first as raw records for
// the normalizer. Any failure is local to this channel.
func (f *FeedClient) Fetch(ctx context.Context, ch chart.ChannelRef) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+ch.ChannelID, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	req.Header.Set("User-Agent", feedUserAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed: parse: %w", err)
	}

	out := make([]map[string]any, 0, len(feed.Items))
	for _, item := range feed.Items {
		raw := map[string]any{
			"videoId":     feedVideoID(item),
			"title":       item.Title,
			"channelId":   ch.ChannelID,
			"channelName": ch.ChannelName,
			"thumbnail":   feedThumbnail(item),
		}
		if item.PublishedParsed != nil {
			raw["publishedAt"] = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			raw["publishedAt"] = *item.UpdatedParsed
		}
		out = append(out, raw)
	}
	return out, nil
}

// feedVideoID reads <yt:videoId>, falling back to the "yt:video:ID"
// entry GUID.
func feedVideoID(item *gofeed.Item) string {
	if exts, ok := item.Extensions["yt"]; ok {
		if ids, ok := exts["videoId"]; ok && len(ids) > 0 {
			if v := strings.TrimSpace(ids[0].Value); v != "" {
				return v
			}
		}
	}
	if rest, ok := strings.CutPrefix(item.GUID, "yt:video:"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// feedThumbnail digs the media:group thumbnail URL out of the entry.
func feedThumbnail(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	groups, ok := media["group"]
	if !ok || len(groups) == 0 {
		return ""
	}
	thumbs, ok := groups[0].Children["thumbnail"]
	if !ok || len(thumbs) == 0 {
		return ""
	}
	return thumbs[0].Attrs["url"]
}
