package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_chart/internal/chart"
	"golang.org/x/time/rate"
)

// defaultAPIBase is the quota-limited metadata endpoint.
const defaultAPIBase = "https://www.googleapis.com/youtube/v3"

// batchSize is the maximum ids per lookup call.
const batchSize = 50

// MetadataClient talks to the Data API v3. It batches lookups, paces
// batches through a rate limiter, and rotates to a fallback key when
// the primary hits its quota. Once both keys are exhausted it stops
// issuing calls and returns what it has: enrichment degrades, the run
// continues.
type MetadataClient struct {
	Client  *http.Client
	BaseURL string

	keys     []string
	keyIdx   int
	limiter  *rate.Limiter
	depleted bool
}

// NewMetadataClient builds a client. fallbackKey may be empty.
func NewMetadataClient(apiKey, fallbackKey string, client *http.Client, batchInterval time.Duration) *MetadataClient {
	keys := []string{apiKey}
	if fallbackKey != "" {
		keys = append(keys, fallbackKey)
	}
	return &MetadataClient{
		Client:  client,
		BaseURL: defaultAPIBase,
		keys:    keys,
		limiter: rate.NewLimiter(rate.Every(batchInterval), 1),
	}
}

// Videos resolves duration and view count for up to thousands of ids,
// fifty at a time. A failed batch is logged and skipped; its ids stay
// unresolved.
func (m *MetadataClient) Videos(ctx context.Context, ids []string) (map[string]chart.VideoMeta, error) {
	out := make(map[string]chart.VideoMeta, len(ids))
	err := m.eachBatch(ctx, ids, func(batch []string) error {
		var resp videosResponse
		if err := m.get(ctx, "videos", url.Values{
			"part": {"contentDetails,statistics"},
			"id":   {strings.Join(batch, ",")},
		}, &resp); err != nil {
			return err
		}
		for _, it := range resp.Items {
			if it.ID == "" {
				continue
			}
			out[it.ID] = chart.VideoMeta{
				DurationSec: ParseISODuration(it.ContentDetails.Duration),
				ViewCount:   permissiveCount(it.Statistics.ViewCount),
			}
		}
		return nil
	})
	return out, err
}

// Channels resolves subscriber counts, same batching discipline.
func (m *MetadataClient) Channels(ctx context.Context, ids []string) (map[string]chart.ChannelMeta, error) {
	out := make(map[string]chart.ChannelMeta, len(ids))
	err := m.eachBatch(ctx, ids, func(batch []string) error {
		var resp channelsResponse
		if err := m.get(ctx, "channels", url.Values{
			"part": {"statistics"},
			"id":   {strings.Join(batch, ",")},
		}, &resp); err != nil {
			return err
		}
		for _, it := range resp.Items {
			if it.ID == "" || it.Statistics.HiddenSubscriberCount {
				continue
			}
			out[it.ID] = chart.ChannelMeta{Subscribers: permissiveCount(it.Statistics.SubscriberCount)}
		}
		return nil
	})
	return out, err
}

// eachBatch slices ids into ≤50-id batches, waits out the inter-batch
// pacing, and tolerates individual batch failures.
func (m *MetadataClient) eachBatch(ctx context.Context, ids []string, fn func(batch []string) error) error {
	for start := 0; start < len(ids); start += batchSize {
		if m.depleted {
			return fmt.Errorf("metadata: quota exhausted on all keys")
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		end := min(start+batchSize, len(ids))
		chart.IncrMetadataRequests()
		if err := fn(ids[start:end]); err != nil {
			chart.IncrMetadataErrors()
			slog.Warn("metadata batch failed",
				slog.Int("from", start), slog.Int("to", end), slog.Any("error", err))
		}
	}
	return nil
}

// get performs one keyed API call. Quota errors (403/429) rotate to the
// next key and retry the same call once per remaining key.
func (m *MetadataClient) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	for {
		key := m.keys[m.keyIdx]
		q := url.Values{}
		for k, vals := range params {
			q[k] = vals
		}
		q.Set("key", key)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+"/"+endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return fmt.Errorf("metadata: build request: %w", err)
		}
		req.Header.Set("User-Agent", feedUserAgent)

		resp, err := m.Client.Do(req)
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			resp.Body.Close()
			if m.keyIdx < len(m.keys)-1 {
				m.keyIdx++
				slog.Warn("metadata key over quota, rotating to fallback", slog.Int("status", resp.StatusCode))
				continue
			}
			m.depleted = true
			return fmt.Errorf("metadata: quota/forbidden %d: %s", resp.StatusCode, string(body))
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			resp.Body.Close()
			return fmt.Errorf("metadata: status %d: %s", resp.StatusCode, string(body))
		}
		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("metadata: decode: %w", err)
		}
		return nil
	}
}

type videosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

var durationRE = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts the API's compact duration encoding
// ("PT1H2M3S", optionally with a day component) into integer seconds.
// Anything unparsable is Unknown, not zero — zero would look like a
// Short downstream.
func ParseISODuration(d string) int {
	m := durationRE.FindStringSubmatch(strings.TrimSpace(d))
	if m == nil {
		return chart.Unknown
	}
	num := func(s string) int {
		if s == "" {
			return 0
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	return num(m[1])*86400 + num(m[2])*3600 + num(m[3])*60 + num(m[4])
}

// permissiveCount parses the API's stringly-typed counters.
func permissiveCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return chart.Unknown
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return chart.Unknown
	}
	return n
}
