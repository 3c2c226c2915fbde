package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed serves canned raw entries per channel; channels in fail
// error out like a timed-out fetch.
type fakeFeed struct {
	entries map[string][]map[string]any
	fail    map[string]bool
}

func (f *fakeFeed) Fetch(_ context.Context, ch ChannelRef) ([]map[string]any, error) {
	if f.fail[ch.ChannelID] {
		return nil, errors.New("dial tcp: i/o timeout")
	}
	return f.entries[ch.ChannelID], nil
}

// fakeMeta resolves durations from a fixed table; err simulates a
// quota-dead API.
type fakeMeta struct {
	videos map[string]VideoMeta
	subs   map[string]ChannelMeta
	err    error
}

func (m *fakeMeta) Videos(_ context.Context, ids []string) (map[string]VideoMeta, error) {
	if m.err != nil {
		return map[string]VideoMeta{}, m.err
	}
	out := make(map[string]VideoMeta)
	for _, id := range ids {
		if v, ok := m.videos[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *fakeMeta) Channels(_ context.Context, ids []string) (map[string]ChannelMeta, error) {
	if m.err != nil {
		return map[string]ChannelMeta{}, m.err
	}
	out := make(map[string]ChannelMeta)
	for _, id := range ids {
		if v, ok := m.subs[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func entry(video, title string, published time.Time) map[string]any {
	return map[string]any{
		"videoId":     video,
		"title":       title,
		"publishedAt": published.Format(time.RFC3339),
	}
}

func testPipeline(t *testing.T, feed FeedFetcher, meta MetadataFetcher, now time.Time) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := New(Config{
		DataDir:      dir,
		FetchWorkers: 4,
		Now:          func() time.Time { return now },
	}, feed, meta)
	require.NoError(t, err)
	return p, dir
}

func readArtifact(t *testing.T, path string) Artifact {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var a Artifact
	require.NoError(t, json.Unmarshal(data, &a))
	return a
}

func TestRunDailyEndToEnd(t *testing.T) {
	now := time.Date(2025, 9, 23, 8, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		entries: map[string][]map[string]any{
			// newest entry is a Short; the walk must land on the long-form one below it
			"UC1": {
				entry("short1", "Quick clip #shorts", now.Add(-1*time.Hour)),
				entry("long1", "Morning Conversation Ep. 40", now.Add(-5*time.Hour)),
			},
			"UC2": {
				entry("long2", "Policy Roundtable", now.Add(-2*time.Hour)),
			},
		},
		fail: map[string]bool{"UC3": true},
	}
	meta := &fakeMeta{
		videos: map[string]VideoMeta{
			"short1": {DurationSec: 45, ViewCount: 100},
			"long1":  {DurationSec: 2400, ViewCount: 9000},
			"long2":  {DurationSec: 1800, ViewCount: 500},
		},
		subs: map[string]ChannelMeta{
			"UC1": {Subscribers: 120_000},
		},
	}
	p, dir := testPipeline(t, feed, meta, now)

	channels := []ChannelRef{
		{ChannelID: "UC1", ChannelName: "One"},
		{ChannelID: "UC2", ChannelName: "Two"},
		{ChannelID: "UC3", ChannelName: "Down"}, // fails, must not sink the run
	}
	require.NoError(t, p.RunDaily(context.Background(), channels))

	a := readArtifact(t, filepath.Join(dir, "top500.json"))
	assert.Equal(t, WindowDaily, a.Window)
	assert.Equal(t, now.UTC().Format(time.RFC3339), a.GeneratedAtUTC)
	require.Len(t, a.Items, 2, "one slot per surviving channel")
	assert.Equal(t, "long2", a.Items[0].VideoID, "fresher long-form video leads")
	assert.Equal(t, "long1", a.Items[1].VideoID)
	assert.Equal(t, 120_000, a.Items[1].Subscribers)

	// the same ranked result was appended as a snapshot
	store := NewHistoryStore(filepath.Join(dir, "history.ndjson"))
	recs, err := store.ReadWindow(now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].Items, 2)
}

func TestRunDailyQuotaFailureDegrades(t *testing.T) {
	now := time.Date(2025, 9, 23, 8, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		entries: map[string][]map[string]any{
			"UC1": {entry("v1", "Evening Interview", now.Add(-3 * time.Hour))},
		},
	}
	meta := &fakeMeta{err: errors.New("quota exhausted on all keys")}
	p, dir := testPipeline(t, feed, meta, now)

	require.NoError(t, p.RunDaily(context.Background(), []ChannelRef{{ChannelID: "UC1"}}),
		"a dead metadata API must not fail the run")

	a := readArtifact(t, filepath.Join(dir, "top500.json"))
	require.Len(t, a.Items, 1, "lenient policy keeps unknown-duration candidates")
	assert.Equal(t, Unknown, a.Items[0].DurationSec)
}

func TestRunDailyFeedOnlyMode(t *testing.T) {
	now := time.Date(2025, 9, 23, 8, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		entries: map[string][]map[string]any{
			"UC1": {entry("v1", "Evening Interview", now.Add(-3 * time.Hour))},
		},
	}
	p, dir := testPipeline(t, feed, nil, now) // no API credential at all

	require.NoError(t, p.RunDaily(context.Background(), []ChannelRef{{ChannelID: "UC1"}}))
	a := readArtifact(t, filepath.Join(dir, "top500.json"))
	require.Len(t, a.Items, 1)
	assert.Equal(t, Unknown, a.Items[0].DurationSec)
}

func TestRunRollupDeterministic(t *testing.T) {
	now := time.Date(2025, 9, 23, 8, 0, 0, 0, time.UTC)
	p, dir := testPipeline(t, &fakeFeed{}, nil, now)

	store := NewHistoryStore(filepath.Join(dir, "history.ndjson"))
	require.NoError(t, store.Append(snap(20, "a", "b")))
	require.NoError(t, store.Append(snap(21, "b", "a")))
	require.NoError(t, store.Append(snap(22, "a", "c")))

	require.NoError(t, p.RunRollup(context.Background(), Window7d))
	first, err := os.ReadFile(filepath.Join(dir, "top500_7d.json"))
	require.NoError(t, err)

	require.NoError(t, p.RunRollup(context.Background(), Window7d))
	second, err := os.ReadFile(filepath.Join(dir, "top500_7d.json"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second),
		"unchanged history and a fixed clock must reproduce the artifact byte for byte")
}

func TestRunRollupEmptyWindowStillWrites(t *testing.T) {
	now := time.Date(2025, 9, 23, 8, 0, 0, 0, time.UTC)
	p, dir := testPipeline(t, &fakeFeed{}, nil, now)

	require.NoError(t, p.RunRollup(context.Background(), Window30d))

	a := readArtifact(t, filepath.Join(dir, "top500_30d.json"))
	assert.Equal(t, Window30d, a.Window)
	assert.NotEmpty(t, a.GeneratedAtUTC)
	assert.NotNil(t, a.Items)
	assert.Empty(t, a.Items)
}

func TestRunRollupWindowBounds(t *testing.T) {
	now := time.Date(2025, 9, 23, 8, 0, 0, 0, time.UTC)
	p, dir := testPipeline(t, &fakeFeed{}, nil, now)

	store := NewHistoryStore(filepath.Join(dir, "history.ndjson"))
	require.NoError(t, store.Append(snap(1, "stale")))  // outside 7d
	require.NoError(t, store.Append(snap(20, "fresh"))) // inside 7d

	require.NoError(t, p.RunRollup(context.Background(), Window7d))
	a := readArtifact(t, filepath.Join(dir, "top500_7d.json"))
	require.Len(t, a.Items, 1)
	assert.Equal(t, "fresh", a.Items[0].VideoID)

	require.NoError(t, p.RunRollup(context.Background(), Window30d))
	a = readArtifact(t, filepath.Join(dir, "top500_30d.json"))
	assert.Len(t, a.Items, 2, "the 30-day window spans both snapshots")
}

func TestRunRollupRejectsDaily(t *testing.T) {
	p, _ := testPipeline(t, &fakeFeed{}, nil, time.Now())
	assert.Error(t, p.RunRollup(context.Background(), WindowDaily))
}

func TestRunLedgerStatuses(t *testing.T) {
	now := time.Date(2025, 9, 23, 8, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	p, err := New(Config{
		DataDir:      dir,
		FetchWorkers: 2,
		LedgerPath:   filepath.Join(dir, "ledger.db"),
		Now:          func() time.Time { return now },
	}, &fakeFeed{}, nil)
	require.NoError(t, err)
	defer p.Close()

	// empty window: insufficient data, not a filter problem
	require.NoError(t, p.RunRollup(context.Background(), Window7d))

	// a window full of Shorts: filters removed everything
	store := NewHistoryStore(filepath.Join(dir, "history.ndjson"))
	s := snap(22, "s")
	s.Items[0].DurationSec = 45
	require.NoError(t, store.Append(s))
	require.NoError(t, p.RunRollup(context.Background(), Window7d))

	recs, err := p.ledger.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, StatusEmptyFiltered, recs[0].Status, "newest first")
	assert.Equal(t, StatusInsufficientData, recs[1].Status)
	assert.Equal(t, Window7d, recs[0].Window)
}

func TestFetchAllIsolation(t *testing.T) {
	now := time.Now()
	feed := &fakeFeed{
		entries: map[string][]map[string]any{},
		fail:    map[string]bool{},
	}
	var channels []ChannelRef
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("UC%02d", i)
		channels = append(channels, ChannelRef{ChannelID: id})
		if i%2 == 0 {
			feed.fail[id] = true
		} else {
			feed.entries[id] = []map[string]any{entry("v"+id, "Talk "+id, now.Add(-time.Hour))}
		}
	}
	p, _ := testPipeline(t, feed, nil, now)

	results := p.fetchAll(context.Background(), channels)
	require.Len(t, results, len(channels))
	var ok, failed int
	for i, r := range results {
		assert.Equal(t, channels[i].ChannelID, r.ref.ChannelID, "results keep channel order")
		if r.err != nil {
			failed++
		} else {
			ok++
		}
	}
	assert.Equal(t, 20, ok)
	assert.Equal(t, 20, failed)
}
