package chart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, 9, d, 8, 0, 0, 0, time.UTC)
}

func snap(d int, videos ...string) Snapshot {
	s := Snapshot{Date: day(d)}
	for i, v := range videos {
		s.Items = append(s.Items, RankedItem{
			CandidateVideo: CandidateVideo{
				ChannelID:   "ch_" + v,
				VideoID:     v,
				Title:       "Long Conversation " + v,
				DurationSec: 900,
				ViewCount:   Unknown,
				Subscribers: Unknown,
			},
			Rank:  i + 1,
			Score: float64(len(videos) - i),
		})
	}
	return s
}

func TestHistoryAppendAndReadWindow(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), "history.ndjson"))

	require.NoError(t, store.Append(snap(1, "a")))
	require.NoError(t, store.Append(snap(10, "b")))
	require.NoError(t, store.Append(snap(20, "c")))

	recs, err := store.ReadWindow(day(5), day(15))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, day(10), recs[0].Date)
	require.Len(t, recs[0].Items, 1)
	assert.Equal(t, "b", recs[0].Items[0]["video_id"])
}

func TestHistoryMalformedLinesAreSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.ndjson")
	store := NewHistoryStore(path)

	require.NoError(t, store.Append(snap(1, "a")))

	// a crashed writer's torn line in the middle of the log
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o640)
	require.NoError(t, err)
	_, err = f.WriteString(`{"date":"2025-09-02T08:00:00Z","items":[{"video`)
	require.NoError(t, err)
	_, err = f.WriteString("\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Append(snap(3, "c")))

	recs, err := store.ReadWindow(day(1), day(30))
	require.NoError(t, err)
	require.Len(t, recs, 2, "valid lines before and after the torn one must load")
	assert.Equal(t, day(1), recs[0].Date)
	assert.Equal(t, day(3), recs[1].Date)
}

func TestHistoryMissingFileIsNoData(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), "absent.ndjson"))
	recs, err := store.ReadWindow(day(1), day(30))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHistoryNeverRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.ndjson")
	store := NewHistoryStore(path)

	require.NoError(t, store.Append(snap(1, "a")))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Append(snap(2, "b")))
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after[:len(before)]), "append must leave the existing prefix untouched")
}
