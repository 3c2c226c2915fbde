package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_chart/internal/chart"
)

func TestParseChannels(t *testing.T) {
	csv := strings.Join([]string{
		"rank,channel_name,channel_id",
		"1,Первый канал,UCaaa",
		"2,Second,UCbbb",
		",No rank given,UCccc",
		"4,Skipped no id,",
		"5,Short row", // ragged, no id column value
		"notanumber,Bad rank,UCddd",
	}, "\n")

	refs, err := parseChannels(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parseChannels() error = %v", err)
	}
	if len(refs) != 4 {
		t.Fatalf("got %d channels, want 4: %+v", len(refs), refs)
	}
	if refs[0].ChannelID != "UCaaa" || refs[0].ChannelName != "Первый канал" || refs[0].RankHint != 1 {
		t.Errorf("refs[0] = %+v", refs[0])
	}
	if refs[2].RankHint != chart.Unknown {
		t.Errorf("empty rank should stay Unknown, got %d", refs[2].RankHint)
	}
	if refs[3].ChannelID != "UCddd" || refs[3].RankHint != chart.Unknown {
		t.Errorf("unparsable rank should stay Unknown, got %+v", refs[3])
	}
}

func TestParseChannelsMinimalHeader(t *testing.T) {
	refs, err := parseChannels(strings.NewReader("channel_id\nUCaaa\nUCbbb\n"))
	if err != nil {
		t.Fatalf("parseChannels() error = %v", err)
	}
	if len(refs) != 2 || refs[1].ChannelID != "UCbbb" || refs[1].ChannelName != "" {
		t.Errorf("refs = %+v", refs)
	}
}

func TestParseChannelsMissingIDColumn(t *testing.T) {
	_, err := parseChannels(strings.NewReader("name,rank\nA,1\n"))
	if err == nil {
		t.Fatal("expected an error when channel_id column is absent")
	}
}

func TestLoadChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.csv")
	if err := os.WriteFile(path, []byte("channel_id,channel_name\nUCxyz,Канал\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	refs, err := LoadChannels(path)
	if err != nil {
		t.Fatalf("LoadChannels() error = %v", err)
	}
	if len(refs) != 1 || refs[0].ChannelID != "UCxyz" {
		t.Errorf("refs = %+v", refs)
	}

	if _, err := LoadChannels(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
