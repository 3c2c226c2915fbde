package sources

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_chart/internal/chart"
)

// LoadChannels reads the externally supplied channel list:
// a CSV with a header naming at least channel_id and channel_name,
// optionally rank. Column order is irrelevant. Rows without a channel
// id are skipped. An unreadable file is the caller's fatal error.
func LoadChannels(path string) ([]chart.ChannelRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("channel list: %w", err)
	}
	defer f.Close()
	return parseChannels(f)
}

func parseChannels(r io.Reader) ([]chart.ChannelRef, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("channel list: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idCol, ok := col["channel_id"]
	if !ok {
		return nil, fmt.Errorf("channel list: missing channel_id column")
	}
	nameCol, hasName := col["channel_name"]
	rankCol, hasRank := col["rank"]

	field := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var out []chart.ChannelRef
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// one mangled row must not sink the whole list
			continue
		}
		id := field(row, idCol)
		if id == "" {
			continue
		}
		ref := chart.ChannelRef{ChannelID: id, RankHint: chart.Unknown}
		if hasName {
			ref.ChannelName = field(row, nameCol)
		}
		if hasRank {
			if n, err := strconv.Atoi(field(row, rankCol)); err == nil {
				ref.RankHint = n
			}
		}
		out = append(out, ref)
	}
	return out, nil
}
