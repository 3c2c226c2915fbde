package chart

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DurationPolicy decides what to do with candidates whose duration was
// never enriched. Daily runs favor availability (lenient), windowed
// rollups favor precision (strict).
type DurationPolicy int

const (
	PolicyLenient DurationPolicy = iota // unknown duration passes provisionally
	PolicyStrict                        // unknown duration counts as too short
)

// Rules is the externally tunable rule table. Pattern lists are regular
// expressions OR-joined at compile time; blocked tags match by trimmed
// case-insensitive equality or containment.
type Rules struct {
	ShortForm   []string `json:"short_form"`
	Sports      []string `json:"sports"`
	Sensational []string `json:"sensational"`
	DJMix       []string `json:"dj_mix"`
	BlockedTags []string `json:"blocked_tags"`
}

// DefaultRules mirrors the blocklists the pipeline shipped with.
func DefaultRules() Rules {
	return Rules{
		ShortForm: []string{
			`#?shorts?\b`,
			`\bytshorts\b`,
			`\breels?\b`,
		},
		Sports: []string{
			`\bhighlights?\b`,
			`\bmatch(day)?\b`,
			`\bgoals?\b`,
			`\b(game|fixture|derby)\b`,
			`\bf(ull\s*)?t(ime)?\b`,
			`\b\d{1,2}\s*-\s*\d{1,2}\b`, // score-like "2-1"
			`\bnba\b|\bepl\b|\bserie a\b|\blaliga\b|\bbundesliga\b`,
			`\bfootball\b|\bsoccer\b|\bbasketball\b`,
		},
		Sensational: []string{
			`catch(ing)?\s+(a\s+)?(cheat|spouse)\b`,
			`cheaters?\b`,
			`phone\s+check\b`,
			`loyalty\s+test`,
			`exposed\b`,
			`drama\b`,
			`scandal\b`,
		},
		DJMix: []string{
			`\bdj\s*mix\b`,
			`\bmixtape\b`,
			`\bnonstop\s+mix\b`,
			`\bparty\s+mix\b`,
			`\bdj\s+set\b`,
		},
		BlockedTags: []string{"shorts", "highlights", "dj mix", "mixtape"},
	}
}

// LoadRules reads a rule table from a JSON file. Lists absent from the
// file fall back to the defaults, so operators can tune one category
// without restating the rest.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	r := DefaultRules()
	if err := json.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return r, nil
}

// Ruleset is a compiled Rules table plus the force-include allow-list.
type Ruleset struct {
	shortForm   *regexp.Regexp
	sports      *regexp.Regexp
	sensational *regexp.Regexp
	djMix       *regexp.Regexp
	blockedTags []string
	allow       map[string]bool // channel or video ids

	minDurationSec int
}

// CompileRules builds a Ruleset. allowlist entries may be channel ids or
// video ids; they bypass the text/tag gate but never the duration gate.
func CompileRules(r Rules, minDurationSec int, allowlist []string) (*Ruleset, error) {
	if minDurationSec <= 0 {
		minDurationSec = MinLongformSec
	}
	rs := &Ruleset{
		blockedTags:    make([]string, 0, len(r.BlockedTags)),
		allow:          make(map[string]bool, len(allowlist)),
		minDurationSec: minDurationSec,
	}
	for _, t := range r.BlockedTags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			rs.blockedTags = append(rs.blockedTags, t)
		}
	}
	for _, id := range allowlist {
		if id = strings.TrimSpace(id); id != "" {
			rs.allow[id] = true
		}
	}
	var err error
	compile := func(patterns []string) *regexp.Regexp {
		if err != nil || len(patterns) == 0 {
			return nil
		}
		var rx *regexp.Regexp
		rx, err = regexp.Compile("(?i)" + strings.Join(patterns, "|"))
		return rx
	}
	rs.shortForm = compile(r.ShortForm)
	rs.sports = compile(r.Sports)
	rs.sensational = compile(r.Sensational)
	rs.djMix = compile(r.DJMix)
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	return rs, nil
}

// Verdict is the classifier outcome. Reason is set only on rejection.
type Verdict struct {
	Accept bool
	Reason string
}

func reject(reason string) Verdict { return Verdict{Reason: reason} }

// Classify applies the duration gate, then the text/tag gate. Both must
// pass. The duration gate is absolute: the allow-list cannot override it.
func (rs *Ruleset) Classify(c CandidateVideo, policy DurationPolicy) Verdict {
	switch {
	case c.DurationSec != Unknown && c.DurationSec < rs.minDurationSec:
		return reject("short_duration")
	case c.DurationSec == Unknown && policy == PolicyStrict:
		return reject("unknown_duration")
	}

	if rs.allow[c.ChannelID] || rs.allow[c.VideoID] {
		return Verdict{Accept: true}
	}

	blob := c.Title
	if len(c.Tags) > 0 {
		blob += " " + strings.Join(c.Tags, " ")
	}
	switch {
	case matches(rs.shortForm, blob):
		return reject("short_form")
	case matches(rs.sports, blob):
		return reject("sports")
	case matches(rs.sensational, blob):
		return reject("sensational")
	case matches(rs.djMix, blob):
		return reject("dj_mix")
	}

	for _, tag := range c.Tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		for _, blocked := range rs.blockedTags {
			if t == blocked || strings.Contains(t, blocked) {
				return reject("blocked_tag")
			}
		}
	}
	return Verdict{Accept: true}
}

func matches(rx *regexp.Regexp, s string) bool {
	return rx != nil && rx.MatchString(s)
}
