package query

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Stats grouping periods.
const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"
)

// UnknownBucket collects meetings whose start cannot be parsed.
const UnknownBucket = "unknown"

type StatsInput struct {
	GroupBy string `json:"group_by,omitempty"`
	Window  string `json:"window,omitempty"`
}

type StatsCounts struct {
	ByPeriod   map[string]int `json:"by_period"`
	ByPlatform map[string]int `json:"by_platform"`
}

type StatsOutput struct {
	Total   int         `json:"total"`
	GroupBy string      `json:"group_by"`
	Window  string      `json:"window,omitempty"`
	Counts  StatsCounts `json:"counts"`
}

var windowPattern = regexp.MustCompile(`^(\d+)([hdw])$`)

// ParseWindow accepts "<n>h", "<n>d" or "<n>w" with n > 0.
func ParseWindow(w string) (time.Duration, error) {
	m := windowPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(w)))
	if m == nil {
		return 0, invalid("window", "expected <n>h, <n>d or <n>w, got %q", w)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, invalid("window", "must be positive, got %q", w)
	}
	unit := time.Hour
	switch m[2] {
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads ISO-8601 strings and unix epochs in seconds or milliseconds.
func ParseTimestamp(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), true
		}
	}
	if n, err := strconv.ParseInt(ts, 10, 64); err == nil && n > 0 {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

func periodKey(t time.Time, groupBy string) string {
	switch groupBy {
	case GroupByWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case GroupByMonth:
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// Stats counts meetings per period and platform over the whole collection.
// With a window, parsed starts older than now-window are skipped; unparsable
// starts are always counted under "unknown".
func (s *Service) Stats(ctx context.Context, in StatsInput) (*StatsOutput, error) {
	groupBy := strings.ToLower(strings.TrimSpace(in.GroupBy))
	if groupBy == "" {
		groupBy = GroupByDay
	}
	switch groupBy {
	case GroupByDay, GroupByWeek, GroupByMonth:
	default:
		return nil, invalid("group_by", "unknown value %q (use day, week or month)", in.GroupBy)
	}
	var since time.Time
	if in.Window != "" {
		d, err := ParseWindow(in.Window)
		if err != nil {
			return nil, err
		}
		since = s.now().Add(-d)
	}

	all, err := s.store.Meetings(ctx)
	if err != nil {
		return nil, err
	}
	out := &StatsOutput{
		GroupBy: groupBy,
		Window:  in.Window,
		Counts:  StatsCounts{ByPeriod: map[string]int{}, ByPlatform: map[string]int{}},
	}
	for _, m := range all {
		key := UnknownBucket
		if t, ok := ParseTimestamp(m.StartTS); ok {
			if !since.IsZero() && t.Before(since) {
				continue
			}
			key = periodKey(t, groupBy)
		}
		platform := m.Platform
		if platform == "" {
			platform = UnknownBucket
		}
		out.Total++
		out.Counts.ByPeriod[key]++
		out.Counts.ByPlatform[platform]++
	}
	return out, nil
}
