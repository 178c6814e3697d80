package model

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultTopN is the number of most-liked comments a Summary keeps.
const DefaultTopN = 10

// pubDateFormats are the absolute timestamp layouts the site displays.
// Relative dates ("3小时前", "昨天") are not placed on the hourly histogram.
var pubDateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// likeUnits maps the multiplier suffixes used in displayed like counts.
var likeUnits = map[string]float64{
	"万": 1e4,
	"w": 1e4,
	"亿": 1e8,
	"k": 1e3,
}

// Summary is an aggregate view over a comment table.
type Summary struct {
	// Source is the table the summary was computed from.
	Source string `json:"source"`

	Rows               int     `json:"rows"`
	Threads            int     `json:"threads"`
	Replies            int     `json:"replies"`
	ThreadsWithReplies int     `json:"threads_with_replies"`
	RepliesPerThread   float64 `json:"replies_per_thread"`

	// TopLiked holds the most-liked records in descending like order.
	TopLiked []RankedComment `json:"top_liked"`

	// Hourly counts records per hour of day (0-23) for parseable pubdates.
	// It is nil when no pubdate could be parsed.
	Hourly []int `json:"hourly,omitempty"`

	// UndatedRows counts records whose pubdate had no absolute time of day.
	UndatedRows int `json:"undated_rows"`
}

// RankedComment is a record together with its parsed like count.
type RankedComment struct {
	Record CommentRecord `json:"record"`
	Likes  int           `json:"likes"`
}

// NewSummary computes a summary over the records in a table.
func NewSummary(source string, records []CommentRecord, topN int) *Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}

	s := &Summary{Source: source, Rows: len(records)}
	withReplies := make(map[ParentID]struct{})
	hourly := make([]int, 24)
	dated := false
	ranked := make([]RankedComment, 0, len(records))

	for _, r := range records {
		if r.IsReply() {
			s.Replies++
			withReplies[r.ParentID] = struct{}{}
		} else {
			s.Threads++
		}

		if h, ok := PubDateHour(r.PubDate); ok {
			hourly[h]++
			dated = true
		} else {
			s.UndatedRows++
		}

		if n, ok := ParseLikeCount(r.LikeCount); ok {
			ranked = append(ranked, RankedComment{Record: r, Likes: n})
		}
	}

	s.ThreadsWithReplies = len(withReplies)
	if s.Threads > 0 {
		s.RepliesPerThread = float64(s.Replies) / float64(s.Threads)
	}
	if dated {
		s.Hourly = hourly
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Likes > ranked[j].Likes
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	s.TopLiked = ranked

	return s
}

// PubDateHour returns the hour of day of a displayed pubdate.
// Date-only and relative values report false.
func PubDateHour(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateFormats {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "15") {
			return 0, false
		}
		return t.Hour(), true
	}
	return 0, false
}

// ParseLikeCount converts a displayed like count into a number.
// The site shows an empty string or a label instead of 0, and abbreviates
// large counts ("1.2万").
func ParseLikeCount(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, true
	}

	multiplier := 1.0
	for unit, m := range likeUnits {
		if strings.HasSuffix(s, unit) {
			multiplier = m
			s = strings.TrimSpace(strings.TrimSuffix(s, unit))
			break
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// "1e300万" is finite but does not fit an int.
	v := f*multiplier + 0.5
	if v >= math.MaxInt64 {
		return 0, false
	}
	return int(v), true
}
