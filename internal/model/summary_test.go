package model

import "testing"

func TestParseLikeCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"", 0, true},
		{"15", 15, true},
		{"1.2万", 12000, true},
		{"3亿", 300000000, true},
		{"2.5k", 2500, true},
		{"赞", 0, false},
		{"-1", 0, false},
		{"inf", 0, false},
		{"+Inf万", 0, false},
		{"NaN", 0, false},
		{"1e300亿", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseLikeCount(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseLikeCount(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPubDateHour(t *testing.T) {
	t.Parallel()

	if h, ok := PubDateHour("2024-03-05 21:14"); !ok || h != 21 {
		t.Errorf("PubDateHour() = (%d, %v), want (21, true)", h, ok)
	}
	if _, ok := PubDateHour("2024-03-05"); ok {
		t.Error("date without time should not report an hour")
	}
	if _, ok := PubDateHour("3小时前"); ok {
		t.Error("relative date should not report an hour")
	}
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	records := []CommentRecord{
		{ID: 1, Contents: "A", PubDate: "2024-03-05 21:14", LikeCount: "10"},
		{ID: 2, Contents: "a1", ParentID: 1, PubDate: "2024-03-05 21:40", LikeCount: "1.1万"},
		{ID: 3, Contents: "a2", ParentID: 1, PubDate: "昨天", LikeCount: ""},
		{ID: 4, Contents: "B", PubDate: "2024-03-06 08:00", LikeCount: "3"},
	}

	s := NewSummary("t.xlsx", records, 2)

	if s.Rows != 4 || s.Threads != 2 || s.Replies != 2 {
		t.Errorf("counts = rows %d threads %d replies %d, want 4 2 2", s.Rows, s.Threads, s.Replies)
	}
	if s.ThreadsWithReplies != 1 {
		t.Errorf("ThreadsWithReplies = %d, want 1", s.ThreadsWithReplies)
	}
	if s.RepliesPerThread != 1 {
		t.Errorf("RepliesPerThread = %v, want 1", s.RepliesPerThread)
	}
	if len(s.TopLiked) != 2 || s.TopLiked[0].Record.ID != 2 || s.TopLiked[1].Record.ID != 1 {
		t.Errorf("TopLiked = %+v, want ids [2 1]", s.TopLiked)
	}
	if s.Hourly == nil || s.Hourly[21] != 2 || s.Hourly[8] != 1 {
		t.Errorf("Hourly = %v, want 2 at 21h and 1 at 8h", s.Hourly)
	}
	if s.UndatedRows != 1 {
		t.Errorf("UndatedRows = %d, want 1", s.UndatedRows)
	}
}

func TestNewSummaryWithoutDates(t *testing.T) {
	t.Parallel()

	s := NewSummary("t.csv", []CommentRecord{{ID: 1, PubDate: "刚刚"}}, 0)
	if s.Hourly != nil {
		t.Errorf("Hourly = %v, want nil", s.Hourly)
	}
}
