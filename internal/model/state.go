package model

// CrawlState is the progress of one crawl run.
//
// It is a plain value: the crawl loop owns it, passes it into each stage and
// keeps the value returned back. Nothing else holds a reference to it.
type CrawlState struct {
	// NextID is the id the next emitted record will receive.
	NextID int64

	// ThreadIndex is the position of the next top-level comment to visit.
	ThreadIndex int
}

// NewCrawlState returns the state at the start of a run.
func NewCrawlState() CrawlState {
	return CrawlState{NextID: 1}
}

// AssignID returns the next id and advances the state past it.
func (s *CrawlState) AssignID() int64 {
	id := s.NextID
	s.NextID++
	return id
}

// Batch assigns ids to a thread and returns its records together with the
// advanced state. The parent record comes first and every reply points at it.
// ThreadIndex is not touched; the caller advances it when it moves on,
// including when a thread is skipped without emitting rows.
func (s CrawlState) Batch(t Thread) ([]CommentRecord, CrawlState) {
	batch := make([]CommentRecord, 0, 1+len(t.Replies))

	parentID := s.AssignID()
	batch = append(batch, CommentRecord{
		ID:        parentID,
		Contents:  t.Parent.Contents,
		PubDate:   t.Parent.PubDate,
		LikeCount: t.Parent.LikeCount,
	})

	for _, r := range t.Replies {
		batch = append(batch, CommentRecord{
			ID:        s.AssignID(),
			Contents:  r.Contents,
			ParentID:  ParentID(parentID),
			PubDate:   r.PubDate,
			LikeCount: r.LikeCount,
		})
	}

	return batch, s
}

// ThreadCursor tracks the thread currently being harvested.
type ThreadCursor struct {
	// ThreadIndex is the position of the thread in the comment feed.
	ThreadIndex int

	// ParentCommentID is the id the thread's top-level comment will receive.
	ParentCommentID int64

	// ReplyCountHint is the total reply count shown on the "view more"
	// control, or zero when the control was absent or unreadable.
	ReplyCountHint int

	// RepliesSeen counts replies collected so far across all reply pages.
	RepliesSeen int

	// ReplyPages counts the reply pages read so far.
	ReplyPages int
}

// PaginationCursor tracks the reply page currently displayed for a thread.
type PaginationCursor struct {
	// Page is the 1-based number of the reply page being read.
	Page int

	// ButtonCount is the number of page controls found on this page.
	ButtonCount int

	// HasMorePages is true when the last page control is the next-page control.
	HasMorePages bool
}
