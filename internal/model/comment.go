package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Columns is the fixed column order of every comment table the crawler writes.
// Downstream tooling (cleansing, reporting) locates columns by these names.
var Columns = []string{"id", "contents", "parent_id", "pubdate", "like_count"}

// nullParent is the parent_id cell value of a top-level comment.
const nullParent = "null"

// ErrInvalidParentID is returned when a parent_id cell is neither "null" nor a positive integer.
var ErrInvalidParentID = errors.New("invalid parent_id")

// ParentID identifies the top-level comment a reply belongs to.
// The zero value means the record is itself a top-level comment.
type ParentID int64

// None reports whether the record has no parent.
func (p ParentID) None() bool {
	return p == 0
}

// String returns the tabular representation: "null" for top-level comments,
// otherwise the decimal id.
func (p ParentID) String() string {
	if p.None() {
		return nullParent
	}
	return strconv.FormatInt(int64(p), 10)
}

// MarshalJSON encodes a top-level parent as JSON null.
func (p ParentID) MarshalJSON() ([]byte, error) {
	if p.None() {
		return []byte(nullParent), nil
	}
	return []byte(strconv.FormatInt(int64(p), 10)), nil
}

// UnmarshalJSON accepts null or a positive integer.
func (p *ParentID) UnmarshalJSON(data []byte) error {
	v, err := ParseParentID(string(data))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseParentID parses a parent_id cell.
// An empty cell is treated the same as "null" because some spreadsheet tools
// drop the literal when re-saving.
func ParseParentID(s string) (ParentID, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, nullParent) {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidParentID, s)
	}
	return ParentID(n), nil
}

// Comment holds the fields extracted from one rendered comment, before the
// crawler assigns it an id.
//
// PubDate and LikeCount are kept exactly as displayed. The site renders
// relative dates ("3小时前") and abbreviated counts ("1.2万"), and converting
// them at crawl time would lose information.
type Comment struct {
	Contents  string
	PubDate   string
	LikeCount string
}

// Thread is one top-level comment together with every reply collected from
// all of its reply pages, in page order.
type Thread struct {
	Parent  Comment
	Replies []Comment
}

// CommentRecord is one row of the comment table.
type CommentRecord struct {
	// ID is unique within a run, starts at 1 and increases by exactly one per row.
	ID int64 `json:"id" bson:"id"`

	// Contents is the comment body text.
	Contents string `json:"contents" bson:"contents"`

	// ParentID is zero for top-level comments and the parent's ID for replies.
	ParentID ParentID `json:"parent_id" bson:"parent_id"`

	// PubDate is the publication date as displayed by the site.
	PubDate string `json:"pubdate" bson:"pubdate"`

	// LikeCount is the like count as displayed by the site.
	LikeCount string `json:"like_count" bson:"like_count"`
}

// IsReply reports whether the record is a reply to another record.
func (r CommentRecord) IsReply() bool {
	return !r.ParentID.None()
}

// Row returns the record as table cells in Columns order.
func (r CommentRecord) Row() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Contents,
		r.ParentID.String(),
		r.PubDate,
		r.LikeCount,
	}
}

// ColumnIndex maps each column in Columns to its position in a header row.
// It returns an error naming the first missing column.
func ColumnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	return index, nil
}

// RecordFromRow builds a record from a table row using a ColumnIndex result.
// Rows shorter than the header are padded with empty cells.
func RecordFromRow(index map[string]int, row []string) (CommentRecord, error) {
	cell := func(name string) string {
		i := index[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	id, err := strconv.ParseInt(strings.TrimSpace(cell("id")), 10, 64)
	if err != nil {
		return CommentRecord{}, fmt.Errorf("invalid id %q: %w", cell("id"), err)
	}
	parent, err := ParseParentID(cell("parent_id"))
	if err != nil {
		return CommentRecord{}, err
	}

	return CommentRecord{
		ID:        id,
		Contents:  cell("contents"),
		ParentID:  parent,
		PubDate:   cell("pubdate"),
		LikeCount: cell("like_count"),
	}, nil
}
