package cleanse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/commentcrawl/internal/model"
)

// replyPrefix matches the quote at the start of a reply: "回复" followed by
// the shortest run of characters up to an ASCII or full-width colon.
var replyPrefix = regexp.MustCompile(`^回复.*?[:：]`)

// emoji covers Miscellaneous Symbols and Pictographs, Emoticons, and the
// blocks from Transport and Map Symbols through Symbols and Pictographs
// Extended-A.
var emoji = &unicode.RangeTable{
	R32: []unicode.Range32{
		{Lo: 0x1F300, Hi: 0x1F64F, Stride: 1},
		{Lo: 0x1F680, Hi: 0x1FAFF, Stride: 1},
	},
}

// StripReplyPrefix removes a leading reply quote from s.
func StripReplyPrefix(s string) string {
	return replyPrefix.ReplaceAllString(s, "")
}

// StripEmoji removes every code point in the emoji ranges from s.
func StripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(emoji, r) {
			return -1
		}
		return r
	}, s)
}

// Clean applies every text rule to s. The text is NFC-normalized first so
// that composed and decomposed forms of the same character compare equal.
func Clean(s string) string {
	s = norm.NFC.String(s)
	s = StripReplyPrefix(s)
	s = StripEmoji(s)
	return strings.TrimSpace(s)
}

// Empty reports whether contents counts as missing.
func Empty(contents string) bool {
	return strings.TrimSpace(contents) == ""
}

// Records drops rows with empty contents and cleans the rest.
// A row whose contents become empty only after cleaning is kept, so a reply
// that consisted of nothing but a quote and emoji is still counted.
func Records(records []model.CommentRecord) []model.CommentRecord {
	out := make([]model.CommentRecord, 0, len(records))
	for _, r := range records {
		if Empty(r.Contents) {
			continue
		}
		r.Contents = Clean(r.Contents)
		out = append(out, r)
	}
	return out
}
