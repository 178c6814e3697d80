package pagetest

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NextPageLabel is the label the widget puts on its next-page control.
const NextPageLabel = "下一页"

// Reply is one rendered reply in a Widget.
type Reply struct {
	Text    string
	PubDate string
	Likes   string
}

// Thread is one rendered top-level comment in a Widget.
type Thread struct {
	Text    string
	PubDate string
	Likes   string

	// Pages holds the reply pages. Nil renders no reply container at all.
	Pages [][]Reply

	// ViewMore renders a collapsed reply list behind a "view more" control.
	// Without it the first page is rendered expanded.
	ViewMore bool

	// ViewMoreLabel overrides the label of the "view more" control.
	ViewMoreLabel string

	// NoPagination suppresses the page-control region even for several pages.
	NoPagination bool

	// OmitContents drops the comment text element to simulate a broken render.
	OmitContents bool
}

// Widget describes a video page with a comment section.
type Widget struct {
	Threads []Thread

	// LoggedIn renders the avatar instead of the login entry.
	LoggedIn bool
}

// NewWidgetPage renders w and installs the hooks that make its controls work:
// the login dialog, "view more", paging and collapsing.
func NewWidgetPage(w Widget) *Page {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><title>video</title></head><body>`)
	sb.WriteString(`<div id="biliMainHeader">`)
	if w.LoggedIn {
		sb.WriteString(`<div class="header-avatar-wrap"></div>`)
	} else {
		sb.WriteString(`<div class="header-login-entry"><span>登录</span></div>`)
	}
	sb.WriteString(`</div>`)
	sb.WriteString(`<div id="commentapp"><bili-comments><template shadowrootmode="open"><div id="feed">`)
	for i, t := range w.Threads {
		sb.WriteString(threadMarkup(i, t))
	}
	sb.WriteString(`</div></template></bili-comments></div></body></html>`)

	p := MustNew(sb.String())
	installLogin(p)
	installReplies(p, w.Threads)
	return p
}

// AppendThread adds a thread to the end of the feed, as lazy loading does.
// Threads added this way have working reply controls too.
func AppendThread(p *Page, t Thread) {
	feed := p.Document().Find("#feed")
	index := feed.ChildrenFiltered("bili-comment-thread-renderer").Length()
	feed.AppendHtml(threadMarkup(index, t))
	installReplies(p, append(make([]Thread, index), t))
}

func threadMarkup(index int, t Thread) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<bili-comment-thread-renderer data-index="%d"><template shadowrootmode="open">`, index)
	sb.WriteString(`<bili-comment-renderer id="comment"><template shadowrootmode="open">`)
	if t.OmitContents {
		sb.WriteString(`<div id="content"></div>`)
	} else {
		sb.WriteString(`<div id="content">` + richText(t.Text) + `</div>`)
	}
	sb.WriteString(`<div id="footer">` + actions(t.PubDate, t.Likes) + `</div>`)
	sb.WriteString(`</template></bili-comment-renderer>`)

	if t.Pages != nil {
		sb.WriteString(`<div id="replies"><bili-comment-replies-renderer><template shadowrootmode="open">`)
		if t.ViewMore {
			label := t.ViewMoreLabel
			if label == "" {
				label = fmt.Sprintf("共%d条回复, ", countReplies(t.Pages))
			}
			sb.WriteString(`<div id="view-more"><span>` + html.EscapeString(label) + `</span>` +
				textButton("点击查看") + `</div>`)
			sb.WriteString(`<div id="expander-contents"></div>`)
		} else {
			sb.WriteString(expanded(t, 0))
		}
		sb.WriteString(`</template></bili-comment-replies-renderer></div>`)
	}

	sb.WriteString(`</template></bili-comment-thread-renderer>`)
	return sb.String()
}

// expanded renders the reply list showing page index.
func expanded(t Thread, index int) string {
	var sb strings.Builder
	sb.WriteString(`<div id="expander-contents">` + replyList(t.Pages, index) + `</div>`)
	if len(t.Pages) > 1 && !t.NoPagination {
		sb.WriteString(`<div id="pagination-body">` + pageButtons(len(t.Pages), index) + `</div>`)
	}
	sb.WriteString(`<div id="pagination-foot">` + textButton("收起") + `</div>`)
	return sb.String()
}

func replyList(pages [][]Reply, index int) string {
	if index >= len(pages) {
		return ""
	}
	var sb strings.Builder
	for _, r := range pages[index] {
		sb.WriteString(`<bili-comment-reply-renderer><template shadowrootmode="open">`)
		sb.WriteString(`<div id="main">` + richText(r.Text) + `</div>`)
		sb.WriteString(`<div id="footer">` + actions(r.PubDate, r.Likes) + `</div>`)
		sb.WriteString(`</template></bili-comment-reply-renderer>`)
	}
	return sb.String()
}

func pageButtons(total, current int) string {
	var sb strings.Builder
	if current > 0 {
		sb.WriteString(`<bili-text-button data-page="` + strconv.Itoa(current-1) + `">上一页</bili-text-button>`)
	}
	for i := range total {
		fmt.Fprintf(&sb, `<bili-text-button data-page="%d">%d</bili-text-button>`, i, i+1)
	}
	if current < total-1 {
		sb.WriteString(`<bili-text-button data-page="` + strconv.Itoa(current+1) + `">` + NextPageLabel + `</bili-text-button>`)
	}
	return sb.String()
}

func richText(text string) string {
	return `<bili-rich-text><template shadowrootmode="open"><p id="contents"><span>` +
		html.EscapeString(text) + `</span></p></template></bili-rich-text>`
}

func actions(pubdate, likes string) string {
	return `<bili-comment-action-buttons-renderer><template shadowrootmode="open">` +
		`<div id="pubdate">` + html.EscapeString(pubdate) + `</div>` +
		`<div id="like"><button><span id="count">` + html.EscapeString(likes) + `</span></button></div>` +
		`</template></bili-comment-action-buttons-renderer>`
}

func textButton(label string) string {
	return `<bili-text-button><template shadowrootmode="open"><button class="button">` +
		html.EscapeString(label) + `</button></template></bili-text-button>`
}

func countReplies(pages [][]Reply) int {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	return n
}

func installLogin(p *Page) {
	p.OnClick("div.header-login-entry", func(p *Page, _ *goquery.Selection) {
		if p.Document().Find(".bili-mini-mask").Length() > 0 {
			return
		}
		p.Document().Find("body").AppendHtml(`<div class="bili-mini-mask"><div class="bili-mini-content">` +
			`<form><div class="form__item"><input type="text"></div>` +
			`<div class="form__separator-line"></div>` +
			`<div class="form__item"><input type="password"></div></form>` +
			`<div class="btn_wp"><div class="btn_other">注册</div><div class="btn_primary">登录</div></div>` +
			`</div></div>`)
	})
	p.OnClick(".bili-mini-mask .btn_wp > div:nth-child(2)", func(p *Page, _ *goquery.Selection) {
		p.Document().Find(".bili-mini-mask").Remove()
		p.Document().Find("div.header-login-entry").ReplaceWithHtml(`<div class="header-avatar-wrap"></div>`)
	})
}

// installReplies wires the reply controls of threads. Zero-value entries are
// placeholders for threads that are already wired.
func installReplies(p *Page, threads []Thread) {
	for i, t := range threads {
		if t.Pages == nil {
			continue
		}
		index, thread := i, t
		host := fmt.Sprintf(`bili-comment-thread-renderer[data-index="%d"]`, index)

		p.OnClick(host+" #view-more .button", func(p *Page, target *goquery.Selection) {
			renderer := target.Closest("bili-comment-replies-renderer").ChildrenFiltered("template")
			renderer.SetHtml(expanded(thread, 0))
		})
		p.OnClick(host+" #pagination-body > bili-text-button", func(p *Page, target *goquery.Selection) {
			next, err := strconv.Atoi(target.AttrOr("data-page", ""))
			if err != nil {
				return
			}
			renderer := target.Closest("bili-comment-replies-renderer").ChildrenFiltered("template")
			renderer.SetHtml(expanded(thread, next))
		})
		p.OnClick(host+" #pagination-foot .button", func(p *Page, target *goquery.Selection) {
			renderer := target.Closest("bili-comment-replies-renderer").ChildrenFiltered("template")
			renderer.SetHtml(`<div id="expander-contents"></div>`)
		})
	}
}
