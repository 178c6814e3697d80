package crawler

import "github.com/nao1215/commentcrawl/internal/page"

// Selectors locate the parts of the comment widget. Each value is a selector
// path as understood by page.ParsePath.
//
// Thread-relative paths start at a thread element, reply-relative paths at a
// reply element and the reply controls at the shadow root of the replies
// renderer.
type Selectors struct {
	// CommentApp is the element hosting the comment widget. It is scrolled
	// into view first so the widget starts rendering.
	CommentApp string `yaml:"comment_app"`

	// CommentRoot is the shadow root containing the thread feed.
	CommentRoot string `yaml:"comment_root"`

	// Threads matches every top-level thread, relative to CommentRoot.
	Threads string `yaml:"threads"`

	// ParentText is the top-level comment text, relative to a thread.
	ParentText string `yaml:"parent_text"`

	// ParentActions is the action bar of the top-level comment, relative to a thread.
	ParentActions string `yaml:"parent_actions"`

	// PubDate is the publication date, relative to an action bar.
	PubDate string `yaml:"pubdate"`

	// LikeCount is the like count, relative to an action bar.
	LikeCount string `yaml:"like_count"`

	// Replies is the shadow root of the replies renderer, relative to a thread.
	Replies string `yaml:"replies"`

	// ViewMore is the "view more replies" control, relative to Replies.
	ViewMore string `yaml:"view_more"`

	// ViewMoreLabel holds the reply count text, relative to ViewMore.
	ViewMoreLabel string `yaml:"view_more_label"`

	// ViewMoreButton is the clickable part, relative to ViewMore.
	ViewMoreButton string `yaml:"view_more_button"`

	// Pagination is the page-control region, relative to Replies.
	Pagination string `yaml:"pagination"`

	// PageButtons matches the page controls, relative to Pagination.
	PageButtons string `yaml:"page_buttons"`

	// ReplyList matches every rendered reply, relative to Replies.
	ReplyList string `yaml:"reply_list"`

	// ReplyText is the reply text, relative to a reply.
	ReplyText string `yaml:"reply_text"`

	// ReplyActions is the reply action bar, relative to a reply.
	ReplyActions string `yaml:"reply_actions"`

	// Collapse is the "collapse" control, relative to Replies.
	Collapse string `yaml:"collapse"`

	// NextPageLabel is the label of the next-page control.
	NextPageLabel string `yaml:"next_page_label"`

	// LoggedIn is present in the page header only for a logged-in session.
	LoggedIn string `yaml:"logged_in"`

	// LoginEntry opens the login dialog.
	LoginEntry string `yaml:"login_entry"`

	// LoginDialog is the login dialog; its disappearance confirms the login.
	LoginDialog string `yaml:"login_dialog"`

	// AccountField is the account input of the login dialog.
	AccountField string `yaml:"account_field"`

	// PasswordField is the password input of the login dialog.
	PasswordField string `yaml:"password_field"`

	// Submit is the login button of the login dialog.
	Submit string `yaml:"submit"`
}

// DefaultSelectors returns the selectors for the bilibili video page.
func DefaultSelectors() Selectors {
	return Selectors{
		CommentApp:     "#commentapp",
		CommentRoot:    "#commentapp >> bili-comments >> ::shadow",
		Threads:        "#feed >> bili-comment-thread-renderer",
		ParentText:     "::shadow >> #comment >> ::shadow >> #content >> bili-rich-text >> ::shadow >> #contents",
		ParentActions:  "::shadow >> #comment >> ::shadow >> #footer >> bili-comment-action-buttons-renderer >> ::shadow",
		PubDate:        "#pubdate",
		LikeCount:      "#count",
		Replies:        "::shadow >> #replies >> bili-comment-replies-renderer >> ::shadow",
		ViewMore:       "#view-more",
		ViewMoreLabel:  "span",
		ViewMoreButton: "bili-text-button >> ::shadow >> .button",
		Pagination:     "#pagination-body",
		PageButtons:    "bili-text-button",
		ReplyList:      "#expander-contents >> bili-comment-reply-renderer",
		ReplyText:      "::shadow >> #main >> bili-rich-text >> ::shadow >> #contents",
		ReplyActions:   "::shadow >> #footer >> bili-comment-action-buttons-renderer >> ::shadow",
		Collapse:       "#pagination-foot >> bili-text-button >> ::shadow >> .button",
		NextPageLabel:  "下一页",
		LoggedIn:       ".header-avatar-wrap",
		LoginEntry:     "div.header-login-entry",
		LoginDialog:    ".bili-mini-mask",
		AccountField:   ".bili-mini-mask form > div:nth-child(1) > input",
		PasswordField:  ".bili-mini-mask form > div:nth-child(3) > input",
		Submit:         ".bili-mini-mask .btn_wp > div:nth-child(2)",
	}
}

// Merge returns s with every empty field taken from defaults.
func (s Selectors) Merge(defaults Selectors) Selectors {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Selectors{
		CommentApp:     pick(s.CommentApp, defaults.CommentApp),
		CommentRoot:    pick(s.CommentRoot, defaults.CommentRoot),
		Threads:        pick(s.Threads, defaults.Threads),
		ParentText:     pick(s.ParentText, defaults.ParentText),
		ParentActions:  pick(s.ParentActions, defaults.ParentActions),
		PubDate:        pick(s.PubDate, defaults.PubDate),
		LikeCount:      pick(s.LikeCount, defaults.LikeCount),
		Replies:        pick(s.Replies, defaults.Replies),
		ViewMore:       pick(s.ViewMore, defaults.ViewMore),
		ViewMoreLabel:  pick(s.ViewMoreLabel, defaults.ViewMoreLabel),
		ViewMoreButton: pick(s.ViewMoreButton, defaults.ViewMoreButton),
		Pagination:     pick(s.Pagination, defaults.Pagination),
		PageButtons:    pick(s.PageButtons, defaults.PageButtons),
		ReplyList:      pick(s.ReplyList, defaults.ReplyList),
		ReplyText:      pick(s.ReplyText, defaults.ReplyText),
		ReplyActions:   pick(s.ReplyActions, defaults.ReplyActions),
		Collapse:       pick(s.Collapse, defaults.Collapse),
		NextPageLabel:  pick(s.NextPageLabel, defaults.NextPageLabel),
		LoggedIn:       pick(s.LoggedIn, defaults.LoggedIn),
		LoginEntry:     pick(s.LoginEntry, defaults.LoginEntry),
		LoginDialog:    pick(s.LoginDialog, defaults.LoginDialog),
		AccountField:   pick(s.AccountField, defaults.AccountField),
		PasswordField:  pick(s.PasswordField, defaults.PasswordField),
		Submit:         pick(s.Submit, defaults.Submit),
	}
}

// paths is the parsed form of Selectors.
type paths struct {
	commentApp, commentRoot, threads             page.Path
	parentText, parentActions, pubDate, likes    page.Path
	replies, viewMore, viewMoreLabel, viewMoreBt page.Path
	pagination, replyList, replyText             page.Path
	replyActions, collapse, pageButtons          page.Path
	nextPageLabel                                string
	loggedIn, loginEntry, loginDialog            page.Path
	accountField, passwordField, submit          page.Path
}

func compile(s Selectors) paths {
	return paths{
		commentApp:    page.ParsePath(s.CommentApp),
		commentRoot:   page.ParsePath(s.CommentRoot),
		threads:       page.ParsePath(s.Threads),
		parentText:    page.ParsePath(s.ParentText),
		parentActions: page.ParsePath(s.ParentActions),
		pubDate:       page.ParsePath(s.PubDate),
		likes:         page.ParsePath(s.LikeCount),
		replies:       page.ParsePath(s.Replies),
		viewMore:      page.ParsePath(s.ViewMore),
		viewMoreLabel: page.ParsePath(s.ViewMoreLabel),
		viewMoreBt:    page.ParsePath(s.ViewMoreButton),
		pagination:    page.ParsePath(s.Pagination),
		replyList:     page.ParsePath(s.ReplyList),
		replyText:     page.ParsePath(s.ReplyText),
		replyActions:  page.ParsePath(s.ReplyActions),
		collapse:      page.ParsePath(s.Collapse),
		pageButtons:   page.ParsePath(s.PageButtons),
		nextPageLabel: s.NextPageLabel,
		loggedIn:      page.ParsePath(s.LoggedIn),
		loginEntry:    page.ParsePath(s.LoginEntry),
		loginDialog:   page.ParsePath(s.LoginDialog),
		accountField:  page.ParsePath(s.AccountField),
		passwordField: page.ParsePath(s.PasswordField),
		submit:        page.ParsePath(s.Submit),
	}
}
