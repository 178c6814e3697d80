package pagetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/commentcrawl/internal/page"
)

// shadowRootAttr marks a template element as a declarative shadow root.
const shadowRootAttr = "shadowrootmode"

// Hook runs when an element matching its selector is clicked or scrolled.
// target wraps the element; the document can be edited through either.
type Hook func(p *Page, target *goquery.Selection)

// NavigateHook runs when the page navigates.
type NavigateHook func(p *Page, url string) error

// Event is one recorded interaction.
type Event struct {
	// Kind is "click", "scroll", "input" or "navigate".
	Kind string

	// Target describes the element (tag, id and classes) or holds the URL.
	Target string

	// Text is the typed text of input events.
	Text string
}

type hook struct {
	selector string
	fn       Hook
}

// Page is an in-memory document implementing page.Page.
// Hooks run synchronously on the calling goroutine; the page is meant to be
// driven by one goroutine at a time.
type Page struct {
	doc *goquery.Document

	mu         sync.Mutex
	clicks     []hook
	scrolls    []hook
	onNavigate NavigateHook
	events     []Event
	url        string
}

var _ page.Page = (*Page)(nil)

// New parses markup into a Page.
func New(markup string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return &Page{doc: doc}, nil
}

// MustNew is New that panics on error. It is meant for test fixtures.
func MustNew(markup string) *Page {
	p, err := New(markup)
	if err != nil {
		panic(err)
	}
	return p
}

// Document returns the whole document for direct inspection or editing.
// Queries on it ignore shadow encapsulation.
func (p *Page) Document() *goquery.Document {
	return p.doc
}

// OnClick registers a hook for clicks on elements matching selector.
func (p *Page) OnClick(selector string, fn Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, hook{selector: selector, fn: fn})
}

// OnScroll registers a hook for ScrollIntoView on elements matching selector.
func (p *Page) OnScroll(selector string, fn Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls = append(p.scrolls, hook{selector: selector, fn: fn})
}

// OnNavigate registers the hook run by Navigate.
func (p *Page) OnNavigate(fn NavigateHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

// Events returns a copy of the recorded interactions in order.
func (p *Page) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Count returns how many events of kind were recorded.
func (p *Page) Count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// URL returns the last URL passed to Navigate.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Navigate records the navigation and runs the navigate hook, if any.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.url = url
	p.events = append(p.events, Event{Kind: "navigate", Target: url})
	fn := p.onNavigate
	p.mu.Unlock()

	if fn != nil {
		return fn(p, url)
	}
	return nil
}

// FindChild implements page.Element on the document root.
func (p *Page) FindChild(ctx context.Context, selector string) (page.Element, error) {
	return p.root().FindChild(ctx, selector)
}

// FindChildren implements page.Element on the document root.
func (p *Page) FindChildren(ctx context.Context, selector string) ([]page.Element, error) {
	return p.root().FindChildren(ctx, selector)
}

// Shadow implements page.Element; a document has no shadow root.
func (p *Page) Shadow(ctx context.Context) (page.Element, error) {
	return p.root().Shadow(ctx)
}

// ScrollIntoView implements page.Element.
func (p *Page) ScrollIntoView(ctx context.Context) error {
	return p.root().ScrollIntoView(ctx)
}

// Click implements page.Element.
func (p *Page) Click(ctx context.Context) error {
	return p.root().Click(ctx)
}

// Text implements page.Element.
func (p *Page) Text(ctx context.Context) (string, error) {
	return p.root().Text(ctx)
}

// Input implements page.Element.
func (p *Page) Input(ctx context.Context, text string) error {
	return p.root().Input(ctx, text)
}

func (p *Page) root() *element {
	return &element{page: p, node: p.doc.Nodes[0]}
}

func (p *Page) record(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// run invokes every hook whose selector matches n.
func (p *Page) run(hooks []hook, n *html.Node) {
	for _, h := range hooks {
		target := selection(n)
		if target.Is(h.selector) {
			h.fn(p, target)
		}
	}
}

// attached reports whether n is still part of the document tree.
func (p *Page) attached(n *html.Node) bool {
	root := p.doc.Nodes[0]
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}
