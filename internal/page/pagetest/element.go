package pagetest

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/commentcrawl/internal/page"
)

// element is a node handle. When node is a shadow-root template the handle
// behaves as that shadow root.
type element struct {
	page *Page
	node *html.Node
}

var _ page.Element = (*element)(nil)

func (e *element) FindChild(ctx context.Context, selector string) (page.Element, error) {
	all, err := e.FindChildren(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, page.ErrNotFound
	}
	return all[0], nil
}

func (e *element) FindChildren(ctx context.Context, selector string) ([]page.Element, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}

	scope := innerScope(e.node)
	var out []page.Element
	selection(e.node).Find(selector).Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if scopeOf(n) == scope {
			out = append(out, &element{page: e.page, node: n})
		}
	})
	return out, nil
}

func (e *element) Shadow(ctx context.Context) (page.Element, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if isShadowRoot(c) {
			return &element{page: e.page, node: c}, nil
		}
	}
	return nil, page.ErrNotFound
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	e.page.record(Event{Kind: "scroll", Target: describe(e.node)})

	e.page.mu.Lock()
	hooks := append([]hook(nil), e.page.scrolls...)
	e.page.mu.Unlock()

	e.page.run(hooks, e.node)
	return nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	e.page.record(Event{Kind: "click", Target: describe(e.node)})

	e.page.mu.Lock()
	hooks := append([]hook(nil), e.page.clicks...)
	e.page.mu.Unlock()

	e.page.run(hooks, e.node)
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	var sb strings.Builder
	collectText(&sb, e.node)
	return strings.TrimSpace(sb.String()), nil
}

func (e *element) Input(ctx context.Context, text string) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	setAttr(e.node, "value", text)
	e.page.record(Event{Kind: "input", Target: describe(e.node), Text: text})
	return nil
}

func (e *element) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.page.attached(e.node) {
		return page.ErrStale
	}
	return nil
}

func selection(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

func isShadowRoot(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Data != "template" {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == shadowRootAttr {
			return true
		}
	}
	return false
}

// scopeOf returns the shadow root n lives in, or nil for the document scope.
func scopeOf(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if isShadowRoot(p) {
			return p
		}
	}
	return nil
}

// innerScope is the scope searched by lookups from n.
func innerScope(n *html.Node) *html.Node {
	if isShadowRoot(n) {
		return n
	}
	return scopeOf(n)
}

// collectText gathers light-DOM text, skipping hosted shadow trees.
func collectText(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			sb.WriteString(c.Data)
		case isShadowRoot(c):
		case c.Type == html.ElementNode:
			collectText(sb, c)
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func describe(n *html.Node) string {
	switch n.Type {
	case html.DocumentNode:
		return "#document"
	case html.ElementNode:
	default:
		return ""
	}

	var sb strings.Builder
	sb.WriteString(n.Data)
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			sb.WriteString("#" + a.Val)
		case "class":
			for _, c := range strings.Fields(a.Val) {
				sb.WriteString("." + c)
			}
		}
	}
	return sb.String()
}
