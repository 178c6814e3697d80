package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/commentcrawl/internal/page"
)

const (
	// clickScript clicks through the DOM when rod's synthetic mouse click is
	// refused, for example because a sticky header covers the element.
	clickScript = `() => this.click()`

	// headerOffsetScript scrolls back by the height of the sticky page header,
	// which otherwise covers an element scrolled to the top edge.
	headerOffsetScript = `() => window.scrollBy(0, -100)`

	// mouseClickBudget bounds the mouse click. rod waits for a covered
	// element to become interactable without a limit of its own.
	mouseClickBudget = 3 * time.Second
)

// Page is a browser tab.
type Page struct {
	page *rod.Page
}

var _ page.Page = (*Page)(nil)

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	rp := p.page.Context(ctx)
	if err := rp.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := rp.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

// FindChild implements page.Element on the document.
func (p *Page) FindChild(ctx context.Context, selector string) (page.Element, error) {
	all, err := p.FindChildren(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, page.ErrNotFound
	}
	return all[0], nil
}

// FindChildren implements page.Element on the document.
func (p *Page) FindChildren(ctx context.Context, selector string) ([]page.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrap(els), nil
}

// Shadow implements page.Element; a document has no shadow root.
func (p *Page) Shadow(context.Context) (page.Element, error) {
	return nil, page.ErrNotFound
}

// ScrollIntoView scrolls to the top of the document.
func (p *Page) ScrollIntoView(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, 0)`)
	return err
}

// Click clicks the document body.
func (p *Page) Click(ctx context.Context) error {
	body, err := p.FindChild(ctx, "body")
	if err != nil {
		return err
	}
	return body.Click(ctx)
}

// Text returns the visible text of the document body.
func (p *Page) Text(ctx context.Context) (string, error) {
	body, err := p.FindChild(ctx, "body")
	if err != nil {
		return "", err
	}
	return body.Text(ctx)
}

// Input is not supported on the document itself.
func (p *Page) Input(context.Context, string) error {
	return errors.New("cannot type into the document")
}

// Element is a rendered node or shadow root in a tab.
type Element struct {
	el *rod.Element
}

var _ page.Element = (*Element)(nil)

func wrap(els rod.Elements) []page.Element {
	out := make([]page.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el})
	}
	return out
}

// FindChild implements page.Element.
func (e *Element) FindChild(ctx context.Context, selector string) (page.Element, error) {
	all, err := e.FindChildren(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, page.ErrNotFound
	}
	return all[0], nil
}

// FindChildren implements page.Element.
func (e *Element) FindChildren(ctx context.Context, selector string) ([]page.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, translate(fmt.Errorf("query %q: %w", selector, err))
	}
	return wrap(els), nil
}

// Shadow implements page.Element.
func (e *Element) Shadow(ctx context.Context) (page.Element, error) {
	root, err := e.el.Context(ctx).ShadowRoot()
	if err != nil {
		var none *rod.NoShadowRootError
		if errors.As(err, &none) {
			return nil, page.ErrNotFound
		}
		return nil, translate(fmt.Errorf("shadow root: %w", err))
	}
	return &Element{el: root}, nil
}

// ScrollIntoView implements page.Element. The element ends up just below the
// sticky header instead of under it.
func (e *Element) ScrollIntoView(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return translate(err)
	}
	_, err := el.Eval(headerOffsetScript)
	return translate(err)
}

// Click implements page.Element. A mouse click that is refused or does not
// finish within mouseClickBudget falls back to a DOM click.
func (e *Element) Click(ctx context.Context) error {
	return clickWithFallback(ctx, mouseClickBudget,
		func(ctx context.Context) error {
			return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
		},
		func(ctx context.Context) error {
			_, err := e.el.Context(ctx).Eval(clickScript)
			return err
		},
	)
}

// clickWithFallback runs mouse with at most budget of ctx, then dom when the
// mouse click failed and ctx is still live.
func clickWithFallback(ctx context.Context, budget time.Duration, mouse, dom func(context.Context) error) error {
	mctx, cancel := context.WithTimeout(ctx, budget)
	err := mouse(mctx)
	cancel()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if domErr := dom(ctx); domErr != nil {
		return translate(fmt.Errorf("click: %w", errors.Join(err, domErr)))
	}
	return nil
}

// Text implements page.Element.
func (e *Element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", translate(err)
	}
	return strings.TrimSpace(text), nil
}

// Input implements page.Element.
func (e *Element) Input(ctx context.Context, text string) error {
	return translate(e.el.Context(ctx).Input(text))
}

// translate maps driver errors about detached nodes to page.ErrStale.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var objErr *rod.ObjectNotFoundError
	if errors.As(err, &objErr) {
		return fmt.Errorf("%w: %w", page.ErrStale, err)
	}
	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) && strings.Contains(cdpErr.Message, "node with given id") {
		return fmt.Errorf("%w: %w", page.ErrStale, err)
	}
	return err
}
