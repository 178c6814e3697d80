package page

import "context"

// Element is a handle to a rendered DOM node or shadow root.
//
// Handles may go stale when the page re-renders the subtree they belong to.
// Callers re-query instead of holding handles across clicks that re-render.
type Element interface {
	// FindChild returns the first descendant matching the CSS selector,
	// or ErrNotFound when there is none.
	FindChild(ctx context.Context, selector string) (Element, error)

	// FindChildren returns every descendant matching the CSS selector in
	// document order. No match yields an empty slice and a nil error.
	FindChildren(ctx context.Context, selector string) ([]Element, error)

	// Shadow returns the element's open shadow root, or ErrNotFound when
	// the element hosts none.
	Shadow(ctx context.Context) (Element, error)

	// ScrollIntoView scrolls the page until the element is visible.
	ScrollIntoView(ctx context.Context) error

	// Click clicks the element.
	Click(ctx context.Context) error

	// Text returns the element's visible text with surrounding space trimmed.
	Text(ctx context.Context) (string, error)

	// Input types text into the element, which must be a form field.
	Input(ctx context.Context, text string) error
}

// Page is a browser tab. Its Element methods operate on the document root.
type Page interface {
	Element

	// Navigate loads url and waits for the document to finish loading.
	Navigate(ctx context.Context, url string) error
}
