package page

import (
	"context"
	"errors"
)

// TextAt resolves path from root once and returns the text of the element.
func TextAt(ctx context.Context, root Element, path Path) (string, error) {
	el, err := Resolve(ctx, root, path)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// isAbsent reports whether err means the element is not (or no longer) there.
func isAbsent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale)
}
