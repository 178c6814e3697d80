package page

import (
	"context"
	"fmt"
	"strings"
)

const (
	// ShadowHop descends into the shadow root of the current element.
	ShadowHop = "::shadow"

	// hopSeparator joins the hops of a selector path.
	hopSeparator = ">>"
)

// Path is a parsed selector path: CSS selectors interleaved with ShadowHop.
type Path []string

// ParsePath splits one or more ">>" separated fragments into a Path.
// Empty hops are dropped.
func ParsePath(fragments ...string) Path {
	var p Path
	for _, f := range fragments {
		for _, hop := range strings.Split(f, hopSeparator) {
			if hop = strings.TrimSpace(hop); hop != "" {
				p = append(p, hop)
			}
		}
	}
	return p
}

// String returns the path in its ">>" separated form.
func (p Path) String() string {
	return strings.Join(p, " "+hopSeparator+" ")
}

// Join returns a new path with the hops of q appended.
func (p Path) Join(q Path) Path {
	out := make(Path, 0, len(p)+len(q))
	out = append(out, p...)
	return append(out, q...)
}

// Resolve follows path from root once, without waiting.
// A missing hop yields an error wrapping ErrNotFound that names the hop.
// An empty path resolves to root itself.
func Resolve(ctx context.Context, root Element, path Path) (Element, error) {
	cur := root
	for i, hop := range path {
		next, err := step(ctx, cur, hop)
		if err != nil {
			return nil, fmt.Errorf("%s (hop %d of %q): %w", hop, i+1, path.String(), err)
		}
		cur = next
	}
	return cur, nil
}

// ResolveAll follows all but the last hop of path once and returns every
// match of the last hop. A missing intermediate hop yields an empty result,
// matching the contract of FindChildren.
func ResolveAll(ctx context.Context, root Element, path Path) ([]Element, error) {
	if len(path) == 0 {
		return []Element{root}, nil
	}

	parent, err := Resolve(ctx, root, path[:len(path)-1])
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}

	last := path[len(path)-1]
	if last == ShadowHop {
		shadow, err := parent.Shadow(ctx)
		if err != nil {
			if isAbsent(err) {
				return nil, nil
			}
			return nil, err
		}
		return []Element{shadow}, nil
	}
	return parent.FindChildren(ctx, last)
}

func step(ctx context.Context, el Element, hop string) (Element, error) {
	if hop == ShadowHop {
		return el.Shadow(ctx)
	}
	return el.FindChild(ctx, hop)
}
