package model

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Target errors.
var (
	// ErrEmptyTarget is returned when the target is empty.
	ErrEmptyTarget = errors.New("target cannot be empty")
	// ErrInvalidTarget is returned when the target is neither a video id nor an http(s) URL.
	ErrInvalidTarget = errors.New("invalid target")
)

// videoURLFormat expands a bare video id into its watch page.
const videoURLFormat = "https://www.bilibili.com/video/%s/"

var (
	// videoIDPattern matches a bare BV video id.
	videoIDPattern = regexp.MustCompile(`^BV[0-9A-Za-z]{10}$`)
	// videoPathPattern finds a BV video id inside a URL path.
	videoPathPattern = regexp.MustCompile(`/video/(BV[0-9A-Za-z]{10})`)
	// unsafeName matches characters not allowed in generated file names.
	unsafeName = regexp.MustCompile(`[^0-9A-Za-z._-]+`)
)

// Target is a page whose comment section will be crawled.
type Target struct {
	// URL is the page to open.
	URL string

	// ID is a short file-system safe identifier, the video id when one is known.
	ID string
}

// ParseTarget accepts a bare video id ("BV1xx411c7mD") or an http(s) URL.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, ErrEmptyTarget
	}

	if videoIDPattern.MatchString(s) {
		return Target{URL: fmt.Sprintf(videoURLFormat, s), ID: s}, nil
	}

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}

	if m := videoPathPattern.FindStringSubmatch(u.Path); m != nil {
		return Target{URL: s, ID: m[1]}, nil
	}

	id := strings.Trim(unsafeName.ReplaceAllString(u.Host+u.Path, "_"), "_")
	return Target{URL: s, ID: id}, nil
}

// String returns the target URL.
func (t Target) String() string {
	return t.URL
}
