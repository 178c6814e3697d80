package log

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces every sensitive value, or the sensitive part of one.
const MaskValue = "***REDACTED***"

// maskedKeys are attribute keys whose values are always replaced as a whole.
var maskedKeys = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"cookies":       {},
	"set-cookie":    {},
	"account":       {},
	"username":      {},
	"user":          {},
	"phone":         {},
	"email":         {},
	"creds":         {},
	"csrf":          {},
	"session":       {},
	"session_id":    {},
	"sessionid":     {},
	"dedeuserid":    {},
	"buvid3":        {},
	"bili_jct":      {},
}

// maskedKeyParts mask any key that contains them ("login_password", "api_token").
// A bare "key" is not among them: it matches "primary_key" and "monkey".
var maskedKeyParts = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "sessdata",
}

// secretValues are values that are secrets in their entirety.
var secretValues = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+$`),
	// csrf tokens, api keys
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	// mainland mobile number, the usual login account
	regexp.MustCompile(`^\+?(86)?1[3-9][0-9]{9}$`),
}

// secretParts locate a secret inside a longer value. Groups 1 and 2 are kept
// and what lies between them is masked, so the surrounding text stays readable.
var secretParts = []*regexp.Regexp{
	// postgres://user:pw@host, nats://user:pw@host
	regexp.MustCompile(`(://[^/@\s:]+:)[^/@\s]+(@)`),
	// SESSDATA=...; bili_jct=... in a copied cookie string
	regexp.MustCompile(`(?i)((?:SESSDATA|bili_jct|DedeUserID)=)[^;\s]+()`),
}

// SecureHandler is an slog.Handler that masks credentials before records
// reach the wrapped handler. It looks at attribute keys, at the shape of
// string values, and at literal secrets passed to NewSecureHandler, which
// are also removed from messages and error texts.
//
// Design decision: A handler wrapper rather than a custom logger, so every
// component keeps taking a plain *slog.Logger and the masking applies to
// text and JSON output alike.
type SecureHandler struct {
	next    slog.Handler
	secrets []string
}

// NewSecureHandler wraps next, or slog.Default().Handler() when next is nil.
// secrets are literal values (the configured account and password) that are
// masked wherever they appear.
func NewSecureHandler(next slog.Handler, secrets ...string) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	h := &SecureHandler{next: next}
	for _, s := range secrets {
		// Very short literals would mask ordinary words.
		if len(s) >= 3 {
			h.secrets = append(h.secrets, s)
		}
	}
	return h
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle masks the message and every attribute, then passes the record on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.scrub(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.mask(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs masks attrs once, when they are bound to the logger.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &SecureHandler{next: h.next.WithAttrs(masked), secrets: h.secrets}
}

// WithGroup delegates to the wrapped handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name), secrets: h.secrets}
}

func (h *SecureHandler) mask(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = h.mask(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	if sensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if secretValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if scrubbed := h.scrub(s); scrubbed != s {
			return slog.String(a.Key, scrubbed)
		}
	case slog.KindAny:
		// Errors often quote what failed, including a URL or the account.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			msg := err.Error()
			if scrubbed := h.scrub(msg); scrubbed != msg {
				return slog.String(a.Key, scrubbed)
			}
		}
	}
	return a
}

// scrub masks the embedded secrets of s and returns the rest unchanged.
func (h *SecureHandler) scrub(s string) string {
	for _, secret := range h.secrets {
		s = strings.ReplaceAll(s, secret, MaskValue)
	}
	for _, re := range secretParts {
		s = re.ReplaceAllString(s, "${1}"+MaskValue+"${2}")
	}
	return s
}

// sensitiveKey reports whether values under key are always masked.
func sensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if _, ok := maskedKeys[key]; ok {
		return true
	}
	for _, part := range maskedKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// secretValue reports whether s is a secret in its entirety.
func secretValue(s string) bool {
	for _, re := range secretValues {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
