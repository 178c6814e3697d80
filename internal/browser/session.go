package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// sessionFile is the JSON document written to the session file.
type sessionFile struct {
	SavedAt time.Time              `json:"saved_at"`
	Cookies []*proto.NetworkCookie `json:"cookies"`
}

// SaveCookies writes cookies to path, readable by the owner only.
func SaveCookies(path string, cookies []*proto.NetworkCookie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := json.MarshalIndent(sessionFile{SavedAt: time.Now(), Cookies: cookies}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// LoadCookies reads the cookies stored at path, dropping expired ones.
// A missing file yields no cookies and no error.
func LoadCookies(path string, now time.Time) ([]*proto.NetworkCookie, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}

	live := sf.Cookies[:0]
	for _, c := range sf.Cookies {
		if c == nil {
			continue
		}
		if !c.Session && c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now) {
			continue
		}
		live = append(live, c)
	}
	return live, nil
}

// SaveSession stores the browser's cookies in the session file at path.
func (b *Browser) SaveSession(path string) error {
	if b.closed {
		return ErrClosed
	}
	cookies, err := b.browser.GetCookies()
	if err != nil {
		return fmt.Errorf("read browser cookies: %w", err)
	}
	if err := SaveCookies(path, cookies); err != nil {
		return err
	}
	b.logger.Debug("session saved", "path", path, "cookies", len(cookies))
	return nil
}

// RestoreSession loads the session file at path into the browser.
// It reports whether any cookie was restored.
func (b *Browser) RestoreSession(path string) (bool, error) {
	if b.closed {
		return false, ErrClosed
	}
	cookies, err := LoadCookies(path, time.Now())
	if err != nil {
		return false, err
	}
	if len(cookies) == 0 {
		return false, nil
	}
	if err := b.browser.SetCookies(proto.CookiesToParams(cookies)); err != nil {
		return false, fmt.Errorf("restore browser cookies: %w", err)
	}
	b.logger.Debug("session restored", "path", path, "cookies", len(cookies))
	return true, nil
}
