package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/commentcrawl/internal/page"
)

// ErrClosed is returned when the browser has already been closed.
var ErrClosed = errors.New("browser is closed")

// Browser is a running browser process or a remote browser connection.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *slog.Logger
	closed   bool
}

// Options configures Launch.
type Options struct {
	// Headless hides the browser window.
	Headless bool

	// Bin is the browser executable. Empty lets rod find or download one.
	Bin string

	// ControlURL attaches to an already running browser instead of launching.
	ControlURL string

	// UserDataDir is the browser profile directory. Empty uses a temporary one.
	UserDataDir string

	// Logger receives browser lifecycle messages.
	Logger *slog.Logger
}

// Launch starts (or connects to) a browser.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Browser{logger: logger}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(opts.Headless).Set("start-maximized")
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		b.launcher = l
		logger.Debug("browser launched", "control_url", controlURL, "headless", opts.Headless)
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b.browser = rb

	return b, nil
}

// NewPage opens a blank tab.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	if b.closed {
		return nil, ErrClosed
	}
	p, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &Page{page: p}, nil
}

// OpenPage opens a tab and returns it with a function that closes it.
func (b *Browser) OpenPage(ctx context.Context) (page.Page, func() error, error) {
	p, err := b.NewPage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

// Close disconnects from the browser and stops it if it was launched here.
func (b *Browser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	if b.launcher != nil {
		err = b.browser.Close()
	}
	b.kill()
	return err
}

func (b *Browser) kill() {
	if b.launcher == nil {
		return
	}
	b.launcher.Kill()
	b.launcher.Cleanup()
}
