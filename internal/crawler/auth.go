package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/commentcrawl/internal/page"
)

// Credentials are the account used to log in.
// They are supplied by configuration or the environment, never by code.
type Credentials struct {
	Account  string
	Password string
}

// Empty reports whether no login should be attempted.
func (c Credentials) Empty() bool {
	return c.Account == "" || c.Password == ""
}

// LogValue keeps credentials out of logs even when logged as a whole.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.Bool("configured", !c.Empty()))
}

// Authenticator opens a target page and makes sure the session is logged in.
type Authenticator struct {
	paths  paths
	timing Timing
	creds  Credentials
	logger *slog.Logger
}

// Authenticator returns an Authenticator logging in with creds.
func (e *Engine) Authenticator(creds Credentials) *Authenticator {
	return &Authenticator{
		paths:  e.paths,
		timing: e.timing,
		creds:  creds,
		logger: e.logger,
	}
}

// Establish navigates p to targetURL and logs in unless the session already
// is. Without credentials it continues anonymously. It reports whether the
// page ends up logged in.
//
// Any login control that cannot be located in time yields an *AuthError.
func (a *Authenticator) Establish(ctx context.Context, p page.Page, targetURL string) (bool, error) {
	if err := p.Navigate(ctx, targetURL); err != nil {
		return false, fmt.Errorf("open target: %w", err)
	}
	if _, err := a.timing.Ready.Find(ctx, p, a.paths.commentApp); err != nil {
		return false, fmt.Errorf("page not ready: %w", err)
	}

	avatar, err := a.timing.Probe.Lookup(ctx, p, a.paths.loggedIn)
	if err != nil {
		return false, fmt.Errorf("check login state: %w", err)
	}
	if avatar != nil {
		a.logger.Info("session already logged in")
		return true, nil
	}

	if a.creds.Empty() {
		a.logger.Warn("no credentials configured, crawling anonymously")
		return false, nil
	}

	a.logger.Info("logging in", "account", a.creds.Account)

	if err := a.click(ctx, p, "login entry", a.paths.loginEntry); err != nil {
		return false, err
	}
	if err := a.input(ctx, p, "account field", a.paths.accountField, a.creds.Account); err != nil {
		return false, err
	}
	if err := a.input(ctx, p, "password field", a.paths.passwordField, a.creds.Password); err != nil {
		return false, err
	}
	if err := a.click(ctx, p, "submit", a.paths.submit); err != nil {
		return false, err
	}

	err = a.timing.Login.Until(ctx, "login dialog to close", func(ctx context.Context) (bool, error) {
		_, err := page.Resolve(ctx, p, a.paths.loginDialog)
		if err == nil {
			return false, nil
		}
		if isAbsent(err) {
			return true, nil
		}
		return false, err
	})
	if err != nil {
		return false, &AuthError{Step: "confirm", Err: err}
	}

	a.logger.Info("logged in")
	return true, nil
}

func (a *Authenticator) click(ctx context.Context, p page.Page, step string, path page.Path) error {
	el, err := a.timing.Ready.Find(ctx, p, path)
	if err != nil {
		return &AuthError{Step: step, Err: err}
	}
	if err := el.Click(ctx); err != nil {
		return &AuthError{Step: step, Err: err}
	}
	return nil
}

func (a *Authenticator) input(ctx context.Context, p page.Page, step string, path page.Path, text string) error {
	el, err := a.timing.Ready.Find(ctx, p, path)
	if err != nil {
		return &AuthError{Step: step, Err: err}
	}
	if err := el.Input(ctx, text); err != nil {
		return &AuthError{Step: step, Err: err}
	}
	return nil
}
