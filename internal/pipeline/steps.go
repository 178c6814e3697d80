package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/commentcrawl/internal/crawler"
	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/page"
	"github.com/nao1215/commentcrawl/internal/sink"
)

// ErrNoPage is returned by a step that needs the tab when no step opened it.
var ErrNoPage = errors.New("no page is open")

// ErrNoSink is returned by the crawl step when no step opened a sink.
var ErrNoSink = errors.New("no sink is open")

// PageOpener opens a browser tab. *browser.Browser implements it.
type PageOpener interface {
	OpenPage(ctx context.Context) (page.Page, func() error, error)
}

// Authenticator brings a tab to the target in a logged-in state.
// *crawler.Authenticator implements it.
type Authenticator interface {
	Establish(ctx context.Context, p page.Page, targetURL string) (bool, error)
}

// Crawler walks the comment section below root. *crawler.Engine implements it.
type Crawler interface {
	Run(ctx context.Context, root page.Element, out crawler.Sink) (model.CrawlStats, error)
}

// SessionSaver persists the browser's login cookies. *browser.Browser implements it.
type SessionSaver interface {
	SaveSession(path string) error
}

// SinkOpener opens the output for a target.
type SinkOpener func(ctx context.Context, report *model.CrawlReport) (sink.Sink, error)

// Session holds what the steps of one target's pipeline share.
type Session struct {
	Target model.Target
	Page   page.Page
	Sink   sink.Sink

	closePage func() error
}

// NewSession creates the shared state for crawling target.
func NewSession(target model.Target) *Session {
	return &Session{Target: target}
}

// OpenPageStep opens a browser tab for the target.
type OpenPageStep struct {
	opener  PageOpener
	session *Session
}

// NewOpenPageStep creates a step that opens a tab with opener.
func NewOpenPageStep(opener PageOpener, session *Session) *OpenPageStep {
	return &OpenPageStep{opener: opener, session: session}
}

// Name returns the step name.
func (s *OpenPageStep) Name() string {
	return "open_page"
}

// Do opens the tab.
func (s *OpenPageStep) Do(ctx context.Context, _ *model.CrawlReport) error {
	p, closeFn, err := s.opener.OpenPage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	s.session.Page = p
	s.session.closePage = closeFn
	return nil
}

// OpenSinkStep opens the output sink for the target.
type OpenSinkStep struct {
	open    SinkOpener
	session *Session
}

// NewOpenSinkStep creates a step that opens the sink with open.
func NewOpenSinkStep(open SinkOpener, session *Session) *OpenSinkStep {
	return &OpenSinkStep{open: open, session: session}
}

// Name returns the step name.
func (s *OpenSinkStep) Name() string {
	return "open_sink"
}

// Do opens the sink.
func (s *OpenSinkStep) Do(ctx context.Context, report *model.CrawlReport) error {
	out, err := s.open(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	s.session.Sink = out
	return nil
}

// AuthenticateStep navigates to the target and logs in when needed.
type AuthenticateStep struct {
	auth    Authenticator
	session *Session
}

// NewAuthenticateStep creates the login step.
func NewAuthenticateStep(auth Authenticator, session *Session) *AuthenticateStep {
	return &AuthenticateStep{auth: auth, session: session}
}

// Name returns the step name.
func (s *AuthenticateStep) Name() string {
	return "authenticate"
}

// Do establishes the session and records whether it is logged in.
func (s *AuthenticateStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if s.session.Page == nil {
		return ErrNoPage
	}
	loggedIn, err := s.auth.Establish(ctx, s.session.Page, s.session.Target.URL)
	report.LoggedIn = loggedIn
	return err
}

// SaveSessionStep stores the browser cookies after a login so that the next
// run can skip the login sequence.
type SaveSessionStep struct {
	saver  SessionSaver
	path   string
	logger *slog.Logger
}

// NewSaveSessionStep creates a step saving cookies to path.
// The step does nothing when path is empty.
func NewSaveSessionStep(saver SessionSaver, path string, logger *slog.Logger) *SaveSessionStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveSessionStep{saver: saver, path: path, logger: logger}
}

// Name returns the step name.
func (s *SaveSessionStep) Name() string {
	return "save_session"
}

// Do saves the session of a logged-in page. A failure is logged and ignored
// because the crawl itself does not depend on it.
func (s *SaveSessionStep) Do(_ context.Context, report *model.CrawlReport) error {
	if s.path == "" || !report.LoggedIn {
		return nil
	}
	if err := s.saver.SaveSession(s.path); err != nil {
		s.logger.Warn("failed to save browser session", "path", s.path, "error", err)
		return nil
	}
	s.logger.Debug("browser session saved", "path", s.path)
	return nil
}

// CrawlStep walks the comment section into the session's sink.
type CrawlStep struct {
	crawler Crawler
	session *Session
}

// NewCrawlStep creates the crawl step.
func NewCrawlStep(c Crawler, session *Session) *CrawlStep {
	return &CrawlStep{crawler: c, session: session}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the traversal. The counters are recorded even when it fails,
// because rows flushed before the failure stay in the sink.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if s.session.Page == nil {
		return ErrNoPage
	}
	if s.session.Sink == nil {
		return ErrNoSink
	}
	stats, err := s.crawler.Run(ctx, s.session.Page, s.session.Sink)
	report.Stats = stats
	return err
}

// CloseSinkStep records the run in sinks that keep run metadata and closes the sink.
type CloseSinkStep struct {
	session *Session
}

// NewCloseSinkStep creates the final sink step.
func NewCloseSinkStep(session *Session) *CloseSinkStep {
	return &CloseSinkStep{session: session}
}

// Name returns the step name.
func (s *CloseSinkStep) Name() string {
	return "close_sink"
}

// Do finishes and closes the sink, if one was opened.
func (s *CloseSinkStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if s.session.Sink == nil {
		return nil
	}
	out := s.session.Sink
	s.session.Sink = nil
	return errors.Join(sink.Finish(ctx, out, report), out.Close())
}

// ClosePageStep closes the tab, if one was opened.
type ClosePageStep struct {
	session *Session
}

// NewClosePageStep creates the final page step.
func NewClosePageStep(session *Session) *ClosePageStep {
	return &ClosePageStep{session: session}
}

// Name returns the step name.
func (s *ClosePageStep) Name() string {
	return "close_page"
}

// Do closes the tab.
func (s *ClosePageStep) Do(context.Context, *model.CrawlReport) error {
	if s.session.closePage == nil {
		return nil
	}
	closeFn := s.session.closePage
	s.session.closePage = nil
	s.session.Page = nil
	return closeFn()
}

// Deps are the collaborators of a crawl pipeline.
type Deps struct {
	Pages       PageOpener
	OpenSink    SinkOpener
	Auth        Authenticator
	Crawler     Crawler
	Sessions    SessionSaver
	SessionFile string
	Logger      *slog.Logger
}

// NewCrawlPipeline assembles the standard pipeline for one target:
// open_page, open_sink, authenticate, save_session (when Sessions is set),
// crawl, then the final close_sink and close_page.
func NewCrawlPipeline(target model.Target, deps Deps, opts ...Option) *Pipeline {
	session := NewSession(target)

	p := New(append([]Option{WithLogger(deps.Logger)}, opts...)...)
	p.AddSteps(
		NewOpenPageStep(deps.Pages, session),
		NewOpenSinkStep(deps.OpenSink, session),
		NewAuthenticateStep(deps.Auth, session),
	)
	if deps.Sessions != nil {
		p.AddStep(NewSaveSessionStep(deps.Sessions, deps.SessionFile, deps.Logger))
	}
	p.AddStep(NewCrawlStep(deps.Crawler, session))
	p.AddFinalSteps(
		NewCloseSinkStep(session),
		NewClosePageStep(session),
	)
	return p
}
