package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/commentcrawl/internal/crawler"
	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/sink"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "commentcrawl"

	// DefaultOutputDir is where default output files are written.
	DefaultOutputDir = "."

	// DefaultFormat is the file format of default outputs.
	// The first consumers of the tables open them in spreadsheet tools, so
	// xlsx is the default and csv an opt-in.
	DefaultFormat = "xlsx"

	// DefaultConcurrency crawls one target at a time.
	// Each concurrent target opens its own browser tab; the comment widget is
	// heavy enough that more than a few tabs slow every crawl down.
	DefaultConcurrency = 1

	// DefaultTimeout bounds the crawl of a single target.
	// Comment sections with tens of thousands of replies take hours to walk,
	// so the limit is generous and only stops crawls that are truly stuck.
	DefaultTimeout = 6 * time.Hour

	// DefaultSessionFileName is the cookie file inside the XDG state directory.
	DefaultSessionFileName = "session.json"

	// EnvAccount and EnvPassword supply the login credentials.
	EnvAccount  = "COMMENTCRAWL_ACCOUNT"
	EnvPassword = "COMMENTCRAWL_PASSWORD"
)

// Config holds all configuration options for commentcrawl.
// This struct is populated from CLI flags, the configuration file and the
// environment, and passed through the application instead of global state.
//
// Design decision: A single flat struct, as the number of options is small.
// Per-target overrides live in File and are merged with GetTargetConfig.
type Config struct {
	// Targets are the pages to crawl, as video ids or URLs.
	Targets []string

	// Outputs are explicit sink URIs (file paths, sqlite://, postgres://,
	// mongodb://, nats://). When empty every target is written to
	// <OutputDir>/<target id>.<Format>.
	Outputs []string

	// OutputDir is the directory of default output files.
	OutputDir string

	// Format is "xlsx" or "csv" and selects the default output file type.
	Format string

	// Concurrency is the number of targets crawled at the same time.
	Concurrency int

	// Timeout bounds the crawl of a single target. Zero disables the limit.
	Timeout time.Duration

	// Headless hides the browser window. Logging in for the first time may
	// need a visible window to solve the captcha.
	Headless bool

	// BrowserBin is the browser executable. Empty lets rod find or download one.
	BrowserBin string

	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string

	// UserDataDir is the browser profile directory.
	UserDataDir string

	// SessionFile stores the cookies of a logged-in session between runs.
	// Empty disables session persistence.
	SessionFile string

	// MaxThreads stops the crawl after this many threads. Zero defers to the
	// configuration file, where zero means all.
	MaxThreads int

	// MaxReplyPages caps the reply pages visited per thread. Zero uses the
	// crawler default.
	MaxReplyPages int

	// ExtractionPolicy is "abort" or "skip" and decides what happens to a
	// thread whose required fields are missing. Empty defers to the
	// configuration file, and aborts when that is silent too.
	ExtractionPolicy string

	// Account and Password log the browser in. They come from the
	// configuration file or the environment, never from flags.
	Account  string
	Password string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON writes logs as JSON lines instead of text.
	LogJSON bool

	// JSONReport and MarkdownReport select the crawl report format.
	// They are mutually exclusive; neither means plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the crawl report to a file instead of stdout.
	ReportFile string

	// DataDir is the directory of the default SQLite database used by the
	// "sqlite://" output.
	DataDir string

	// ConfigFilePath is the path to the configuration file. If empty, the
	// tool searches for .commentcrawl in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// File holds the loaded configuration file, nil when none was found.
	File *File
}

// NewConfig creates a new Config with default values.
//
// Design decision: A constructor instead of zero values because several
// defaults are non-zero, and the constructor documents them in one place.
func NewConfig() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		Format:      DefaultFormat,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		Headless:    true,
		SessionFile: filepath.Join(XDGStateDir(), DefaultSessionFileName),
		DataDir:     XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for commentcrawl.
// On Linux: ~/.local/share/commentcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for commentcrawl.
// On Linux: ~/.config/commentcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the XDG state directory for commentcrawl.
// It holds the saved browser session.
// On Linux: ~/.local/state/commentcrawl
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Credentials returns the login credentials.
func (c *Config) Credentials() crawler.Credentials {
	return crawler.Credentials{Account: c.Account, Password: c.Password}
}

// Policy returns the parsed extraction policy.
func (c *Config) Policy() (crawler.ExtractionPolicy, error) {
	return crawler.ParseExtractionPolicy(c.ExtractionPolicy)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: Validation runs once after flags, file and environment
// are merged, before the browser is launched, so mistakes fail fast.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.Format != "xlsx" && c.Format != "csv" {
		return ErrInvalidFormat
	}

	if c.MaxThreads < 0 {
		return ErrInvalidMaxThreads
	}

	if c.MaxReplyPages < 0 {
		return ErrInvalidMaxReplyPages
	}

	if _, err := c.Policy(); err != nil {
		return ErrInvalidExtractionPolicy
	}

	// Half a credential pair would silently crawl anonymously.
	if (c.Account == "") != (c.Password == "") {
		return ErrIncompleteCredentials
	}

	return c.validateFileOutputs()
}

// validateFileOutputs rejects an xlsx or csv file written by more than one
// target. Each file sink holds its own copy of the table and numbers rows
// from 1, so a second writer would overwrite or renumber the first one's rows.
// Database and broker outputs are shared safely.
func (c *Config) validateFileOutputs() error {
	owners := make(map[string]string)
	for _, arg := range c.Targets {
		t, err := model.ParseTarget(arg)
		if err != nil {
			return err
		}
		for _, uri := range c.OutputsFor(t.ID) {
			kind, err := sink.KindOf(uri)
			if err != nil || (kind != sink.KindXLSX && kind != sink.KindCSV) {
				continue
			}
			path := filepath.Clean(uri)
			if owner, ok := owners[path]; ok {
				return fmt.Errorf("%w: %s is written by %s and %s", ErrSharedFileOutput, uri, owner, t.URL)
			}
			owners[path] = t.URL
		}
	}
	return nil
}
