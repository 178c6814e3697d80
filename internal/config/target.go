package config

import (
	"path/filepath"
	"time"

	"github.com/nao1215/commentcrawl/internal/crawler"
	"github.com/nao1215/commentcrawl/internal/page"
)

// Account is the login section of the configuration file.
type Account struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// TimingConfig overrides the bounded waits of the crawler.
// Durations use Go syntax ("500ms", "10s"). Zero keeps the default.
type TimingConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Ready    time.Duration `yaml:"ready,omitempty"`
	Probe    time.Duration `yaml:"probe,omitempty"`
	Settle   time.Duration `yaml:"settle,omitempty"`
	Login    time.Duration `yaml:"login,omitempty"`
}

// Apply returns base with the configured durations replaced.
func (tc TimingConfig) Apply(base crawler.Timing) crawler.Timing {
	set := func(p *page.Poller, timeout time.Duration) {
		if tc.Interval > 0 {
			p.Interval = tc.Interval
		}
		if timeout > 0 {
			p.Timeout = timeout
		}
	}
	set(&base.Ready, tc.Ready)
	set(&base.Probe, tc.Probe)
	set(&base.Settle, tc.Settle)
	set(&base.Login, tc.Login)
	return base
}

// TargetConfig holds target-specific configuration.
// This allows customizing crawl behavior per video.
type TargetConfig struct {
	// MaxThreads overrides the global thread limit for this target.
	MaxThreads int `yaml:"maxThreads,omitempty"`

	// MaxReplyPages overrides the global reply page limit for this target.
	MaxReplyPages int `yaml:"maxReplyPages,omitempty"`

	// OnExtractionError is "abort" or "skip".
	OnExtractionError string `yaml:"onExtractionError,omitempty"`

	// Outputs replaces the default output of this target with sink URIs.
	Outputs []string `yaml:"outputs,omitempty"`
}

// File represents the structure of the .commentcrawl configuration file.
type File struct {
	// Account is used to log in. COMMENTCRAWL_ACCOUNT and
	// COMMENTCRAWL_PASSWORD take precedence.
	Account Account `yaml:"account,omitempty"`

	// Selectors override individual widget selectors when the site markup changes.
	Selectors crawler.Selectors `yaml:"selectors,omitempty"`

	// Timing overrides the crawler waits.
	Timing TimingConfig `yaml:"timing,omitempty"`

	// Defaults apply to every target unless overridden in Targets.
	Defaults TargetConfig `yaml:"defaults,omitempty"`

	// Targets maps target ids (video ids) to their configuration.
	Targets map[string]TargetConfig `yaml:"targets,omitempty"`
}

// GetTargetConfig returns the configuration for a specific target id.
// It merges the target-specific configuration with defaults.
func (cf *File) GetTargetConfig(id string) TargetConfig {
	result := cf.Defaults

	if tc, ok := cf.Targets[id]; ok {
		if tc.MaxThreads != 0 {
			result.MaxThreads = tc.MaxThreads
		}
		if tc.MaxReplyPages != 0 {
			result.MaxReplyPages = tc.MaxReplyPages
		}
		if tc.OnExtractionError != "" {
			result.OnExtractionError = tc.OnExtractionError
		}
		if len(tc.Outputs) > 0 {
			result.Outputs = tc.Outputs
		}
	}

	return result
}

// EngineOptions returns the crawler options for target id.
// Values set in c win; unset ones fall back to the file's per-target
// configuration, then its defaults, then the crawler defaults.
func (c *Config) EngineOptions(id string) ([]crawler.Option, error) {
	maxThreads := c.MaxThreads
	maxReplyPages := c.MaxReplyPages
	policyName := c.ExtractionPolicy
	selectors := crawler.DefaultSelectors()
	timing := crawler.DefaultTiming()

	if c.File != nil {
		tc := c.File.GetTargetConfig(id)
		if tc.MaxThreads != 0 && maxThreads == 0 {
			maxThreads = tc.MaxThreads
		}
		if tc.MaxReplyPages != 0 && maxReplyPages == 0 {
			maxReplyPages = tc.MaxReplyPages
		}
		if tc.OnExtractionError != "" && policyName == "" {
			policyName = tc.OnExtractionError
		}
		selectors = c.File.Selectors.Merge(selectors)
		timing = c.File.Timing.Apply(timing)
	}

	policy, err := crawler.ParseExtractionPolicy(policyName)
	if err != nil {
		return nil, err
	}

	opts := []crawler.Option{
		crawler.WithSelectors(selectors),
		crawler.WithTiming(timing),
		crawler.WithMaxThreads(maxThreads),
		crawler.WithExtractionPolicy(policy),
	}
	if maxReplyPages > 0 {
		opts = append(opts, crawler.WithMaxReplyPages(maxReplyPages))
	}
	return opts, nil
}

// OutputsFor returns the sink URIs of target id: the command line outputs,
// then the ones configured for the target, then <OutputDir>/<id>.<Format>.
func (c *Config) OutputsFor(id string) []string {
	if len(c.Outputs) > 0 {
		return c.Outputs
	}
	if c.File != nil {
		if uris := c.File.GetTargetConfig(id).Outputs; len(uris) > 0 {
			return uris
		}
	}
	return []string{filepath.Join(c.OutputDir, id+"."+c.Format)}
}
