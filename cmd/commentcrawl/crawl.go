package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/commentcrawl/internal/browser"
	"github.com/nao1215/commentcrawl/internal/config"
	"github.com/nao1215/commentcrawl/internal/crawler"
	"github.com/nao1215/commentcrawl/internal/log"
	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/pipeline"
	"github.com/nao1215/commentcrawl/internal/report"
	"github.com/nao1215/commentcrawl/internal/sink"
)

// ErrCrawlFailed is returned when at least one target did not finish cleanly.
// Rows flushed before the failure are kept in the outputs.
var ErrCrawlFailed = errors.New("crawl failed")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [video-id or URL]...",
		Short: "Crawl the comment sections of one or more videos",
		Long: `Crawl opens every target in a browser, logs in when credentials are
configured, and walks the comment feed thread by thread. Each thread's
comment and all of its replies are written as one batch as soon as the
thread is done.

Targets are bare video ids (BV...) or page URLs. Without --output each target
is written to <output-dir>/<video id>.xlsx (or .csv with --format csv).

Outputs (-o, repeatable):
  out/comments.xlsx                         spreadsheet, appended to
  out/comments.csv                          CSV with a UTF-8 BOM, appended to
  sqlite://                                 database in the XDG data directory
  sqlite:///path/to/crawl.db                database at a path
  postgres://user@host:5432/db              table crawl_comments
  mongodb://host:27017/db?collection=name   one document per row
  nats://host:4222/subject/parts            one message per thread

Credentials come from the configuration file or from COMMENTCRAWL_ACCOUNT and
COMMENTCRAWL_PASSWORD. The logged-in session is saved and reused by later runs.

Examples:
  # Crawl one video into BV1xx411c7mD.xlsx
  commentcrawl crawl BV1xx411c7mD

  # Crawl two videos at once into a CSV each, in ./out
  commentcrawl crawl -n 2 -f csv -d out BV1xx411c7mD BV1GJ411x7h7

  # Write both a spreadsheet and the SQLite history
  commentcrawl crawl -o comments.xlsx -o sqlite:// BV1xx411c7mD

  # Show the browser to solve a login captcha
  commentcrawl crawl --headful BV1xx411c7mD`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringArrayP("output", "o", nil,
		"Output URI; repeat for several outputs. An xlsx or csv file takes one video (default: <output-dir>/<video id>.<format>)")
	cmd.Flags().StringP("output-dir", "d", config.DefaultOutputDir,
		"Directory of default output files")
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Default output format: xlsx or csv")

	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of videos crawled at the same time")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time limit per video (0 disables it)")
	cmd.Flags().Int("max-threads", 0,
		"Stop after this many threads per video (0 crawls all)")
	cmd.Flags().Int("max-reply-pages", 0,
		"Maximum reply pages read per thread (0 uses the built-in limit)")
	cmd.Flags().String("on-extraction-error", "",
		"What to do with a thread that cannot be read: abort or skip (default abort)")

	cmd.Flags().Bool("headful", false,
		"Show the browser window")
	cmd.Flags().String("browser", "",
		"Browser executable (default: found or downloaded automatically)")
	cmd.Flags().String("control-url", "",
		"DevTools URL of a running browser to attach to")
	cmd.Flags().String("user-data-dir", "",
		"Browser profile directory")
	cmd.Flags().String("session-file", "",
		"Cookie file of the logged-in session (default: XDG state directory)")
	cmd.Flags().Bool("no-session", false,
		"Neither restore nor save the login session")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .commentcrawl in current or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Print the crawl report as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the crawl report as Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "r", "",
		"Write the crawl report to a file instead of stdout")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args, os.LookupEnv)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose,
		log.WithJSON(cfg.LogJSON),
		log.WithSecrets(cfg.Account, cfg.Password),
	)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing the current batch...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildCrawlConfig creates a Config from cobra command flags, the
// configuration file and the environment, in that order of precedence.
func buildCrawlConfig(cmd *cobra.Command, args []string, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Outputs, err = flags.GetStringArray("output"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.Format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	cfg.Format = strings.ToLower(strings.TrimPrefix(cfg.Format, "."))
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxThreads, err = flags.GetInt("max-threads"); err != nil {
		return nil, err
	}
	if cfg.MaxReplyPages, err = flags.GetInt("max-reply-pages"); err != nil {
		return nil, err
	}
	if cfg.ExtractionPolicy, err = flags.GetString("on-extraction-error"); err != nil {
		return nil, err
	}

	headful, err := flags.GetBool("headful")
	if err != nil {
		return nil, err
	}
	cfg.Headless = !headful
	if cfg.BrowserBin, err = flags.GetString("browser"); err != nil {
		return nil, err
	}
	if cfg.ControlURL, err = flags.GetString("control-url"); err != nil {
		return nil, err
	}
	if cfg.UserDataDir, err = flags.GetString("user-data-dir"); err != nil {
		return nil, err
	}

	sessionFile, err := flags.GetString("session-file")
	if err != nil {
		return nil, err
	}
	if sessionFile != "" {
		cfg.SessionFile = sessionFile
	}
	noSession, err := flags.GetBool("no-session")
	if err != nil {
		return nil, err
	}
	if noSession {
		cfg.SessionFile = ""
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicitly named configuration file must exist; the implicit
	// search is allowed to find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(cf)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplyEnv(lookupEnv)
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogJSON = getLogJSONFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// parseTargets turns command line arguments into targets.
func parseTargets(args []string) ([]model.Target, error) {
	targets := make([]model.Target, 0, len(args))
	for _, arg := range args {
		t, err := model.ParseTarget(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// newSinkOpener returns the pipeline step that opens the outputs of t.
// The run id it assigns ties database rows to the crawl report.
func newSinkOpener(cfg *config.Config, t model.Target, logger *slog.Logger) pipeline.SinkOpener {
	return func(ctx context.Context, rep *model.CrawlReport) (sink.Sink, error) {
		uris := cfg.OutputsFor(t.ID)
		if err := prepareFileOutputs(uris); err != nil {
			return nil, err
		}

		rep.RunID = uuid.NewString()
		rep.Output = strings.Join(uris, ", ")

		return sink.OpenAll(ctx, uris, sink.Options{
			Target:  t,
			RunID:   rep.RunID,
			DataDir: cfg.DataDir,
			Logger:  logger,
		})
	}
}

// prepareFileOutputs creates the parent directories of file outputs.
func prepareFileOutputs(uris []string) error {
	for _, uri := range uris {
		kind, err := sink.KindOf(uri)
		if err != nil {
			return err
		}
		if kind != sink.KindXLSX && kind != sink.KindCSV {
			continue
		}
		if dir := filepath.Dir(uri); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
	}
	return nil
}

// newEngines builds one engine per target so per-video overrides from the
// configuration file apply. Engines are keyed by target URL.
func newEngines(cfg *config.Config, targets []model.Target, logger *slog.Logger) (map[string]*crawler.Engine, error) {
	engines := make(map[string]*crawler.Engine, len(targets))
	for _, t := range targets {
		opts, err := cfg.EngineOptions(t.ID)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.ID, err)
		}
		engines[t.URL] = crawler.NewEngine(append(opts, crawler.WithLogger(logger))...)
	}
	return engines, nil
}

// newFactory returns the pipeline factory used by the batch processor.
func newFactory(cfg *config.Config, pages pipeline.PageOpener, sessions pipeline.SessionSaver,
	engines map[string]*crawler.Engine, logger *slog.Logger) pipeline.Factory {
	creds := cfg.Credentials()
	return func(t model.Target) *pipeline.Pipeline {
		engine := engines[t.URL]
		deps := pipeline.Deps{
			Pages:       pages,
			OpenSink:    newSinkOpener(cfg, t, logger),
			Auth:        engine.Authenticator(creds),
			Crawler:     engine,
			SessionFile: cfg.SessionFile,
			Logger:      logger,
		}
		if cfg.SessionFile != "" {
			deps.Sessions = sessions
		}
		return pipeline.NewCrawlPipeline(t, deps, pipeline.WithTimeout(cfg.Timeout))
	}
}

// runCrawl crawls every configured target with a shared browser.
func runCrawl(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	targets, err := parseTargets(cfg.Targets)
	if err != nil {
		return err
	}

	engines, err := newEngines(cfg, targets, logger)
	if err != nil {
		return err
	}

	out, closeOut, err := openReportOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOut()
	writer := newCrawlWriter(cfg, out)
	if cfg.ReportFile != "" {
		// The file gets the selected format, the terminal a readable copy.
		writer = report.NewMultiWriter(writer, report.NewSimpleWriter(stdout))
	}

	logger.Info("starting crawl",
		"targets", len(targets),
		"concurrency", cfg.Concurrency,
		"headless", cfg.Headless,
		"logged_in", !cfg.Credentials().Empty(),
	)

	b, err := browser.Launch(ctx, browser.Options{
		Headless:    cfg.Headless,
		Bin:         cfg.BrowserBin,
		ControlURL:  cfg.ControlURL,
		UserDataDir: cfg.UserDataDir,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("failed to close browser", "error", err)
		}
	}()

	if cfg.SessionFile != "" {
		if _, err := b.RestoreSession(cfg.SessionFile); err != nil {
			logger.Warn("could not restore session, logging in again", "path", cfg.SessionFile, "error", err)
		}
	}

	bp := pipeline.NewBatchProcessor(
		newFactory(cfg, b, b, engines, logger),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	return crawlTargets(ctx, bp, targets, writer, stdout, logger)
}

// crawlTargets runs the batch and writes one report per finished target.
func crawlTargets(ctx context.Context, bp *pipeline.BatchProcessor, targets []model.Target,
	writer report.Writer, progress io.Writer, logger *slog.Logger) error {
	startTime := time.Now()

	var (
		mu     sync.Mutex
		failed int
	)
	err := bp.ProcessBatchWithCallback(ctx, targets, func(rep *model.CrawlReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		if rep.Error != nil {
			failed++
		}
		if len(targets) > 1 {
			fmt.Fprintf(progress, "[%d/%d] %s: %d rows\n", index+1, len(targets), rep.TargetID, rep.Stats.Rows)
		}
		if _, err := writer.WriteCrawl(rep); err != nil {
			logger.Error("report failed", "target", rep.TargetID, "error", err)
		}
	})
	if err != nil {
		return err
	}

	logger.Info("crawl finished",
		"targets", len(targets),
		"failed", failed,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d targets", ErrCrawlFailed, failed, len(targets))
	}
	return nil
}

// newCrawlWriter returns the report writer selected by the config.
func newCrawlWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput returns the report destination: path when set, stdout
// otherwise. The returned function closes the file.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
