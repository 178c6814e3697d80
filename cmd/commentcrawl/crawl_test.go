package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/commentcrawl/internal/config"
	"github.com/nao1215/commentcrawl/internal/crawler"
	"github.com/nao1215/commentcrawl/internal/model"
	"github.com/nao1215/commentcrawl/internal/page"
	"github.com/nao1215/commentcrawl/internal/page/pagetest"
	"github.com/nao1215/commentcrawl/internal/pipeline"
	"github.com/nao1215/commentcrawl/internal/sink"
)

const (
	videoA = "BV1xx411c7mD"
	videoB = "BV1GJ411x7h7"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noEnv(string) (string, bool) { return "", false }

// writeConfigFile writes content to a config file in a temp dir.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestNewCrawlCmd tests the crawl command flags.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"output", "o", "[]"},
		{"output-dir", "d", config.DefaultOutputDir},
		{"format", "f", config.DefaultFormat},
		{"concurrency", "n", "1"},
		{"timeout", "t", config.DefaultTimeout.String()},
		{"max-threads", "", "0"},
		{"max-reply-pages", "", "0"},
		{"on-extraction-error", "", ""},
		{"headful", "", "false"},
		{"session-file", "", ""},
		{"no-session", "", "false"},
		{"config", "c", ""},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"report-file", "r", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, want %q", flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("default = %q, want %q", flag.DefValue, tt.defValue)
			}
		})
	}
}

// TestBuildCrawlConfig tests merging flags, the config file and the environment.
func TestBuildCrawlConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags are applied", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfigFile(t, "defaults: {}\n")

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{
			"-c", cfgPath,
			"-o", "a.xlsx", "-o", "sqlite://",
			"-d", "out", "-f", "CSV", "-n", "3", "-t", "1h",
			"--max-threads", "10", "--max-reply-pages", "4",
			"--on-extraction-error", "skip", "--headful",
			"--session-file", "s.json", "-j", "-r", "report.json",
		}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildCrawlConfig(cmd, []string{videoA}, noEnv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Outputs) != 2 || cfg.Outputs[1] != "sqlite://" {
			t.Errorf("Outputs = %v", cfg.Outputs)
		}
		if cfg.OutputDir != "out" || cfg.Format != "csv" {
			t.Errorf("OutputDir/Format = %q/%q", cfg.OutputDir, cfg.Format)
		}
		if cfg.Concurrency != 3 || cfg.Timeout != time.Hour {
			t.Errorf("Concurrency/Timeout = %d/%v", cfg.Concurrency, cfg.Timeout)
		}
		if cfg.MaxThreads != 10 || cfg.MaxReplyPages != 4 || cfg.ExtractionPolicy != "skip" {
			t.Errorf("limits = %d/%d/%q", cfg.MaxThreads, cfg.MaxReplyPages, cfg.ExtractionPolicy)
		}
		if cfg.Headless {
			t.Error("expected --headful to disable headless")
		}
		if cfg.SessionFile != "s.json" || !cfg.JSONReport || cfg.ReportFile != "report.json" {
			t.Errorf("session/report = %q/%v/%q", cfg.SessionFile, cfg.JSONReport, cfg.ReportFile)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != videoA {
			t.Errorf("Targets = %v", cfg.Targets)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("no-session disables persistence", func(t *testing.T) {
		t.Parallel()
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", writeConfigFile(t, "{}\n"), "--no-session"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCrawlConfig(cmd, nil, noEnv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SessionFile != "" {
			t.Errorf("SessionFile = %q, want empty", cfg.SessionFile)
		}
	})

	t.Run("credentials from file are overridden by environment", func(t *testing.T) {
		t.Parallel()
		cfgPath := writeConfigFile(t, "account:\n  username: file-user\n  password: file-pw\n")
		env := map[string]string{config.EnvPassword: "env-pw"}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", cfgPath}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildCrawlConfig(cmd, []string{videoA}, func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Account != "file-user" || cfg.Password != "env-pw" {
			t.Errorf("credentials = %q/%q", cfg.Account, cfg.Password)
		}
		if cfg.File == nil {
			t.Error("expected the config file to be attached")
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatal(err)
		}
		_, err := buildCrawlConfig(cmd, []string{videoA}, noEnv)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", writeConfigFile(t, "targets: [}")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildCrawlConfig(cmd, []string{videoA}, noEnv); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

// TestRunCrawlCmdValidation tests that invalid configurations fail before a browser starts.
func TestRunCrawlCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no targets", []string{}, config.ErrNoTarget},
		{"conflicting formats", []string{"-j", "-m", videoA}, config.ErrConflictingReportFormats},
		{"unknown format", []string{"-f", "ods", videoA}, config.ErrInvalidFormat},
		{"unknown policy", []string{"--on-extraction-error", "retry", videoA}, config.ErrInvalidExtractionPolicy},
		{"one xlsx for two targets", []string{"-o", "comments.xlsx", videoA, videoB}, config.ErrSharedFileOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := NewCrawlCmd()
			cmd.SetArgs(append([]string{"-c", writeConfigFile(t, "{}\n")}, tt.args...))
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			if err := cmd.Execute(); !errors.Is(err, tt.want) {
				t.Errorf("Execute() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestParseTargets tests converting arguments into targets.
func TestParseTargets(t *testing.T) {
	t.Parallel()

	targets, err := parseTargets([]string{videoA, "https://www.bilibili.com/video/" + videoB + "/?p=2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 2 || targets[0].ID != videoA || targets[1].ID != videoB {
		t.Errorf("targets = %+v", targets)
	}

	if _, err := parseTargets([]string{videoA, "ftp://example.com"}); !errors.Is(err, model.ErrInvalidTarget) {
		t.Errorf("error = %v, want ErrInvalidTarget", err)
	}
}

// TestPrepareFileOutputs tests creating directories for file outputs.
func TestPrepareFileOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "out.xlsx")
	if err := prepareFileOutputs([]string{nested, "nats://localhost:4222/x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(nested)); err != nil || !info.IsDir() {
		t.Errorf("expected %s to be created", filepath.Dir(nested))
	}

	if err := prepareFileOutputs([]string{"out.ods"}); !errors.Is(err, sink.ErrUnsupportedOutput) {
		t.Errorf("error = %v, want ErrUnsupportedOutput", err)
	}
}

// TestNewSinkOpener tests that the opener tags the report and writes to the file.
func TestNewSinkOpener(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Format = "csv"

	target := model.Target{URL: "https://www.bilibili.com/video/" + videoA + "/", ID: videoA}
	rep := model.NewCrawlReport(target)

	s, err := newSinkOpener(cfg, target, discardLogger())(context.Background(), rep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.RunID == "" {
		t.Error("expected a run id")
	}
	want := filepath.Join(cfg.OutputDir, videoA+".csv")
	if rep.Output != want {
		t.Errorf("Output = %q, want %q", rep.Output, want)
	}

	if err := s.Emit(context.Background(), []model.CommentRecord{{ID: 1, Contents: "hi"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	records, err := sink.ReadTable(context.Background(), want)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(records) != 1 || records[0].Contents != "hi" {
		t.Errorf("records = %+v", records)
	}
}

// fakePages opens a fresh in-memory widget per tab.
type fakePages struct {
	widget pagetest.Widget
}

func (f *fakePages) OpenPage(context.Context) (page.Page, func() error, error) {
	return pagetest.NewWidgetPage(f.widget), func() error { return nil }, nil
}

func exampleWidget() pagetest.Widget {
	return pagetest.Widget{
		Threads: []pagetest.Thread{
			{
				Text:     "A",
				ViewMore: true,
				Pages: [][]pagetest.Reply{
					{{Text: "a1"}, {Text: "a2"}},
					{{Text: "a3"}},
				},
			},
			{Text: "B"},
		},
	}
}

// TestCrawlTargets runs the whole batch against in-memory pages.
func TestCrawlTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.OutputDir = dir
	cfg.SessionFile = ""
	cfg.Concurrency = 2
	cfg.Targets = []string{videoA, videoB}

	targets, err := parseTargets(cfg.Targets)
	if err != nil {
		t.Fatal(err)
	}
	engines := make(map[string]*crawler.Engine, len(targets))
	for _, tg := range targets {
		engines[tg.URL] = crawler.NewEngine(crawler.WithTiming(crawler.Timing{}), crawler.WithLogger(discardLogger()))
	}

	bp := pipeline.NewBatchProcessor(
		newFactory(cfg, &fakePages{widget: exampleWidget()}, nil, engines, discardLogger()),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(discardLogger()),
	)

	var reports, progress bytes.Buffer
	if err := crawlTargets(context.Background(), bp, targets, newCrawlWriter(cfg, &reports), &progress, discardLogger()); err != nil {
		t.Fatalf("crawlTargets() error = %v", err)
	}

	for _, id := range []string{videoA, videoB} {
		records, err := sink.ReadTable(context.Background(), filepath.Join(dir, id+".xlsx"))
		if err != nil {
			t.Fatalf("ReadTable(%s) error = %v", id, err)
		}
		if len(records) != 5 {
			t.Fatalf("%s: got %d rows, want 5", id, len(records))
		}
		if records[3].Contents != "a3" || records[3].ParentID != 1 {
			t.Errorf("%s: row 4 = %+v", id, records[3])
		}
		if records[4].Contents != "B" || records[4].IsReply() {
			t.Errorf("%s: row 5 = %+v", id, records[4])
		}
	}

	if !strings.Contains(progress.String(), "[1/2]") || !strings.Contains(progress.String(), "[2/2]") {
		t.Errorf("progress = %q", progress.String())
	}
	if !strings.Contains(reports.String(), videoA) || !strings.Contains(reports.String(), videoB) {
		t.Errorf("reports do not mention both targets:\n%s", reports.String())
	}
}

// TestCrawlTargetsFailure tests that a failed target is reported as an error.
func TestCrawlTargetsFailure(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Outputs = []string{"out.ods"}
	cfg.SessionFile = ""

	targets, err := parseTargets([]string{videoA})
	if err != nil {
		t.Fatal(err)
	}
	engines := map[string]*crawler.Engine{
		targets[0].URL: crawler.NewEngine(crawler.WithTiming(crawler.Timing{}), crawler.WithLogger(discardLogger())),
	}
	bp := pipeline.NewBatchProcessor(
		newFactory(cfg, &fakePages{widget: exampleWidget()}, nil, engines, discardLogger()),
		pipeline.WithBatchLogger(discardLogger()),
	)

	var reports bytes.Buffer
	err = crawlTargets(context.Background(), bp, targets, newCrawlWriter(cfg, &reports), io.Discard, discardLogger())
	if !errors.Is(err, ErrCrawlFailed) {
		t.Errorf("crawlTargets() error = %v, want ErrCrawlFailed", err)
	}
	if reports.Len() == 0 {
		t.Error("expected a report for the failed target")
	}
}

// TestNewCrawlWriter tests the writer selection.
func TestNewCrawlWriter(t *testing.T) {
	t.Parallel()

	target := model.Target{URL: "https://www.bilibili.com/video/" + videoA + "/", ID: videoA}

	tests := []struct {
		name   string
		modify func(*config.Config)
		want   string
	}{
		{"text", func(*config.Config) {}, "CRAWL REPORT"},
		{"json", func(c *config.Config) { c.JSONReport = true }, `"version"`},
		{"markdown", func(c *config.Config) { c.MarkdownReport = true }, "# "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewConfig()
			tt.modify(cfg)

			var buf bytes.Buffer
			if _, err := newCrawlWriter(cfg, &buf).WriteCrawl(model.NewCrawlReport(target)); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output does not contain %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

// TestOpenReportOutput tests the report destination.
func TestOpenReportOutput(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	w, closeOut, err := openReportOutput("", &stdout)
	if err != nil {
		t.Fatal(err)
	}
	closeOut()
	if w != &stdout {
		t.Error("expected stdout without a path")
	}

	path := filepath.Join(t.TempDir(), "reports", "crawl.txt")
	w, closeOut, err = openReportOutput(path, &stdout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := io.WriteString(w, "hello"); err != nil {
		t.Fatal(err)
	}
	closeOut()

	got, err := os.ReadFile(path)
	if err != nil || string(got) != "hello" {
		t.Errorf("file content = %q, %v", got, err)
	}
}
