package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/threadtracker/internal/boardtest"
	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/database"
	"github.com/nao1215/threadtracker/internal/model"
	"github.com/nao1215/threadtracker/internal/report"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sampleRows returns a small search result for posterID's partner.
func sampleRows() []boardtest.Row {
	return []boardtest.Row{
		{TopicID: 11, Title: "Into the Woods", ForumID: "4", ForumName: "The Forest", PosterID: "17", PosterName: "Ash", Date: "5 minutes ago"},
		{TopicID: 12, Title: "Tea Time", ForumID: "4", ForumName: "The Forest", PosterID: "42", PosterName: "Rowan", Date: "10 minutes ago"},
		{TopicID: 13, Title: "Old Tale", ForumID: "9", ForumName: "Archive", PosterID: "17", PosterName: "Ash", Date: "20 minutes ago", Closed: true},
	}
}

// trackConfig returns a config for a test board with no request spacing.
func trackConfig(t *testing.T, boardURL string, users ...string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.BoardURL = boardURL
	cfg.Targets = users
	cfg.RequestInterval = 0
	cfg.Timeout = 10 * time.Second
	cfg.DBDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

// TestNewTrackCmd tests the track command flags.
func TestNewTrackCmd(t *testing.T) {
	t.Parallel()

	cmd := NewTrackCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "board", shorthand: "u", defValue: ""},
		{name: "timezone", shorthand: "z", defValue: ""},
		{name: "charset", defValue: ""},
		{name: "proxy", defValue: ""},
		{name: "interval", defValue: config.DefaultRequestInterval.String()},
		{name: "timeout", shorthand: "t", defValue: config.DefaultTimeout.String()},
		{name: "page-limit", shorthand: "p", defValue: "0"},
		{name: "routing", defValue: ""},
		{name: "batch", shorthand: "b", defValue: fmt.Sprint(config.DefaultBatchSize)},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "text", defValue: "false"},
		{name: "template", defValue: ""},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "no-save", defValue: "false"},
		{name: "db-dir", defValue: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestBuildConfig tests flag parsing and config file layering.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".threadtracker")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		return path
	}

	const fileContent = `board:
  url: "https://file.jcink.net"
  timezone: "UTC"
  charset: "windows-1252"
  users: ["7", "8"]
defaults:
  pageLimit: 3
`

	parse := func(t *testing.T, args ...string) (*config.Config, error) {
		t.Helper()
		cmd := NewTrackCmd()
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		return buildConfig(cmd, cmd.Flags().Args())
	}

	t.Run("reads flags", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "")
		cfg, err := parse(t,
			"-c", path,
			"-u", "https://flag.jcink.net",
			"-p", "2",
			"--routing", "full-scan",
			"--interval", "250ms",
			"-b", "3",
			"--text",
			"--no-save",
			"--db-dir", "/tmp/tracker-db",
			"42", "57",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BoardURL != "https://flag.jcink.net" {
			t.Errorf("unexpected BoardURL %q", cfg.BoardURL)
		}
		if cfg.PageLimit != 2 || cfg.Routing != "full-scan" || cfg.BatchSize != 3 {
			t.Errorf("unexpected tracker flags: page=%d routing=%q batch=%d", cfg.PageLimit, cfg.Routing, cfg.BatchSize)
		}
		if cfg.RequestInterval != 250*time.Millisecond {
			t.Errorf("unexpected interval %v", cfg.RequestInterval)
		}
		if !cfg.TextReport || cfg.SaveToDB || cfg.DBDir != "/tmp/tracker-db" {
			t.Errorf("unexpected output flags: text=%v save=%v dir=%q", cfg.TextReport, cfg.SaveToDB, cfg.DBDir)
		}
		if len(cfg.Targets) != 2 || cfg.Targets[0] != "42" {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
	})

	t.Run("fills unset values from the file", func(t *testing.T) {
		t.Parallel()
		cfg, err := parse(t, "-c", writeConfig(t, fileContent))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BoardURL != "https://file.jcink.net" || cfg.Timezone != "UTC" || cfg.Charset != "windows-1252" {
			t.Errorf("unexpected board settings: %q %q %q", cfg.BoardURL, cfg.Timezone, cfg.Charset)
		}
		if len(cfg.Targets) != 2 {
			t.Errorf("expected users from file, got %v", cfg.Targets)
		}
		if got := cfg.TrackerOptions("7").PageLimit; got != 3 {
			t.Errorf("expected file page limit 3, got %d", got)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("flags win over the file", func(t *testing.T) {
		t.Parallel()
		cfg, err := parse(t, "-c", writeConfig(t, fileContent), "-u", "https://flag.jcink.net", "-p", "9", "42")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BoardURL != "https://flag.jcink.net" {
			t.Errorf("unexpected BoardURL %q", cfg.BoardURL)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "42" {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
		if got := cfg.TrackerOptions("42").PageLimit; got != 9 {
			t.Errorf("expected flag page limit 9, got %d", got)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()
		_, err := parse(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "42")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed config file", func(t *testing.T) {
		t.Parallel()
		_, err := parse(t, "-c", writeConfig(t, "board: [unclosed"), "42")
		if err == nil {
			t.Error("expected parse error")
		}
	})
}

// TestRunTrack tests the full tracking flow against a fake board.
func TestRunTrack(t *testing.T) {
	t.Parallel()

	t.Run("writes the filled document and records history", func(t *testing.T) {
		t.Parallel()

		board := boardtest.New()
		board.Topics["42"] = sampleRows()
		srv := board.Server()
		defer srv.Close()

		cfg := trackConfig(t, srv.URL, "42")

		var stdout, stderr bytes.Buffer
		if err := runTrack(context.Background(), cfg, &stdout, &stderr, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := stdout.String()
		for _, want := range []string{`id="active-threads"`, `id="archived-threads"`, "Into the Woods", "Tea Time", "Old Tale"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if !strings.Contains(stderr.String(), "[1/1] Tracked user 42: 1 owed, 1 completed, 1 locked") {
			t.Errorf("unexpected progress output: %q", stderr.String())
		}

		// A second run sees one more thread.
		board.Topics["42"] = append([]boardtest.Row{
			{TopicID: 14, Title: "New Arrival", ForumID: "4", ForumName: "The Forest", PosterID: "17", PosterName: "Ash", Date: "1 minutes ago"},
		}, sampleRows()...)

		stdout.Reset()
		stderr.Reset()
		if err := runTrack(context.Background(), cfg, &stdout, &stderr, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr.String(), "user 42 since last run: 1 new, 0 finished, 0 now owed, 0 newly locked") {
			t.Errorf("expected change summary, got %q", stderr.String())
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		history, err := db.RunHistory(context.Background(), srv.URL, "42")
		if err != nil {
			t.Fatalf("failed to read history: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 stored runs, got %d", len(history))
		}
		if history[0].Owed != 2 {
			t.Errorf("expected latest run to have 2 owed, got %d", history[0].Owed)
		}
	})

	t.Run("writes one file per user", func(t *testing.T) {
		t.Parallel()

		board := boardtest.New()
		board.Topics["42"] = sampleRows()
		board.Topics["57"] = sampleRows()[:1]
		srv := board.Server()
		defer srv.Close()

		cfg := trackConfig(t, srv.URL, "42", "57")
		cfg.MarkdownReport = true
		cfg.SaveToDB = false
		cfg.ReportFile = filepath.Join(t.TempDir(), "out", "tracker.md")

		var stdout, stderr bytes.Buffer
		if err := runTrack(context.Background(), cfg, &stdout, &stderr, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, user := range []string{"42", "57"} {
			path := filepath.Join(filepath.Dir(cfg.ReportFile), "tracker-"+user+".md")
			content, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("expected report for user %s: %v", user, err)
			}
			if !strings.Contains(string(content), "# Thread Tracker Report") {
				t.Errorf("expected Markdown report for user %s", user)
			}
		}
		if _, err := os.Stat(cfg.ReportFile); !os.IsNotExist(err) {
			t.Error("expected no unsuffixed report file")
		}
		if strings.Count(stdout.String(), "THREAD TRACKER REPORT") != 2 {
			t.Errorf("expected a terminal summary per user, got %q", stdout.String())
		}
	})

	t.Run("fills a host template", func(t *testing.T) {
		t.Parallel()

		board := boardtest.New()
		board.Topics["42"] = sampleRows()
		srv := board.Server()
		defer srv.Close()

		templatePath := filepath.Join(t.TempDir(), "host.html")
		host := `<html><body><section id="active-threads"></section><p>footer</p></body></html>`
		if err := os.WriteFile(templatePath, []byte(host), 0600); err != nil {
			t.Fatalf("failed to write template: %v", err)
		}

		cfg := trackConfig(t, srv.URL, "42")
		cfg.SaveToDB = false
		cfg.TemplateFile = templatePath

		var stdout, stderr bytes.Buffer
		if err := runTrack(context.Background(), cfg, &stdout, &stderr, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := stdout.String()
		if !strings.Contains(out, `<section id="active-threads"><div class="tracker-item">`) {
			t.Errorf("expected threads inside the host section, got %q", out)
		}
		if !strings.Contains(out, "<p>footer</p>") {
			t.Error("expected the rest of the host document to be kept")
		}
		if strings.Contains(out, "Old Tale") {
			t.Error("expected archived thread to be dropped without a host element")
		}
	})

	t.Run("outputs JSON", func(t *testing.T) {
		t.Parallel()

		board := boardtest.New()
		srv := board.Server()
		defer srv.Close()

		cfg := trackConfig(t, srv.URL, "42")
		cfg.SaveToDB = false
		cfg.JSONReport = true

		var stdout, stderr bytes.Buffer
		if err := runTrack(context.Background(), cfg, &stdout, &stderr, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got report.JSONReport
		if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if got.Version == "" {
			t.Error("expected version in report")
		}
		if got.Run == nil || got.Run.Outcome != model.OutcomeNoResults {
			t.Fatalf("expected no-results run, got %+v", got.Run)
		}
		if got.Summary.Sentinels != 2 {
			t.Errorf("expected 2 placeholders, got %d", got.Summary.Sentinels)
		}
	})

	t.Run("unreadable template", func(t *testing.T) {
		t.Parallel()

		cfg := trackConfig(t, "https://board.example", "42")
		cfg.TemplateFile = filepath.Join(t.TempDir(), "missing.html")

		err := runTrack(context.Background(), cfg, io.Discard, io.Discard, discardLogger())
		if err == nil || !strings.Contains(err.Error(), "failed to read template") {
			t.Errorf("expected template error, got %v", err)
		}
	})

	t.Run("unknown charset", func(t *testing.T) {
		t.Parallel()

		cfg := trackConfig(t, "https://board.example", "42")
		cfg.Charset = "no-such-charset"

		if err := runTrack(context.Background(), cfg, io.Discard, io.Discard, discardLogger()); err == nil {
			t.Error("expected client error")
		}
	})
}

// TestTrackCommandEndToEnd runs the command through the root command.
func TestTrackCommandEndToEnd(t *testing.T) {
	t.Parallel()

	board := boardtest.New()
	board.Topics["42"] = sampleRows()
	srv := board.Server()
	defer srv.Close()

	configPath := filepath.Join(t.TempDir(), ".threadtracker")
	content := fmt.Sprintf("board:\n  url: %q\n  users: [\"42\"]\n", srv.URL)
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"track", "-c", configPath, "--interval", "0", "--no-save", "--text"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"THREAD TRACKER REPORT", "OWED:      1", "Into the Woods"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

// TestTrackCommandValidation tests that bad input fails before any request.
func TestTrackCommandValidation(t *testing.T) {
	t.Parallel()

	emptyConfig := filepath.Join(t.TempDir(), ".threadtracker")
	if err := os.WriteFile(emptyConfig, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "no board", args: []string{"42"}, want: config.ErrNoBoard},
		{name: "no user", args: []string{"-u", "https://board.example"}, want: config.ErrNoTarget},
		{name: "bad user", args: []string{"-u", "https://board.example", "rowan"}, want: config.ErrInvalidUserID},
		{name: "bad routing", args: []string{"-u", "https://board.example", "--routing", "sideways", "42"}, want: config.ErrInvalidRoutingPolicy},
		{name: "two formats", args: []string{"-u", "https://board.example", "-j", "-m", "42"}, want: config.ErrConflictingReportFormats},
		{name: "bad timezone", args: []string{"-u", "https://board.example", "-z", "Mars/Olympus", "42"}, want: config.ErrInvalidTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := NewTrackCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(append([]string{"-c", emptyConfig, "--no-save"}, tt.args...))

			if err := cmd.Execute(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReportPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		base  string
		multi bool
		want  string
	}{
		{name: "stdout", base: "", multi: true, want: ""},
		{name: "single user", base: "out/tracker.html", multi: false, want: "out/tracker.html"},
		{name: "several users", base: "out/tracker.html", multi: true, want: "out/tracker-42.html"},
		{name: "no extension", base: "tracker", multi: true, want: "tracker-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := reportPath(tt.base, "42", tt.multi); got != tt.want {
				t.Errorf("reportPath(%q) = %q, want %q", tt.base, got, tt.want)
			}
		})
	}
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*config.Config)
		check  func(report.Writer) bool
	}{
		{name: "html by default", modify: func(*config.Config) {}, check: func(w report.Writer) bool { _, ok := w.(*report.HTMLWriter); return ok }},
		{name: "json", modify: func(c *config.Config) { c.JSONReport = true }, check: func(w report.Writer) bool { _, ok := w.(*report.FullJSONWriter); return ok }},
		{name: "markdown", modify: func(c *config.Config) { c.MarkdownReport = true }, check: func(w report.Writer) bool { _, ok := w.(*report.MarkdownWriter); return ok }},
		{name: "text", modify: func(c *config.Config) { c.TextReport = true }, check: func(w report.Writer) bool { _, ok := w.(*report.SimpleWriter); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewConfig()
			tt.modify(cfg)
			w := newReportWriter(cfg, io.Discard, "", "title", discardLogger())
			if !tt.check(w) {
				t.Errorf("unexpected writer type %T", w)
			}
		})
	}
}

func TestDescribeRun(t *testing.T) {
	t.Parallel()

	locked := model.ThreadRecord{Kind: model.KindThread, Thread: &model.Thread{Locked: true}}
	owed := model.ThreadRecord{Kind: model.KindThread, Thread: &model.Thread{Status: model.StatusOwed}}

	tests := []struct {
		name string
		run  *model.Run
		want string
	}{
		{name: "timed out", run: &model.Run{TimedOut: true, Outcome: model.OutcomeResults}, want: "timed out"},
		{name: "search failed", run: &model.Run{Outcome: model.OutcomeSearchFailed}, want: "search failed"},
		{name: "no results", run: &model.Run{Outcome: model.OutcomeNoResults}, want: "no threads found"},
		{name: "board message", run: &model.Run{Outcome: model.OutcomeBoardMessage, BoardMessage: "Flood control"}, want: "board message: Flood control"},
		{name: "counts", run: &model.Run{Outcome: model.OutcomeResults, Records: []model.ThreadRecord{owed, owed, locked}}, want: "2 owed, 0 completed, 1 locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := describeRun(tt.run); got != tt.want {
				t.Errorf("describeRun() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompleteRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  *model.Run
		want bool
	}{
		{name: "results", run: &model.Run{Outcome: model.OutcomeResults}, want: true},
		{name: "no results", run: &model.Run{Outcome: model.OutcomeNoResults}, want: true},
		{name: "search failed", run: &model.Run{Outcome: model.OutcomeSearchFailed}, want: false},
		{name: "page failure", run: &model.Run{Outcome: model.OutcomeResults, PageFailure: "HTTP 500"}, want: false},
		{name: "timed out", run: &model.Run{Outcome: model.OutcomeResults, TimedOut: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := completeRun(tt.run); got != tt.want {
				t.Errorf("completeRun() = %v, want %v", got, tt.want)
			}
		})
	}
}
