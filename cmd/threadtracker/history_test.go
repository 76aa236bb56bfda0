package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/database"
	"github.com/nao1215/threadtracker/internal/model"
)

const historyBoard = "https://example.jcink.net"

func threadRecord(topic, title string, status model.Status, locked bool) model.ThreadRecord {
	return model.ThreadRecord{
		Kind:      model.KindThread,
		Date:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Container: "#active-threads",
		Thread: &model.Thread{
			Title:          title,
			Link:           historyBoard + "/index.php?showtopic=" + topic + "&view=getlastpost",
			ForumID:        "4",
			ForumName:      "The Forest",
			LastPosterName: "Ash",
			Status:         status,
			Locked:         locked,
		},
	}
}

func historyRun(userID string, startedAt time.Time, pages int, records ...model.ThreadRecord) *model.Run {
	run := model.NewRun(historyBoard, userID)
	run.StartedAt = startedAt
	run.Outcome = model.OutcomeResults
	run.Records = append(run.Records, records...)
	for i := range pages {
		run.Pages = append(run.Pages, model.SearchPage{
			URL:      historyBoard + "/index.php?act=Search&CODE=show",
			Index:    i,
			RowCount: len(records) + 1,
			Records:  len(records),
		})
	}
	return run
}

// seedHistory stores three runs of user 42 and one of user 57 and returns
// the database directory and the ids of user 42's runs, oldest first.
func seedHistory(t *testing.T) (string, []int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	runs := []*model.Run{
		historyRun("42", base, 1,
			threadRecord("11", "Into the Woods", model.StatusCompleted, false),
			threadRecord("12", "Tea Time", model.StatusOwed, false),
		),
		historyRun("42", base.Add(time.Hour), 1,
			threadRecord("11", "Into the Woods", model.StatusCompleted, false),
			threadRecord("12", "Tea Time", model.StatusOwed, false),
			threadRecord("13", "Old Tale", model.StatusOwed, false),
		),
		historyRun("42", base.Add(2*time.Hour), 2,
			threadRecord("11", "Into the Woods", model.StatusOwed, false),
			threadRecord("13", "Old Tale", model.StatusOwed, true),
			threadRecord("14", "New Arrival", model.StatusOwed, false),
		),
	}

	ids := make([]int64, 0, len(runs))
	for _, run := range runs {
		id, err := db.SaveRun(context.Background(), run)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		ids = append(ids, id)
	}

	if _, err := db.SaveRun(context.Background(), historyRun("57", base, 1)); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	return dir, ids
}

func openHistory(t *testing.T, dir string) *database.HistoryDB {
	t.Helper()
	db, err := database.Open(dir, database.Options{CreateIfNotExists: false})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestNewHistoryCmd tests the history command flags.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	if cmd.Use != "history [user-id]" {
		t.Errorf("unexpected Use %q", cmd.Use)
	}

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "board", shorthand: "u", defValue: ""},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "db-dir", defValue: ""},
		{name: "list", shorthand: "l", defValue: "false"},
		{name: "list-users", shorthand: "L", defValue: "false"},
		{name: "with-run-id", shorthand: "i", defValue: "0"},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
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

	if err := cmd.Args(cmd, []string{"42", "57"}); err == nil {
		t.Error("expected error for two user ids")
	}
}

func TestParseHistoryFlags(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), ".threadtracker")
	content := "board:\n  url: \"" + historyBoard + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	emptyConfig := filepath.Join(t.TempDir(), ".threadtracker")
	if err := os.WriteFile(emptyConfig, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	parse := func(t *testing.T, args ...string) (historyOptions, string, error) {
		t.Helper()
		cmd := NewHistoryCmd()
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		return parseHistoryFlags(cmd, cmd.Flags().Args())
	}

	t.Run("board from config file", func(t *testing.T) {
		t.Parallel()
		opts, dbDir, err := parse(t, "-c", configPath, "--db-dir", "/tmp/history", "-l", " 42 ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.board != historyBoard || opts.userID != "42" || !opts.list {
			t.Errorf("unexpected options %+v", opts)
		}
		if dbDir != "/tmp/history" {
			t.Errorf("unexpected db dir %q", dbDir)
		}
	})

	t.Run("board flag wins", func(t *testing.T) {
		t.Parallel()
		opts, _, err := parse(t, "-c", configPath, "-u", "https://other.jcink.net", "-i", "3", "42")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opts.board != "https://other.jcink.net" || opts.withRunID != 3 {
			t.Errorf("unexpected options %+v", opts)
		}
	})

	t.Run("list users needs no board", func(t *testing.T) {
		t.Parallel()
		opts, _, err := parse(t, "-L")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !opts.listUsers {
			t.Error("expected listUsers")
		}
	})

	errTests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "conflicting formats", args: []string{"-c", configPath, "-j", "-m", "42"}, wantErr: config.ErrConflictingReportFormats},
		{name: "missing user", args: []string{"-c", configPath}, wantMsg: "user id is required"},
		{name: "missing board", args: []string{"-c", emptyConfig, "42"}, wantErr: config.ErrNoBoard},
		{name: "invalid user", args: []string{"-c", configPath, "rowan"}, wantErr: config.ErrInvalidUserID},
		{name: "missing config", args: []string{"-c", filepath.Join(t.TempDir(), "missing"), "42"}, wantErr: config.ErrConfigNotFound},
	}

	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := parse(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestRunHistory(t *testing.T) {
	t.Parallel()

	dir, ids := seedHistory(t)
	db := openHistory(t, dir)
	ctx := context.Background()

	t.Run("list users", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		if err := runHistory(ctx, db, historyOptions{listUsers: true}, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "Tracked users (2):") {
			t.Errorf("expected two tracked users, got %q", got)
		}
		if !strings.Contains(got, historyBoard) {
			t.Error("expected board in listing")
		}
	})

	t.Run("list runs", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		opts := historyOptions{board: historyBoard, userID: "42", list: true}
		if err := runHistory(ctx, db, opts, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "(3 runs)") {
			t.Errorf("expected 3 runs, got %q", got)
		}
		latest := strings.Index(got, "O:2 C:0 L:1")
		middle := strings.Index(got, "O:2 C:1 L:0")
		oldest := strings.Index(got, "O:1 C:1 L:0")
		if latest < 0 || middle < 0 || oldest < 0 {
			t.Fatalf("expected counts of every run, got %q", got)
		}
		if latest > middle || middle > oldest {
			t.Error("expected newest run first")
		}
	})

	t.Run("list runs of unknown user", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		opts := historyOptions{board: historyBoard, userID: "99", list: true}
		if err := runHistory(ctx, db, opts, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "No runs found for user 99") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("compare latest two as text", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		opts := historyOptions{board: historyBoard, userID: "42"}
		if err := runHistory(ctx, db, opts, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := out.String()
		for _, want := range []string{
			"Thread History: user 42",
			"Now Owed (1):",
			"[!] Into the Woods",
			"New Threads (1):",
			"[+] New Arrival",
			"Newly Locked (1):",
			"[x] Old Tale",
			"Finished (1):",
			"[-] Tea Time",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q, got %q", want, got)
			}
		}
	})

	t.Run("compare as JSON", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		opts := historyOptions{board: historyBoard, userID: "42", json: true}
		if err := runHistory(ctx, db, opts, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result HistoryResult
		if err := json.Unmarshal(out.Bytes(), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if result.CurrentRun.ID != ids[2] || result.PreviousRun.ID != ids[1] {
			t.Errorf("unexpected runs compared: %d and %d", result.PreviousRun.ID, result.CurrentRun.ID)
		}
		if result.CurrentRun.PagesRead != 2 || result.PreviousRun.PagesRead != 1 {
			t.Errorf("unexpected pages read: %d and %d", result.PreviousRun.PagesRead, result.CurrentRun.PagesRead)
		}
		if len(result.Changes.New) != 1 || result.Changes.New[0].Title != "New Arrival" {
			t.Errorf("unexpected new threads %+v", result.Changes.New)
		}
	})

	t.Run("compare with a chosen run as Markdown", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		opts := historyOptions{board: historyBoard, userID: "42", withRunID: ids[0], markdown: true}
		if err := runHistory(ctx, db, opts, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := out.String()
		for _, want := range []string{
			"# Thread History: user 42",
			"| Metric",
			"## New Threads (2)",
			"[Old Tale](" + historyBoard,
			"## Finished (1)",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q, got %q", want, got)
			}
		}
	})

	errTests := []struct {
		name string
		opts historyOptions
		want string
	}{
		{name: "unknown user", opts: historyOptions{board: historyBoard, userID: "99"}, want: "no runs found"},
		{name: "single run", opts: historyOptions{board: historyBoard, userID: "57"}, want: "at least 2 runs are required for comparison (found 1)"},
		{name: "unknown run id", opts: historyOptions{board: historyBoard, userID: "42", withRunID: 999}, want: "run with ID 999 not found"},
		{name: "latest run id", opts: historyOptions{board: historyBoard, userID: "42", withRunID: ids[2]}, want: "is the latest run"},
	}

	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := runHistory(ctx, db, tt.opts, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestHistoryCommandWithoutDatabase(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--db-dir", t.TempDir(), "-L"})

	err := cmd.Execute()
	if !errors.Is(err, database.ErrDatabaseNotFound) {
		t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "no tracking history yet") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestHistoryCommandEndToEnd(t *testing.T) {
	t.Parallel()

	dir, _ := seedHistory(t)

	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--db-dir", dir, "-u", historyBoard, "-c", writeEmptyConfig(t), "42"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "New Threads (1):") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".threadtracker")
	if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestFormatCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta database.RunMetadata
		want string
	}{
		{name: "error", meta: database.RunMetadata{Owed: 1, Error: "search failed"}, want: "error: search failed"},
		{name: "empty", meta: database.RunMetadata{}, want: "none"},
		{name: "counts", meta: database.RunMetadata{Owed: 2, Completed: 1, Locked: 3}, want: "O:2 C:1 L:3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatCounts(tt.meta); got != tt.want {
				t.Errorf("formatCounts() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribeChanges(t *testing.T) {
	t.Parallel()

	if got := describeChanges(model.Comparison{}); got != "no changes" {
		t.Errorf("expected no changes, got %q", got)
	}

	c := model.Comparison{
		New:         []model.Thread{{Title: "a"}, {Title: "b"}},
		NewlyLocked: []model.Thread{{Title: "c"}},
	}
	if got, want := describeChanges(c), "2 new, 0 finished, 0 now owed, 1 newly locked"; got != want {
		t.Errorf("describeChanges() = %q, want %q", got, want)
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{delta: 3, want: "+3"},
		{delta: 0, want: "0"},
		{delta: -2, want: "-2"},
	}

	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}
