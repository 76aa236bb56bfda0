package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/database"
	"github.com/nao1215/threadtracker/internal/model"
	"github.com/spf13/cobra"
)

// historyTimeLayout formats run timestamps in listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// This command compares tracking runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [user-id]",
		Short: "Compare tracking runs with earlier ones",
		Long: `History shows how a user's threads changed between two tracking runs.

It reports:
- New threads the user has posted in since the earlier run
- Finished threads that no longer show up in the search
- Threads that are owed again because someone else replied
- Threads that were closed or moved to an archive forum

Every 'threadtracker track' run is stored, so two runs are needed before
anything can be compared.

Examples:
  # Compare the latest two runs of a user
  threadtracker history -u https://example.jcink.net 42

  # List the stored runs of a user
  threadtracker history -u https://example.jcink.net --list 42

  # Compare the latest run with a specific earlier run
  threadtracker history -u https://example.jcink.net --with-run-id 5 42

  # Output the comparison as JSON
  threadtracker history -u https://example.jcink.net --json 42

  # List every tracked user in the database
  threadtracker history --list-users`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("board", "u", "",
		"Board base URL (default: board.url from the configuration file)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .threadtracker in current or home directory)")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List stored runs for the specified user")
	cmd.Flags().BoolP("list-users", "L", false,
		"List every tracked user in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with a specific run by ID (use --list to see IDs)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// historyOptions holds the parsed history command flags.
type historyOptions struct {
	board     string
	userID    string
	list      bool
	listUsers bool
	withRunID int64
	json      bool
	markdown  bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, dbDir, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	// The database is only read here; a missing one means nothing was tracked yet.
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no tracking history yet (run 'threadtracker track' first): %w", err)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(context.Background(), db, opts, cmd.OutOrStdout())
}

// parseHistoryFlags validates the flags before the database is opened.
func parseHistoryFlags(cmd *cobra.Command, args []string) (historyOptions, string, error) {
	var opts historyOptions
	var err error

	opts.listUsers, err = cmd.Flags().GetBool("list-users")
	if err != nil {
		return opts, "", err
	}
	opts.list, err = cmd.Flags().GetBool("list")
	if err != nil {
		return opts, "", err
	}
	opts.withRunID, err = cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return opts, "", err
	}
	opts.json, err = cmd.Flags().GetBool("json")
	if err != nil {
		return opts, "", err
	}
	opts.markdown, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return opts, "", err
	}
	if opts.json && opts.markdown {
		return opts, "", config.ErrConflictingReportFormats
	}

	cfg := config.NewConfig()
	cfg.BoardURL, err = cmd.Flags().GetString("board")
	if err != nil {
		return opts, "", err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return opts, "", err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return opts, "", err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if opts.listUsers {
		return opts, cfg.DBDir, nil
	}

	if len(args) == 0 {
		return opts, "", errors.New("user id is required (use --list-users to see tracked users)")
	}
	if err := loadConfigFile(cfg); err != nil {
		return opts, "", err
	}
	if cfg.BoardURL == "" {
		return opts, "", config.ErrNoBoard
	}
	cfg.Targets = args[:1]
	if err := cfg.Validate(); err != nil {
		return opts, "", err
	}

	opts.board = cfg.BoardURL
	opts.userID = strings.TrimSpace(args[0])
	return opts, cfg.DBDir, nil
}

// runHistory dispatches to the listing or comparison output.
func runHistory(ctx context.Context, db *database.HistoryDB, opts historyOptions, out io.Writer) error {
	if opts.listUsers {
		return listTrackedUsers(ctx, db, out)
	}
	if opts.list {
		return listRunHistory(ctx, db, opts.board, opts.userID, out)
	}

	result, err := compareRuns(ctx, db, opts.board, opts.userID, opts.withRunID)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		return outputHistoryJSON(result, out)
	case opts.markdown:
		return outputHistoryMarkdown(result, out)
	default:
		return outputHistoryText(result, out)
	}
}

// listTrackedUsers lists every board and user with stored runs.
func listTrackedUsers(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Fprintln(out, "No tracked users found in the database.")
		fmt.Fprintln(out, "\nUse 'threadtracker track <user-id>' to track a user.")
		return nil
	}

	fmt.Fprintf(out, "Tracked users (%d):\n\n", len(users))
	fmt.Fprintf(out, "  %-8s  %-5s  %-20s  %s\n", "User", "Runs", "Last Run", "Board")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, u := range users {
		fmt.Fprintf(out, "  %-8s  %-5d  %-20s  %s\n",
			u.UserID,
			u.Runs,
			u.LastRun.Local().Format(historyTimeLayout),
			u.Board,
		)
	}
	fmt.Fprintln(out, "\nUse 'threadtracker history --list <user-id>' to see the runs of a user.")

	return nil
}

// listRunHistory lists every stored run of a user.
func listRunHistory(ctx context.Context, db *database.HistoryDB, board, userID string, out io.Writer) error {
	runs, err := db.RunHistory(ctx, board, userID)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for user %s on %s\n", userID, board)
		fmt.Fprintln(out, "\nUse 'threadtracker track' to track this user.")
		return nil
	}

	fmt.Fprintf(out, "Run history for user %s on %s (%d runs):\n\n", userID, board, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-14s  %s\n", "ID", "Date", "Outcome", "Threads")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))

	for _, meta := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-14s  %s\n",
			meta.ID,
			meta.StartedAt.Local().Format(historyTimeLayout),
			meta.Outcome,
			formatCounts(meta),
		)
	}

	fmt.Fprintln(out, "\nUse 'threadtracker history <user-id>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'threadtracker history --with-run-id <id> <user-id>' to compare with a specific run.")

	return nil
}

// formatCounts formats the status counts of a stored run.
func formatCounts(meta database.RunMetadata) string {
	if meta.Error != "" {
		return "error: " + meta.Error
	}
	if meta.Owed+meta.Completed+meta.Locked == 0 {
		return "none"
	}
	return fmt.Sprintf("O:%d C:%d L:%d", meta.Owed, meta.Completed, meta.Locked)
}

// RunInfo describes one side of a comparison.
type RunInfo struct {
	// ID is the run's database id.
	ID int64 `json:"id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Outcome is how the run's search resolved.
	Outcome model.Outcome `json:"outcome"`

	// Summary holds the run's status counts.
	Summary model.Summary `json:"summary"`

	// PagesRead is the number of results pages the run fetched.
	PagesRead int `json:"pages_read"`
}

// HistoryResult holds the result of comparing two runs of a user.
type HistoryResult struct {
	// Board is the tracked board's base URL.
	Board string `json:"board"`

	// UserID is the tracked user.
	UserID string `json:"user_id"`

	// PreviousRun is the earlier run.
	PreviousRun RunInfo `json:"previous_run"`

	// CurrentRun is the latest run.
	CurrentRun RunInfo `json:"current_run"`

	// Changes lists the thread differences.
	Changes model.Comparison `json:"changes"`
}

// compareRuns loads the latest run and the run to compare it with.
func compareRuns(ctx context.Context, db *database.HistoryDB, board, userID string, withRunID int64) (*HistoryResult, error) {
	history, err := db.RunHistory(ctx, board, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}

	if len(history) == 0 {
		return nil, fmt.Errorf("no runs found for user %s on %s", userID, board)
	}
	if len(history) < 2 && withRunID == 0 {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(history))
	}

	currentMeta := history[0]
	previousMeta := history[1%len(history)]

	if withRunID > 0 {
		found := false
		for _, meta := range history {
			if meta.ID == withRunID {
				previousMeta = meta
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("run with ID %d not found for user %s on %s", withRunID, userID, board)
		}
		if withRunID == currentMeta.ID {
			return nil, fmt.Errorf("run %d is the latest run; choose an earlier one", withRunID)
		}
	}

	current, err := loadRunInfo(ctx, db, currentMeta.ID)
	if err != nil {
		return nil, err
	}
	previous, err := loadRunInfo(ctx, db, previousMeta.ID)
	if err != nil {
		return nil, err
	}

	return &HistoryResult{
		Board:       board,
		UserID:      userID,
		PreviousRun: previous.info,
		CurrentRun:  current.info,
		Changes:     model.Compare(previous.run, current.run),
	}, nil
}

type loadedRun struct {
	run  *model.Run
	info RunInfo
}

// loadRunInfo loads a stored run and its page list.
func loadRunInfo(ctx context.Context, db *database.HistoryDB, id int64) (loadedRun, error) {
	run, err := db.RunByID(ctx, id)
	if err != nil {
		return loadedRun{}, fmt.Errorf("failed to get run with ID %d: %w", id, err)
	}
	if run == nil {
		return loadedRun{}, fmt.Errorf("run with ID %d not found", id)
	}

	pages, err := db.RunPages(ctx, id)
	if err != nil {
		return loadedRun{}, fmt.Errorf("failed to get pages of run %d: %w", id, err)
	}

	return loadedRun{
		run: run,
		info: RunInfo{
			ID:        id,
			StartedAt: run.StartedAt,
			Outcome:   run.Outcome,
			Summary:   run.Summary(),
			PagesRead: len(pages),
		},
	}, nil
}

// outputHistoryJSON outputs the comparison result in JSON format.
func outputHistoryJSON(result *HistoryResult, out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputHistoryMarkdown outputs the comparison result in Markdown format.
func outputHistoryMarkdown(result *HistoryResult, out io.Writer) error {
	md := markdown.NewMarkdown(out)

	md.H1("Thread History: user " + result.UserID)
	md.PlainText("")
	md.PlainTextf("Board: `%s`", result.Board)
	md.PlainText("")

	prev, cur := result.PreviousRun, result.CurrentRun
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", "#" + strconv.FormatInt(prev.ID, 10), "#" + strconv.FormatInt(cur.ID, 10), "-"},
			{"Date", prev.StartedAt.Local().Format(historyTimeLayout), cur.StartedAt.Local().Format(historyTimeLayout), "-"},
			{"Owed", strconv.Itoa(prev.Summary.Owed), strconv.Itoa(cur.Summary.Owed), formatDelta(cur.Summary.Owed - prev.Summary.Owed)},
			{"Completed", strconv.Itoa(prev.Summary.Completed), strconv.Itoa(cur.Summary.Completed), formatDelta(cur.Summary.Completed - prev.Summary.Completed)},
			{"Locked", strconv.Itoa(prev.Summary.Locked), strconv.Itoa(cur.Summary.Locked), formatDelta(cur.Summary.Locked - prev.Summary.Locked)},
			{"Pages Read", strconv.Itoa(prev.PagesRead), strconv.Itoa(cur.PagesRead), formatDelta(cur.PagesRead - prev.PagesRead)},
		},
	})
	md.PlainText("")

	if result.Changes.Empty() {
		md.Note("No thread changes between these runs.")
		return md.Build()
	}

	writeThreadSection := func(title string, threads []model.Thread) {
		if len(threads) == 0 {
			return
		}
		md.H2(fmt.Sprintf("%s (%d)", title, len(threads)))
		md.PlainText("")
		items := make([]string, 0, len(threads))
		for _, t := range threads {
			items = append(items, markdownThread(t))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	writeThreadSection("Now Owed", result.Changes.NowOwed)
	writeThreadSection("New Threads", result.Changes.New)
	writeThreadSection("Newly Locked", result.Changes.NewlyLocked)
	writeThreadSection("Finished", result.Changes.Finished)

	return md.Build()
}

func markdownThread(t model.Thread) string {
	title := t.Title
	if t.Link != "" {
		title = markdown.Link(t.Title, t.Link)
	}
	return fmt.Sprintf("%s (%s, last post by %s)", title, t.ForumName, t.LastPosterName)
}

// outputHistoryText outputs the comparison result in human-readable text format.
func outputHistoryText(result *HistoryResult, out io.Writer) error {
	fmt.Fprintf(out, "Thread History: user %s on %s\n", result.UserID, result.Board)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	prev, cur := result.PreviousRun, result.CurrentRun
	fmt.Fprintf(out, "\nPrevious run: #%d %s\n", prev.ID, prev.StartedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(out, "Current run:  #%d %s\n", cur.ID, cur.StartedAt.Local().Format(historyTimeLayout))

	fmt.Fprintln(out, "\nThread Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Status", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	rows := []struct {
		label     string
		prev, cur int
	}{
		{"Owed", prev.Summary.Owed, cur.Summary.Owed},
		{"Completed", prev.Summary.Completed, cur.Summary.Completed},
		{"Locked", prev.Summary.Locked, cur.Summary.Locked},
		{"Total", prev.Summary.Total(), cur.Summary.Total()},
	}
	for _, r := range rows {
		fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", r.label, r.prev, r.cur, formatDelta(r.cur-r.prev))
	}

	if result.Changes.Empty() {
		fmt.Fprintln(out, "\nNo thread changes.")
		return nil
	}

	writeThreads := func(title, marker string, threads []model.Thread) {
		if len(threads) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s (%d):\n", title, len(threads))
		for _, t := range threads {
			fmt.Fprintf(out, "  [%s] %s (%s)\n", marker, t.Title, t.ForumName)
		}
	}

	writeThreads("Now Owed", "!", result.Changes.NowOwed)
	writeThreads("New Threads", "+", result.Changes.New)
	writeThreads("Newly Locked", "x", result.Changes.NewlyLocked)
	writeThreads("Finished", "-", result.Changes.Finished)

	return nil
}

// describeChanges returns a one-line summary of a comparison.
func describeChanges(c model.Comparison) string {
	if c.Empty() {
		return "no changes"
	}
	return fmt.Sprintf("%d new, %d finished, %d now owed, %d newly locked",
		len(c.New), len(c.Finished), len(c.NowOwed), len(c.NewlyLocked))
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
