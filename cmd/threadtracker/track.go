package main

import (
	"context"
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

	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/database"
	"github.com/nao1215/threadtracker/internal/dates"
	"github.com/nao1215/threadtracker/internal/model"
	"github.com/nao1215/threadtracker/internal/pipeline"
	"github.com/nao1215/threadtracker/internal/report"
	"github.com/nao1215/threadtracker/internal/transport"
	"github.com/spf13/cobra"
)

// NewTrackCmd creates the track command.
func NewTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track [user-id...]",
		Short: "Build the thread tracker for one or more users",
		Long: `Track searches the board for every topic a user has posted in and sorts
the threads into containers, newest first.

A thread is "owed" when someone else posted last and "completed" when the
user did. Closed threads and threads in archive forums go to the archived
containers. Containers that end up empty get a "None" placeholder.

By default the containers are filled into an HTML document. Use
--template to fill your own page instead; the container names are CSS
selectors such as #active-threads.

Examples:
  # Track one user
  threadtracker track --board https://example.jcink.net 42

  # Track several users, three at a time, one file each
  threadtracker track -u https://example.jcink.net -b 3 -o out/tracker.html 42 57 61

  # Read more result pages and route by every configured container
  threadtracker track -u https://example.jcink.net -p 10 --routing full-scan 42

  # Terminal summary instead of HTML
  threadtracker track --text 42

  # Use board settings and users from a configuration file
  threadtracker track -c board.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runTrackCmd,
	}

	// Board connection flags
	cmd.Flags().StringP("board", "u", "",
		"Board base URL (e.g., https://example.jcink.net)")
	cmd.Flags().StringP("timezone", "z", "",
		"IANA time zone the board shows dates in (default: local zone)")
	cmd.Flags().String("charset", "",
		"Force the response charset instead of detecting it (e.g., windows-1252)")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Duration("interval", config.DefaultRequestInterval,
		"Minimum delay between two requests to the board")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time limit for each user's run")

	// Tracker flags
	cmd.Flags().IntP("page-limit", "p", 0,
		"Highest results page to read, counted from 0 (default: 5)")
	cmd.Flags().String("routing", "",
		"Container lookup policy: first-entry or full-scan (default: first-entry)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of users tracked concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .threadtracker in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report")
	cmd.Flags().Bool("text", false,
		"Output a plain text summary")
	cmd.Flags().String("template", "",
		"HTML document to fill the containers into")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (one file per user when tracking several)")

	// History flags
	cmd.Flags().Bool("no-save", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	return cmd
}

// runTrackCmd executes the track command.
func runTrackCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, getLogJSONFlag(cmd))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runTrack(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. Flags win over the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.BoardURL, err = cmd.Flags().GetString("board")
	if err != nil {
		return nil, err
	}

	cfg.Timezone, err = cmd.Flags().GetString("timezone")
	if err != nil {
		return nil, err
	}

	cfg.Charset, err = cmd.Flags().GetString("charset")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.RequestInterval, err = cmd.Flags().GetDuration("interval")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.PageLimit, err = cmd.Flags().GetInt("page-limit")
	if err != nil {
		return nil, err
	}

	cfg.Routing, err = cmd.Flags().GetString("routing")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.TextReport, err = cmd.Flags().GetBool("text")
	if err != nil {
		return nil, err
	}

	cfg.TemplateFile, err = cmd.Flags().GetString("template")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile applies the configuration file to cfg. A missing file is
// an error only when its path was given explicitly.
func loadConfigFile(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.ApplyFile(file)
	return nil
}

// runTrack tracks every target user and writes their reports.
func runTrack(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	logger.Info("starting tracker",
		"board", cfg.BoardURL,
		"users", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	hostDoc, err := readTemplate(cfg.TemplateFile)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	normalizer := dates.New(dates.WithLocation(loc))

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	if err := client.CheckProxy(ctx); err != nil {
		return fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)", err, cfg.ProxyAddress)
	}

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	bp := pipeline.NewBatchProcessor(cfg.BoardURL,
		func(userID string) *pipeline.Pipeline {
			return pipeline.DefaultPipeline(client, cfg.BoardURL, cfg.TrackerOptions(userID),
				[]pipeline.Option{
					pipeline.WithLogger(logger),
					pipeline.WithContinueOnError(true),
				},
				pipeline.WithPipelineNormalizer(normalizer),
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithRunTimeout(cfg.Timeout),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	total := len(cfg.Targets)
	runs := make([]*model.Run, total)

	var mu sync.Mutex
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(run *model.Run, index int) {
		mu.Lock()
		defer mu.Unlock()

		runs[index] = run
		fmt.Fprintf(stderr, "[%d/%d] Tracked user %s: %s\n", index+1, total, run.UserID, describeRun(run))
	})

	multi := total > 1
	for i, run := range runs {
		if run == nil {
			logger.Warn("user was not tracked", "user", cfg.Targets[i])
			continue
		}

		if err := outputReport(cfg, run, reportPath(cfg.ReportFile, run.UserID, multi), hostDoc, stdout, logger); err != nil {
			logger.Error("report failed", "user", run.UserID, "error", err)
		}

		// A cancelled batch still records what the finished runs collected.
		if err := saveRun(context.WithoutCancel(ctx), db, run, stderr, logger); err != nil {
			logger.Error("failed to save run", "user", run.UserID, "error", err)
		}
	}

	fmt.Fprintf(stderr, "Tracking completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return batchErr
}

// newClient creates the HTTP client from the board settings.
func newClient(cfg *config.Config, logger *slog.Logger) (*transport.Client, error) {
	opts := []transport.Option{
		transport.WithInterval(cfg.RequestInterval),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithMaxBodySize(cfg.MaxBodySize),
		transport.WithLogger(logger),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, transport.WithProxy(cfg.ProxyAddress))
	}
	if cfg.Cookie != "" {
		opts = append(opts, transport.WithCookie(cfg.Cookie))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(cfg.Headers))
	}
	if cfg.Charset != "" {
		opts = append(opts, transport.WithCharset(cfg.Charset))
	}

	client, err := transport.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// readTemplate loads the host HTML document. An empty path means the
// built-in document.
func readTemplate(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // User-provided template path is intentional
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return string(data), nil
}

// describeRun returns a one-line progress summary of a run.
func describeRun(run *model.Run) string {
	switch {
	case run.TimedOut:
		return "timed out"
	case run.Outcome == model.OutcomeSearchFailed:
		return "search failed"
	case run.Outcome == model.OutcomeNoResults:
		return "no threads found"
	case run.Outcome == model.OutcomeBoardMessage:
		return "board message: " + run.BoardMessage
	}
	s := run.Summary()
	return fmt.Sprintf("%d owed, %d completed, %d locked", s.Owed, s.Completed, s.Locked)
}

// reportPath returns the output path for one user. With several users
// the user id is inserted before the extension so reports do not
// overwrite each other.
func reportPath(base, userID string, multi bool) string {
	if base == "" || !multi {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + userID + ext
}

// newReportWriter returns the writer for the selected report format.
func newReportWriter(cfg *config.Config, output io.Writer, hostDoc, title string, logger *slog.Logger) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.TextReport:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	opts := []report.HTMLWriterOption{
		report.WithTitle(title),
		report.WithHTMLLogger(logger),
	}
	if hostDoc != "" {
		opts = append(opts, report.WithHostTemplate(hostDoc))
	}
	return report.NewHTMLWriter(output, opts...)
}

// outputReport writes the run in the requested format. When the report
// goes to a file, a plain text summary is also printed to stdout.
func outputReport(cfg *config.Config, run *model.Run, path, hostDoc string, stdout io.Writer, logger *slog.Logger) error {
	title := "Thread Tracker: user " + run.UserID

	if path == "" {
		_, err := newReportWriter(cfg, stdout, hostDoc, title, logger).Write(run)
		return err
	}

	if err := ensureParentDir(path); err != nil {
		return err
	}

	// Create/overwrite the output file owner-only, like the history database.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	writers := []report.Writer{newReportWriter(cfg, f, hostDoc, title, logger)}
	if !cfg.TextReport {
		writers = append(writers, report.NewSimpleWriter(stdout))
	}
	if _, err := report.NewMultiWriter(writers...).Write(run); err != nil {
		return err
	}

	logger.Info("report written", "user", run.UserID, "path", path)
	return nil
}

// saveRun records the run in the history database and prints what changed
// since the user's previous run. If db is nil, this function is a no-op.
func saveRun(ctx context.Context, db *database.HistoryDB, run *model.Run, stderr io.Writer, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	previous, err := db.LatestRun(ctx, run.Board, run.UserID)
	if err != nil {
		logger.Warn("failed to load previous run", "user", run.UserID, "error", err)
	}

	id, err := db.SaveRun(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	logger.Info("run saved to database", "user", run.UserID, "id", id)

	// An incomplete search would report every missing thread as finished.
	if previous != nil && completeRun(previous) && completeRun(run) {
		fmt.Fprintf(stderr, "  user %s since last run: %s\n", run.UserID, describeChanges(model.Compare(previous, run)))
	}
	return nil
}

// completeRun reports whether a run saw the user's full search results.
func completeRun(run *model.Run) bool {
	if run.TimedOut || run.PageFailure != "" {
		return false
	}
	return run.Outcome == model.OutcomeResults || run.Outcome == model.OutcomeNoResults
}
